package mock

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSensor(t *testing.T, opts ...SensorOption) (*SensorServer, *httptest.Server) {
	t.Helper()
	gen := NewDataGenerator(7)
	gen.GenerateStations(3)
	sensor := NewSensorServer(gen, opts...)
	srv := httptest.NewServer(sensor.Handler())
	t.Cleanup(srv.Close)
	return sensor, srv
}

func TestSensorServer_SubscribeAndPublish(t *testing.T) {
	sensor, srv := newTestSensor(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/eventbus/events.ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"SUBSCRIBE":"DOT11_PROBED_SSID"}`)))
	require.Eventually(t, func() bool {
		return len(sensor.Subscriptions()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"DOT11_PROBED_SSID"}, sensor.Subscriptions())

	require.NoError(t, sensor.PublishJSON(map[string]any{"hello": "world"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(data))
}

func TestSensorServer_RecentDevicesLimit(t *testing.T) {
	_, srv := newTestSensor(t)

	resp, err := http.Get(srv.URL + "/devices/views/all/devices.json?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestSensorServer_ByMac(t *testing.T) {
	sensor, srv := newTestSensor(t)
	mac := sensor.generator.Stations()[0].MAC

	resp, err := http.Get(srv.URL + "/devices/by-mac/" + mac + ".json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/devices/by-mac/00:00:00:00:00:00.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSensorServer_Token(t *testing.T) {
	_, srv := newTestSensor(t, WithToken("secret"))

	resp, err := http.Get(srv.URL + "/devices/views/all/devices.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/devices/views/all/devices.json?KISMET=secret")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
