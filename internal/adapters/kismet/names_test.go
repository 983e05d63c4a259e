package kismet

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNamesFromCollection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain strings", `["Home","Work"]`, []string{"Home", "Work"}},
		{"objects", `[{"dot11.probedssid.ssid":"Home"},{"ssid":"Work"}]`, []string{"Home", "Work"}},
		{"hash map in key order", `{"200":{"dot11.probedssid.ssid":"B"},"100":{"dot11.probedssid.ssid":"A"}}`, []string{"A", "B"}},
		{"null ssid marker", `[{"dot11.probedssid.nullssid":true,"dot11.probedssid.ssid":"ignored"}]`, []string{""}},
		{"zero length marker", `[{"ssidlen":0}]`, []string{""}},
		{"nested probedssid object", `[{"dot11":{"probedssid":{"ssid":"Deep"}}}]`, []string{"Deep"}},
		{"nested ssid string", `[{"probedssid":{"ssid":"Flat"}}]`, []string{"Flat"}},
		{"alternate spellings", `[{"dot11.ssid":"A"},{"probedssid.ssid":"B"}]`, []string{"A", "B"}},
		{"unusable entries skipped", `[42,null,{"other":1},"Ok"]`, []string{"Ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namesFromCollection(decode(t, tt.raw)))
		})
	}

	assert.Nil(t, namesFromCollection("nope"))
}

func TestProbeCount(t *testing.T) {
	tests := []struct {
		name string
		dev  string
		want int
	}{
		{"flat count", `{"dot11.device.probed_ssid_count":7}`, 7},
		{"nested count", `{"dot11":{"device":{"probed_ssid_count":3}}}`, 3},
		{"num probed", `{"dot11":{"device":{"num_probed_ssids":4}}}`, 4},
		{"list length", `{"dot11.device.probed_ssid_map":["a",{"ssid":"b"},5]}`, 2},
		{"map size", `{"dot11":{"device":{"probed_ssid_map":{"1":{},"2":{}}}}}`, 2},
		{"nothing", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := decode(t, tt.dev).(map[string]any)
			assert.Equal(t, tt.want, probeCount(dev))
		})
	}
}

func TestToSensorDevice(t *testing.T) {
	dev := decode(t, `{
		"kismet.device.base.macaddr": "aa:bb:cc:dd:ee:ff",
		"kismet.device.base.last_time": 1700000000,
		"dot11.device.probed_ssid_map": [],
		"dot11": {"device": {"probed_ssid_map": [{"dot11.probedssid.ssid": "Legacy"}]}}
	}`).(map[string]any)

	got, ok := toSensorDevice(dev)
	require.True(t, ok)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got.Identifier)
	assert.Equal(t, int64(1700000000), got.LastSeen)
	assert.Equal(t, []string{"Legacy"}, got.Names)

	_, ok = toSensorDevice(map[string]any{"kismet.device.base.last_time": 1.0})
	assert.False(t, ok)
}

func TestDeviceList(t *testing.T) {
	assert.Len(t, deviceList(decode(t, `[{"a":1},{"b":2}]`)), 2)
	assert.Len(t, deviceList(decode(t, `{"devices":[{"a":1}]}`)), 1)
	assert.Empty(t, deviceList(decode(t, `{"other":[]}`)))
	assert.Empty(t, deviceList(nil))
}
