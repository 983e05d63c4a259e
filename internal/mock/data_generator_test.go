package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataGenerator_Deterministic(t *testing.T) {
	a := NewDataGenerator(42)
	b := NewDataGenerator(42)
	a.GenerateStations(5)
	b.GenerateStations(5)

	require.Len(t, a.Stations(), 5)
	for i, st := range a.Stations() {
		assert.Equal(t, st.MAC, b.Stations()[i].MAC)
		assert.Equal(t, st.SSIDs, b.Stations()[i].SSIDs)
		assert.NotEmpty(t, st.SSIDs)
		assert.LessOrEqual(t, len(st.SSIDs), 4)
	}
}

func TestDataGenerator_NextProbeWithoutStations(t *testing.T) {
	assert.Nil(t, NewDataGenerator(1).NextProbe())
}

func TestProbeFrame_Shapes(t *testing.T) {
	dotted := ProbeFrame(ShapeDotted, "AA:BB:CC:DD:EE:FF", "Cafe", 1000)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dotted["kismet.device.base.macaddr"])

	wrapped := ProbeFrame(ShapeWrapped, "AA:BB:CC:DD:EE:FF", "Cafe", 1000)
	assert.Equal(t, "DOT11_PROBED_SSID", wrapped["event"])

	legacy := ProbeFrame(ShapeLegacy, "AA:BB:CC:DD:EE:FF", "Cafe", 1000)
	base := legacy["kismet.device.base"].(map[string]any)
	assert.Equal(t, "1000", base["kismet.device.base.last_time"])

	slash := ProbeFrame(ShapeSlash, "AA:BB:CC:DD:EE:FF", "Cafe", 1000)
	assert.Equal(t, "Cafe", slash["DOT11_PROBED_SSID/dot11.probedssid.ssid"])
}

func TestDeviceRecord_Layouts(t *testing.T) {
	ssids := []string{"Home", ""}

	list := DeviceRecord(0, "AA", ssids, 10)["dot11.device.probed_ssid_map"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, true, list[1].(map[string]any)["dot11.probedssid.nullssid"])

	m := DeviceRecord(1, "AA", ssids, 10)["dot11.device.probed_ssid_map"].(map[string]any)
	assert.Len(t, m, 2)

	plain := DeviceRecord(2, "AA", ssids, 10)["dot11.device.probed_ssid_map"].([]any)
	assert.Equal(t, []any{"Home", ""}, plain)
}
