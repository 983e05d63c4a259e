package mock

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Common SSIDs for realistic mock data
var commonSSIDs = []string{
	"HomeNetwork", "NETGEAR-5G", "Starbucks WiFi", "TP-Link_2.4GHz",
	"Linksys", "ATT-WiFi", "Xfinity", "Google Fiber",
	"Office-Network", "Guest-WiFi", "MyWiFi", "Home-2.4G",
	"DIRECT-Printer", "AndroidAP", "iPhone", "Samsung Galaxy",
	"CoffeeShop_Free", "Airport_WiFi", "Hotel-Guest", "Apartment_5G",
}

// Vendor OUI prefixes (first 3 bytes of MAC)
var vendorPrefixes = []string{
	"00:17:F2", // Apple
	"00:12:FB", // Samsung
	"F4:F5:D8", // Google
	"34:CE:00", // Xiaomi
	"00:E0:FC", // Huawei
	"00:13:02", // Intel
}

// PayloadShape selects one historical layout of an eventbus probe frame.
type PayloadShape int

const (
	// ShapeDotted uses flat dotted field names.
	ShapeDotted PayloadShape = iota
	// ShapeNested uses nested objects per path segment.
	ShapeNested
	// ShapeWrapped wraps the record under the category key with an event label.
	ShapeWrapped
	// ShapeLegacy carries only the base device time as a numeric string.
	ShapeLegacy
	// ShapeSlash joins the record path and field name with a slash.
	ShapeSlash
	shapeCount
)

// Station is a simulated probing client.
type Station struct {
	MAC      string
	SSIDs    []string
	LastSeen time.Time
}

// DataGenerator produces simulated probing clients and the frames they emit.
type DataGenerator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	stations map[string]*Station
	now      func() time.Time
}

// NewDataGenerator creates a generator. The same seed yields the same sequence.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng:      rand.New(rand.NewSource(seed)),
		stations: make(map[string]*Station),
		now:      time.Now,
	}
}

// GenerateStations creates n stations, each probing for one to four networks.
func (g *DataGenerator) GenerateStations(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < n; i++ {
		mac := g.randomMAC()
		count := 1 + g.rng.Intn(4)
		ssids := make([]string, 0, count)
		for _, idx := range g.rng.Perm(len(commonSSIDs))[:count] {
			ssids = append(ssids, commonSSIDs[idx])
		}
		g.stations[mac] = &Station{MAC: mac, SSIDs: ssids, LastSeen: g.now()}
	}
}

func (g *DataGenerator) randomMAC() string {
	prefix := vendorPrefixes[g.rng.Intn(len(vendorPrefixes))]
	return fmt.Sprintf("%s:%02X:%02X:%02X", prefix, g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256))
}

// Stations returns the stations sorted by MAC.
func (g *DataGenerator) Stations() []Station {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Station, 0, len(g.stations))
	for _, st := range g.stations {
		cp := *st
		cp.SSIDs = append([]string(nil), st.SSIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}

// NextProbe picks a station and one of its networks, with an occasional wildcard probe,
// and renders it in a rotating payload shape.
func (g *DataGenerator) NextProbe() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.stations) == 0 {
		return nil
	}
	macs := make([]string, 0, len(g.stations))
	for mac := range g.stations {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	st := g.stations[macs[g.rng.Intn(len(macs))]]
	st.LastSeen = g.now()

	ssid := ""
	if g.rng.Intn(5) != 0 {
		ssid = st.SSIDs[g.rng.Intn(len(st.SSIDs))]
	}
	shape := PayloadShape(g.rng.Intn(int(shapeCount)))
	return ProbeFrame(shape, st.MAC, ssid, st.LastSeen.Unix())
}

// ProbeFrame renders one probe observation in the given payload shape.
func ProbeFrame(shape PayloadShape, mac, ssid string, ts int64) map[string]any {
	switch shape {
	case ShapeNested:
		return map[string]any{
			"kismet": map[string]any{
				"device": map[string]any{
					"base": map[string]any{"macaddr": mac, "last_time": ts},
				},
			},
			"dot11": map[string]any{
				"probedssid": map[string]any{"ssid": ssid, "last_time": ts},
			},
		}
	case ShapeWrapped:
		return map[string]any{
			"event": "DOT11_PROBED_SSID",
			"DOT11_PROBED_SSID": map[string]any{
				"kismet.device.base.macaddr": mac,
				"dot11.probedssid.ssid":      ssid,
				"dot11.probedssid.last_time": ts,
			},
		}
	case ShapeLegacy:
		return map[string]any{
			"kismet.device.base": map[string]any{
				"kismet.device.base.macaddr":   mac,
				"kismet.device.base.last_time": fmt.Sprintf("%d", ts),
			},
			"dot11.probedssid.ssid": ssid,
		}
	case ShapeSlash:
		return map[string]any{
			"dot11.device/kismet.device.base.macaddr":      mac,
			"DOT11_PROBED_SSID/dot11.probedssid.ssid":      ssid,
			"DOT11_PROBED_SSID/dot11.probedssid.last_time": ts,
		}
	default:
		return map[string]any{
			"kismet.device.base.macaddr": mac,
			"dot11.probedssid.ssid":      ssid,
			"dot11.probedssid.last_time": ts,
		}
	}
}

// DeviceRecords renders the stations as a recent-devices REST view,
// rotating through the historical probed-ssid map layouts.
func (g *DataGenerator) DeviceRecords() []map[string]any {
	stations := g.Stations()
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].LastSeen.After(stations[j].LastSeen)
	})

	out := make([]map[string]any, 0, len(stations))
	for i, st := range stations {
		out = append(out, DeviceRecord(i%3, st.MAC, st.SSIDs, st.LastSeen.Unix()))
	}
	return out
}

// DeviceRecord renders one device. layout 0 is a list of objects, 1 a map of hash to
// object, 2 a list of plain strings.
func DeviceRecord(layout int, mac string, ssids []string, ts int64) map[string]any {
	var probed any
	switch layout {
	case 1:
		m := make(map[string]any, len(ssids))
		for i, s := range ssids {
			m[fmt.Sprintf("%d", 1000+i)] = probedEntry(s)
		}
		probed = m
	case 2:
		list := make([]any, 0, len(ssids))
		for _, s := range ssids {
			list = append(list, s)
		}
		probed = list
	default:
		list := make([]any, 0, len(ssids))
		for _, s := range ssids {
			list = append(list, probedEntry(s))
		}
		probed = list
	}
	return map[string]any{
		"kismet.device.base.macaddr":     mac,
		"kismet.device.base.last_time":   ts,
		"dot11.device.probed_ssid_map":   probed,
		"dot11.device.probed_ssid_count": len(ssids),
	}
}

func probedEntry(ssid string) map[string]any {
	if ssid == "" {
		return map[string]any{"dot11.probedssid.nullssid": true, "dot11.probedssid.ssid": ""}
	}
	return map[string]any{"dot11.probedssid.ssid": ssid}
}
