package kismet

import (
	"sort"
	"strings"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
)

var (
	macaddrPaths = []strategy{
		path("kismet.device.base.macaddr"),
		path("kismet", "device", "base", "macaddr"),
	}

	lastTimePaths = []strategy{
		path("kismet.device.base.last_time"),
		path("kismet", "device", "base", "last_time"),
	}

	probedMapPaths = []strategy{
		path("dot11.device.probed_ssid_map"),
		path("dot11", "device", "probed_ssid_map"),
	}

	probeCountPaths = []strategy{
		path("dot11.device.probed_ssid_count"),
		path("dot11", "device", "probed_ssid_count"),
		path("dot11", "device", "num_probed_ssids"),
	}

	entryNamePaths = []strategy{
		path("dot11.probedssid.ssid"),
		path("ssid"),
		path("dot11.ssid"),
		path("probedssid.ssid"),
	}
)

// deviceList accepts either a bare list or a {"devices": [...]} wrapper.
func deviceList(body any) []map[string]any {
	var raw []any
	switch v := body.(type) {
	case []any:
		raw = v
	case map[string]any:
		if devs, ok := v["devices"].([]any); ok {
			raw = devs
		}
	}

	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if dev, ok := item.(map[string]any); ok {
			out = append(out, dev)
		}
	}
	return out
}

// toSensorDevice normalizes one device record. ok is false without an identifier.
func toSensorDevice(dev map[string]any) (domain.SensorDevice, bool) {
	mac, _ := firstString(dev, macaddrPaths)
	mac = domain.NormalizeIdentifier(mac)
	if mac == "" {
		return domain.SensorDevice{}, false
	}

	var lastSeen int64
	if raw, ok := firstOf(dev, lastTimePaths); ok {
		lastSeen, _ = epochSeconds(raw)
	}

	names := probedNames(dev)
	return domain.SensorDevice{
		Identifier: mac,
		LastSeen:   lastSeen,
		Names:      names,
		NameCount:  probeCount(dev),
	}, true
}

// probedNames returns the names from the first probed-name collection that yields any.
func probedNames(dev map[string]any) []string {
	for _, s := range probedMapPaths {
		raw, ok := s(dev)
		if !ok {
			continue
		}
		if names := namesFromCollection(raw); len(names) > 0 {
			return names
		}
	}
	return []string{}
}

// namesFromCollection handles a list of strings, a list of objects, or a map of hash to object.
func namesFromCollection(raw any) []string {
	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case map[string]any:
		keys := sortedKeys(v)
		entries = make([]any, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, v[k])
		}
	default:
		return nil
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := entryName(e); ok {
			out = append(out, name)
		}
	}
	return out
}

func entryName(entry any) (string, bool) {
	if s, ok := entry.(string); ok {
		return s, true
	}
	obj, ok := entry.(map[string]any)
	if !ok {
		return "", false
	}
	if null, ok := obj["dot11.probedssid.nullssid"].(bool); ok && null {
		return domain.WildcardName, true
	}
	if n, ok := intValue(obj["ssidlen"]); ok && n == 0 {
		return domain.WildcardName, true
	}
	if name, ok := firstString(obj, entryNamePaths); ok {
		return name, true
	}

	nested, _ := obj["dot11"].(map[string]any)
	if nested == nil {
		nested, _ = obj["probedssid"].(map[string]any)
	}
	if nested == nil {
		return "", false
	}
	inner := nested["probedssid"]
	if inner == nil {
		inner = nested["ssid"]
	}
	switch v := inner.(type) {
	case map[string]any:
		if s, ok := v["ssid"].(string); ok {
			return s, true
		}
	case string:
		return v, true
	}
	return "", false
}

// probeCount reads the sensor-reported count, else counts the collection.
func probeCount(dev map[string]any) int {
	for _, s := range probeCountPaths {
		if raw, ok := s(dev); ok {
			if n, ok := intValue(raw); ok {
				return n
			}
		}
	}
	raw, _ := firstOf(dev, probedMapPaths)
	switch v := raw.(type) {
	case []any:
		n := 0
		for _, e := range v {
			switch e.(type) {
			case string, map[string]any:
				n++
			}
		}
		return n
	case map[string]any:
		return len(v)
	}
	return 0
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameIdentifier(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
