package kismet

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
)

// ProbedSSIDCategory is the eventbus category carrying client probe requests.
const ProbedSSIDCategory = "DOT11_PROBED_SSID"

// Known key paths across sensor releases, most specific first.
var (
	eventNamePaths = []strategy{
		path("event"),
		path("kismet.eventbus.event"),
		path("kismet", "eventbus", "event"),
	}

	identifierPaths = []strategy{
		deep("kismet.device.base.macaddr"),
		deep("kismet", "device", "base", "macaddr"),
		deep("dot11.probedssid.client_mac"),
		deep("dot11.device/kismet.device.base.macaddr"),
		deep("DOT11_NEW_SSID_BASEDEV/kismet.device.base.macaddr"),
	}

	probedNamePaths = []strategy{
		deep("dot11.probedssid.ssid"),
		deep("dot11", "probedssid", "ssid"),
		deep("DOT11_PROBED_SSID/dot11.probedssid.ssid"),
		deep("dot11.device.last_probed_ssid_record/dot11.probedssid.ssid"),
	}

	timestampPaths = []strategy{
		deep("dot11.probedssid.last_time"),
		deep("dot11", "probedssid", "last_time"),
		deep("DOT11_PROBED_SSID/dot11.probedssid.last_time"),
		deep("kismet.device.base.last_time"),
		deep("kismet", "device", "base", "last_time"),
		deep("kismet.common.timestamp"),
	}
)

// Outcome classifies a feed frame.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeMalformed Outcome = "malformed"
	OutcomeIgnored   Outcome = "ignored"
)

// ParseEvent decodes one eventbus frame into a probe event.
// Malformed frames and frames that are not probe events are reported, never returned as errors.
func ParseEvent(data []byte, category string) (domain.ProbeEvent, Outcome) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.ProbeEvent{}, OutcomeMalformed
	}
	if _, isObject := payload.(map[string]any); !isObject {
		return domain.ProbeEvent{}, OutcomeMalformed
	}

	mac, _ := firstString(payload, identifierPaths)
	if strings.TrimSpace(mac) == "" {
		return domain.ProbeEvent{}, OutcomeIgnored
	}

	name, hasName := firstString(payload, probedNamePaths)

	// Accept payloads without a category label, but reject other categories
	// unless they still carry a probed name.
	if evt, ok := firstString(payload, eventNamePaths); ok && evt != "" {
		if !matchesCategory(evt, category) && !hasName {
			return domain.ProbeEvent{}, OutcomeIgnored
		}
	}

	var ts int64
	if raw, ok := firstOf(payload, timestampPaths); ok {
		if n, valid := epochSeconds(raw); valid {
			ts = n
		}
	}

	return domain.ProbeEvent{Identifier: mac, Name: name, Timestamp: ts}, OutcomeRecorded
}

func matchesCategory(event, category string) bool {
	upper := strings.ToUpper(event)
	if category != "" && strings.Contains(upper, strings.ToUpper(category)) {
		return true
	}
	return strings.Contains(upper, "PROBED_SSID")
}
