package engine

import (
	"strings"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// Classification is the engine's verdict on a raw event.
type Classification int

const (
	// ClassIrrelevant events are skipped with no side effects beyond the
	// processed flag.
	ClassIrrelevant Classification = iota
	// ClassOnset events signal the start of an outage.
	ClassOnset
	// ClassResolution events signal that connectivity came back.
	ClassResolution
)

func (c Classification) String() string {
	switch c {
	case ClassOnset:
		return "onset"
	case ClassResolution:
		return "resolution"
	default:
		return "irrelevant"
	}
}

// Event types reported by the CPE fleet. Matching is case-insensitive
// because different firmware versions disagree on casing.
var (
	onsetTypes = map[string]bool{
		"wan_lost":         true,
		"wan_disconnected": true,
	}
	resolutionTypes = map[string]bool{
		"wan_restored": true,
		"dhcp_renewed": true,
	}
)

// Classify returns the classification for an event. It is total: unknown
// types and events missing a type or serial classify as irrelevant, never as
// an error.
func Classify(event *models.Event) Classification {
	if event == nil || event.Type == "" || event.Serial == "" {
		return ClassIrrelevant
	}

	t := strings.ToLower(event.Type)
	switch {
	case onsetTypes[t]:
		return ClassOnset
	case resolutionTypes[t]:
		return ClassResolution
	default:
		return ClassIrrelevant
	}
}
