package engine

import (
	"testing"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  *models.Event
		expect Classification
	}{
		{"wan lost", &models.Event{Type: "wan_lost", Serial: "SN1"}, ClassOnset},
		{"wan disconnected", &models.Event{Type: "wan_disconnected", Serial: "SN1"}, ClassOnset},
		{"wan restored", &models.Event{Type: "wan_restored", Serial: "SN1"}, ClassResolution},
		{"dhcp renewed", &models.Event{Type: "dhcp_renewed", Serial: "SN1"}, ClassResolution},
		{"uppercase onset", &models.Event{Type: "WAN_LOST", Serial: "SN1"}, ClassOnset},
		{"mixed case resolution", &models.Event{Type: "Wan_Restored", Serial: "SN1"}, ClassResolution},
		{"unknown type", &models.Event{Type: "cpu_high", Serial: "SN1"}, ClassIrrelevant},
		{"missing type", &models.Event{Serial: "SN1"}, ClassIrrelevant},
		{"missing serial", &models.Event{Type: "wan_lost"}, ClassIrrelevant},
		{"nil event", nil, ClassIrrelevant},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.event); got != tt.expect {
				t.Fatalf("Classify() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestClassificationString(t *testing.T) {
	t.Parallel()

	if ClassOnset.String() != "onset" {
		t.Fatalf("unexpected onset label %q", ClassOnset.String())
	}
	if ClassResolution.String() != "resolution" {
		t.Fatalf("unexpected resolution label %q", ClassResolution.String())
	}
	if ClassIrrelevant.String() != "irrelevant" {
		t.Fatalf("unexpected irrelevant label %q", ClassIrrelevant.String())
	}
}
