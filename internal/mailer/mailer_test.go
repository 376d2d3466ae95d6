package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	customer := &models.Customer{Name: "Acme Corp"}
	notification := &models.Notification{
		Serial:     "SN500",
		MACAddress: "aa:bb:cc:dd:ee:ff",
		StartDate:  start,
		EndDate:    &end,
	}

	text := "Dear {{customer_name}}, device {{serial}} ({{mac_address}}) " +
		"lost connectivity at {{start_date}} and recovered at {{end_date}}."

	got := RenderTemplate(text, customer, notification)

	for _, want := range []string{"Acme Corp", "SN500", "aa:bb:cc:dd:ee:ff"} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered template missing %q: %s", want, got)
		}
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("unreplaced placeholder in %s", got)
	}
}

func TestRenderTemplate_OpenEpisodeHasEmptyEndDate(t *testing.T) {
	t.Parallel()

	customer := &models.Customer{Name: "Acme"}
	notification := &models.Notification{Serial: "SN501", StartDate: time.Now()}

	got := RenderTemplate("ends: {{end_date}}", customer, notification)
	if got != "ends: " {
		t.Fatalf("expected empty end date, got %q", got)
	}
}

func TestRenderTemplate_UnknownPlaceholderPassesThrough(t *testing.T) {
	t.Parallel()

	got := RenderTemplate("{{no_such_field}}", &models.Customer{}, &models.Notification{})
	if got != "{{no_such_field}}" {
		t.Fatalf("unknown placeholder rewritten: %q", got)
	}
}

func TestSendOutageNotification_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	m := New(Config{Enabled: false})

	err := m.SendOutageNotification(context.Background(),
		&models.Customer{ID: uuid.New(), Email: "ops@acme.example"},
		&models.Message{MessageType: models.MessageFullOutage, MessageText: "down"},
		&models.Notification{Serial: "SN502"},
	)
	if err != nil {
		t.Fatalf("disabled mailer returned error: %v", err)
	}
}

func TestSendOutageNotification_MissingEmail(t *testing.T) {
	t.Parallel()

	m := New(Config{Enabled: false})

	err := m.SendOutageNotification(context.Background(),
		&models.Customer{ID: uuid.New()},
		&models.Message{MessageType: models.MessageFullOutage},
		&models.Notification{Serial: "SN503"},
	)
	if err == nil {
		t.Fatal("expected error for customer without email")
	}
}
