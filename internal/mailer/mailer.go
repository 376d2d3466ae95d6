package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gomail "gopkg.in/gomail.v2"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// Config holds SMTP settings.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	config Config
	dialer *gomail.Dialer
}

// New creates a mailer. When config.Enabled is false every send becomes a
// logged no-op, which keeps development setups working without an SMTP
// server.
func New(config Config) *Mailer {
	m := &Mailer{config: config}
	if config.Enabled {
		m.dialer = gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	}
	return m
}

func (m *Mailer) send(to, subject, body string) error {
	if m.dialer == nil {
		log.Info().
			Str("to", to).
			Str("subject", subject).
			Msg("mail disabled, skipping send")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	return nil
}

// SendOutageNotification renders a message template for a notification and
// mails it to the customer.
func (m *Mailer) SendOutageNotification(ctx context.Context, customer *models.Customer, message *models.Message, notification *models.Notification) error {
	if customer.Email == "" {
		return fmt.Errorf("customer %s has no email address", customer.ID)
	}

	body := RenderTemplate(message.MessageText, customer, notification)

	return m.send(customer.Email, message.MessageType, body)
}

// SendPasswordReset mails a password reset link to a user.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nA password reset was requested for your account. "+
			"Follow this link to choose a new password:\n\n%s\n\n"+
			"If you did not request this, you can ignore this message.\n",
		user.DisplayName(), resetURL,
	)

	return m.send(user.Email, "Password Reset", body)
}

// SendWelcome mails a greeting to a freshly created user.
func (m *Mailer) SendWelcome(ctx context.Context, user *models.User) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nAn account was created for you on the WANWatch outage "+
			"notification server. Sign in with your email address to get started.\n",
		user.DisplayName(),
	)

	return m.send(user.Email, "Welcome to WANWatch", body)
}

// RenderTemplate substitutes the placeholders supported by message templates.
// Unknown placeholders pass through untouched so operators can spot typos in
// delivered mail.
func RenderTemplate(text string, customer *models.Customer, notification *models.Notification) string {
	endDate := ""
	if notification.EndDate != nil {
		endDate = notification.EndDate.Format(time.RFC1123)
	}

	replacer := strings.NewReplacer(
		"{{customer_name}}", customer.Name,
		"{{serial}}", notification.Serial,
		"{{mac_address}}", notification.MACAddress,
		"{{start_date}}", notification.StartDate.Format(time.RFC1123),
		"{{end_date}}", endDate,
	)

	return replacer.Replace(text)
}
