package provider

import (
	"context"
	"fmt"

	"github.com/bidconnect/notification-service/internal/config"
)

// Message is one rendered email ready for transmission.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string // optional plain-text alternative
}

// Mailer abstracts delivery to an external mail transport.
// A nil error means the transport accepted the message; any error is a
// failed transmission.
type Mailer interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// New builds the Mailer selected by cfg.MailProvider.
func New(ctx context.Context, cfg *config.Config) (Mailer, error) {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		return NewSMTPMailer(SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			Encryption: cfg.SMTPEncryption,
			From:       cfg.MailFrom,
			Timeout:    cfg.TransmitTimeout,
		}), nil
	case config.MailProviderSES:
		m, err := NewSESMailer(ctx, cfg.SESRegion, cfg.MailFrom)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.MailProviderWebhook:
		return NewWebhookMailer(cfg.WebhookURL, cfg.MailFrom, cfg.TransmitTimeout), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
}
