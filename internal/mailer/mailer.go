// internal/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

// Mailer delivers one rendered message. Implementations may fail for
// arbitrary transport or provider reasons; callers only distinguish
// success from failure. On success the provider message id is returned.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string, cfg model.SenderConfig) (string, error)
}

// ForProvider returns the Mailer matching cfg.Provider. An empty or
// unknown provider falls back to plain SMTP.
func ForProvider(provider string) Mailer {
	switch provider {
	case model.ProviderMailgun:
		return &MailgunMailer{}
	case model.ProviderSES:
		return &SESMailer{}
	default:
		return &SMTPMailer{}
	}
}

func fromHeader(cfg model.SenderConfig) string {
	if cfg.FromName == "" {
		return cfg.FromEmail
	}
	return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
}
