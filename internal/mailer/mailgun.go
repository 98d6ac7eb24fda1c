// internal/mailer/mailgun.go
package mailer

import (
	"context"
	"time"

	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

// MailgunMailer delivers through the Mailgun API. The sender config
// carries the sending domain in Host and the API key in Password.
type MailgunMailer struct{}

func (m *MailgunMailer) Send(ctx context.Context, to, subject, html string, cfg model.SenderConfig) (string, error) {
	mg := mailgun.NewMailgun(cfg.Host, cfg.Password)

	msg := mg.NewMessage(fromHeader(cfg), subject, "", to)
	msg.SetHtml(html)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, id, err := mg.Send(ctx, msg)
	if err != nil {
		return "", errors.Wrapf(err, "mailgun send to %s", to)
	}

	return id, nil
}
