// internal/mailer/smtp.go
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

// SMTPMailer delivers through the SMTP server named in the sender
// config, authenticating with the from address and password.
type SMTPMailer struct{}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string, cfg model.SenderConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	auth := smtp.PlainAuth("", cfg.FromEmail, cfg.Password, cfg.Host)

	msg := buildMessage(fromHeader(cfg), to, subject, html)
	if err := smtp.SendMail(addr, auth, cfg.FromEmail, []string{to}, msg); err != nil {
		return "", errors.Wrapf(err, "smtp send to %s", to)
	}

	// Plain SMTP has no provider message id; generate one so callers
	// get a stable reference either way.
	return uuid.NewString(), nil
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
