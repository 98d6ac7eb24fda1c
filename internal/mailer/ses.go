// internal/mailer/ses.go
package mailer

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/pkg/errors"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

const sesCharset = "UTF-8"

// SESMailer delivers through Amazon SES. AWS credentials and region are
// resolved from the environment; the sender config only contributes the
// from address and display name.
type SESMailer struct {
	client *ses.SES
}

func (m *SESMailer) Send(ctx context.Context, to, subject, html string, cfg model.SenderConfig) (string, error) {
	if m.client == nil {
		sess, err := session.NewSession()
		if err != nil {
			return "", errors.Wrap(err, "ses session")
		}
		m.client = ses.New(sess)
	}

	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String(sesCharset),
					Data:    aws.String(html),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(sesCharset),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(fromHeader(cfg)),
	}

	out, err := m.client.SendEmailWithContext(ctx, input)
	if err != nil {
		return "", errors.Wrapf(err, "ses send to %s", to)
	}

	return aws.StringValue(out.MessageId), nil
}
