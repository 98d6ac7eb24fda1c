// internal/model/sender_config.go
package model

import "github.com/pkg/errors"

// Mail provider identifiers accepted in SenderConfig.Provider.
const (
	ProviderSMTP    = "smtp"
	ProviderMailgun = "mailgun"
	ProviderSES     = "ses"
)

// SenderConfig carries the credentials the mailer needs to deliver on
// behalf of the user. The dispatcher never interprets it beyond
// validation; it is forwarded verbatim to the mail transport.
//
// For the mailgun provider Host holds the sending domain and Password
// the API key. For ses the fields beyond FromEmail/FromName are unused
// and credentials come from the AWS environment.
type SenderConfig struct {
	Provider  string `json:"provider"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
	Password  string `json:"password"`
}

// Validate is the fail-fast gate at launch: a run is rejected before
// any recipient is processed if the config cannot possibly send.
func (c SenderConfig) Validate() error {
	if c.FromEmail == "" {
		return errors.New("sender config: from_email is required")
	}
	switch c.Provider {
	case "", ProviderSMTP:
		if c.Host == "" {
			return errors.New("sender config: smtp host is required")
		}
		if c.Port <= 0 {
			return errors.New("sender config: smtp port is required")
		}
	case ProviderMailgun:
		if c.Host == "" {
			return errors.New("sender config: mailgun domain is required")
		}
		if c.Password == "" {
			return errors.New("sender config: mailgun api key is required")
		}
	case ProviderSES:
		// credentials resolved from the AWS environment
	default:
		return errors.Errorf("sender config: unknown provider %q", c.Provider)
	}
	return nil
}
