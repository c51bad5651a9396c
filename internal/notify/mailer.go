package notify

import (
	"strings"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// DeliveryStatus classifies the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryResult reports the per-address outcome of a Send call. Failures are
// values, not errors: nothing from the transport escapes this boundary.
type DeliveryResult struct {
	Address string
	Status  DeliveryStatus
	Err     error
}

// Transport sends a rendered message to a list of addresses, best effort.
type Transport interface {
	Send(to []string, msg Message) []DeliveryResult
}

// Mailer delivers rendered messages over SMTP via gomail. It is constructed
// once with immutable configuration and injected into the pipeline.
type Mailer struct {
	cfg    config.MailerConfig
	logger *zap.Logger
	send   func(msg *gomail.Message) error
}

// NewMailer builds the SMTP transport. Security mode "tls" dials with
// implicit TLS; "starttls" upgrades after connect.
func NewMailer(cfg config.MailerConfig, logger *zap.Logger) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Security == config.MailerSecurityTLS

	return &Mailer{
		cfg:    cfg,
		logger: logger,
		send: func(msg *gomail.Message) error {
			return dialer.DialAndSend(msg)
		},
	}
}

// Send attempts delivery to each address independently and reports the
// per-address outcome. A disabled channel or an empty list after blank
// filtering is a no-op reported as skipped, not an error; transport failures
// are caught here, logged, and reported as failed.
func (m *Mailer) Send(to []string, msg Message) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(to))

	addresses := make([]string, 0, len(to))
	for _, addr := range to {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		addresses = append(addresses, strings.TrimSpace(addr))
	}

	if !m.cfg.Enabled {
		m.logger.Debug("email delivery disabled; not sending", zap.Int("recipients", len(addresses)))
		for _, addr := range addresses {
			results = append(results, DeliveryResult{Address: addr, Status: DeliverySkipped})
		}
		return results
	}

	for _, addr := range addresses {
		gm := gomail.NewMessage()
		gm.SetAddressHeader("From", m.cfg.SenderEmail, m.cfg.SenderName)
		gm.SetHeader("To", addr)
		gm.SetHeader("Subject", msg.Subject)
		gm.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			gm.AddAlternative("text/html", msg.HTMLBody)
		}

		if err := m.send(gm); err != nil {
			m.logger.Warn("email delivery failed",
				zap.String("to", addr),
				zap.String("subject", msg.Subject),
				zap.Error(err))
			results = append(results, DeliveryResult{Address: addr, Status: DeliveryFailed, Err: err})
			continue
		}
		m.logger.Info("email delivered", zap.String("to", addr), zap.String("subject", msg.Subject))
		results = append(results, DeliveryResult{Address: addr, Status: DeliverySent})
	}
	return results
}
