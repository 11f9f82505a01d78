package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/pkg/models"
)

// MailTransport delivers a fully built message.
type MailTransport interface {
	Deliver(ctx context.Context, msg *mail.Msg) error
}

// SMTPTransport delivers over SMTP with STARTTLS and PLAIN auth. A client
// is dialed per delivery, so it is safe for concurrent use.
type SMTPTransport struct {
	host string
	opts []mail.Option
}

// NewSMTPTransport validates cfg. Missing host or credentials are a
// ConfigurationError.
func NewSMTPTransport(cfg config.SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, models.NotConfigured("smtp", "smtp.host is not set")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, models.NotConfigured("smtp", "smtp.username and smtp.password are required")
	}

	policy := mail.TLSMandatory
	switch strings.ToLower(cfg.TLSPolicy) {
	case "opportunistic":
		policy = mail.TLSOpportunistic
	case "none":
		policy = mail.NoTLS
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SMTPTransport{
		host: cfg.Host,
		opts: []mail.Option{
			mail.WithPort(cfg.Port),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
			mail.WithTLSPolicy(policy),
			mail.WithTimeout(timeout),
		},
	}, nil
}

// Deliver dials, authenticates and sends msg.
func (t *SMTPTransport) Deliver(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(t.host, t.opts...)
	if err != nil {
		return models.NotConfigured("smtp", err.Error())
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return upstreamError(ctx, "smtp", err)
	}
	return nil
}

// LogTransport writes messages to the log instead of sending them. It is
// selected with smtp.mode=log for local development.
type LogTransport struct {
	logger *logging.Logger

	mu        sync.Mutex
	delivered int
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *logging.Logger) *LogTransport {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Deliver(ctx context.Context, msg *mail.Msg) error {
	rcpts, err := msg.GetRecipients()
	if err != nil {
		return models.Invalid("recipient", err.Error())
	}
	t.mu.Lock()
	t.delivered++
	t.mu.Unlock()
	t.logger.Info("mail delivery skipped (log mode)",
		"to", strings.Join(rcpts, ","),
		"subject", strings.Join(msg.GetGenHeader(mail.HeaderSubject), " "))
	return nil
}

// Delivered reports how many messages were logged.
func (t *LogTransport) Delivered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delivered
}

// NewMailTransport selects the transport for cfg.Mode.
func NewMailTransport(cfg config.SMTPConfig, logger *logging.Logger) (MailTransport, error) {
	switch cfg.Mode {
	case "log":
		return NewLogTransport(logger), nil
	case "smtp", "":
		return NewSMTPTransport(cfg)
	default:
		return nil, fmt.Errorf("unsupported smtp mode %q", cfg.Mode)
	}
}
