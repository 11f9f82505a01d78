package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/pkg/models"
)

// CredentialsSubject is the subject of account credential emails.
const CredentialsSubject = "Your New Company Email Account - Welcome!"

var credentialsTemplate = template.Must(template.New("credentials").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px;">Welcome to Our Team!</h2>
    {{- if .Welcome}}
    <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;"><p>{{.Welcome}}</p></div>
    {{- end}}
    <h3 style="color: #27ae60;">Your New Email Account Details:</h3>
    <div style="background-color: #ecf0f1; padding: 20px; border-radius: 8px; margin: 20px 0;">
      <p><strong>Email Address:</strong> <code>{{.Email}}</code></p>
      <p><strong>Temporary Password:</strong> <code>{{.Password}}</code></p>
    </div>
    <div style="background-color: #fff3cd; border: 1px solid #ffeaa7; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h4 style="color: #856404; margin-top: 0;">Important Security Information:</h4>
      <ul style="color: #856404;">
        <li>Please change your password on first login</li>
        <li>Use a strong, unique password</li>
        <li>Enable two-factor authentication if available</li>
        <li>Keep your credentials secure and confidential</li>
      </ul>
    </div>
    <h3 style="color: #8e44ad;">Next Steps:</h3>
    <ol>
      <li>Login to your email account using the credentials above</li>
      <li>Change your temporary password immediately</li>
      <li>Complete your profile setup</li>
      <li>Start connecting with your team!</li>
    </ol>
    <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
    <p style="color: #7f8c8d; font-size: 12px; text-align: center;">
      This email was automatically generated by {{.Sender}}.<br>Please do not reply to this email.
    </p>
  </div>
</body>
</html>
`))

// MailNotifier formats bodies per kind and hands them to a MailTransport.
type MailNotifier struct {
	transport MailTransport
	from      string
	fromName  string
	workers   int
	logger    *logging.Logger
	metrics   *Metrics
}

// NewMailNotifier creates a notifier sending as cfg.From (or cfg.Username).
func NewMailNotifier(cfg config.SMTPConfig, transport MailTransport, logger *logging.Logger, metrics *Metrics) (*MailNotifier, error) {
	if transport == nil {
		return nil, models.NotConfigured("notifier", "no mail transport")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		if cfg.Mode != "log" {
			return nil, models.NotConfigured("notifier", "smtp.from is not set")
		}
		from = "mail-agent@localhost"
	}
	if _, err := netmail.ParseAddress(from); err != nil {
		return nil, models.NotConfigured("notifier", fmt.Sprintf("smtp.from %q is not an address", from))
	}
	if logger == nil {
		logger = logging.Discard()
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Mail Agent System"
	}
	return &MailNotifier{
		transport: transport,
		from:      from,
		fromName:  fromName,
		workers:   cfg.Workers,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// FormatBody renders content for kind. Credentials bodies are already HTML
// and pass through unchanged.
func (n *MailNotifier) FormatBody(content string, kind models.EmailKind) string {
	switch kind {
	case models.KindCredentials:
		return content
	case models.KindSummary:
		return fmt.Sprintf("Dear Recipient,\n\nPlease find the requested information below:\n\n%s\n\n"+
			"Best regards,\n%s\n\n---\nThis email was automatically generated by %s.",
			content, n.fromName, n.fromName)
	case models.KindPolicy:
		return fmt.Sprintf("COMPANY POLICY INFORMATION\n\n%s\n\n"+
			"Please review this information carefully and contact HR if you have any questions.\n\n"+
			"Best regards,\nHR Department\n\n---\nThis is an automated message from %s.",
			content, n.fromName)
	default:
		return fmt.Sprintf("%s\n\n---\nSent via %s", content, n.fromName)
	}
}

// Send delivers one message. The result is always populated; the error is
// a ValidationError for bad input or an UpstreamCallError when delivery
// fails.
func (n *MailNotifier) Send(ctx context.Context, recipient, subject, body string, kind models.EmailKind) (*models.SendResult, error) {
	if kind == "" {
		kind = models.KindGeneral
	}
	res := &models.SendResult{Recipient: recipient, Subject: subject, Kind: kind}

	if err := n.validate(recipient, subject, kind); err != nil {
		res.Error = err.Error()
		return res, err
	}

	msg, err := n.buildMessage(recipient, subject, n.FormatBody(body, kind), kind)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	if err := n.transport.Deliver(ctx, msg); err != nil {
		if !errors.Is(err, models.ErrUpstream) && !errors.Is(err, models.ErrNotConfigured) {
			err = &models.UpstreamCallError{Service: "smtp", Err: err}
		}
		res.Error = err.Error()
		n.metrics.RecordSend(ctx, string(kind), false)
		n.logger.Error("mail delivery failed", "recipient", recipient, "kind", kind, "error", err)
		return res, err
	}

	res.Success = true
	res.Message = "Email sent to " + recipient
	res.SentAt = time.Now().UTC()
	n.metrics.RecordSend(ctx, string(kind), true)
	n.logger.Info("mail sent", "recipient", recipient, "kind", kind)
	return res, nil
}

// SendBatch personalizes {name} and {email} per recipient and sends on a
// bounded pool. Per-recipient failures are reported in the result, not as
// an error. Results keep the order of recipients.
func (n *MailNotifier) SendBatch(ctx context.Context, recipients []models.Recipient, subject, body string, kind models.EmailKind) (*models.BatchResult, error) {
	if len(recipients) == 0 {
		return nil, models.Invalid("recipients", "at least one recipient is required")
	}
	if kind == "" {
		kind = models.KindGeneral
	}
	if !kind.Valid() {
		return nil, models.Invalid("email_type", fmt.Sprintf("unknown kind %q", kind))
	}

	results := make([]models.SendResult, len(recipients))
	err := runBounded(ctx, len(recipients), n.workers, nil, func(ctx context.Context, i int) {
		r := recipients[i]
		name := r.Name
		if name == "" {
			name = "Team Member"
		}
		personalized := strings.NewReplacer("{name}", name, "{email}", r.Email).Replace(body)
		subj := strings.ReplaceAll(subject, "{name}", name)
		res, _ := n.Send(ctx, r.Email, subj, personalized, kind)
		results[i] = *res
	})

	out := &models.BatchResult{Success: true, Total: len(recipients), Results: results}
	for i := range results {
		if results[i].Recipient == "" && results[i].Error == "" {
			results[i] = models.SendResult{Recipient: recipients[i].Email, Kind: kind, Error: "not attempted"}
		}
		if results[i].Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	out.Summary = fmt.Sprintf("Sent %d/%d emails successfully", out.Successful, out.Total)
	return out, err
}

// SendCredentials mails a subject's new login as an HTML message.
func (n *MailNotifier) SendCredentials(ctx context.Context, recipient string, creds models.Credentials, welcome string) (*models.SendResult, error) {
	var buf bytes.Buffer
	err := credentialsTemplate.Execute(&buf, struct {
		Email, Password, Welcome, Sender string
	}{creds.LoginEmail, creds.Password, strings.TrimSpace(welcome), n.fromName})
	if err != nil {
		return &models.SendResult{Recipient: recipient, Kind: models.KindCredentials, Error: err.Error()},
			fmt.Errorf("render credentials email: %w", err)
	}
	return n.Send(ctx, recipient, CredentialsSubject, buf.String(), models.KindCredentials)
}

func (n *MailNotifier) validate(recipient, subject string, kind models.EmailKind) error {
	if _, err := netmail.ParseAddress(recipient); err != nil {
		return models.Invalid("recipient", fmt.Sprintf("%q is not an email address", recipient))
	}
	if strings.TrimSpace(subject) == "" {
		return models.Invalid("subject", "is required")
	}
	if !kind.Valid() {
		return models.Invalid("email_type", fmt.Sprintf("unknown kind %q", kind))
	}
	return nil
}

func (n *MailNotifier) buildMessage(recipient, subject, body string, kind models.EmailKind) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.from); err != nil {
		return nil, models.NotConfigured("notifier", err.Error())
	}
	if err := msg.To(recipient); err != nil {
		return nil, models.Invalid("recipient", err.Error())
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	contentType := mail.TypeTextPlain
	if kind.HTML() {
		contentType = mail.TypeTextHTML
	}
	msg.SetBodyString(contentType, body)
	return msg, nil
}
