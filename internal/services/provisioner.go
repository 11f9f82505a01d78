package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/pkg/models"
)

var loginNameStrip = regexp.MustCompile(`[^a-z0-9.]`)

// LoginName derives the mailbox name: lower-cased, accents folded to their
// base letter, spaces become dots and anything else outside [a-z0-9.] is
// dropped.
func LoginName(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", ".")
	if folded, _, err := transform.String(foldAccents(), n); err == nil {
		n = folded
	}
	return loginNameStrip.ReplaceAllString(n, "")
}

// foldAccents decomposes and drops combining marks, so "é" becomes "e".
// Transformers are stateful, hence one per call.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// AccountProvisioner derives credentials, creates the directory account and
// mails the credentials to the subject's personal address.
type AccountProvisioner struct {
	directory         DirectoryClient
	notifier          Notifier
	domain            string
	password          string
	jobTitle          string
	simulateOnFailure bool
	workers           int
	limiter           *rate.Limiter
	logger            *logging.Logger
	metrics           *Metrics
}

// ProvisionerOptions tunes an AccountProvisioner.
type ProvisionerOptions struct {
	SimulateOnFailure bool
	BulkWorkers       int
	BulkRatePerSecond float64
}

// NewAccountProvisioner wires the provisioner. The directory is required;
// without a notifier accounts are still created but credentials are never
// mailed.
func NewAccountProvisioner(directory DirectoryClient, notifier Notifier, cfg config.ProvisioningConfig, opts ProvisionerOptions, logger *logging.Logger, metrics *Metrics) (*AccountProvisioner, error) {
	if directory == nil {
		return nil, models.NotConfigured("provisioner", "no directory client")
	}
	domain := strings.TrimPrefix(strings.TrimSpace(cfg.Domain), "@")
	if domain == "" {
		return nil, models.NotConfigured("provisioner", "provisioning.domain is not set")
	}
	if cfg.TemporaryPassword == "" {
		return nil, models.NotConfigured("provisioner", "provisioning.temporary_password is not set")
	}
	jobTitle := cfg.JobTitle
	if jobTitle == "" {
		jobTitle = "Intern"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AccountProvisioner{
		directory:         directory,
		notifier:          notifier,
		domain:            domain,
		password:          cfg.TemporaryPassword,
		jobTitle:          jobTitle,
		simulateOnFailure: opts.SimulateOnFailure,
		workers:           opts.BulkWorkers,
		limiter:           newLimiter(opts.BulkRatePerSecond),
		logger:            logger,
		metrics:           metrics,
	}, nil
}

// Credentials derives the login identity for subject.
func (p *AccountProvisioner) Credentials(subject models.Subject) (models.Credentials, error) {
	username := LoginName(subject.Name)
	if strings.Trim(username, ".") == "" {
		return models.Credentials{}, models.Invalid("name", fmt.Sprintf("%q yields an empty login name", subject.Name))
	}
	return models.Credentials{
		LoginEmail: username + "@" + p.domain,
		Password:   p.password,
		Username:   username,
		Domain:     p.domain,
	}, nil
}

// Create provisions one account. Upstream directory failures fall back to
// a labeled simulated account when enabled; any other failure is returned.
// The credentials email is attempted whenever a personal address exists and
// its outcome never changes the provisioning outcome.
func (p *AccountProvisioner) Create(ctx context.Context, subject models.Subject) (*models.ProvisionResult, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	creds, err := p.Credentials(subject)
	if err != nil {
		return nil, err
	}

	department := subject.Department
	if department == "" {
		department = "Interns"
	}
	account, err := p.directory.CreateUser(ctx, models.DirectoryUser{
		DisplayName:       subject.Name,
		MailNickname:      creds.Username,
		UserPrincipalName: creds.LoginEmail,
		Password:          creds.Password,
		Department:        department,
		JobTitle:          p.jobTitle,
	})
	if err != nil {
		if !p.simulateOnFailure || !errors.Is(err, models.ErrUpstream) {
			p.metrics.RecordStepFailure(ctx, "provisioning", "directory")
			return nil, fmt.Errorf("create directory account for %s: %w", creds.LoginEmail, err)
		}
		p.logger.Warn("directory unavailable, using simulated account",
			"login_email", creds.LoginEmail, "error", err)
		account = simulatedAccount(models.DirectoryUser{
			DisplayName:       subject.Name,
			MailNickname:      creds.Username,
			UserPrincipalName: creds.LoginEmail,
		}, "directory call failed; account creation was simulated and no real account exists: "+err.Error())
	}

	result := &models.ProvisionResult{
		Success:    true,
		LoginEmail: creds.LoginEmail,
		Password:   creds.Password,
		Provider:   account,
		Simulated:  account.Simulated,
	}

	switch {
	case subject.PersonalEmail == "":
	case p.notifier == nil:
		result.Notification = &models.SendResult{
			Recipient: subject.PersonalEmail,
			Kind:      models.KindCredentials,
			Error:     models.NotConfigured("notifier", "smtp is not configured").Error(),
		}
		p.metrics.RecordStepFailure(ctx, "provisioning", "credentials_email")
		p.logger.Warn("credentials not mailed: no notifier", "recipient", subject.PersonalEmail)
	default:
		sent, err := p.notifier.SendCredentials(ctx, subject.PersonalEmail, creds, WelcomeParagraph(subject))
		result.Notification = sent
		result.Notified = err == nil && sent != nil && sent.Success
		if err != nil {
			p.metrics.RecordStepFailure(ctx, "provisioning", "credentials_email")
			p.logger.Warn("credentials email failed", "recipient", subject.PersonalEmail, "error", err)
		}
	}

	p.logger.Info("account provisioned",
		"login_email", creds.LoginEmail, "simulated", result.Simulated, "notified", result.Notified)
	return result, nil
}

// CreateBatch provisions subjects on a bounded, paced pool. Results keep
// input order; a failed subject does not stop the others.
func (p *AccountProvisioner) CreateBatch(ctx context.Context, subjects []models.Subject) (*models.ProvisionBatchResult, error) {
	if len(subjects) == 0 {
		return nil, models.Invalid("subjects", "at least one subject is required")
	}
	results := make([]*models.ProvisionResult, len(subjects))
	err := runBounded(ctx, len(subjects), p.workers, p.limiter, func(ctx context.Context, i int) {
		res, err := p.Create(ctx, subjects[i])
		if err != nil {
			res = &models.ProvisionResult{Error: err.Error()}
		}
		results[i] = res
	})

	out := &models.ProvisionBatchResult{Total: len(subjects), Results: results}
	for i, res := range results {
		if res == nil {
			results[i] = &models.ProvisionResult{Error: "not attempted"}
			res = results[i]
		}
		if res.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	return out, err
}

// WelcomeParagraph is the greeting placed in credential emails.
func WelcomeParagraph(subject models.Subject) string {
	department := subject.Department
	if department == "" {
		department = "General"
	}
	startDate := subject.StartDate
	if startDate == "" {
		startDate = "To be confirmed"
	}
	return fmt.Sprintf("Welcome to our team, %s! We're excited to have you join the %s department. "+
		"Your new company email account has been created and is ready to use. "+
		"Start Date: %s. Department: %s.",
		subject.Name, department, startDate, department)
}
