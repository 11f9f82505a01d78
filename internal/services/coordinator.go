package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

// CoordinatorOptions tunes a Coordinator. Zero values pick defaults.
type CoordinatorOptions struct {
	DefaultRecipient   string
	LookupLimit        int
	BulkWorkers        int
	BulkRatePerSecond  float64
	UseModelClassifier bool
	// Classifier overrides the per-request model/keyword chain.
	Classifier Classifier
	Clock      func() time.Time
}

// Coordinator sequences the generator, record store, notifier and
// provisioner into the free-text and onboarding workflows. The notifier
// and provisioner may be nil when not configured; the workflows that need
// them degrade or refuse accordingly.
type Coordinator struct {
	store       repository.RecordStore
	generators  *Generators
	notifier    Notifier
	provisioner Provisioner

	classifier         Classifier
	useModelClassifier bool
	defaultRecipient   string
	lookupLimit        int
	bulkWorkers        int
	limiter            *rate.Limiter
	now                func() time.Time

	logger  *logging.Logger
	metrics *Metrics
}

// NewCoordinator wires a Coordinator. store and generators are required.
func NewCoordinator(store repository.RecordStore, generators *Generators, notifier Notifier, provisioner Provisioner, logger *logging.Logger, metrics *Metrics, opts CoordinatorOptions) (*Coordinator, error) {
	if store == nil {
		return nil, models.NotConfigured("coordinator", "no record store")
	}
	if generators == nil {
		return nil, models.NotConfigured("coordinator", "no content generators")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.LookupLimit <= 0 {
		opts.LookupLimit = 10
	}
	if opts.BulkWorkers <= 0 {
		opts.BulkWorkers = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Coordinator{
		store:              store,
		generators:         generators,
		notifier:           notifier,
		provisioner:        provisioner,
		classifier:         opts.Classifier,
		useModelClassifier: opts.UseModelClassifier,
		defaultRecipient:   opts.DefaultRecipient,
		lookupLimit:        opts.LookupLimit,
		bulkWorkers:        clampWorkers(opts.BulkWorkers),
		limiter:            newLimiter(opts.BulkRatePerSecond),
		now:                opts.Clock,
		logger:             logger,
		metrics:            metrics,
	}, nil
}

func (c *Coordinator) classifierFor(gen ContentGenerator) Classifier {
	if c.classifier != nil {
		return c.classifier
	}
	keywords := NewKeywordClassifier(c.defaultRecipient, c.now)
	if !c.useModelClassifier {
		return keywords
	}
	return NewFallbackClassifier(NewModelClassifier(gen, keywords), keywords)
}

// Handle runs the free-text workflow: classify, optionally look up records,
// generate, then optionally mail the result. Only a generation failure is
// returned as an error; lookup and mail failures are reported in the result.
func (c *Coordinator) Handle(ctx context.Context, prompt, service string) (*models.WorkflowResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, models.Invalid("prompt", "is required")
	}
	gen, name, err := c.generators.Resolve(service)
	if err != nil {
		return nil, err
	}
	log := c.logger.With("workflow", "ai_process", "service", name)
	result := &models.WorkflowResult{Prompt: prompt, Service: name, Timestamp: c.now().UTC()}
	classifier := c.classifierFor(gen)

	analysis, err := classifier.AnalyzePrompt(ctx, prompt)
	if err != nil {
		log.Warn("prompt classification failed, using keyword rules", "error", err)
		analysis, _ = NewKeywordClassifier(c.defaultRecipient, c.now).AnalyzePrompt(ctx, prompt)
	}
	result.Analysis = analysis

	if analysis.RequiresLookup {
		result.LookupUsed = true
		result.Lookup = c.lookup(ctx, analysis.Kind)
		if !result.Lookup.Success {
			c.metrics.RecordStepFailure(ctx, "ai_process", "lookup")
			log.Warn("record lookup failed", "kind", analysis.Kind, "error", result.Lookup.Error)
		}
	}

	text, err := gen.Generate(ctx, prompt, result.Lookup)
	if err != nil {
		result.Error = err.Error()
		c.metrics.RecordStepFailure(ctx, "ai_process", "generate")
		c.metrics.RecordRun(ctx, "ai_process", false)
		log.Error("content generation failed", "error", err)
		return result, err
	}
	result.Response = text

	directive, err := classifier.AnalyzeEmail(ctx, prompt, text)
	if err != nil {
		log.Warn("email classification failed, using keyword rules", "error", err)
		directive, _ = NewKeywordClassifier(c.defaultRecipient, c.now).AnalyzeEmail(ctx, prompt, text)
	}
	if directive.ShouldSend {
		result.EmailAttempted = true
		result.Email = c.send(ctx, "ai_process", directive, text)
		result.EmailSent = result.Email.Success
		if !result.EmailSent {
			c.metrics.RecordStepFailure(ctx, "ai_process", "email")
		}
	}

	result.Success = true
	c.metrics.RecordRun(ctx, "ai_process", true)
	log.Info("prompt processed",
		"lookup", result.LookupUsed, "email_attempted", result.EmailAttempted, "email_sent", result.EmailSent)
	return result, nil
}

// GenerateSummary runs Handle on a request to summarize data.
func (c *Coordinator) GenerateSummary(ctx context.Context, data map[string]any, service string) (*models.WorkflowResult, error) {
	if len(data) == 0 {
		return nil, models.Invalid("data", "is required")
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, models.Invalid("data", err.Error())
	}
	return c.Handle(ctx, "Please create a professional summary of this data: "+string(encoded), service)
}

// ComposePrompt appends caller-supplied context to a prompt.
func ComposePrompt(prompt string, extra map[string]any) string {
	if len(extra) == 0 {
		return prompt
	}
	encoded, err := json.MarshalIndent(extra, "", "  ")
	if err != nil {
		return prompt
	}
	return prompt + "\n\nContext: " + string(encoded)
}

func (c *Coordinator) lookup(ctx context.Context, kind models.LookupKind) *models.LookupResult {
	if kind == "" {
		kind = models.LookupGeneral
	}
	res := &models.LookupResult{Kind: kind, Records: []models.Record{}}
	recs, err := c.store.Query(ctx, string(kind), nil, c.lookupLimit)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Records = recs
	res.Count = len(recs)
	return res
}

// send delivers a directive and records the attempt in email_logs.
func (c *Coordinator) send(ctx context.Context, source string, d models.EmailDirective, body string) *models.SendResult {
	kind := d.Kind
	if kind == "" {
		kind = models.KindAIResponse
	}
	var res *models.SendResult
	if c.notifier == nil {
		res = &models.SendResult{
			Recipient: d.Recipient,
			Subject:   d.Subject,
			Kind:      kind,
			Error:     models.NotConfigured("notifier", "smtp is not configured").Error(),
		}
	} else {
		var err error
		res, err = c.notifier.Send(ctx, d.Recipient, d.Subject, body, kind)
		if err != nil && res == nil {
			res = &models.SendResult{Recipient: d.Recipient, Subject: d.Subject, Kind: kind, Error: err.Error()}
		}
	}
	c.logEmail(ctx, source, res)
	return res
}

// logEmail writes a delivery attempt to email_logs. Failures are logged only.
func (c *Coordinator) logEmail(ctx context.Context, source string, res *models.SendResult) {
	if res == nil {
		return
	}
	entry := models.Record{
		"source":     source,
		"recipient":  res.Recipient,
		"subject":    res.Subject,
		"email_type": string(res.Kind),
		"success":    res.Success,
		"created_at": c.now().UTC().Format(time.RFC3339),
	}
	if res.Error != "" {
		entry["error"] = res.Error
	}
	if _, err := c.store.Create(ctx, models.CollectionEmailLogs, entry); err != nil {
		c.logger.Warn("email log write failed", "recipient", res.Recipient, "error", err)
	}
}

// Capabilities reports which collaborators are wired, for /status.
func (c *Coordinator) Capabilities() map[string]any {
	return map[string]any{
		"generators":      c.generators.Available(),
		"default_service": c.generators.Default(),
		"notifier":        c.notifier != nil,
		"provisioner":     c.provisioner != nil,
	}
}

// Ping checks the record store.
func (c *Coordinator) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func isValidation(err error) bool {
	return errors.Is(err, models.ErrValidation)
}
