package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mail-agent/backend/pkg/models"
)

var (
	lookupKeywords    = []string{"intern", "policy", "report", "data", "database", "fetch", "get", "show"}
	emailKeywords     = []string{"send", "mail", "email", "notify", "inform", "share"}
	recipientKeywords = []string{"to", "@", "manager", "intern", "hr"}

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// containsAny matches keywords as substrings of the lowercased text.
func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ExtractEmail returns the first address found in text, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ResponseSubject is the subject line of mailed responses.
func ResponseSubject(t time.Time) string {
	return "AI Generated Response - " + t.Format("2006-01-02")
}

// KeywordClassifier is the deterministic classifier. It never fails.
type KeywordClassifier struct {
	defaultRecipient string
	now              func() time.Time
}

// NewKeywordClassifier creates a KeywordClassifier that addresses mail to
// defaultRecipient when the prompt names no address.
func NewKeywordClassifier(defaultRecipient string, now func() time.Time) *KeywordClassifier {
	if now == nil {
		now = time.Now
	}
	return &KeywordClassifier{defaultRecipient: defaultRecipient, now: now}
}

// AnalyzePrompt flags a general lookup when any lookup keyword appears.
func (c *KeywordClassifier) AnalyzePrompt(ctx context.Context, prompt string) (models.PromptAnalysis, error) {
	if !containsAny(prompt, lookupKeywords) {
		return models.PromptAnalysis{}, nil
	}
	return models.PromptAnalysis{
		RequiresLookup: true,
		Kind:           models.LookupGeneral,
		Detail:         prompt,
	}, nil
}

// AnalyzeEmail requires both an intent keyword and a recipient signal.
func (c *KeywordClassifier) AnalyzeEmail(ctx context.Context, prompt, content string) (models.EmailDirective, error) {
	if !containsAny(prompt, emailKeywords) || !containsAny(prompt, recipientKeywords) {
		return models.EmailDirective{}, nil
	}
	return c.directive(ExtractEmail(prompt)), nil
}

func (c *KeywordClassifier) directive(recipient string) models.EmailDirective {
	if recipient == "" {
		recipient = c.defaultRecipient
	}
	return models.EmailDirective{
		ShouldSend: true,
		Recipient:  recipient,
		Subject:    ResponseSubject(c.now()),
		Kind:       models.KindAIResponse,
	}
}

const lookupAnalysisPrompt = `Analyze this user prompt and determine if it needs database information:

Prompt: %q

Return only JSON with:
- requires_database: true/false
- data_type: "interns", "policies", "reports", "general" or null
- query_details: specific search criteria or null

Examples:
- "Show me intern details" -> requires_database: true, data_type: "interns"
- "What's the weather?" -> requires_database: false
- "Send policy to manager" -> requires_database: true, data_type: "policies"`

const emailAnalysisPrompt = `Decide whether the user wants the response below emailed.

Prompt: %q

Return only JSON with:
- should_send_email: true/false
- recipient: the email address named in the prompt or null`

// ModelClassifier asks a language model for a small JSON verdict.
type ModelClassifier struct {
	completer Completer
	keywords  *KeywordClassifier
}

// NewModelClassifier classifies through completer; keywords supplies the
// subject line and default recipient of directives.
func NewModelClassifier(completer Completer, keywords *KeywordClassifier) *ModelClassifier {
	return &ModelClassifier{completer: completer, keywords: keywords}
}

func (c *ModelClassifier) AnalyzePrompt(ctx context.Context, prompt string) (models.PromptAnalysis, error) {
	var verdict struct {
		RequiresDatabase *bool   `json:"requires_database"`
		DataType         *string `json:"data_type"`
		QueryDetails     *string `json:"query_details"`
	}
	if err := c.ask(ctx, fmt.Sprintf(lookupAnalysisPrompt, prompt), &verdict); err != nil {
		return models.PromptAnalysis{}, err
	}
	if verdict.RequiresDatabase == nil {
		return models.PromptAnalysis{}, errors.New("classifier reply lacks requires_database")
	}
	if !*verdict.RequiresDatabase {
		return models.PromptAnalysis{}, nil
	}
	analysis := models.PromptAnalysis{RequiresLookup: true, Kind: models.LookupGeneral}
	if verdict.DataType != nil {
		switch k := models.LookupKind(strings.ToLower(*verdict.DataType)); k {
		case models.LookupInterns, models.LookupPolicies, models.LookupReports, models.LookupGeneral:
			analysis.Kind = k
		}
	}
	if verdict.QueryDetails != nil {
		analysis.Detail = *verdict.QueryDetails
	}
	return analysis, nil
}

func (c *ModelClassifier) AnalyzeEmail(ctx context.Context, prompt, content string) (models.EmailDirective, error) {
	var verdict struct {
		ShouldSend *bool   `json:"should_send_email"`
		Recipient  *string `json:"recipient"`
	}
	if err := c.ask(ctx, fmt.Sprintf(emailAnalysisPrompt, prompt), &verdict); err != nil {
		return models.EmailDirective{}, err
	}
	if verdict.ShouldSend == nil {
		return models.EmailDirective{}, errors.New("classifier reply lacks should_send_email")
	}
	if !*verdict.ShouldSend {
		return models.EmailDirective{}, nil
	}
	recipient := ""
	if verdict.Recipient != nil {
		recipient = ExtractEmail(*verdict.Recipient)
	}
	if recipient == "" {
		recipient = ExtractEmail(prompt)
	}
	return c.keywords.directive(recipient), nil
}

func (c *ModelClassifier) ask(ctx context.Context, prompt string, v any) error {
	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), v); err != nil {
		return fmt.Errorf("malformed classifier reply: %w", err)
	}
	return nil
}

// stripCodeFence removes markdown fences models like to wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// FallbackClassifier tries each classifier in order and returns the first
// answer that does not fail.
type FallbackClassifier struct {
	chain []Classifier
}

// NewFallbackClassifier composes chain; the last entry should never fail.
func NewFallbackClassifier(chain ...Classifier) *FallbackClassifier {
	return &FallbackClassifier{chain: chain}
}

func (c *FallbackClassifier) AnalyzePrompt(ctx context.Context, prompt string) (models.PromptAnalysis, error) {
	var errs []error
	for _, cl := range c.chain {
		analysis, err := cl.AnalyzePrompt(ctx, prompt)
		if err == nil {
			return analysis, nil
		}
		errs = append(errs, err)
	}
	return models.PromptAnalysis{}, errors.Join(errs...)
}

func (c *FallbackClassifier) AnalyzeEmail(ctx context.Context, prompt, content string) (models.EmailDirective, error) {
	var errs []error
	for _, cl := range c.chain {
		directive, err := cl.AnalyzeEmail(ctx, prompt, content)
		if err == nil {
			return directive, nil
		}
		errs = append(errs, err)
	}
	return models.EmailDirective{}, errors.Join(errs...)
}
