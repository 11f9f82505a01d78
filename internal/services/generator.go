package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mail-agent/backend/pkg/models"
)

// Generator backends selectable by service hint.
const (
	ServiceAnthropic = "anthropic"
	ServiceSidecar   = "sidecar"
	ServiceOffline   = "offline"
)

var knownServices = map[string]bool{
	ServiceAnthropic: true,
	ServiceSidecar:   true,
	ServiceOffline:   true,
}

const generationInstructions = `
Please provide a comprehensive, professional response that:
1. Addresses the user's request directly
2. Uses the database information if provided
3. Is clear and actionable
4. Includes relevant details and insights
`

// BuildGenerationPrompt prefixes the user request with a summary of the
// lookup (type, count and up to three sample records) when one succeeded.
func BuildGenerationPrompt(prompt string, lookup *models.LookupResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Request: %s\n\n", prompt)
	if lookup != nil && lookup.Success {
		sample := lookup.Records
		if len(sample) > 3 {
			sample = sample[:3]
		}
		if sample == nil {
			sample = []models.Record{}
		}
		data, _ := json.MarshalIndent(sample, "", "  ")
		b.WriteString("Database Information Available:\n")
		fmt.Fprintf(&b, "- Data Type: %s\n", lookup.Kind)
		fmt.Fprintf(&b, "- Count: %d records\n", lookup.Count)
		fmt.Fprintf(&b, "- Data: %s\n\n", data)
	}
	b.WriteString(generationInstructions)
	return b.String()
}

// LLMGenerator adapts a Completer into a ContentGenerator. Every call runs
// under its own deadline and failures surface as UpstreamCallError.
type LLMGenerator struct {
	name      string
	completer Completer
	timeout   time.Duration
}

// NewLLMGenerator wraps completer. A non-positive timeout means 30s.
func NewLLMGenerator(name string, completer Completer, timeout time.Duration) *LLMGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMGenerator{name: name, completer: completer, timeout: timeout}
}

// Complete sends prompt unchanged.
func (g *LLMGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return "", upstreamError(ctx, g.name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", &models.UpstreamCallError{Service: g.name, Detail: "empty completion"}
	}
	return text, nil
}

// Generate answers prompt with the lookup summary prepended.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string, lookup *models.LookupResult) (string, error) {
	return g.Complete(ctx, BuildGenerationPrompt(prompt, lookup))
}

// upstreamError normalizes err into an UpstreamCallError, flagging deadlines.
func upstreamError(ctx context.Context, service string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	var up *models.UpstreamCallError
	if errors.As(err, &up) {
		up.Timeout = up.Timeout || timeout
		return up
	}
	return &models.UpstreamCallError{Service: service, Timeout: timeout, Err: err}
}

// Generators resolves a service hint to a configured ContentGenerator.
type Generators struct {
	defaultName string
	byName      map[string]ContentGenerator
	unavailable map[string]error
}

// NewGenerators creates an empty registry; defaultName answers empty hints.
func NewGenerators(defaultName string) *Generators {
	return &Generators{
		defaultName: defaultName,
		byName:      make(map[string]ContentGenerator),
		unavailable: make(map[string]error),
	}
}

// Register makes gen available under name.
func (g *Generators) Register(name string, gen ContentGenerator) {
	g.byName[name] = gen
	delete(g.unavailable, name)
}

// MarkUnavailable records why name could not be constructed.
func (g *Generators) MarkUnavailable(name string, err error) {
	g.unavailable[name] = err
}

// Resolve returns the generator for hint and its canonical name.
func (g *Generators) Resolve(hint string) (ContentGenerator, string, error) {
	name := strings.ToLower(strings.TrimSpace(hint))
	if name == "" {
		name = g.defaultName
	}
	if !knownServices[name] {
		return nil, "", models.Invalid("service", fmt.Sprintf("unknown service %q", hint))
	}
	if gen, ok := g.byName[name]; ok {
		return gen, name, nil
	}
	if err, ok := g.unavailable[name]; ok {
		return nil, name, err
	}
	return nil, name, models.NotConfigured(name, "generator not configured")
}

// Available lists the registered generator names.
func (g *Generators) Available() []string {
	names := make([]string, 0, len(g.byName))
	for name := range g.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the name used for empty hints.
func (g *Generators) Default() string {
	return g.defaultName
}
