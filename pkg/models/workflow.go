package models

import (
	"time"
)

// LookupKind names the collection consulted for a prompt.
type LookupKind string

const (
	LookupGeneral  LookupKind = "general"
	LookupInterns  LookupKind = "interns"
	LookupPolicies LookupKind = "policies"
	LookupReports  LookupKind = "reports"
)

// PromptAnalysis is the per-request decision on whether records are needed.
type PromptAnalysis struct {
	RequiresLookup bool       `json:"requires_database"`
	Kind           LookupKind `json:"data_type,omitempty"`
	Detail         string     `json:"query_details,omitempty"`
}

// LookupResult carries the records fetched for a prompt or the query failure.
type LookupResult struct {
	Success bool       `json:"success"`
	Kind    LookupKind `json:"data_type"`
	Records []Record   `json:"data"`
	Count   int        `json:"count"`
	Error   string     `json:"error,omitempty"`
}

// WorkflowResult is the outcome of a free-text request.
type WorkflowResult struct {
	Success        bool           `json:"success"`
	Prompt         string         `json:"prompt"`
	Service        string         `json:"service"`
	Response       string         `json:"response,omitempty"`
	Analysis       PromptAnalysis `json:"analysis"`
	LookupUsed     bool           `json:"database_used"`
	Lookup         *LookupResult  `json:"database_data,omitempty"`
	EmailAttempted bool           `json:"email_attempted"`
	EmailSent      bool           `json:"email_sent"`
	Email          *SendResult    `json:"email_result,omitempty"`
	Error          string         `json:"error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Onboarding step names, in execution order.
const (
	StepDatabaseAdded   = "database_added"
	StepEmailCreated    = "email_created"
	StepCredentialsSent = "credentials_sent"
	StepAIWelcome       = "ai_welcome"
	StepRecordUpdated   = "record_updated"
)

// OnboardingSteps lists the step names reported by every onboarding result.
var OnboardingSteps = []string{
	StepDatabaseAdded,
	StepEmailCreated,
	StepCredentialsSent,
	StepAIWelcome,
	StepRecordUpdated,
}

// OnboardingResult is the outcome of onboarding one subject.
type OnboardingResult struct {
	Success       bool            `json:"success"`
	RunID         string          `json:"run_id,omitempty"`
	SubjectID     string          `json:"intern_id,omitempty"`
	Name          string          `json:"name"`
	CompanyEmail  string          `json:"company_email,omitempty"`
	PersonalEmail string          `json:"personal_email,omitempty"`
	WelcomeText   string          `json:"ai_welcome_message,omitempty"`
	Simulated     bool            `json:"simulated"`
	Steps         map[string]bool `json:"steps"`
	Details       map[string]any  `json:"details,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// NewOnboardingResult returns a result with every step marked false.
func NewOnboardingResult(name string) *OnboardingResult {
	steps := make(map[string]bool, len(OnboardingSteps))
	for _, s := range OnboardingSteps {
		steps[s] = false
	}
	return &OnboardingResult{Name: name, Steps: steps, Details: map[string]any{}}
}

// RunStatus is the lifecycle state of a persisted onboarding run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run cursor positions: the last step that completed.
const (
	CursorRecordCreated = 1
	CursorProvisioned   = 2
	CursorWelcome       = 3
	CursorCompleted     = 4
)

// WorkflowRun is the persisted step cursor of one onboarding.
type WorkflowRun struct {
	ID           string          `json:"id,omitempty"`
	SubjectID    string          `json:"subject_id"`
	SubjectName  string          `json:"name"`
	Cursor       int             `json:"cursor"`
	Status       RunStatus       `json:"status"`
	CompanyEmail string          `json:"company_email,omitempty"`
	Simulated    bool            `json:"simulated"`
	Notified     bool            `json:"notified"`
	WelcomeText  string          `json:"welcome_text,omitempty"`
	Steps        map[string]bool `json:"steps,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BatchOnboardingResult aggregates a bulk onboarding.
type BatchOnboardingResult struct {
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []*OnboardingResult `json:"results"`
}
