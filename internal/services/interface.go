package services

import (
	"context"

	"mail-agent/backend/pkg/models"
)

// Completer turns a prompt into model text. Implementations talk to one
// language-model backend and carry no prompt-building logic.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ContentGenerator produces the primary text of a request.
type ContentGenerator interface {
	Completer
	// Generate answers prompt, folding in lookup records when present.
	Generate(ctx context.Context, prompt string, lookup *models.LookupResult) (string, error)
}

// Classifier decides whether a prompt needs records and whether the
// generated content should be mailed.
type Classifier interface {
	AnalyzePrompt(ctx context.Context, prompt string) (models.PromptAnalysis, error)
	AnalyzeEmail(ctx context.Context, prompt, content string) (models.EmailDirective, error)
}

// Notifier formats and delivers mail.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string, kind models.EmailKind) (*models.SendResult, error)
	SendBatch(ctx context.Context, recipients []models.Recipient, subject, body string, kind models.EmailKind) (*models.BatchResult, error)
	SendCredentials(ctx context.Context, recipient string, creds models.Credentials, welcome string) (*models.SendResult, error)
}

// DirectoryClient creates accounts in an external directory service.
type DirectoryClient interface {
	CreateUser(ctx context.Context, user models.DirectoryUser) (*models.DirectoryAccount, error)
}

// Provisioner derives credentials for a subject and creates its account.
type Provisioner interface {
	Create(ctx context.Context, subject models.Subject) (*models.ProvisionResult, error)
	CreateBatch(ctx context.Context, subjects []models.Subject) (*models.ProvisionBatchResult, error)
}
