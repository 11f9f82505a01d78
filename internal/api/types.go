package api

import (
	"mail-agent/backend/pkg/models"
)

// AIPromptRequest is the body of POST /ai/process.
type AIPromptRequest struct {
	Prompt  string         `json:"prompt"`
	Service string         `json:"service,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// GenerateSummaryParams are the query parameters of POST /ai/generate-summary.
type GenerateSummaryParams struct {
	Service *string `form:"service,omitempty" json:"service,omitempty"`
}

// InternData is a subject as submitted by clients.
type InternData struct {
	Name          string   `json:"name"`
	PersonalEmail string   `json:"personal_email,omitempty"`
	Department    string   `json:"department,omitempty"`
	StartDate     string   `json:"start_date,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Education     string   `json:"education,omitempty"`
}

// Subject converts the request into the domain model.
func (d InternData) Subject() models.Subject {
	return models.Subject{
		Name:          d.Name,
		PersonalEmail: d.PersonalEmail,
		Department:    d.Department,
		StartDate:     d.StartDate,
		Skills:        d.Skills,
		Education:     d.Education,
	}
}

func subjects(in []InternData) []models.Subject {
	out := make([]models.Subject, len(in))
	for i, d := range in {
		out[i] = d.Subject()
	}
	return out
}

// WorkflowParams are the query parameters shared by the onboarding routes.
type WorkflowParams struct {
	Service *string `form:"service,omitempty" json:"service,omitempty"`
}

// ListInternsParams are the query parameters of GET /database/interns.
type ListInternsParams struct {
	Status     *string `form:"status,omitempty" json:"status,omitempty"`
	Department *string `form:"department,omitempty" json:"department,omitempty"`
}

// ListDocumentsParams are the query parameters of GET /database/documents/{collection}.
type ListDocumentsParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// EmailRequest is the body of POST /mail/send.
type EmailRequest struct {
	RecipientEmail string           `json:"recipient_email"`
	Subject        string           `json:"subject"`
	Content        string           `json:"content"`
	EmailType      models.EmailKind `json:"email_type,omitempty"`
}

// BulkEmailRequest is the body of POST /mail/send-bulk.
type BulkEmailRequest struct {
	Recipients      []models.Recipient `json:"recipients"`
	Subject         string             `json:"subject"`
	ContentTemplate string             `json:"content_template"`
	EmailType       models.EmailKind   `json:"email_type,omitempty"`
}

// CredentialEmailRequest is the body of POST /mail/send-credentials.
type CredentialEmailRequest struct {
	RecipientEmail string             `json:"recipient_email"`
	Credentials    models.Credentials `json:"credentials"`
	WelcomeMessage string             `json:"welcome_message,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
