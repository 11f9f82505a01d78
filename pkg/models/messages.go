package models

import "time"

// EmailKind selects how a message body is formatted.
type EmailKind string

const (
	KindGeneral     EmailKind = "general"
	KindSummary     EmailKind = "summary"
	KindPolicy      EmailKind = "policy"
	KindCredentials EmailKind = "credentials"
	KindAIResponse  EmailKind = "ai_response"
)

// Valid reports whether k is a supported kind.
func (k EmailKind) Valid() bool {
	switch k {
	case KindGeneral, KindSummary, KindPolicy, KindCredentials, KindAIResponse:
		return true
	}
	return false
}

// HTML reports whether bodies of this kind are sent as text/html.
func (k EmailKind) HTML() bool { return k == KindCredentials }

// Recipient is one addressee of a batch send.
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// SendResult is the outcome of a single message delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject,omitempty"`
	Kind      EmailKind `json:"email_type,omitempty"`
	Message   string    `json:"message,omitempty"`
	SentAt    time.Time `json:"sent_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// BatchResult aggregates a templated batch send.
type BatchResult struct {
	Success    bool         `json:"success"`
	Total      int          `json:"total_recipients"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []SendResult `json:"results"`
	Summary    string       `json:"summary"`
}

// EmailDirective describes whether and where generated content is mailed.
type EmailDirective struct {
	ShouldSend bool      `json:"should_send_email"`
	Recipient  string    `json:"recipient,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Kind       EmailKind `json:"email_type,omitempty"`
}
