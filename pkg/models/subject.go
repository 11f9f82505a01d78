// Package models defines the domain models for the onboarding orchestration service
package models

import (
	"net/mail"
	"strings"
	"time"
)

// SubjectStatus is the onboarding state of a subject.
type SubjectStatus string

const (
	StatusPending             SubjectStatus = "pending"
	StatusProcessing          SubjectStatus = "processing"
	StatusCompleted           SubjectStatus = "completed"
	StatusEmailCreationFailed SubjectStatus = "email_creation_failed"
)

func (s SubjectStatus) rank() int {
	switch s {
	case "":
		return 0
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusEmailCreationFailed:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s SubjectStatus) Valid() bool { return s != "" && s.rank() > 0 }

// Terminal reports whether no further transition is possible.
func (s SubjectStatus) Terminal() bool { return s.rank() == 3 }

// CanAdvanceTo reports whether moving from s to next keeps the status moving
// forward along pending -> processing -> {completed | email_creation_failed}.
func (s SubjectStatus) CanAdvanceTo(next SubjectStatus) bool {
	cur, nxt := s.rank(), next.rank()
	if cur < 0 || !next.Valid() {
		return false
	}
	return nxt > cur
}

// Subject is a person being onboarded.
type Subject struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name"`
	PersonalEmail string        `json:"personal_email,omitempty"`
	Department    string        `json:"department,omitempty"`
	StartDate     string        `json:"start_date,omitempty"`
	Skills        []string      `json:"skills,omitempty"`
	Education     string        `json:"education,omitempty"`
	Status        SubjectStatus `json:"status,omitempty"`
	CompanyEmail  string        `json:"company_email,omitempty"`
	EmailSent     bool          `json:"email_sent"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks caller-supplied identity fields.
func (s *Subject) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.PersonalEmail = strings.TrimSpace(s.PersonalEmail)
	if s.Name == "" {
		return Invalid("name", "is required")
	}
	if s.PersonalEmail != "" {
		if _, err := mail.ParseAddress(s.PersonalEmail); err != nil {
			return Invalid("personal_email", err.Error())
		}
	}
	if s.Status != "" && !s.Status.Valid() {
		return Invalid("status", "unknown status "+string(s.Status))
	}
	return nil
}

// Credentials are the generated login identity for a subject. They are
// delivered once by email and never persisted.
type Credentials struct {
	LoginEmail string `json:"email"`
	Password   string `json:"password"`
	Username   string `json:"username,omitempty"`
	Domain     string `json:"domain,omitempty"`
}
