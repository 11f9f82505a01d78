package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/wneessen/go-mail"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/pkg/models"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// captureTransport records delivered messages and optionally fails.
type captureTransport struct {
	mu   sync.Mutex
	msgs []*mail.Msg
	err  error
}

func (t *captureTransport) Deliver(ctx context.Context, msg *mail.Msg) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	return nil
}

func (t *captureTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

func (t *captureTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.msgs {
		rcpts, _ := m.GetRecipients()
		out = append(out, rcpts...)
	}
	return out
}

// MockNotifier satisfies Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, recipient, subject, body string, kind models.EmailKind) (*models.SendResult, error) {
	args := m.Called(ctx, recipient, subject, body, kind)
	res, _ := args.Get(0).(*models.SendResult)
	return res, args.Error(1)
}

func (m *MockNotifier) SendBatch(ctx context.Context, recipients []models.Recipient, subject, body string, kind models.EmailKind) (*models.BatchResult, error) {
	args := m.Called(ctx, recipients, subject, body, kind)
	res, _ := args.Get(0).(*models.BatchResult)
	return res, args.Error(1)
}

func (m *MockNotifier) SendCredentials(ctx context.Context, recipient string, creds models.Credentials, welcome string) (*models.SendResult, error) {
	args := m.Called(ctx, recipient, creds, welcome)
	res, _ := args.Get(0).(*models.SendResult)
	return res, args.Error(1)
}

// stubDirectory answers CreateUser with a fixed error or a real-looking account.
type stubDirectory struct {
	mu    sync.Mutex
	err   error
	users []models.DirectoryUser
}

func (d *stubDirectory) CreateUser(ctx context.Context, user models.DirectoryUser) (*models.DirectoryAccount, error) {
	d.mu.Lock()
	d.users = append(d.users, user)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return &models.DirectoryAccount{ID: "user-" + user.MailNickname, UserPrincipalName: user.UserPrincipalName, DisplayName: user.DisplayName}, nil
}

// stubCompleter returns canned replies in order, then repeats the last one.
type stubCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{Mode: "log", From: "agent@corp.test", FromName: "Mail Agent System", Workers: 4}
}

func testProvisioningConfig() config.ProvisioningConfig {
	return config.ProvisioningConfig{Domain: "corp.test", TemporaryPassword: "changeit@123", JobTitle: "Intern"}
}

func anthropicTestConfig(key string) config.AnthropicConfig {
	return config.AnthropicConfig{APIKey: key, Model: "claude-sonnet-4-5"}
}
