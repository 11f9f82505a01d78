package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

type harness struct {
	store     *repository.MemoryStore
	transport *captureTransport
	directory *stubDirectory
	coord     *Coordinator
}

func newHarness(t *testing.T, opts CoordinatorOptions) *harness {
	t.Helper()
	h := &harness{
		store:     repository.NewMemoryStore(),
		transport: &captureTransport{},
		directory: &stubDirectory{},
	}
	notifier := newTestNotifier(t, h.transport)
	prov := newTestProvisioner(t, h.directory, notifier, true)

	gens := NewGenerators(ServiceOffline)
	gens.Register(ServiceOffline, NewOfflineGenerator())

	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	coord, err := NewCoordinator(h.store, gens, notifier, prov, logging.Discard(), NewMetrics(nil), opts)
	require.NoError(t, err)
	h.coord = coord
	return h
}

func (h *harness) emailLogs(t *testing.T) []models.Record {
	t.Helper()
	logs, err := h.store.Query(context.Background(), models.CollectionEmailLogs, nil, 0)
	require.NoError(t, err)
	return logs
}

func TestHandle_LookupWithoutEmail(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})

	res, err := h.coord.Handle(context.Background(), "Show me intern details", "")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, ServiceOffline, res.Service)
	assert.True(t, res.Analysis.RequiresLookup)
	assert.Equal(t, models.LookupGeneral, res.Analysis.Kind)
	require.NotNil(t, res.Lookup)
	assert.True(t, res.Lookup.Success)
	assert.Empty(t, res.Lookup.Records)
	assert.Contains(t, res.Response, "Found 0 records")
	assert.False(t, res.EmailAttempted)
	assert.False(t, res.EmailSent)
	assert.Zero(t, h.transport.count())
}

func TestHandle_LookupAndEmail(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	ctx := context.Background()
	_, err := h.store.Create(ctx, models.CollectionGeneral, models.Record{"name": "handbook", "text": "be kind"})
	require.NoError(t, err)

	res, err := h.coord.Handle(ctx, "Send the intern policy to hr@example.com", "offline")
	require.NoError(t, err)

	assert.True(t, res.LookupUsed)
	assert.Equal(t, 1, res.Lookup.Count)
	assert.True(t, res.EmailAttempted)
	assert.True(t, res.EmailSent)
	require.NotNil(t, res.Email)
	assert.Equal(t, "hr@example.com", res.Email.Recipient)
	assert.Equal(t, "AI Generated Response - 2025-03-14", res.Email.Subject)
	assert.Equal(t, []string{"hr@example.com"}, h.transport.recipients())

	logs := h.emailLogs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "hr@example.com", logs[0]["recipient"])
	assert.Equal(t, true, logs[0]["success"])
}

func TestHandle_EmailFailureIsDegraded(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	h.transport.err = errors.New("relay denied")

	res, err := h.coord.Handle(context.Background(), "email the summary to boss@corp.test", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.EmailAttempted)
	assert.False(t, res.EmailSent)
	assert.Contains(t, res.Email.Error, "relay denied")
}

func TestHandle_NoRecipientIsDegraded(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})

	res, err := h.coord.Handle(context.Background(), "email this to my manager", "")
	require.NoError(t, err)
	assert.True(t, res.EmailAttempted)
	assert.False(t, res.EmailSent)
	assert.Zero(t, h.transport.count())
}

func TestHandle_ModelClassifierFallsBackToKeywords(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{UseModelClassifier: true})

	res, err := h.coord.Handle(context.Background(), "Show me intern details", "")
	require.NoError(t, err)
	assert.True(t, res.Analysis.RequiresLookup)
	assert.False(t, res.EmailAttempted)
}

type failingQueryStore struct {
	*repository.MemoryStore
}

func (failingQueryStore) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([]models.Record, error) {
	return nil, errors.New("connection lost")
}

func TestHandle_LookupFailureIsDegraded(t *testing.T) {
	gens := NewGenerators(ServiceOffline)
	gens.Register(ServiceOffline, NewOfflineGenerator())
	coord, err := NewCoordinator(failingQueryStore{repository.NewMemoryStore()}, gens, nil, nil, nil, nil, CoordinatorOptions{Clock: fixedClock})
	require.NoError(t, err)

	res, err := coord.Handle(context.Background(), "show reports", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Lookup.Success)
	assert.Equal(t, "connection lost", res.Lookup.Error)
}

func TestHandle_Errors(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	ctx := context.Background()

	_, err := h.coord.Handle(ctx, "   ", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.coord.Handle(ctx, "hello", "gpt-9")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.coord.Handle(ctx, "hello", ServiceAnthropic)
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestHandle_GenerationFailure(t *testing.T) {
	gens := NewGenerators(ServiceSidecar)
	gens.Register(ServiceSidecar, NewLLMGenerator(ServiceSidecar, &stubCompleter{err: errors.New("503")}, 0))
	coord, err := NewCoordinator(repository.NewMemoryStore(), gens, nil, nil, nil, nil, CoordinatorOptions{})
	require.NoError(t, err)

	res, err := coord.Handle(context.Background(), "hello", "")
	assert.ErrorIs(t, err, models.ErrUpstream)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestGenerateSummary(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})

	res, err := h.coord.GenerateSummary(context.Background(), map[string]any{"interns": 3}, "")
	require.NoError(t, err)
	assert.Contains(t, res.Prompt, "Please create a professional summary of this data:")
	assert.Contains(t, res.Prompt, `"interns": 3`)

	_, err = h.coord.GenerateSummary(context.Background(), nil, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "p", ComposePrompt("p", nil))
	assert.Equal(t, "p\n\nContext: {\n  \"team\": \"ops\"\n}", ComposePrompt("p", map[string]any{"team": "ops"}))
}

func TestOnboard_Completes(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	ctx := context.Background()

	res, err := h.coord.Onboard(ctx, models.Subject{
		Name: "Jane Doe", PersonalEmail: "jane@home.com", Department: "Engineering",
	}, "")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "jane.doe@corp.test", res.CompanyEmail)
	assert.False(t, res.Simulated)
	for _, step := range models.OnboardingSteps {
		assert.True(t, res.Steps[step], step)
	}
	assert.Contains(t, res.WelcomeText, "Generate a personalized welcome message for Jane Doe joining Engineering department")

	rec, err := h.store.Read(ctx, models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, "jane.doe@corp.test", rec["company_email"])
	assert.Equal(t, true, rec["email_sent"])
	assert.NotContains(t, rec, "password")

	run, err := h.store.Read(ctx, models.CollectionWorkflowRuns, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "completed", run["status"])
	assert.EqualValues(t, models.CursorCompleted, run["cursor"])

	assert.Equal(t, []string{"jane@home.com"}, h.transport.recipients())
	assert.Len(t, h.emailLogs(t), 1)
}

func TestOnboard_CredentialsFailureStillCompletes(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	h.transport.err = errors.New("smtp down")

	res, err := h.coord.Onboard(context.Background(), models.Subject{Name: "Jane Doe", PersonalEmail: "jane@home.com"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Steps[models.StepEmailCreated])
	assert.False(t, res.Steps[models.StepCredentialsSent])
	assert.True(t, res.Steps[models.StepRecordUpdated])

	rec, err := h.store.Read(context.Background(), models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, false, rec["email_sent"])
}

func TestOnboard_WithoutPersonalEmail(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})

	res, err := h.coord.Onboard(context.Background(), models.Subject{Name: "Jane Doe", Department: "Engineering"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Steps[models.StepEmailCreated])
	assert.False(t, res.Steps[models.StepCredentialsSent])
	assert.True(t, res.Steps[models.StepRecordUpdated])
	assert.Zero(t, h.transport.count())
}

func TestOnboard_WithoutNotifier(t *testing.T) {
	store := repository.NewMemoryStore()
	prov := newTestProvisioner(t, &stubDirectory{}, nil, true)
	gens := NewGenerators(ServiceOffline)
	gens.Register(ServiceOffline, NewOfflineGenerator())
	coord, err := NewCoordinator(store, gens, nil, prov, logging.Discard(), nil, CoordinatorOptions{Clock: fixedClock})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := coord.Onboard(ctx, models.Subject{Name: "Jane Doe", Department: "Engineering"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	for _, step := range []string{models.StepDatabaseAdded, models.StepEmailCreated, models.StepAIWelcome, models.StepRecordUpdated} {
		assert.True(t, res.Steps[step], step)
	}
	assert.False(t, res.Steps[models.StepCredentialsSent])

	rec, err := store.Read(ctx, models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, false, rec["email_sent"])

	res, err = coord.Onboard(ctx, models.Subject{Name: "John Roe", PersonalEmail: "john@home.com"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Steps[models.StepCredentialsSent])
}

func TestOnboard_UnreachableDirectoryIsSimulated(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	h.directory.err = &models.UpstreamCallError{Service: "graph", Err: errors.New("dial tcp: connection refused")}
	ctx := context.Background()

	res, err := h.coord.Onboard(ctx, models.Subject{Name: "Jane Doe", PersonalEmail: "jane@home.com"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.Equal(t, "jane.doe@corp.test", res.CompanyEmail)

	rec, err := h.store.Read(ctx, models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec["status"])
}

func TestOnboard_ProvisioningFailure(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	h.directory.err = models.NotConfigured("directory", "no secret")
	ctx := context.Background()

	res, err := h.coord.Onboard(ctx, models.Subject{Name: "Jane Doe"}, "")
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.True(t, res.Steps[models.StepDatabaseAdded])
	assert.False(t, res.Steps[models.StepEmailCreated])

	rec, err := h.store.Read(ctx, models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "email_creation_failed", rec["status"])

	_, err = h.coord.ResumeOnboarding(ctx, res.RunID, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOnboard_Validation(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	ctx := context.Background()

	_, err := h.coord.Onboard(ctx, models.Subject{Name: " "}, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.coord.Onboard(ctx, models.Subject{Name: "Jane", PersonalEmail: "nope"}, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.coord.Onboard(ctx, models.Subject{Name: "Jane"}, "gpt-9")
	assert.ErrorIs(t, err, models.ErrValidation)

	interns, err := h.store.Query(ctx, models.CollectionInterns, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, interns)
}

func TestOnboard_WelcomeUnavailableIsDegraded(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})

	res, err := h.coord.Onboard(context.Background(), models.Subject{Name: "Jane Doe"}, ServiceAnthropic)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Steps[models.StepAIWelcome])
	assert.Contains(t, res.Details, "ai_welcome_error")
}

type countingProvisioner struct {
	Provisioner
	calls atomic.Int32
}

func (p *countingProvisioner) Create(ctx context.Context, s models.Subject) (*models.ProvisionResult, error) {
	p.calls.Add(1)
	return p.Provisioner.Create(ctx, s)
}

func seedRun(t *testing.T, store repository.RecordStore, cursor int, companyEmail string) string {
	t.Helper()
	ctx := context.Background()
	subjectID, err := store.Create(ctx, models.CollectionInterns, models.Record{
		"name": "Jane Doe", "personal_email": "jane@home.com", "department": "Engineering",
		"status": "processing", "email_sent": false, "created_at": fixedNow.Format("2006-01-02T15:04:05Z07:00"),
	})
	require.NoError(t, err)
	runID, err := store.Create(ctx, models.CollectionWorkflowRuns, models.Record{
		"subject_id": subjectID, "name": "Jane Doe", "cursor": cursor, "status": "running",
		"company_email": companyEmail, "notified": companyEmail != "",
		"steps": map[string]any{"database_added": true, "email_created": companyEmail != ""},
	})
	require.NoError(t, err)
	return runID
}

func TestResumeOnboarding_FromRecordCreated(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	cp := &countingProvisioner{Provisioner: h.coord.provisioner}
	h.coord.provisioner = cp
	runID := seedRun(t, h.store, models.CursorRecordCreated, "")

	res, err := h.coord.ResumeOnboarding(context.Background(), runID, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 1, cp.calls.Load())
	assert.Equal(t, "jane.doe@corp.test", res.CompanyEmail)
}

func TestResumeOnboarding_SkipsFinishedSteps(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	cp := &countingProvisioner{Provisioner: h.coord.provisioner}
	h.coord.provisioner = cp
	runID := seedRun(t, h.store, models.CursorProvisioned, "jane.doe@corp.test")
	ctx := context.Background()

	res, err := h.coord.ResumeOnboarding(ctx, runID, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, cp.calls.Load())
	assert.Zero(t, h.transport.count())
	assert.True(t, res.Steps[models.StepAIWelcome])

	rec, err := h.store.Read(ctx, models.CollectionInterns, res.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, "jane.doe@corp.test", rec["company_email"])

	again, err := h.coord.ResumeOnboarding(ctx, runID, "")
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Zero(t, cp.calls.Load())
}

func TestResumeOnboarding_Unknown(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	_, err := h.coord.ResumeOnboarding(context.Background(), "missing", "")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.coord.ResumeOnboarding(context.Background(), "", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOnboardBatch(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{BulkWorkers: 3})
	var subjects []models.Subject
	for i := 0; i < 6; i++ {
		subjects = append(subjects, models.Subject{Name: fmt.Sprintf("Person %d", i)})
	}
	subjects[3].Name = ""

	res, err := h.coord.OnboardBatch(context.Background(), subjects, "")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 5, res.Successful)
	assert.Equal(t, 1, res.Failed)
	for i, r := range res.Results {
		if i == 3 {
			assert.False(t, r.Success)
			assert.NotEmpty(t, r.Error)
			continue
		}
		assert.Equal(t, fmt.Sprintf("person.%d@corp.test", i), r.CompanyEmail)
	}

	_, err = h.coord.OnboardBatch(context.Background(), nil, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestTransition_RejectsRegression(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	ctx := context.Background()
	id, err := h.store.Create(ctx, models.CollectionInterns, models.Record{"name": "Jane", "status": "completed"})
	require.NoError(t, err)

	err = h.coord.transition(ctx, id, models.StatusProcessing, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
	err = h.coord.transition(ctx, id, models.StatusEmailCreationFailed, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}
