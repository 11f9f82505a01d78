package services

import (
	"context"
	"fmt"
	"time"

	"mail-agent/backend/pkg/models"
)

func welcomePrompt(subject models.Subject) string {
	department := subject.Department
	if department == "" {
		department = "their"
	}
	return fmt.Sprintf("Generate a personalized welcome message for %s joining %s department", subject.Name, department)
}

// Onboard runs the fixed onboarding sequence for one subject: create the
// record, provision the account, generate a welcome message and mark the
// record completed. Each step's position is persisted in a workflow run so
// an interrupted onboarding can be resumed. Record store and provisioner
// failures are returned as errors; generator and notifier failures only
// flip their step flag.
func (c *Coordinator) Onboard(ctx context.Context, subject models.Subject, service string) (*models.OnboardingResult, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if c.provisioner == nil {
		return nil, models.NotConfigured("provisioner", "account provisioning is not configured")
	}
	gen, err := c.welcomeGenerator(service)
	if isValidation(err) {
		return nil, err
	}

	res := models.NewOnboardingResult(subject.Name)
	res.PersonalEmail = subject.PersonalEmail
	log := c.logger.With("workflow", "onboarding", "name", subject.Name)
	now := c.now().UTC()

	subject.ID = ""
	subject.Status = models.StatusProcessing
	subject.CompanyEmail = ""
	subject.EmailSent = false
	subject.CreatedAt = now
	rec, err := models.ToRecord(subject)
	if err != nil {
		return nil, err
	}
	subjectID, err := c.store.Create(ctx, models.CollectionInterns, rec)
	if err != nil {
		c.metrics.RecordStepFailure(ctx, "onboarding", models.StepDatabaseAdded)
		c.metrics.RecordRun(ctx, "onboarding", false)
		res.Error = err.Error()
		log.Error("subject record not created", "error", err)
		return res, fmt.Errorf("add subject record: %w", err)
	}
	subject.ID = subjectID
	res.SubjectID = subjectID
	res.Steps[models.StepDatabaseAdded] = true
	res.Details["created_at"] = now.Format(time.RFC3339)

	run := &models.WorkflowRun{
		SubjectID:   subjectID,
		SubjectName: subject.Name,
		Cursor:      models.CursorRecordCreated,
		Status:      models.RunRunning,
		Steps:       res.Steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if runRec, err := models.ToRecord(run); err == nil {
		if runID, err := c.store.Create(ctx, models.CollectionWorkflowRuns, runRec); err == nil {
			run.ID = runID
			res.RunID = runID
		} else {
			log.Warn("workflow run not persisted; onboarding cannot be resumed", "error", err)
		}
	}

	return c.advance(ctx, run, subject, gen, res)
}

// ResumeOnboarding continues a persisted run from its cursor. Completed
// runs return their stored outcome; failed runs cannot be resumed because
// the subject's status is terminal.
func (c *Coordinator) ResumeOnboarding(ctx context.Context, runID, service string) (*models.OnboardingResult, error) {
	if runID == "" {
		return nil, models.Invalid("run_id", "is required")
	}
	runRec, err := c.store.Read(ctx, models.CollectionWorkflowRuns, runID)
	if err != nil {
		return nil, err
	}
	if runRec == nil {
		return nil, &models.NotFoundError{Kind: "workflow run", Key: runID}
	}
	var run models.WorkflowRun
	if err := models.FromRecord(runRec, &run); err != nil {
		return nil, err
	}
	run.ID = runID

	res := models.NewOnboardingResult(run.SubjectName)
	res.RunID = runID
	res.SubjectID = run.SubjectID
	res.CompanyEmail = run.CompanyEmail
	res.Simulated = run.Simulated
	res.WelcomeText = run.WelcomeText
	for step, ok := range run.Steps {
		res.Steps[step] = ok
	}
	run.Steps = res.Steps

	switch run.Status {
	case models.RunCompleted:
		res.Success = true
		return res, nil
	case models.RunFailed:
		return nil, models.Invalid("run_id", fmt.Sprintf("run %s failed (%s) and cannot be resumed", runID, run.Error))
	}

	if c.provisioner == nil {
		return nil, models.NotConfigured("provisioner", "account provisioning is not configured")
	}
	gen, err := c.welcomeGenerator(service)
	if isValidation(err) {
		return nil, err
	}

	subjRec, err := c.store.Read(ctx, models.CollectionInterns, run.SubjectID)
	if err != nil {
		return nil, err
	}
	if subjRec == nil {
		return nil, &models.NotFoundError{Kind: "subject", Key: run.SubjectID}
	}
	var subject models.Subject
	if err := models.FromRecord(subjRec, &subject); err != nil {
		return nil, err
	}
	subject.ID = run.SubjectID
	res.Name = subject.Name
	res.PersonalEmail = subject.PersonalEmail

	c.logger.Info("resuming onboarding", "run_id", runID, "cursor", run.Cursor)
	return c.advance(ctx, &run, subject, gen, res)
}

// advance executes every step after run.Cursor.
func (c *Coordinator) advance(ctx context.Context, run *models.WorkflowRun, subject models.Subject, gen ContentGenerator, res *models.OnboardingResult) (*models.OnboardingResult, error) {
	log := c.logger.With("workflow", "onboarding", "name", subject.Name, "run_id", run.ID)

	if run.Cursor < models.CursorProvisioned {
		prov, err := c.provisioner.Create(ctx, subject)
		if err != nil {
			c.metrics.RecordStepFailure(ctx, "onboarding", models.StepEmailCreated)
			c.metrics.RecordRun(ctx, "onboarding", false)
			if serr := c.transition(ctx, subject.ID, models.StatusEmailCreationFailed, nil); serr != nil {
				log.Error("status update failed", "error", serr)
			}
			run.Status = models.RunFailed
			run.Error = err.Error()
			c.saveRun(ctx, run)
			res.Error = err.Error()
			log.Error("account provisioning failed", "error", err)
			return res, fmt.Errorf("provision account: %w", err)
		}
		if prov.Notification != nil {
			c.logEmail(ctx, "onboarding", prov.Notification)
		}
		res.Steps[models.StepEmailCreated] = true
		res.Steps[models.StepCredentialsSent] = prov.Notified
		res.CompanyEmail = prov.LoginEmail
		res.Simulated = prov.Simulated
		if prov.Provider != nil && prov.Provider.Note != "" {
			res.Details["provider_note"] = prov.Provider.Note
		}
		if prov.Notification != nil && prov.Notification.Error != "" {
			res.Details["credentials_error"] = prov.Notification.Error
		}
		if !prov.Notified {
			c.metrics.RecordStepFailure(ctx, "onboarding", models.StepCredentialsSent)
		}

		run.Cursor = models.CursorProvisioned
		run.CompanyEmail = prov.LoginEmail
		run.Simulated = prov.Simulated
		run.Notified = prov.Notified
		c.saveRun(ctx, run)
	}

	if run.Cursor < models.CursorWelcome {
		text, err := c.welcome(ctx, gen, subject)
		if err != nil {
			c.metrics.RecordStepFailure(ctx, "onboarding", models.StepAIWelcome)
			res.Details["ai_welcome_error"] = err.Error()
			log.Warn("welcome message not generated", "error", err)
		} else {
			res.Steps[models.StepAIWelcome] = true
			res.WelcomeText = text
		}
		run.Cursor = models.CursorWelcome
		run.WelcomeText = res.WelcomeText
		c.saveRun(ctx, run)
	}

	if run.Cursor < models.CursorCompleted {
		err := c.transition(ctx, subject.ID, models.StatusCompleted, models.Record{
			"company_email": run.CompanyEmail,
			"email_sent":    run.Notified,
		})
		if err != nil {
			c.metrics.RecordStepFailure(ctx, "onboarding", models.StepRecordUpdated)
			c.metrics.RecordRun(ctx, "onboarding", false)
			res.Error = err.Error()
			log.Error("subject record not completed", "error", err)
			return res, fmt.Errorf("complete subject record: %w", err)
		}
		res.Steps[models.StepRecordUpdated] = true
		run.Cursor = models.CursorCompleted
		run.Status = models.RunCompleted
		c.saveRun(ctx, run)
	}

	res.Success = true
	res.Details["new_email"] = res.CompanyEmail
	res.Details["personal_email"] = res.PersonalEmail
	c.metrics.RecordRun(ctx, "onboarding", true)
	log.Info("onboarding completed", "company_email", res.CompanyEmail, "simulated", res.Simulated)
	return res, nil
}

// transition moves a subject's status forward and applies extra fields. A
// move that would regress the status is rejected.
func (c *Coordinator) transition(ctx context.Context, subjectID string, next models.SubjectStatus, extra models.Record) error {
	rec, err := c.store.Read(ctx, models.CollectionInterns, subjectID)
	if err != nil {
		return err
	}
	if rec == nil {
		return &models.NotFoundError{Kind: "subject", Key: subjectID}
	}
	current := models.SubjectStatus(rec.String("status"))
	if current != next && !current.CanAdvanceTo(next) {
		return models.Invalid("status", fmt.Sprintf("cannot move from %q to %q", current, next))
	}
	patch := models.Record{"status": string(next)}
	for k, v := range extra {
		patch[k] = v
	}
	ok, err := c.store.Update(ctx, models.CollectionInterns, subjectID, patch)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Kind: "subject", Key: subjectID}
	}
	return nil
}

func (c *Coordinator) saveRun(ctx context.Context, run *models.WorkflowRun) {
	if run.ID == "" {
		return
	}
	run.UpdatedAt = c.now().UTC()
	patch, err := models.ToRecord(run)
	if err == nil {
		_, err = c.store.Update(ctx, models.CollectionWorkflowRuns, run.ID, patch)
	}
	if err != nil {
		c.logger.Warn("workflow run not saved", "run_id", run.ID, "cursor", run.Cursor, "error", err)
	}
}

// welcomeGenerator resolves the generator for the welcome step. Only an
// unknown service is an error worth rejecting the request for.
func (c *Coordinator) welcomeGenerator(service string) (ContentGenerator, error) {
	gen, _, err := c.generators.Resolve(service)
	if err != nil {
		c.logger.Warn("welcome generator unavailable", "service", service, "error", err)
	}
	return gen, err
}

func (c *Coordinator) welcome(ctx context.Context, gen ContentGenerator, subject models.Subject) (string, error) {
	if gen == nil {
		return "", models.NotConfigured("generator", "no content generator for welcome message")
	}
	return gen.Generate(ctx, welcomePrompt(subject), nil)
}

// OnboardBatch onboards subjects on a bounded, rate-paced pool. Each
// subject's steps run in order on one worker; results keep input order.
func (c *Coordinator) OnboardBatch(ctx context.Context, subjects []models.Subject, service string) (*models.BatchOnboardingResult, error) {
	if len(subjects) == 0 {
		return nil, models.Invalid("subjects", "at least one subject is required")
	}
	if _, _, err := c.generators.Resolve(service); isValidation(err) {
		return nil, err
	}

	results := make([]*models.OnboardingResult, len(subjects))
	err := runBounded(ctx, len(subjects), c.bulkWorkers, c.limiter, func(ctx context.Context, i int) {
		res, err := c.Onboard(ctx, subjects[i], service)
		if res == nil {
			res = models.NewOnboardingResult(subjects[i].Name)
		}
		if err != nil {
			res.Success = false
			res.Error = errString(err)
		}
		results[i] = res
	})

	out := &models.BatchOnboardingResult{Total: len(subjects), Results: results}
	for i, res := range results {
		if res == nil {
			res = models.NewOnboardingResult(subjects[i].Name)
			res.Error = "not attempted"
			results[i] = res
		}
		if res.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	return out, err
}
