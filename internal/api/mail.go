package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mail-agent/backend/pkg/models"
)

func (s *Server) requireNotifier() error {
	if s.Notifier == nil {
		return models.NotConfigured("notifier", "smtp is not configured")
	}
	return nil
}

func (s *Server) requireProvisioner() error {
	if s.Provisioner == nil {
		return models.NotConfigured("provisioner", "account provisioning is not configured")
	}
	return nil
}

// sendOutcome reports delivery failures inside the 200 body, like the batch
// routes do. Only malformed input is rejected outright.
func sendOutcome(c echo.Context, res *models.SendResult, err error) error {
	if err != nil && (res == nil || errors.Is(err, models.ErrValidation)) {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SendEmail delivers one formatted message.
// (POST /mail/send)
func (s *Server) SendEmail(c echo.Context) error {
	if err := s.requireNotifier(); err != nil {
		return err
	}
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.Notifier.Send(c.Request().Context(), req.RecipientEmail, req.Subject, req.Content, req.EmailType)
	return sendOutcome(c, res, err)
}

// SendBulkEmail sends a personalized template to every recipient.
// (POST /mail/send-bulk)
func (s *Server) SendBulkEmail(c echo.Context) error {
	if err := s.requireNotifier(); err != nil {
		return err
	}
	var req BulkEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.Notifier.SendBatch(c.Request().Context(), req.Recipients, req.Subject, req.ContentTemplate, req.EmailType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SendCredentials mails a login and password as the HTML credential template.
// (POST /mail/send-credentials)
func (s *Server) SendCredentials(c echo.Context) error {
	if err := s.requireNotifier(); err != nil {
		return err
	}
	var req CredentialEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Credentials.LoginEmail == "" || req.Credentials.Password == "" {
		return models.Invalid("credentials", "email and password are required")
	}
	res, err := s.Notifier.SendCredentials(c.Request().Context(), req.RecipientEmail, req.Credentials, req.WelcomeMessage)
	return sendOutcome(c, res, err)
}

// CreateAccount provisions a directory account for one subject.
// (POST /outlook/create-email)
func (s *Server) CreateAccount(c echo.Context) error {
	if err := s.requireProvisioner(); err != nil {
		return err
	}
	var req InternData
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.Provisioner.Create(c.Request().Context(), req.Subject())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// CreateAccounts provisions accounts for a list of subjects.
// (POST /outlook/create-email-bulk)
func (s *Server) CreateAccounts(c echo.Context) error {
	if err := s.requireProvisioner(); err != nil {
		return err
	}
	var req []InternData
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.Provisioner.CreateBatch(c.Request().Context(), subjects(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
