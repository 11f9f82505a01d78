package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

// ListInterns returns subject records, optionally narrowed by status and
// department.
// (GET /database/interns)
func (s *Server) ListInterns(c echo.Context, params ListInternsParams) error {
	filters := map[string]any{}
	if params.Status != nil {
		status := models.SubjectStatus(*params.Status)
		if !status.Valid() {
			return models.Invalid("status", fmt.Sprintf("unknown status %q", *params.Status))
		}
		filters["status"] = string(status)
	}
	if params.Department != nil && *params.Department != "" {
		filters["department"] = *params.Department
	}
	recs, err := s.Store.Query(c.Request().Context(), models.CollectionInterns, filters, 0)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"count":   len(recs),
		"data":    recs,
	})
}

// AddIntern stores a subject in the pending state without onboarding it.
// (POST /database/intern)
func (s *Server) AddIntern(c echo.Context) error {
	var req InternData
	if err := bind(c, &req); err != nil {
		return err
	}
	subject := req.Subject()
	if err := subject.Validate(); err != nil {
		return err
	}
	subject.Status = models.StatusPending
	subject.CreatedAt = s.now()

	rec, err := models.ToRecord(subject)
	if err != nil {
		return err
	}
	id, err := s.Store.Create(c.Request().Context(), models.CollectionInterns, rec)
	if err != nil {
		return err
	}
	s.Logger.Info("subject added", "id", id, "name", subject.Name)
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"id":      id,
		"message": "Intern " + subject.Name + " added successfully",
	})
}

// GetSettings returns the organization settings, defaults filled in.
// (GET /database/settings)
func (s *Server) GetSettings(c echo.Context) error {
	settings, err := repository.GetSettings(c.Request().Context(), s.Store)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    settings,
	})
}

// ListDocuments returns the records of a collection.
// (GET /database/documents/{collection})
func (s *Server) ListDocuments(c echo.Context, collection string, params ListDocumentsParams) error {
	limit := 0
	if params.Limit != nil {
		if *params.Limit < 0 {
			return models.Invalid("limit", "must not be negative")
		}
		limit = *params.Limit
	}
	recs, err := s.Store.Query(c.Request().Context(), collection, nil, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"collection": collection,
		"count":      len(recs),
		"data":       recs,
	})
}

// CreateDocument stores a record in a collection.
// (POST /database/documents/{collection})
func (s *Server) CreateDocument(c echo.Context, collection string) error {
	var rec models.Record
	if err := bind(c, &rec); err != nil {
		return err
	}
	if len(rec) == 0 {
		return models.Invalid("body", "document must not be empty")
	}
	id, err := s.Store.Create(c.Request().Context(), collection, rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success":    true,
		"collection": collection,
		"id":         id,
	})
}

// GetDocument returns one record by id.
// (GET /database/documents/{collection}/{id})
func (s *Server) GetDocument(c echo.Context, collection string, id string) error {
	rec, err := s.Store.Read(c.Request().Context(), collection, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return &models.NotFoundError{Kind: collection + " document", Key: id}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"collection": collection,
		"data":       rec,
	})
}

// UpdateDocument shallow-merges the body into the record matching key.
// (PATCH /database/documents/{collection}/{key})
func (s *Server) UpdateDocument(c echo.Context, collection string, key string) error {
	var patch models.Record
	if err := bind(c, &patch); err != nil {
		return err
	}
	if len(patch) == 0 {
		return models.Invalid("body", "patch must not be empty")
	}
	ok, err := s.Store.Update(c.Request().Context(), collection, key, patch)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Kind: collection + " document", Key: key}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"collection": collection,
		"key":        key,
	})
}
