// ABOUTME: Project endpoints for saving and listing material calculations
// ABOUTME: Projects are private to the user who saved them

package server

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/2389/trowel/internal/auth"
	"github.com/2389/trowel/internal/store"
)

// ProjectRequest is the JSON request body for POST /projects.
type ProjectRequest struct {
	Title               string                     `json:"title"`
	Date                *time.Time                 `json:"date"`
	Dimensions          map[string]float64         `json:"dimensions"`
	CalculatedMaterials []store.CalculatedMaterial `json:"calculated_materials"`
}

// Validate checks the project and each of its material lines.
func (r ProjectRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Dimensions, validation.NotNil),
		validation.Field(&r.CalculatedMaterials, validation.NotNil),
	)
	if err != nil {
		return err
	}

	errs := validation.Errors{}
	for i, line := range r.CalculatedMaterials {
		if lineErr := validation.ValidateStruct(&line,
			validation.Field(&line.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&line.Qty, validation.Min(0.0)),
		); lineErr != nil {
			errs[fmt.Sprintf("calculated_materials.%d", i)] = lineErr
		}
	}
	return errs.Filter()
}

// ProjectResponse is one saved project as returned by GET /projects.
type ProjectResponse struct {
	ID                  string                     `json:"id"`
	UserID              string                     `json:"user_id"`
	Title               string                     `json:"title"`
	Date                time.Time                  `json:"date"`
	Dimensions          map[string]float64         `json:"dimensions"`
	CalculatedMaterials []store.CalculatedMaterial `json:"calculated_materials"`
}

// handleCreateProject saves a calculation for the caller.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		sendValidationError(w, err)
		return
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	p := &store.Project{
		UserID:              id.ID,
		Title:               req.Title,
		Date:                date,
		Dimensions:          req.Dimensions,
		CalculatedMaterials: req.CalculatedMaterials,
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		sendStoreError(w, s.logger, "create project", err)
		return
	}

	s.logger.Info("project saved", "project_id", p.ID, "user_id", id.ID)
	writeJSON(w, http.StatusCreated, CreatedResponse{Msg: "Project saved", ID: p.ID})
}

// handleListProjects returns the caller's saved projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	projects, err := s.store.ListProjectsByUser(r.Context(), id.ID)
	if err != nil {
		sendStoreError(w, s.logger, "list projects", err)
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, ProjectResponse{
			ID:                  p.ID,
			UserID:              p.UserID,
			Title:               p.Title,
			Date:                p.Date,
			Dimensions:          p.Dimensions,
			CalculatedMaterials: p.CalculatedMaterials,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
