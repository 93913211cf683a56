// ABOUTME: Materials catalog endpoints: list, create and delete
// ABOUTME: Images are kept inline or offloaded to object storage when configured

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/2389/trowel/internal/auth"
	"github.com/2389/trowel/internal/blob"
	"github.com/2389/trowel/internal/store"
)

const detailMaterialNotFound = "Material not found"

// maxInlineImageChars bounds a base64 image kept in the database.
const maxInlineImageChars = (blob.MaxImageBytes + 2) / 3 * 4

// MaterialRequest is the JSON request body for POST /materials.
type MaterialRequest struct {
	Name     string   `json:"name"`
	Unit     string   `json:"unit"`
	Coverage *float64 `json:"coverage"`
	ImageURL *string  `json:"imageUrl"` // base64, optional
}

// Validate checks the material fields.
func (r MaterialRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Unit, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Coverage, validation.NotNil, validation.Min(0.0)),
		validation.Field(&r.ImageURL, validation.Length(0, maxInlineImageChars)),
	)
}

// MaterialResponse is one catalog entry as returned by GET /materials.
type MaterialResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Coverage  float64 `json:"coverage"`
	ImageURL  *string `json:"imageUrl"`            // inline base64
	ImageHref string  `json:"imageHref,omitempty"` // presigned URL for offloaded images
	CreatedBy string  `json:"created_by"`
}

// CreatedResponse is the JSON response for resource creation.
type CreatedResponse struct {
	Msg string `json:"msg"`
	ID  string `json:"id"`
}

// handleListMaterials returns the whole catalog.
func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := s.store.ListMaterials(r.Context())
	if err != nil {
		sendStoreError(w, s.logger, "list materials", err)
		return
	}

	resp := make([]MaterialResponse, 0, len(materials))
	for _, m := range materials {
		resp = append(resp, s.materialResponse(r.Context(), m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) materialResponse(ctx context.Context, m *store.Material) MaterialResponse {
	resp := MaterialResponse{
		ID:        m.ID,
		Name:      m.Name,
		Unit:      m.Unit,
		Coverage:  m.Coverage,
		CreatedBy: m.CreatedBy,
	}
	if m.ImageData != "" {
		data := m.ImageData
		resp.ImageURL = &data
	}
	if m.ImageKey != "" && s.images != nil {
		href, err := s.images.URL(ctx, m.ImageKey)
		if err != nil {
			s.logger.Warn("presigning material image", "material_id", m.ID, "error", err)
		} else {
			resp.ImageHref = href
		}
	}
	return resp
}

// handleCreateMaterial adds a catalog entry owned by the caller.
func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req MaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		sendValidationError(w, err)
		return
	}

	m := &store.Material{
		Name:      req.Name,
		Unit:      req.Unit,
		Coverage:  *req.Coverage,
		CreatedBy: id.ID,
	}

	if req.ImageURL != nil && *req.ImageURL != "" {
		if s.images == nil {
			m.ImageData = *req.ImageURL
		} else {
			key, err := s.storeImage(r.Context(), *req.ImageURL)
			if err != nil {
				if errors.Is(err, blob.ErrInvalidImage) || errors.Is(err, blob.ErrTooLarge) {
					sendValidationError(w, validation.Errors{"imageUrl": err})
					return
				}
				s.logger.Error("uploading material image", "error", err)
				sendJSONError(w, http.StatusBadGateway, "Image storage unavailable")
				return
			}
			m.ImageKey = key
		}
	}

	if err := s.store.CreateMaterial(r.Context(), m); err != nil {
		if m.ImageKey != "" {
			s.deleteImage(r.Context(), m.ImageKey)
		}
		sendStoreError(w, s.logger, "create material", err)
		return
	}

	s.logger.Info("material added", "material_id", m.ID, "user_id", id.ID)
	writeJSON(w, http.StatusCreated, CreatedResponse{Msg: "Material added", ID: m.ID})
}

func (s *Server) storeImage(ctx context.Context, encoded string) (string, error) {
	data, contentType, err := blob.DecodeImage(encoded)
	if err != nil {
		return "", err
	}
	key := blob.NewKey()
	if err := s.images.Put(ctx, key, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Server) deleteImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.logger.Warn("deleting material image", "key", key, "error", err)
	}
}

// handleDeleteMaterial removes a catalog entry. Any signed-in user may delete.
func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	materialID := chi.URLParam(r, "id")

	m, err := s.store.GetMaterial(r.Context(), materialID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, detailMaterialNotFound)
			return
		}
		sendStoreError(w, s.logger, "get material", err)
		return
	}

	if err := s.store.DeleteMaterial(r.Context(), materialID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, detailMaterialNotFound)
			return
		}
		sendStoreError(w, s.logger, "delete material", err)
		return
	}

	if m.ImageKey != "" && s.images != nil {
		s.deleteImage(r.Context(), m.ImageKey)
	}

	s.logger.Info("material deleted", "material_id", materialID, "user_id", id.ID)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Deleted"})
}
