package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/embedding"
	"github.com/kozaktomas/gym-gate/internal/enrollment"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

// FaceHandler handles biometric enrollment endpoints
type FaceHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
	embedder       *embedding.Client

	// The coordinator serializes enrollment check-then-write sequences, so
	// one instance must be shared across all requests.
	mu    sync.Mutex
	coord *enrollment.Coordinator
}

// NewFaceHandler creates a new biometric enrollment handler
func NewFaceHandler(cfg *config.Config, sm *middleware.SessionManager) *FaceHandler {
	return &FaceHandler{
		config:         cfg,
		sessionManager: sm,
		embedder:       embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim),
	}
}

func (h *FaceHandler) coordinator(r *http.Request) (*enrollment.Coordinator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.coord == nil {
		store, err := database.GetMemberWriter(r.Context())
		if err != nil {
			return nil, err
		}
		h.coord = enrollment.NewCoordinator(store, h.config.Biometric.DuplicateThreshold)
	}
	return h.coord, nil
}

type vectorRequest struct {
	Vector []float32 `json:"vector"`
}

// resolveVector extracts the probe vector from the request: either a raw
// vector in a JSON body (gate devices with a local embedder) or a face
// capture image in a multipart form, which is run through the embedding
// service. Writes the error response itself and returns nil on failure.
func (h *FaceHandler) resolveVector(w http.ResponseWriter, r *http.Request) []float32 {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "multipart/form-data") {
		image, err := readUploadedImage(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "image upload is required")
			return nil
		}
		vector, err := h.embedder.CaptureVector(r.Context(), image)
		if err != nil {
			switch {
			case errors.Is(err, embedding.ErrNoFaceDetected):
				respondError(w, http.StatusUnprocessableEntity, "no face detected in the capture")
			case errors.Is(err, embedding.ErrMultipleFaces):
				respondError(w, http.StatusUnprocessableEntity, "capture must contain exactly one face")
			default:
				log.Printf("embedding service error: %v", err)
				respondError(w, http.StatusBadGateway, "embedding service unavailable")
			}
			return nil
		}
		return vector
	}

	var req vectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil
	}
	if len(req.Vector) != biometric.VectorDim {
		respondError(w, http.StatusUnprocessableEntity, "vector must have 128 components")
		return nil
	}
	return req.Vector
}

// DuplicateResponse describes a rejected enrollment and the conflicting member.
type DuplicateResponse struct {
	Error      string  `json:"error"`
	MemberUID  string  `json:"member_uid"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

func respondDuplicate(w http.ResponseWriter, dup *enrollment.DuplicateError) {
	respondJSON(w, http.StatusConflict, DuplicateResponse{
		Error:      "face already enrolled for another member",
		MemberUID:  dup.MemberUID,
		Name:       dup.Name,
		Similarity: dup.Similarity,
	})
}

// Enroll registers a face for a member after the duplicate check.
func (h *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinator(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return
	}

	uid := chi.URLParam(r, "uid")
	vector := h.resolveVector(w, r)
	if vector == nil {
		return
	}

	if err := coord.Enroll(r.Context(), uid, vector); err != nil {
		var dup *enrollment.DuplicateError
		var dim *biometric.DimensionMismatchError
		switch {
		case errors.Is(err, enrollment.ErrMemberNotFound):
			respondError(w, http.StatusNotFound, "member not found")
		case errors.As(err, &dup):
			respondDuplicate(w, dup)
		case errors.As(err, &dim):
			respondError(w, http.StatusUnprocessableEntity, dim.Error())
		default:
			log.Printf("enrollment failed for member %s: %v", sanitizeForLog(uid), err)
			respondError(w, http.StatusInternalServerError, "enrollment failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"member_uid": uid,
	})
}

// Validate runs the duplicate check without storing anything. Used to
// pre-check a capture before committing the enrollment.
func (h *FaceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinator(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return
	}

	vector := h.resolveVector(w, r)
	if vector == nil {
		return
	}

	excludeUID := r.URL.Query().Get("exclude")
	if err := coord.ValidateOnly(r.Context(), vector, excludeUID); err != nil {
		var dup *enrollment.DuplicateError
		var dim *biometric.DimensionMismatchError
		switch {
		case errors.As(err, &dup):
			respondDuplicate(w, dup)
		case errors.As(err, &dim):
			respondError(w, http.StatusUnprocessableEntity, dim.Error())
		default:
			log.Printf("validation failed: %v", err)
			respondError(w, http.StatusInternalServerError, "validation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"available": true})
}

// Clear removes a member's biometric registration. The member record stays.
func (h *FaceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinator(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return
	}

	uid := chi.URLParam(r, "uid")
	if err := coord.Remove(r.Context(), uid); err != nil {
		if errors.Is(err, enrollment.ErrMemberNotFound) {
			respondError(w, http.StatusNotFound, "member not found")
			return
		}
		log.Printf("clearing enrollment failed for member %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to clear enrollment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
