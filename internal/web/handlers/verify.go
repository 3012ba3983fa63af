package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/verification"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

// GateHandler handles access-gate verification endpoints
type GateHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
	faces          *FaceHandler // shares vector resolution (JSON or capture upload)
}

// NewGateHandler creates a new gate handler
func NewGateHandler(cfg *config.Config, sm *middleware.SessionManager, faces *FaceHandler) *GateHandler {
	return &GateHandler{config: cfg, sessionManager: sm, faces: faces}
}

// VerifyResponse describes a successful gate identification.
type VerifyResponse struct {
	Member        MemberView `json:"member"`
	Distance      float64    `json:"distance"`
	Similarity    float64    `json:"similarity"`
	Active        bool       `json:"active"`
	DaysRemaining int        `json:"days_remaining"`
	Allowed       bool       `json:"allowed"`
}

func (h *GateHandler) verify(w http.ResponseWriter, r *http.Request) *verification.Result {
	store, err := database.GetMemberReader(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return nil
	}

	vector := h.faces.resolveVector(w, r)
	if vector == nil {
		return nil
	}

	verifier := verification.NewVerifier(store, h.config.Biometric.IdentifyThreshold)
	result, err := verifier.Verify(r.Context(), vector)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrNoEnrollments):
			respondError(w, http.StatusNotFound, "no enrolled members")
		case errors.Is(err, verification.ErrNoMatch):
			respondError(w, http.StatusNotFound, "no match found")
		default:
			log.Printf("gate verification failed: %v", err)
			respondError(w, http.StatusInternalServerError, "verification failed")
		}
		return nil
	}
	return result
}

func verifyResponse(result *verification.Result) VerifyResponse {
	return VerifyResponse{
		Member:        memberView(&result.Member),
		Distance:      result.Distance,
		Similarity:    result.Similarity,
		Active:        result.IsActive,
		DaysRemaining: result.DaysRemaining,
		Allowed:       result.IsActive,
	}
}

// Verify identifies a probe against the enrolled population without
// recording attendance. Used for dry-run checks from the admin UI.
func (h *GateHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result := h.verify(w, r)
	if result == nil {
		return
	}
	respondJSON(w, http.StatusOK, verifyResponse(result))
}

// Checkin identifies a probe and, on a successful match, records the visit.
// The check-in is recorded even for expired memberships so the operator can
// see who was turned away.
func (h *GateHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	result := h.verify(w, r)
	if result == nil {
		return
	}

	cw, err := database.GetCheckinWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "attendance storage not available")
		return
	}

	checkin := &database.Checkin{
		MemberUID:  result.Member.UID,
		Similarity: result.Similarity,
	}
	if err := cw.RecordCheckin(r.Context(), checkin); err != nil {
		log.Printf("recording check-in for member %s failed: %v", sanitizeForLog(result.Member.UID), err)
		respondError(w, http.StatusInternalServerError, "failed to record check-in")
		return
	}

	respondJSON(w, http.StatusOK, verifyResponse(result))
}
