package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/constants"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

// MembersHandler handles member administration endpoints
type MembersHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
}

// NewMembersHandler creates a new members handler
func NewMembersHandler(cfg *config.Config, sm *middleware.SessionManager) *MembersHandler {
	return &MembersHandler{config: cfg, sessionManager: sm}
}

func getMemberWriter(r *http.Request, w http.ResponseWriter) database.MemberWriter {
	writer, err := database.GetMemberWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return nil
	}
	return writer
}

type memberRequest struct {
	Name        string `json:"name"`
	ExternalRef string `json:"external_ref"`
	Email       string `json:"email"`
	Plan        string `json:"plan"`
	ExpiresAt   string `json:"expires_at"` // RFC3339, optional
}

func (req *memberRequest) expiry() (*time.Time, error) {
	if req.ExpiresAt == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// validatePlan accepts an empty plan or one defined in the pricing config.
func (h *MembersHandler) validatePlan(plan string) bool {
	if plan == "" {
		return true
	}
	_, ok := h.config.Plans.Plans[plan]
	return ok
}

// List returns all members, or a name search when ?q= is given.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}

	var members []database.Member
	var err error
	if q := r.URL.Query().Get("q"); q != "" {
		members, err = mw.SearchMembersByName(r.Context(), q)
	} else {
		members, err = mw.ListMembers(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"members": memberViews(members),
		"count":   len(members),
	})
}

// Create registers a new member record. Biometric enrollment is a separate step.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !h.validatePlan(req.Plan) {
		respondError(w, http.StatusBadRequest, "unknown plan: "+req.Plan)
		return
	}
	expiresAt, err := req.expiry()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expires_at must be RFC3339")
		return
	}

	member := &database.Member{
		Name:        req.Name,
		ExternalRef: req.ExternalRef,
		Email:       req.Email,
		Plan:        req.Plan,
		ExpiresAt:   expiresAt,
	}
	if err := mw.CreateMember(r.Context(), member); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	respondJSON(w, http.StatusCreated, memberView(member))
}

// Get returns a single member by UID.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}

	uid := chi.URLParam(r, "uid")
	member, err := mw.GetMember(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}

	respondJSON(w, http.StatusOK, memberView(member))
}

// Update changes member attributes. The face vector is untouched.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}

	uid := chi.URLParam(r, "uid")
	member, err := mw.GetMember(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !h.validatePlan(req.Plan) {
		respondError(w, http.StatusBadRequest, "unknown plan: "+req.Plan)
		return
	}
	expiresAt, err := req.expiry()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expires_at must be RFC3339")
		return
	}

	member.Name = req.Name
	member.ExternalRef = req.ExternalRef
	member.Email = req.Email
	member.Plan = req.Plan
	member.ExpiresAt = expiresAt

	if err := mw.UpdateMember(r.Context(), member); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update member")
		return
	}

	respondJSON(w, http.StatusOK, memberView(member))
}

type similarMemberResponse struct {
	Member     MemberView `json:"member"`
	Distance   float64    `json:"distance"`
	Similarity float64    `json:"similarity"`
}

// Similar returns the enrolled members closest to one member's stored face
// vector. Useful for reviewing near-duplicates around one record.
func (h *MembersHandler) Similar(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}

	uid := chi.URLParam(r, "uid")
	member, err := mw.GetMember(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	if !member.FaceEnrolled {
		respondError(w, http.StatusBadRequest, "member has no biometric enrollment")
		return
	}

	limit := constants.DefaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	// Fetch one extra so the member themselves can be dropped.
	members, distances, err := mw.FindSimilarFaces(r.Context(), member.FaceVector, limit+1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to find similar members")
		return
	}

	results := make([]similarMemberResponse, 0, limit)
	for i := range members {
		if members[i].UID == uid {
			continue
		}
		d := distances[i]
		results = append(results, similarMemberResponse{
			Member:     memberView(&members[i]),
			Distance:   d,
			Similarity: max(0, 1-d),
		})
		if len(results) >= limit {
			break
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"member":  memberView(member),
		"similar": results,
	})
}

type checkinResponse struct {
	ID          int64   `json:"id"`
	MemberUID   string  `json:"member_uid"`
	Similarity  float64 `json:"similarity"`
	CheckedInAt string  `json:"checked_in_at"`
}

// Checkins returns the attendance history for one member, newest first.
func (h *MembersHandler) Checkins(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}
	cw, err := database.GetCheckinWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "attendance storage not available")
		return
	}

	uid := chi.URLParam(r, "uid")
	member, err := mw.GetMember(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}

	limit := constants.DefaultCheckinLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	checkins, err := cw.ListCheckins(r.Context(), uid, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list check-ins")
		return
	}

	result := make([]checkinResponse, len(checkins))
	for i, c := range checkins {
		result[i] = checkinResponse{
			ID:          c.ID,
			MemberUID:   c.MemberUID,
			Similarity:  c.Similarity,
			CheckedInAt: c.CheckedInAt.Format(time.RFC3339),
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"checkins": result,
		"count":    len(result),
	})
}
