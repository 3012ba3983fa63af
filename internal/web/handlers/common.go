package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadSize bounds face capture uploads.
const maxUploadSize = 10 << 20 // 10 MB

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// MemberView is the JSON shape of a member. The stored face vector is
// deliberately never exposed over the API.
type MemberView struct {
	UID          string `json:"uid"`
	Name         string `json:"name"`
	ExternalRef  string `json:"external_ref,omitempty"`
	Email        string `json:"email,omitempty"`
	Plan         string `json:"plan,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	FaceEnrolled bool   `json:"face_enrolled"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func memberView(m *database.Member) MemberView {
	v := MemberView{
		UID:          m.UID,
		Name:         m.Name,
		ExternalRef:  m.ExternalRef,
		Email:        m.Email,
		Plan:         m.Plan,
		FaceEnrolled: m.FaceEnrolled,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    m.UpdatedAt.Format(time.RFC3339),
	}
	if m.ExpiresAt != nil {
		v.ExpiresAt = m.ExpiresAt.Format(time.RFC3339)
	}
	return v
}

func memberViews(members []database.Member) []MemberView {
	views := make([]MemberView, len(members))
	for i := range members {
		views[i] = memberView(&members[i])
	}
	return views
}

// readUploadedImage extracts the face capture from a multipart form field
// named "image".
func readUploadedImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadSize {
		return nil, http.ErrContentLength
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
