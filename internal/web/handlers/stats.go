package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

const statsCacheTTL = 5 * time.Minute

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
	cache          statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(cfg *config.Config, sm *middleware.SessionManager) *StatsHandler {
	return &StatsHandler{config: cfg, sessionManager: sm}
}

// InvalidateCache clears the cached stats so the next request fetches fresh data
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalMembers     int   `json:"total_members"`
	EnrolledMembers  int   `json:"enrolled_members"`
	CheckinsLast30d  int   `json:"checkins_last_30d"`
	RevenueCents30d  int64 `json:"revenue_cents_last_30d"`
	FaceIndexEnabled bool  `json:"face_index_enabled"`
	FaceIndexSize    int   `json:"face_index_size"`
}

// Get returns aggregate member, attendance and revenue statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	reader, err := database.GetMemberReader(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "member storage not available")
		return
	}
	cw, err := database.GetCheckinWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "attendance storage not available")
		return
	}
	pw, err := database.GetPaymentWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "payment storage not available")
		return
	}

	stats := &StatsResponse{}

	stats.TotalMembers, err = reader.CountMembers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count members")
		return
	}
	stats.EnrolledMembers, err = reader.CountEnrolled(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count enrolled members")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30).Unix()
	to := now.Unix()

	stats.CheckinsLast30d, err = cw.CountCheckins(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count check-ins")
		return
	}
	stats.RevenueCents30d, err = pw.SumPayments(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to sum payments")
		return
	}

	if rebuilder := database.GetFaceIndexRebuilder(); rebuilder != nil {
		stats.FaceIndexEnabled = rebuilder.IsFaceIndexEnabled()
		stats.FaceIndexSize = rebuilder.FaceIndexCount()
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
