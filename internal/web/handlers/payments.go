package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

// PaymentsHandler handles membership payment endpoints
type PaymentsHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
}

// NewPaymentsHandler creates a new payments handler
func NewPaymentsHandler(cfg *config.Config, sm *middleware.SessionManager) *PaymentsHandler {
	return &PaymentsHandler{config: cfg, sessionManager: sm}
}

type paymentRequest struct {
	Plan        string `json:"plan"`
	AmountCents int64  `json:"amount_cents"` // optional, defaults to the plan price
	PeriodStart string `json:"period_start"` // RFC3339, optional, defaults to now
	Months      int    `json:"months"`       // covered period length, defaults to 1
}

type paymentResponse struct {
	ID          int64  `json:"id"`
	MemberUID   string `json:"member_uid"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Plan        string `json:"plan"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PaidAt      string `json:"paid_at"`
}

func toPaymentResponse(p *database.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		MemberUID:   p.MemberUID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Plan:        p.Plan,
		PeriodStart: p.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   p.PeriodEnd.Format(time.RFC3339),
		PaidAt:      p.PaidAt.Format(time.RFC3339),
	}
}

// Record registers a payment for a member and extends their membership.
func (h *PaymentsHandler) Record(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}
	pw, err := database.GetPaymentWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "payment storage not available")
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

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = member.Plan
	}
	pricing, ok := h.config.Plans.Plans[plan]
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown plan: "+plan)
		return
	}

	amount := req.AmountCents
	if amount == 0 {
		amount = pricing.MonthlyCents
	}
	if amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount_cents must be positive")
		return
	}

	months := req.Months
	if months == 0 {
		months = 1
	}
	if months < 0 || months > 24 {
		respondError(w, http.StatusBadRequest, "months must be between 1 and 24")
		return
	}

	periodStart := time.Now().UTC()
	if req.PeriodStart != "" {
		periodStart, err = time.Parse(time.RFC3339, req.PeriodStart)
		if err != nil {
			respondError(w, http.StatusBadRequest, "period_start must be RFC3339")
			return
		}
	}

	payment := &database.Payment{
		MemberUID:   uid,
		AmountCents: amount,
		Currency:    pricing.Currency,
		Plan:        plan,
		PeriodStart: periodStart,
		PeriodEnd:   periodStart.AddDate(0, months, 0),
	}
	if err := pw.RecordPayment(r.Context(), payment); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}

	respondJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// List returns the payment history for one member, newest first.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	mw := getMemberWriter(r, w)
	if mw == nil {
		return
	}
	pw, err := database.GetPaymentWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "payment storage not available")
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

	payments, err := pw.ListPayments(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}

	result := make([]paymentResponse, len(payments))
	for i := range payments {
		result[i] = toPaymentResponse(&payments[i])
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"payments": result,
		"count":    len(result),
	})
}
