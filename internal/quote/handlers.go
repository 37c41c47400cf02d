package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// IdempotencyKeyHeader carries the client supplied replay key for quote creation.
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler exposes quote endpoints over HTTP.
type Handler struct {
	Svc *Service
}

// Routes mounts the quote and coupon endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quotes", h.Create)
	r.Post("/quotes/coupons", h.Applicable)
	r.Get("/quotes/{id}", h.Get)
	r.Get("/coupons", h.Coupons)
}

// Create prices a cart snapshot and returns the issued quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))

	res, err := h.Svc.Quote(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(obs.QuoteIDHeader, res.QuoteID)
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	common.JSON(w, status, map[string]any{"data": res})
}

// Get returns a previously issued quote while it is still stored.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if _, err := uuid.Parse(id); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return
	}
	if !h.Svc.Store.Enabled() {
		common.JSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "quote storage disabled", nil)
		return
	}
	res, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(obs.QuoteIDHeader, res.QuoteID)
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Applicable lists catalog coupons that would discount the posted snapshot.
func (h *Handler) Applicable(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.ApplicableCoupons(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Coupons lists the coupons redeemable right now.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Svc.ActiveCoupons()})
}

func writeError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}

func toAppError(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return common.NewAppError("INVALID_INPUT", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrQuoteNotFound):
		return common.NewAppError("NOT_FOUND", "quote not found", http.StatusNotFound, err)
	case errors.Is(err, ErrIdempotencyConflict):
		return common.NewAppError("IDEMPOTENCY_CONFLICT", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrQuoteInProgress):
		return common.NewAppError("CONFLICT", err.Error(), http.StatusConflict, err)
	default:
		return common.NewAppError("INTERNAL", "failed to process quote", http.StatusInternalServerError, err)
	}
}
