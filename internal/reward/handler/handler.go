// Package handler exposes the reward program's administrative API. All
// routes require authentication; most additionally require the caller to be
// the program root, which the service enforces.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	reward "vitae/internal/reward/models"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
	"vitae/pkg/platform/httputil"
)

// Service is the reward program's administrative surface.
type Service interface {
	SetRoot(ctx context.Context, candidate id.AccountID) error
	Configure(ctx context.Context, enabled bool, interval, amount uint64) error
	Fund(ctx context.Context, amount uint64) error
	Shutdown(ctx context.Context) error
	Settings(ctx context.Context) (reward.Settings, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterProtected mounts the reward routes. The settings read lives here
// too: unauthenticated callers would only ever see the redacted view, so
// there is nothing to serve them.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Put("/v1/reward/root", h.handleSetRoot)
	r.Put("/v1/reward/config", h.handleConfigure)
	r.Post("/v1/reward/fund", h.handleFund)
	r.Post("/v1/reward/shutdown", h.handleShutdown)
	r.Get("/v1/reward/settings", h.handleSettings)
}

func (h *Handler) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[*SetRootRequest](w, r, h.logger)
	if !ok {
		return
	}

	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetRoot(ctx, account); err != nil {
		h.logError(ctx, "set root failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConfigure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[*ConfigureRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Configure(ctx, req.Enabled, req.Interval, req.Amount); err != nil {
		h.logError(ctx, "configure reward failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[*FundRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Fund(ctx, req.Amount); err != nil {
		h.logError(ctx, "fund reward failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Shutdown(ctx); err != nil {
		h.logError(ctx, "shutdown reward failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := h.service.Settings(ctx)
	if err != nil {
		h.logError(ctx, "read reward settings failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newSettingsResponse(settings))
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err)
}

// SettingsResponse is the reward program state as served over HTTP. Root is
// empty until the first SetRoot call, and in the redacted view.
type SettingsResponse struct {
	Root         string `json:"root"`
	RootSet      bool   `json:"root_set"`
	Enabled      bool   `json:"enabled"`
	Interval     uint64 `json:"interval"`
	Amount       uint64 `json:"amount"`
	Balance      uint64 `json:"balance"`
	TotalPaid    uint64 `json:"total_paid"`
	ClaimCounter uint64 `json:"claim_counter"`
}

func newSettingsResponse(s reward.Settings) SettingsResponse {
	resp := SettingsResponse{
		RootSet:      s.RootSet,
		Enabled:      s.Enabled,
		Interval:     s.Interval,
		Amount:       s.Amount,
		Balance:      s.Balance,
		TotalPaid:    s.TotalPaid,
		ClaimCounter: s.ClaimCounter,
	}
	if s.RootSet {
		resp.Root = s.Root.String()
	}
	return resp
}
