// Package handler is the HTTP face of the claim registry. Handlers decode,
// validate, delegate, and translate; registry semantics live below.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	claims "vitae/internal/claims/models"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
	"vitae/pkg/platform/httputil"
)

// Service is the mutating side of the registry.
type Service interface {
	Submit(ctx context.Context, category claims.Category, content, link []byte) (claims.Claim, error)
	SubmitIntellectualProperty(ctx context.Context, content, link []byte, fp id.Fingerprint) (claims.Claim, error)
	Endorse(ctx context.Context, fp id.Fingerprint) (bool, error)
	SetVisibility(ctx context.Context, fp id.Fingerprint, visible bool) error
}

// Queries is the read side.
type Queries interface {
	FullDetails(ctx context.Context, fp id.Fingerprint) (claims.Claim, error)
	Endorsers(ctx context.Context, fp id.Fingerprint) ([]id.AccountID, error)
	Resume(ctx context.Context, account id.AccountID) ([]claims.Claim, error)
	MatchingClaims(ctx context.Context, query []byte) ([]claims.Claim, error)
	AccountActivity(ctx context.Context, account id.AccountID) (claims.AccountActivity, error)
}

// Handler serves the claim routes.
type Handler struct {
	service Service
	queries Queries
	logger  *slog.Logger
}

func New(service Service, queries Queries, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		queries: queries,
		logger:  logger,
	}
}

// RegisterProtected mounts the mutating routes. The router applies
// RequireAuth to this group.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/v1/claims/intellectual-property", h.handleSubmitIntellectualProperty)
	r.Post("/v1/claims/{category}", h.handleSubmitClaim)
	r.Post("/v1/claims/{fingerprint}/endorsements", h.handleEndorse)
	r.Put("/v1/claims/{fingerprint}/visibility", h.handleSetVisibility)
}

// RegisterPublic mounts the query routes. Reads are unauthenticated; the
// registry is a public record.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/v1/claims/search", h.handleSearch)
	r.Get("/v1/claims/{fingerprint}", h.handleFullDetails)
	r.Get("/v1/claims/{fingerprint}/endorsers", h.handleEndorsers)
	r.Get("/v1/accounts/{account}/resume", h.handleResume)
	r.Get("/v1/accounts/{account}/activity", h.handleActivity)
}

func (h *Handler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	category, err := claims.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[*SubmitClaimRequest](w, r, h.logger)
	if !ok {
		return
	}

	claim, err := h.service.Submit(ctx, category, []byte(req.Content), []byte(req.Link))
	if err != nil {
		h.logError(ctx, "submit claim failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newClaimResponse(claim))
}

func (h *Handler) handleSubmitIntellectualProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[*SubmitIntellectualPropertyRequest](w, r, h.logger)
	if !ok {
		return
	}

	fp, err := id.ParseFingerprint(req.Fingerprint)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.service.SubmitIntellectualProperty(ctx, []byte(req.Content), []byte(req.Link), fp)
	if err != nil {
		h.logError(ctx, "submit intellectual property failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newClaimResponse(claim))
}

func (h *Handler) handleEndorse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fp, err := fingerprintParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The registry acknowledges endorsements at capacity without recording
	// them, so the response shape is the same either way.
	if _, err := h.service.Endorse(ctx, fp); err != nil {
		h.logError(ctx, "endorse failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fp, err := fingerprintParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[*SetVisibilityRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetVisibility(ctx, fp, *req.Visible); err != nil {
		h.logError(ctx, "set visibility failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFullDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fp, err := fingerprintParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.queries.FullDetails(ctx, fp)
	if err != nil {
		h.logError(ctx, "full details failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newClaimResponse(claim))
}

func (h *Handler) handleEndorsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fp, err := fingerprintParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	endorsers, err := h.queries.Endorsers(ctx, fp)
	if err != nil {
		h.logError(ctx, "endorsers failed", err)
		httputil.WriteError(w, err)
		return
	}

	resp := EndorsersResponse{Endorsers: make([]string, 0, len(endorsers))}
	for _, e := range endorsers {
		resp.Endorsers = append(resp.Endorsers, e.String())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	matches, err := h.queries.MatchingClaims(ctx, []byte(query))
	if err != nil {
		h.logError(ctx, "search failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newClaimListResponse(matches))
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := accountParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resume, err := h.queries.Resume(ctx, account)
	if err != nil {
		h.logError(ctx, "resume failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newClaimListResponse(resume))
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := accountParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	activity, err := h.queries.AccountActivity(ctx, account)
	if err != nil {
		h.logError(ctx, "account activity failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newActivityResponse(activity))
}

// logError logs at a severity matching the error class: client mistakes
// are warnings, everything else is an error.
func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err)
}

func fingerprintParam(r *http.Request) (id.Fingerprint, error) {
	return id.ParseFingerprint(chi.URLParam(r, "fingerprint"))
}

func accountParam(r *http.Request) (id.AccountID, error) {
	return id.ParseAccountID(chi.URLParam(r, "account"))
}
