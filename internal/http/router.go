// Package httpapi assembles the registry's HTTP surface: the shared
// middleware chain, the authenticated and public route groups, and the
// operational endpoints.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vitae/internal/platform/metrics"
	"vitae/internal/platform/middleware"
	"vitae/pkg/platform/httputil"
)

// ProtectedRegistrar mounts routes that require an authenticated account.
type ProtectedRegistrar interface {
	RegisterProtected(chi.Router)
}

// PublicRegistrar mounts routes served to anyone.
type PublicRegistrar interface {
	RegisterPublic(chi.Router)
}

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config carries everything the router needs. Logger defaults to
// slog.Default; Metrics, Timeout, OpsKeyHash and Checks are optional.
type Config struct {
	Logger     *slog.Logger
	Validator  middleware.JWTValidator
	Metrics    *metrics.Metrics
	OpsKeyHash string
	Timeout    time.Duration
	Checks     map[string]HealthChecker
	Protected  []ProtectedRegistrar
	Public     []PublicRegistrar
}

// NewRouter builds the complete handler tree.
func NewRouter(cfg Config) (http.Handler, error) {
	if len(cfg.Protected) > 0 && cfg.Validator == nil {
		return nil, fmt.Errorf("token validator is required for protected routes")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.RequestTime,
	)

	// Probes stay outside the request log so they do not drown it.
	r.Get("/healthz", healthHandler(cfg.Checks))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ClientMetadata, middleware.Logger(logger))
		if cfg.Metrics != nil {
			r.Use(middleware.Latency(cfg.Metrics))
		}
		if cfg.Timeout > 0 {
			r.Use(middleware.Timeout(cfg.Timeout))
		}

		if len(cfg.Protected) > 0 {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Validator, logger))
				for _, reg := range cfg.Protected {
					reg.RegisterProtected(r)
				}
			})
		}

		for _, reg := range cfg.Public {
			reg.RegisterPublic(r)
		}
	})

	// Prometheus exposition, ops-key guarded when a hash is configured.
	if cfg.OpsKeyHash != "" {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOpsKey(cfg.OpsKeyHash, logger))
			r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		})
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r, nil
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"failed": name,
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
