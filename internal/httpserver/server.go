// Package httpserver exposes the earnings core over HTTP: promo admin,
// order lifecycle, rider earnings, payouts and enforcement actions.
package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/auth"
	"github.com/ninewheels/server/internal/blob"
	"github.com/ninewheels/server/internal/config"
	"github.com/ninewheels/server/internal/enforcement"
	"github.com/ninewheels/server/internal/goldstatus"
	"github.com/ninewheels/server/internal/logger"
	"github.com/ninewheels/server/internal/metrics"
	"github.com/ninewheels/server/internal/orders"
	"github.com/ninewheels/server/internal/payouts"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/referral"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/users"
	"github.com/ninewheels/server/internal/wallet"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Config     *config.Config
	Store      storage.Store
	Users      *users.Service
	Orders     *orders.Service
	Wallet     *wallet.Ledger
	Promos     *promos.Service
	Referral   *referral.Engine
	Gold       *goldstatus.Engine
	Payouts    *payouts.Aggregator
	Actions    *enforcement.Actions
	Proofs     *blob.FileStore
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Server wraps the HTTP listener.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New wraps an already configured handler in an HTTP server using the
// configured listener timeouts.
func New(cfg *config.Config, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      handler,
		},
		log: log.With().Str("component", "httpserver").Logger(),
	}
}

// ConfigureRouter attaches all routes to an existing router.
func ConfigureRouter(router chi.Router, deps Deps) {
	cfg := deps.Config
	h := handlers{Deps: deps}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(auth.Middleware)
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
	}
	if cfg.RateLimit.Enabled {
		router.Use(httprate.LimitByIP(cfg.RateLimit.Limit, cfg.RateLimit.Window.Duration))
	}

	// Lightweight endpoints outside the business timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", h.health)
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	// Payment proof images.
	if deps.Proofs != nil {
		fileServer := http.StripPrefix(blob.PublicPrefix, http.FileServer(http.Dir(deps.Proofs.Dir())))
		router.Get(blob.PublicPrefix+"*", fileServer.ServeHTTP)
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))

		// Registration is unauthenticated.
		r.Post("/users", h.registerUser)

		// Authenticated user surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(storage.RoleCustomer, storage.RoleRider))
			r.Get("/users/me", h.currentUser)
			r.Post("/referral/use", h.useReferralCode)
			r.Get("/referral/stats", h.referralStats)
			r.Get("/wallet", h.walletBalance)

			r.Post("/orders", h.createOrder)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}/cancel", h.cancelOrder)
		})

		// Rider-only surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(storage.RoleRider))
			r.Patch("/orders/{id}/accept", h.acceptOrder)
			r.Patch("/orders/{id}/reject", h.rejectOrder)
			r.Patch("/orders/{id}/pickup", h.pickupOrder)
			r.Patch("/orders/{id}/start", h.startDelivery)
			r.Patch("/orders/{id}/deliver", h.deliverOrder)

			r.Put("/rider/presence", h.setPresence)
			r.Get("/rider/earnings", h.riderEarnings)
			r.Get("/rider/gold-status", h.riderGoldStatus)
		})

		// Payouts: riders see their own, admins filter.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(storage.RoleRider, storage.RoleAdmin))
			r.Get("/payouts", h.listPayouts)
			r.Get("/payouts/{id}", h.getPayout)
			r.Patch("/payouts/{id}/mark-paid", h.markPayoutPaid)
		})

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.AdminKey(cfg.AdminAuth.Keys))
			r.Get("/admin/promos", h.getPromos)
			r.Put("/admin/promos/{section}", h.updatePromoSection)
			r.Put("/admin/promos/toggle-all", h.togglePromos)

			r.Post("/payouts/generate", h.generatePayouts)

			r.Patch("/payouts/admin/riders/{id}/unblock", h.unblockRider)
			r.Patch("/payouts/admin/riders/{id}/deactivate", h.deactivateRider)
			r.Patch("/payouts/admin/riders/{id}/reactivate", h.reactivateRider)

			r.Post("/admin/wallets/{id}/adjust", h.adjustWallet)
		})
	})
}

// Start begins serving; it returns when the listener stops.
func (s *Server) Start() error {
	s.log.Info().Str("address", s.httpServer.Addr).Msg("http server starting")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// adminMetricsAuth optionally protects /metrics with a static key.
func adminMetricsAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(auth.HeaderAdminKey) != key {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
