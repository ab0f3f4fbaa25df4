// Package api implements the HTTP layer for the receipt service. Handlers
// are methods on *Server. Each handler file is responsible for one resource
// group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/dispatch"
	"github.com/babyccino/donationreceipt-backend/internal/donation"
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	stripeinternal "github.com/babyccino/donationreceipt-backend/internal/stripe"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string

	// EmailWebhookSecret authenticates delivery-event posts from the email
	// provider's forwarder. Empty disables the check (development only).
	EmailWebhookSecret string

	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles all single-query reads. Injected directly — no repo wrapper.
	q db.Querier

	// dispatcher runs the full campaign precondition chain and create.
	dispatcher *dispatch.Dispatcher

	// qboClient covers the raw QBO calls handlers make directly: item and
	// company-info queries plus token refresh.
	qboClient *qbo.Client

	// donationService computes the donation set for the preview endpoint.
	donationService *donation.Service

	// stripe verifies webhook signatures.
	stripe stripeinternal.Client

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	q db.Querier,
	dispatcher *dispatch.Dispatcher,
	qboClient *qbo.Client,
	donationService *donation.Service,
	stripeClient stripeinternal.Client,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		q:               q,
		dispatcher:      dispatcher,
		qboClient:       qboClient,
		donationService: donationService,
		stripe:          stripeClient,
		cfg:             cfg,
		logger:          logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {

		// Session-scoped routes — require a valid session token.
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/items", s.handleGetItems)
			r.Get("/donations", s.handleGetDonations)
			r.Post("/email", s.handleSendCampaign)
			r.Get("/campaign", s.handleListCampaigns)
			r.Get("/campaign/{campaignID}", s.handleGetCampaign)
		})

		// Webhooks — no session (authenticated inside each handler).
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
		r.Post("/webhooks/email", s.handleEmailWebhook)
	})

	return r
}
