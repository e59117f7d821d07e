package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lifelink/lifelink/internal/bank"
	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/observability"
	"github.com/lifelink/lifelink/internal/realtime"
	"github.com/lifelink/lifelink/internal/request"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Auth             identity.Middleware
	AuthHandler      *identity.Handler
	BankHandler      *bank.Handler
	InventoryHandler *inventory.Handler
	RequestHandler   *request.Handler
	WSHandler        *realtime.WSHandler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the API and the realtime feed.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	cfg := MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.Auth,
		Metrics: params.Metrics,
	}
	for _, mw := range BaseMiddleware(cfg) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The websocket endpoint sits outside the API group so Timeout and
	// Compress never touch the hijacked connection.
	r.Method(http.MethodGet, "/ws", params.WSHandler)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range APIMiddleware(cfg) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		params.AuthHandler.MountRoutes(r)
		params.BankHandler.MountRoutes(r)
		params.InventoryHandler.MountRoutes(r)
		params.RequestHandler.MountRoutes(r)
	})

	return r
}
