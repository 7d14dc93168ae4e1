package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/treasurehunt/server/internal/catalog"
	"github.com/treasurehunt/server/internal/dispatcher"
	"github.com/treasurehunt/server/internal/game"
)

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	Logger         *slog.Logger
	Game           *game.Service
	Catalog        *catalog.Service
	Dispatcher     *dispatcher.Dispatcher
	AdminKey       string
	RequestTimeout time.Duration
}

// NewRouter creates the API router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := NewHandlers(cfg.Game, cfg.Catalog, cfg.Dispatcher, logger)

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(Recovery(logger))
	api.Use(Logging(logger))
	api.Use(Timeout(cfg.RequestTimeout))
	api.Use(Identity())

	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Player routes
	api.HandleFunc("/treasures/nearby", h.Nearby).Methods(http.MethodGet)
	api.HandleFunc("/treasures/{id:[0-9]+}/discover", h.Discover).Methods(http.MethodPost)
	api.HandleFunc("/treasures", h.ListTreasures).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.Leaderboard).Methods(http.MethodGet)

	// Admin routes behind the shared key
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(AdminAuth(cfg.AdminKey))
	admin.HandleFunc("/treasures", h.AdminCreateTreasure).Methods(http.MethodPost)
	admin.HandleFunc("/treasures/{id:[0-9]+}/toggle", h.AdminToggleTreasure).Methods(http.MethodPost)
	admin.HandleFunc("/treasures/{id:[0-9]+}", h.AdminDeleteTreasure).Methods(http.MethodDelete)
	admin.HandleFunc("/stats", h.AdminStats).Methods(http.MethodGet)

	return r
}
