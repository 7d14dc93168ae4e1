package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/treasurehunt/server/internal/audit"
	"github.com/treasurehunt/server/internal/catalog"
	"github.com/treasurehunt/server/internal/dispatcher"
	"github.com/treasurehunt/server/internal/game"
	"github.com/treasurehunt/server/internal/model"
)

// Handlers serves the HTTP routes.
type Handlers struct {
	game    *game.Service
	catalog *catalog.Service
	events  *dispatcher.Dispatcher
	log     *slog.Logger
}

// NewHandlers creates the route handlers.
func NewHandlers(g *game.Service, c *catalog.Service, d *dispatcher.Dispatcher, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{game: g, catalog: c, events: d, log: log}
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Nearby handles GET /api/v1/treasures/nearby?lat=&lng=.
func (h *Handlers) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		WriteError(w, err)
		return
	}

	nearby, err := h.game.FindNearby(r.Context(), lat, lng)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, nearbyFromModel(nearby))
}

type discoverRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Discover handles POST /api/v1/treasures/{id}/discover.
func (h *Handlers) Discover(w http.ResponseWriter, r *http.Request) {
	treasureID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Request body must be JSON with latitude and longitude"))
		return
	}

	identity := MustGetIdentity(r.Context())
	result, err := h.game.ClaimDiscovery(r.Context(), identity, treasureID, req.Latitude, req.Longitude)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, discoveryFromModel(result))
}

// ListTreasures handles GET /api/v1/treasures.
func (h *Handlers) ListTreasures(w http.ResponseWriter, r *http.Request) {
	treasures, err := h.catalog.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, treasuresFromModel(treasures))
}

// Leaderboard handles GET /api/v1/leaderboard?limit=.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, NewInvalidRequestError("limit must be an integer"))
			return
		}
		limit = parsed
	}

	standings, err := h.game.Leaderboard(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, standingsFromModel(standings))
}

type createTreasureRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Points          int     `json:"points"`
	DiscoveryRadius float64 `json:"discovery_radius"`
	IsActive        *bool   `json:"is_active"`
}

// AdminCreateTreasure handles POST /api/v1/admin/treasures.
func (h *Handlers) AdminCreateTreasure(w http.ResponseWriter, r *http.Request) {
	var req createTreasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Request body must be JSON"))
		return
	}
	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.catalog.Create(r.Context(), model.Treasure{
		Name:            req.Name,
		Description:     req.Description,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Points:          req.Points,
		DiscoveryRadius: req.DiscoveryRadius,
		IsActive:        active,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	h.recordAdminAction(model.AdminAction{
		Actor:       "admin",
		Action:      model.ActionCreateTreasure,
		TreasureID:  &created.ID,
		Description: "created treasure " + created.Name,
		Details: audit.DetailsJSON(map[string]any{
			"points":          created.Points,
			"discoveryRadius": created.DiscoveryRadius,
			"isActive":        created.IsActive,
		}),
	})

	JSON(w, http.StatusCreated, treasureFromModel(created))
}

// AdminToggleTreasure handles POST /api/v1/admin/treasures/{id}/toggle.
func (h *Handlers) AdminToggleTreasure(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	current, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	updated, err := h.catalog.SetActive(r.Context(), id, !current.IsActive)
	if err != nil {
		WriteError(w, err)
		return
	}

	action := model.ActionDeactivateTreasure
	if updated.IsActive {
		action = model.ActionActivateTreasure
	}
	h.recordAdminAction(model.AdminAction{
		Actor:       "admin",
		Action:      action,
		TreasureID:  &updated.ID,
		Description: "toggled treasure " + updated.Name,
		Details:     audit.DetailsJSON(map[string]any{"isActive": updated.IsActive}),
	})

	JSON(w, http.StatusOK, treasureFromModel(updated))
}

// AdminDeleteTreasure handles DELETE /api/v1/admin/treasures/{id}.
func (h *Handlers) AdminDeleteTreasure(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	h.recordAdminAction(model.AdminAction{
		Actor:       "admin",
		Action:      model.ActionDeleteTreasure,
		TreasureID:  &id,
		Description: "deleted treasure",
	})

	NoContent(w)
}

// AdminStats handles GET /api/v1/admin/stats.
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.game.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// recordAdminAction hands the action to the audit sink via the dispatcher.
// Best-effort: a full audit queue never fails the admin request.
func (h *Handlers) recordAdminAction(action model.AdminAction) {
	if h.events == nil || !h.events.HasHandler(audit.EventAdminAction) {
		return
	}
	_, err := h.events.Dispatch(dispatcher.Event{
		Name:      audit.EventAdminAction,
		Payload:   action,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Debug("audit event dropped", "action", action.Action, "error", err)
	}
}

func parseCoordinates(rawLat, rawLng string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, NewInvalidRequestError("lat must be a number")
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return 0, 0, NewInvalidRequestError("lng must be a number")
	}
	return lat, lng, nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, NewInvalidRequestError("id must be a positive integer")
	}
	return uint(id), nil
}
