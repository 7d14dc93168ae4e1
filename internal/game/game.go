package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/treasurehunt/server/internal/catalog"
	"github.com/treasurehunt/server/internal/dispatcher"
	"github.com/treasurehunt/server/internal/geo"
	"github.com/treasurehunt/server/internal/leaderboard"
	"github.com/treasurehunt/server/internal/ledger"
	"github.com/treasurehunt/server/internal/model"
	"github.com/treasurehunt/server/internal/scoring"
)

// Event names dispatched by the engine for observers (metrics, audit).
const (
	EventDiscovered = "treasure.discovered"
	EventScan       = "treasure.scan"
)

// NearbyTreasure is one proximity scan result. Distance carries full float64
// precision for callers that compute with it; DisplayDistance is rounded to
// two decimals for presentation.
type NearbyTreasure struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Points          int     `json:"points"`
	DiscoveryRadius float64 `json:"discoveryRadius"`
	Distance        float64 `json:"-"`
	DisplayDistance float64 `json:"distance"`
}

// ClaimResult is the outcome of a successful discovery claim.
type ClaimResult struct {
	TreasureID     uint      `json:"treasureId"`
	TreasureName   string    `json:"treasureName"`
	PointsAwarded  int       `json:"pointsAwarded"`
	TotalScore     int       `json:"totalScore"`
	TreasuresFound int       `json:"treasuresFound"`
	Distance       float64   `json:"distance"`
	DiscoveredAt   time.Time `json:"discoveredAt"`
}

// Stats is the aggregate game state snapshot served to admins.
type Stats struct {
	GameName           string `json:"gameName"`
	IsGameActive       bool   `json:"isGameActive"`
	TotalTreasures     int64  `json:"totalTreasures"`
	ActiveTreasures    int64  `json:"activeTreasures"`
	TotalPlayers       int64  `json:"totalPlayers"`
	TotalDiscoveries   int64  `json:"totalDiscoveries"`
	DiscoveriesLast24h int64  `json:"discoveriesLast24h"`
}

// Dependencies carries everything a Service needs.
type Dependencies struct {
	DB          *gorm.DB
	Catalog     *catalog.Service
	Ledger      *ledger.Service
	Scoring     *scoring.Service
	Leaderboard *leaderboard.Service
	Config      model.GameConfig
	Dispatcher  *dispatcher.Dispatcher
	Logger      *slog.Logger
}

// Service is the game engine: proximity scans, discovery claims, rankings
// and stats. It orchestrates the storage services and owns the transaction
// that couples a ledger append to its score update.
type Service struct {
	db      *gorm.DB
	catalog *catalog.Service
	ledger  *ledger.Service
	scoring *scoring.Service
	board   *leaderboard.Service
	config  model.GameConfig
	events  *dispatcher.Dispatcher
	log     *slog.Logger
}

// New creates the game service.
func New(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:      deps.DB,
		catalog: deps.Catalog,
		ledger:  deps.Ledger,
		scoring: deps.Scoring,
		board:   deps.Leaderboard,
		config:  deps.Config,
		events:  deps.Dispatcher,
		log:     log,
	}
}

// Config returns the game configuration the service was started with.
func (s *Service) Config() model.GameConfig {
	return s.config
}

// FindNearby returns all active treasures whose discovery radius contains the
// given position, ordered by treasure ID. The scan evaluates one catalog
// snapshot, so an activation toggled mid-request cannot yield a mixed view.
// A treasure exactly on its radius boundary is included.
func (s *Service) FindNearby(ctx context.Context, lat, lng float64) ([]NearbyTreasure, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	treasures, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, mapTimeout(err)
	}

	nearby := make([]NearbyTreasure, 0)
	for _, t := range treasures {
		distance := geo.DistanceMeters(lat, lng, t.Latitude, t.Longitude)
		if distance > t.DiscoveryRadius {
			continue
		}
		nearby = append(nearby, NearbyTreasure{
			ID:              t.ID,
			Name:            t.Name,
			Description:     t.Description,
			Latitude:        t.Latitude,
			Longitude:       t.Longitude,
			Points:          t.Points,
			DiscoveryRadius: t.DiscoveryRadius,
			Distance:        distance,
			DisplayDistance: math.Round(distance*100) / 100,
		})
	}

	s.dispatch(EventScan, len(nearby))
	return nearby, nil
}

// ClaimDiscovery records that the identified player found the treasure,
// awarding its points atomically with the ledger append. Exactly one of any
// number of concurrent claims for the same (player, treasure) pair succeeds;
// the rest observe ErrAlreadyDiscovered and change nothing.
func (s *Service) ClaimDiscovery(ctx context.Context, identity string, treasureID uint, lat, lng float64) (ClaimResult, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return ClaimResult{}, err
	}
	if !s.config.IsGameActive {
		return ClaimResult{}, model.ErrGameInactive
	}

	treasure, err := s.catalog.GetActive(ctx, treasureID)
	if err != nil {
		return ClaimResult{}, mapTimeout(err)
	}

	distance := geo.DistanceMeters(lat, lng, treasure.Latitude, treasure.Longitude)
	if distance > treasure.DiscoveryRadius {
		return ClaimResult{}, fmt.Errorf("%w: %.2fm away, radius %.2fm",
			model.ErrTooFar, distance, treasure.DiscoveryRadius)
	}

	player, err := s.scoring.GetOrCreatePlayer(ctx, identity)
	if err != nil {
		return ClaimResult{}, mapTimeout(err)
	}

	now := time.Now().UTC()
	var result ClaimResult

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.ledger.TryInsert(tx, &model.Discovery{
			PlayerID:          player.ID,
			TreasureID:        treasure.ID,
			DiscoveredAt:      now,
			ReportedLatitude:  lat,
			ReportedLongitude: lng,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return model.ErrAlreadyDiscovered
		}

		updated, err := s.scoring.Award(tx, player.ID, treasure.Points)
		if err != nil {
			return err
		}

		result = ClaimResult{
			TreasureID:     treasure.ID,
			TreasureName:   treasure.Name,
			PointsAwarded:  treasure.Points,
			TotalScore:     updated.TotalScore,
			TreasuresFound: updated.TreasuresFound,
			Distance:       math.Round(distance*100) / 100,
			DiscoveredAt:   now,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyDiscovered) {
			return ClaimResult{}, model.ErrAlreadyDiscovered
		}
		return ClaimResult{}, mapTimeout(err)
	}

	s.log.Info("treasure discovered",
		"identity", identity,
		"treasure", treasure.Name,
		"points", treasure.Points,
		"totalScore", result.TotalScore,
	)
	s.dispatch(EventDiscovered, result)

	return result, nil
}

// Leaderboard returns the top players. A non-positive limit falls back to
// the configured board size.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	if limit <= 0 {
		limit = s.config.LeaderboardLimit
	}
	entries, err := s.board.Top(ctx, limit)
	if err != nil {
		return nil, mapTimeout(err)
	}
	return entries, nil
}

// Stats returns the aggregate game snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		GameName:     s.config.GameName,
		IsGameActive: s.config.IsGameActive,
	}

	var err error
	if stats.TotalTreasures, err = s.catalog.Count(ctx, false); err != nil {
		return Stats{}, mapTimeout(err)
	}
	if stats.ActiveTreasures, err = s.catalog.Count(ctx, true); err != nil {
		return Stats{}, mapTimeout(err)
	}
	if stats.TotalPlayers, err = s.scoring.CountPlayers(ctx); err != nil {
		return Stats{}, mapTimeout(err)
	}
	if stats.TotalDiscoveries, err = s.ledger.Count(ctx); err != nil {
		return Stats{}, mapTimeout(err)
	}
	since := time.Now().UTC().Add(-24 * time.Hour)
	if stats.DiscoveriesLast24h, err = s.ledger.CountSince(ctx, since); err != nil {
		return Stats{}, mapTimeout(err)
	}

	return stats, nil
}

// dispatch emits an event when a dispatcher is wired and has a handler.
// Observers are best-effort: a full queue never fails a claim.
func (s *Service) dispatch(name string, payload any) {
	if s.events == nil || !s.events.HasHandler(name) {
		return
	}
	if _, err := s.events.Dispatch(dispatcher.Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.log.Debug("event dropped", "event", name, "error", err)
	}
}

// mapTimeout converts context deadline expiry into the engine's timeout error
// so transport layers can answer 504 instead of a generic storage failure.
func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrTimeout
	}
	return err
}
