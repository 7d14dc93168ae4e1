package game

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/treasurehunt/server/internal/cache"
	"github.com/treasurehunt/server/internal/catalog"
	"github.com/treasurehunt/server/internal/geo"
	"github.com/treasurehunt/server/internal/leaderboard"
	"github.com/treasurehunt/server/internal/ledger"
	"github.com/treasurehunt/server/internal/model"
	"github.com/treasurehunt/server/internal/scoring"
)

func testConfig() model.GameConfig {
	return model.GameConfig{
		GameName:               "Test Hunt",
		IsGameActive:           true,
		DefaultTreasurePoints:  100,
		DefaultDiscoveryRadius: 50.0,
		LeaderboardLimit:       10,
	}
}

func newTestService(t *testing.T, cfg model.GameConfig) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000;").Error)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))

	svc := New(Dependencies{
		DB:          db,
		Catalog:     catalog.New(db, cfg),
		Ledger:      ledger.New(db),
		Scoring:     scoring.New(db, cache.NewPlayerCache()),
		Leaderboard: leaderboard.New(db),
		Config:      cfg,
	})
	return svc, db
}

func createTreasure(t *testing.T, svc *Service, tr model.Treasure) model.Treasure {
	t.Helper()
	created, err := svc.catalog.Create(context.Background(), tr)
	require.NoError(t, err)
	return created
}

func TestFindNearby_WithinRadius(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	// ~33m north of the scan position, inside the 50m radius
	createTreasure(t, svc, model.Treasure{
		Name: "Close", Latitude: 40.0003, Longitude: -74.0, IsActive: true,
	})
	// ~111m north, outside
	createTreasure(t, svc, model.Treasure{
		Name: "Far", Latitude: 40.0010, Longitude: -74.0, IsActive: true,
	})

	nearby, err := svc.FindNearby(ctx, 40.0, -74.0)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "Close", nearby[0].Name)
	assert.InDelta(t, 33.4, nearby[0].DisplayDistance, 1.0)
}

func TestFindNearby_BoundaryIsInclusive(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	// Radius set to the exact computed distance: on-the-line counts as inside
	distance := geo.DistanceMeters(40.0, -74.0, 40.0003, -74.0)
	createTreasure(t, svc, model.Treasure{
		Name: "Edge", Latitude: 40.0003, Longitude: -74.0,
		DiscoveryRadius: distance, IsActive: true,
	})

	nearby, err := svc.FindNearby(ctx, 40.0, -74.0)
	require.NoError(t, err)
	assert.Len(t, nearby, 1)
}

func TestFindNearby_ExcludesInactive(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	createTreasure(t, svc, model.Treasure{
		Name: "Dormant", Latitude: 40.0, Longitude: -74.0, IsActive: false,
	})

	nearby, err := svc.FindNearby(ctx, 40.0, -74.0)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestFindNearby_OrderedByID(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	createTreasure(t, svc, model.Treasure{Name: "First", Latitude: 40.0, Longitude: -74.0, IsActive: true})
	createTreasure(t, svc, model.Treasure{Name: "Second", Latitude: 40.0001, Longitude: -74.0, IsActive: true})

	nearby, err := svc.FindNearby(ctx, 40.0, -74.0)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, "First", nearby[0].Name)
	assert.Equal(t, "Second", nearby[1].Name)
}

func TestFindNearby_InvalidCoordinates(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	_, err := svc.FindNearby(context.Background(), 91.0, 0.0)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestClaimDiscovery_Succeeds(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Golden Idol", Latitude: 40.0003, Longitude: -74.0, Points: 250, IsActive: true,
	})

	result, err := svc.ClaimDiscovery(ctx, "Guest_a1b2c3d4", treasure.ID, 40.0, -74.0)
	require.NoError(t, err)

	assert.Equal(t, treasure.ID, result.TreasureID)
	assert.Equal(t, "Golden Idol", result.TreasureName)
	assert.Equal(t, 250, result.PointsAwarded)
	assert.Equal(t, 250, result.TotalScore)
	assert.Equal(t, 1, result.TreasuresFound)
	assert.False(t, result.DiscoveredAt.IsZero())

	var discovery model.Discovery
	require.NoError(t, db.First(&discovery).Error)
	assert.Equal(t, 40.0, discovery.ReportedLatitude)
	assert.Equal(t, -74.0, discovery.ReportedLongitude)
}

func TestClaimDiscovery_TooFar(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Distant", Latitude: 40.0010, Longitude: -74.0, IsActive: true,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	assert.ErrorIs(t, err, model.ErrTooFar)

	// Nothing recorded
	var count int64
	require.NoError(t, db.Model(&model.Discovery{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClaimDiscovery_BoundaryIsInclusive(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	distance := geo.DistanceMeters(40.0, -74.0, 40.0003, -74.0)
	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Edge", Latitude: 40.0003, Longitude: -74.0,
		DiscoveryRadius: distance, IsActive: true,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	assert.NoError(t, err)
}

func TestClaimDiscovery_Duplicate(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Once Only", Latitude: 40.0, Longitude: -74.0, Points: 100, IsActive: true,
	})

	first, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	require.NoError(t, err)

	_, err = svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	assert.ErrorIs(t, err, model.ErrAlreadyDiscovered)

	// Score unchanged by the failed duplicate
	p, err := svc.scoring.GetPlayerByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.TotalScore, p.TotalScore)
	assert.Equal(t, 1, p.TreasuresFound)
}

func TestClaimDiscovery_SameTreasureDifferentPlayers(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Shared", Latitude: 40.0, Longitude: -74.0, Points: 100, IsActive: true,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	require.NoError(t, err)
	_, err = svc.ClaimDiscovery(ctx, "bob", treasure.ID, 40.0, -74.0)
	require.NoError(t, err, "uniqueness is per player, not per treasure")
}

func TestClaimDiscovery_ConcurrentDuplicates(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Contested", Latitude: 40.0, Longitude: -74.0, Points: 100, IsActive: true,
	})

	const claims = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0

	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrAlreadyDiscovered):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one concurrent claim must win")
	assert.Equal(t, claims-1, duplicates)

	p, err := svc.scoring.GetPlayerByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 100, p.TotalScore, "points awarded exactly once")
	assert.Equal(t, 1, p.TreasuresFound)

	var count int64
	require.NoError(t, db.Model(&model.Discovery{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimDiscovery_NotFound(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	_, err := svc.ClaimDiscovery(context.Background(), "alice", 999, 40.0, -74.0)
	assert.ErrorIs(t, err, model.ErrTreasureNotFound)
}

func TestClaimDiscovery_InactiveTreasureLooksMissing(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Retired", Latitude: 40.0, Longitude: -74.0, IsActive: false,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", treasure.ID, 40.0, -74.0)
	assert.ErrorIs(t, err, model.ErrTreasureNotFound)
}

func TestClaimDiscovery_GameInactive(t *testing.T) {
	cfg := testConfig()
	cfg.IsGameActive = false
	svc, _ := newTestService(t, cfg)

	treasure := createTreasure(t, svc, model.Treasure{
		Name: "Paused", Latitude: 40.0, Longitude: -74.0, IsActive: true,
	})

	_, err := svc.ClaimDiscovery(context.Background(), "alice", treasure.ID, 40.0, -74.0)
	assert.ErrorIs(t, err, model.ErrGameInactive)
}

func TestClaimDiscovery_InvalidCoordinates(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	_, err := svc.ClaimDiscovery(context.Background(), "alice", 1, 0.0, 181.0)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestLeaderboard_ReflectsClaims(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	big := createTreasure(t, svc, model.Treasure{
		Name: "Big", Latitude: 40.0, Longitude: -74.0, Points: 500, IsActive: true,
	})
	small := createTreasure(t, svc, model.Treasure{
		Name: "Small", Latitude: 40.0001, Longitude: -74.0, Points: 100, IsActive: true,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", small.ID, 40.0, -74.0)
	require.NoError(t, err)
	_, err = svc.ClaimDiscovery(ctx, "bob", big.ID, 40.0, -74.0)
	require.NoError(t, err)
	_, err = svc.ClaimDiscovery(ctx, "bob", small.ID, 40.0, -74.0)
	require.NoError(t, err)

	entries, err := svc.Leaderboard(ctx, 0) // falls back to configured limit
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "bob", entries[0].Identity)
	assert.Equal(t, 600, entries[0].TotalScore)
	assert.Equal(t, 2, entries[0].TreasuresFound)
	assert.Equal(t, "alice", entries[1].Identity)
	assert.Equal(t, 100, entries[1].TotalScore)
}

func TestScoreConsistency(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	points := []int{100, 250, 400}
	var treasures []model.Treasure
	for i, p := range points {
		treasures = append(treasures, createTreasure(t, svc, model.Treasure{
			Name: string(rune('A' + i)), Latitude: 40.0, Longitude: -74.0, Points: p, IsActive: true,
		}))
	}

	for _, identity := range []string{"alice", "bob"} {
		for _, tr := range treasures {
			_, err := svc.ClaimDiscovery(ctx, identity, tr.ID, 40.0, -74.0)
			require.NoError(t, err)
		}
	}

	// Sum of player scores equals sum of points across recorded discoveries
	var totalScore int64
	require.NoError(t, db.Model(&model.Player{}).Select("COALESCE(SUM(total_score), 0)").Scan(&totalScore).Error)
	assert.Equal(t, int64(2*(100+250+400)), totalScore)

	var discoveries int64
	require.NoError(t, db.Model(&model.Discovery{}).Count(&discoveries).Error)
	assert.Equal(t, int64(6), discoveries)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	active := createTreasure(t, svc, model.Treasure{
		Name: "Active", Latitude: 40.0, Longitude: -74.0, Points: 100, IsActive: true,
	})
	createTreasure(t, svc, model.Treasure{
		Name: "Inactive", Latitude: 41.0, Longitude: -74.0, IsActive: false,
	})

	_, err := svc.ClaimDiscovery(ctx, "alice", active.ID, 40.0, -74.0)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Test Hunt", stats.GameName)
	assert.True(t, stats.IsGameActive)
	assert.Equal(t, int64(2), stats.TotalTreasures)
	assert.Equal(t, int64(1), stats.ActiveTreasures)
	assert.Equal(t, int64(1), stats.TotalPlayers)
	assert.Equal(t, int64(1), stats.TotalDiscoveries)
	assert.Equal(t, int64(1), stats.DiscoveriesLast24h)
}
