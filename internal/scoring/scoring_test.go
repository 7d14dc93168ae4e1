package scoring

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/treasurehunt/server/internal/cache"
	"github.com/treasurehunt/server/internal/model"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *cache.PlayerCache) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000;").Error)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))

	players := cache.NewPlayerCache()
	return New(db, players), db, players
}

func TestGetOrCreatePlayer_CreatesOnFirstContact(t *testing.T) {
	s, _, players := newTestService(t)
	ctx := context.Background()

	p, err := s.GetOrCreatePlayer(ctx, "Guest_a1b2c3d4")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Guest_a1b2c3d4", p.Identity)
	assert.Zero(t, p.TotalScore)

	// The identity is now cached
	id, ok := players.Get("Guest_a1b2c3d4")
	assert.True(t, ok)
	assert.Equal(t, p.ID, id)
}

func TestGetOrCreatePlayer_ReturnsExisting(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)
	second, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	count, err := s.CountPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreatePlayer_RecoversFromStaleCache(t *testing.T) {
	s, _, players := newTestService(t)
	ctx := context.Background()

	// Cache points at a row that does not exist
	players.Set("alice", 999)

	p, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, uint(999), p.ID)

	id, _ := players.Get("alice")
	assert.Equal(t, p.ID, id)
}

func TestGetOrCreatePlayer_EmptyIdentity(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.GetOrCreatePlayer(context.Background(), "")
	require.Error(t, err)
}

func TestGetOrCreatePlayer_Concurrent(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]uint, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p, err := s.GetOrCreatePlayer(ctx, "Guest_deadbeef")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			ids[n] = p.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "all callers must resolve to the same player")
	}

	count, err := s.CountPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAward_IncrementsTotals(t *testing.T) {
	s, db, _ := newTestService(t)
	ctx := context.Background()

	p, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)

	updated, err := s.Award(db, p.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, updated.TotalScore)
	assert.Equal(t, 1, updated.TreasuresFound)

	updated, err = s.Award(db, p.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, 350, updated.TotalScore)
	assert.Equal(t, 2, updated.TreasuresFound)
}

func TestAward_UnknownPlayer(t *testing.T) {
	s, db, _ := newTestService(t)

	_, err := s.Award(db, 999, 100)
	assert.ErrorIs(t, err, model.ErrPlayerNotFound)
}

func TestAward_ConcurrentNeverLosesUpdates(t *testing.T) {
	s, db, _ := newTestService(t)
	ctx := context.Background()

	p, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)

	const awards = 10
	var wg sync.WaitGroup
	for i := 0; i < awards; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Award(db, p.ID, 10); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := s.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, awards*10, final.TotalScore)
	assert.Equal(t, awards, final.TreasuresFound)
}

func TestGetPlayer_NotFound(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.GetPlayer(context.Background(), 999)
	assert.ErrorIs(t, err, model.ErrPlayerNotFound)
}

func TestGetPlayerByIdentity(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := s.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)

	p, err := s.GetPlayerByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)

	_, err = s.GetPlayerByIdentity(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrPlayerNotFound)
}
