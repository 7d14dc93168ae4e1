package leaderboard

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/treasurehunt/server/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return db
}

func seedPlayers(t *testing.T, db *gorm.DB, players ...model.Player) {
	t.Helper()
	for i := range players {
		require.NoError(t, db.Create(&players[i]).Error)
	}
}

func TestTop_OrdersByScoreDescending(t *testing.T) {
	db := newTestDB(t)
	seedPlayers(t, db,
		model.Player{Identity: "bronze", TotalScore: 100, TreasuresFound: 1},
		model.Player{Identity: "gold", TotalScore: 500, TreasuresFound: 5},
		model.Player{Identity: "silver", TotalScore: 300, TreasuresFound: 3},
	)

	entries, err := New(db).Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "gold", entries[0].Identity)
	assert.Equal(t, "silver", entries[1].Identity)
	assert.Equal(t, "bronze", entries[2].Identity)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestTop_TiesBreakOnCreationOrder(t *testing.T) {
	db := newTestDB(t)
	seedPlayers(t, db,
		model.Player{Identity: "early", TotalScore: 200},
		model.Player{Identity: "late", TotalScore: 200},
	)

	entries, err := New(db).Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "early", entries[0].Identity, "earlier player wins the tie")
	assert.Equal(t, "late", entries[1].Identity)
}

func TestTop_AppliesLimit(t *testing.T) {
	db := newTestDB(t)
	seedPlayers(t, db,
		model.Player{Identity: "a", TotalScore: 1},
		model.Player{Identity: "b", TotalScore: 2},
		model.Player{Identity: "c", TotalScore: 3},
	)

	entries, err := New(db).Top(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Identity)
	assert.Equal(t, "b", entries[1].Identity)
}

func TestTop_FewerPlayersThanLimit(t *testing.T) {
	db := newTestDB(t)
	seedPlayers(t, db, model.Player{Identity: "only", TotalScore: 50})

	entries, err := New(db).Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTop_EmptyBoard(t *testing.T) {
	db := newTestDB(t)

	entries, err := New(db).Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTop_NonPositiveLimit(t *testing.T) {
	db := newTestDB(t)
	seedPlayers(t, db, model.Player{Identity: "a", TotalScore: 1})

	entries, err := New(db).Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
