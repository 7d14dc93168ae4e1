package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/treasurehunt/server/internal/model"
)

// Service owns the discovery ledger, the append-only record of which player
// found which treasure. The composite unique index on (player_id, treasure_id)
// arbitrates concurrent duplicate claims at the storage layer.
type Service struct {
	db *gorm.DB
}

// New creates a ledger service.
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// TryInsert attempts to append a discovery inside the caller's transaction.
// Returns false when the (player, treasure) pair is already recorded: the
// insert is a no-op via ON CONFLICT DO NOTHING, so exactly one of any number
// of concurrent claims for the same pair observes true.
func (s *Service) TryInsert(tx *gorm.DB, d *model.Discovery) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "treasure_id"}},
		DoNothing: true,
	}).Create(d)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record discovery: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasDiscovered reports whether the player already holds a discovery for the treasure.
func (s *Service) HasDiscovered(ctx context.Context, playerID, treasureID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Discovery{}).
		Where("player_id = ? AND treasure_id = ?", playerID, treasureID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check discovery: %w", err)
	}
	return count > 0, nil
}

// ListForPlayer returns a player's discoveries, newest first.
func (s *Service) ListForPlayer(ctx context.Context, playerID uint) ([]model.Discovery, error) {
	var discoveries []model.Discovery
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("discovered_at DESC, id DESC").
		Find(&discoveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list discoveries: %w", err)
	}
	return discoveries, nil
}

// Count returns the total number of discoveries ever recorded.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Discovery{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count discoveries: %w", err)
	}
	return count, nil
}

// CountSince returns the number of discoveries recorded at or after the given time.
func (s *Service) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Discovery{}).
		Where("discovered_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent discoveries: %w", err)
	}
	return count, nil
}

// CountForTreasure returns how many players have discovered the treasure.
func (s *Service) CountForTreasure(ctx context.Context, treasureID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Discovery{}).
		Where("treasure_id = ?", treasureID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count treasure discoveries: %w", err)
	}
	return count, nil
}
