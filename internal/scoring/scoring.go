package scoring

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/treasurehunt/server/internal/cache"
	"github.com/treasurehunt/server/internal/model"
)

// Service owns player records and score arithmetic. Scores only ever move
// through Award, inside the same transaction that appends the discovery.
type Service struct {
	db      *gorm.DB
	players *cache.PlayerCache
}

// New creates a scoring service.
func New(db *gorm.DB, players *cache.PlayerCache) *Service {
	return &Service{db: db, players: players}
}

// GetOrCreatePlayer returns the player for the given identity, creating the
// row on first contact. Concurrent first contacts for the same identity are
// settled by the unique index: the losing insert is a no-op and refetches.
func (s *Service) GetOrCreatePlayer(ctx context.Context, identity string) (model.Player, error) {
	if identity == "" {
		return model.Player{}, fmt.Errorf("player identity is required")
	}

	if id, ok := s.players.Get(identity); ok {
		var p model.Player
		if err := s.db.WithContext(ctx).First(&p, id).Error; err == nil {
			return p, nil
		}
		s.players.Delete(identity)
	}

	p := model.Player{Identity: identity}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoNothing: true,
	}).Create(&p)
	if res.Error != nil {
		return model.Player{}, fmt.Errorf("failed to create player: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&p).Error
		if err != nil {
			return model.Player{}, fmt.Errorf("failed to fetch player: %w", err)
		}
	}

	s.players.Set(identity, p.ID)
	return p, nil
}

// GetPlayer returns a player by ID.
func (s *Service) GetPlayer(ctx context.Context, id uint) (model.Player, error) {
	var p model.Player
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Player{}, model.ErrPlayerNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// GetPlayerByIdentity returns a player by identity.
func (s *Service) GetPlayerByIdentity(ctx context.Context, identity string) (model.Player, error) {
	var p model.Player
	err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Player{}, model.ErrPlayerNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// Award adds points and one found treasure to the player inside the caller's
// transaction, as relative SQL increments so concurrent awards never lose
// updates. Returns the player's updated totals.
func (s *Service) Award(tx *gorm.DB, playerID uint, points int) (model.Player, error) {
	res := tx.Model(&model.Player{}).Where("id = ?", playerID).Updates(map[string]any{
		"total_score":     gorm.Expr("total_score + ?", points),
		"treasures_found": gorm.Expr("treasures_found + ?", 1),
	})
	if res.Error != nil {
		return model.Player{}, fmt.Errorf("failed to award points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Player{}, model.ErrPlayerNotFound
	}

	var p model.Player
	if err := tx.First(&p, playerID).Error; err != nil {
		return model.Player{}, fmt.Errorf("failed to fetch updated player: %w", err)
	}
	return p, nil
}

// CountPlayers returns the total number of players.
func (s *Service) CountPlayers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Player{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}
