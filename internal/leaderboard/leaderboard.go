package leaderboard

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/treasurehunt/server/internal/model"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank           int    `json:"rank"`
	Identity       string `json:"identity"`
	TotalScore     int    `json:"totalScore"`
	TreasuresFound int    `json:"treasuresFound"`
}

// Service ranks players by total score.
type Service struct {
	db *gorm.DB
}

// New creates a leaderboard service.
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Top returns up to limit players ordered by score descending. Ties break on
// player ID ascending so equal scores always rank in creation order and the
// board is deterministic across requests.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	var players []model.Player
	err := s.db.WithContext(ctx).
		Order("total_score DESC, id ASC").
		Limit(limit).
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	entries := make([]Entry, len(players))
	for i, p := range players {
		entries[i] = Entry{
			Rank:           i + 1,
			Identity:       p.Identity,
			TotalScore:     p.TotalScore,
			TreasuresFound: p.TreasuresFound,
		}
	}
	return entries, nil
}
