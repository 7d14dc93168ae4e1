package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/treasurehunt/server/internal/geo"
	"github.com/treasurehunt/server/internal/model"
)

// Service manages the treasure catalog. Reads power proximity scans and
// claims, writes come from the admin surface.
type Service struct {
	db       *gorm.DB
	defaults model.GameConfig
}

// New creates a catalog service. defaults supplies the point value and
// discovery radius applied to treasures created without explicit ones.
func New(db *gorm.DB, defaults model.GameConfig) *Service {
	return &Service{db: db, defaults: defaults}
}

// Create validates and stores a new treasure, filling in defaults for
// points and radius when the caller leaves them unset.
func (s *Service) Create(ctx context.Context, t model.Treasure) (model.Treasure, error) {
	if t.Name == "" {
		return model.Treasure{}, fmt.Errorf("treasure name is required")
	}

	location, err := geo.Point3857FromWGS84(t.Latitude, t.Longitude)
	if err != nil {
		return model.Treasure{}, err
	}
	t.Location = location

	if t.Points <= 0 {
		t.Points = s.defaults.DefaultTreasurePoints
	}
	if t.DiscoveryRadius <= 0 {
		t.DiscoveryRadius = s.defaults.DefaultDiscoveryRadius
	}

	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.Treasure{}, fmt.Errorf("failed to create treasure: %w", err)
	}
	return t, nil
}

// demoTreasures are the rows inserted by SeedDemo, placed around lower
// Manhattan so a local walk-through exercises nearby scans and claims.
var demoTreasures = []model.Treasure{
	{
		Name:        "Bowling Green Fountain",
		Description: "The oldest public park in the city hides its first cache here.",
		Latitude:    40.7047, Longitude: -74.0134,
		Points: 100, DiscoveryRadius: 50, IsActive: true,
	},
	{
		Name:        "Stone Street Mosaic",
		Description: "Look for the cobblestones, not the patio tables.",
		Latitude:    40.7041, Longitude: -74.0103,
		Points: 150, DiscoveryRadius: 40, IsActive: true,
	},
	{
		Name:        "Trinity Churchyard Gate",
		Description: "A quiet corner at the head of Wall Street.",
		Latitude:    40.7081, Longitude: -74.0120,
		Points: 200, DiscoveryRadius: 60, IsActive: true,
	},
	{
		Name:        "Pier 17 Lookout",
		Description: "Saved for a future event, not yet live.",
		Latitude:    40.7060, Longitude: -74.0020,
		Points: 250, DiscoveryRadius: 75, IsActive: false,
	},
}

// SeedDemo inserts the demo treasures. A catalog that already has rows is
// left untouched so repeated seeding cannot duplicate them.
func (s *Service) SeedDemo(ctx context.Context) ([]model.Treasure, error) {
	count, err := s.Count(ctx, false)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	created := make([]model.Treasure, 0, len(demoTreasures))
	for _, t := range demoTreasures {
		row, err := s.Create(ctx, t)
		if err != nil {
			return created, fmt.Errorf("failed to seed %q: %w", t.Name, err)
		}
		created = append(created, row)
	}
	return created, nil
}

// Get returns a treasure by ID, active or not.
func (s *Service) Get(ctx context.Context, id uint) (model.Treasure, error) {
	var t model.Treasure
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Treasure{}, model.ErrTreasureNotFound
	}
	if err != nil {
		return model.Treasure{}, fmt.Errorf("failed to get treasure: %w", err)
	}
	return t, nil
}

// GetActive returns a treasure by ID only if it is active. Inactive
// treasures are indistinguishable from missing ones to players.
func (s *Service) GetActive(ctx context.Context, id uint) (model.Treasure, error) {
	var t model.Treasure
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Treasure{}, model.ErrTreasureNotFound
	}
	if err != nil {
		return model.Treasure{}, fmt.Errorf("failed to get treasure: %w", err)
	}
	return t, nil
}

// List returns all treasures, active and inactive, ordered by ID.
func (s *Service) List(ctx context.Context) ([]model.Treasure, error) {
	var treasures []model.Treasure
	err := s.db.WithContext(ctx).Order("id ASC").Find(&treasures).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list treasures: %w", err)
	}
	return treasures, nil
}

// ListActive returns all active treasures ordered by ID. Proximity scans
// evaluate one such snapshot so a toggle mid-scan cannot produce a view
// that no single point in time had.
func (s *Service) ListActive(ctx context.Context) ([]model.Treasure, error) {
	var treasures []model.Treasure
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&treasures).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active treasures: %w", err)
	}
	return treasures, nil
}

// Count returns the total number of treasures. Active-only when activeOnly is set.
func (s *Service) Count(ctx context.Context, activeOnly bool) (int64, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&model.Treasure{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count treasures: %w", err)
	}
	return count, nil
}

// SetActive flips a treasure's active flag and returns the updated row.
func (s *Service) SetActive(ctx context.Context, id uint, active bool) (model.Treasure, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return model.Treasure{}, err
	}

	if t.IsActive != active {
		err = s.db.WithContext(ctx).Model(&t).Update("is_active", active).Error
		if err != nil {
			return model.Treasure{}, fmt.Errorf("failed to update treasure: %w", err)
		}
		t.IsActive = active
	}
	return t, nil
}

// Delete removes a treasure from the catalog. The delete is soft, so
// existing discoveries keep their foreign key and scores already awarded
// stay put.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Treasure{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete treasure: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrTreasureNotFound
	}
	return nil
}
