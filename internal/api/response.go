package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/treasurehunt/server/internal/game"
	"github.com/treasurehunt/server/internal/leaderboard"
	"github.com/treasurehunt/server/internal/model"
)

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// NearbyTreasure is one proximity scan result on the wire.
type NearbyTreasure struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Points      int     `json:"points"`
	Distance    float64 `json:"distance"`
}

func nearbyFromModel(in []game.NearbyTreasure) []NearbyTreasure {
	out := make([]NearbyTreasure, 0, len(in))
	for _, t := range in {
		out = append(out, NearbyTreasure{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Latitude:    t.Latitude,
			Longitude:   t.Longitude,
			Points:      t.Points,
			Distance:    t.DisplayDistance,
		})
	}
	return out
}

// DiscoveryResult is the response to a successful claim.
type DiscoveryResult struct {
	TreasureID     uint      `json:"treasure_id"`
	TreasureName   string    `json:"treasure_name"`
	PointsEarned   int       `json:"points_earned"`
	TotalScore     int       `json:"total_score"`
	TreasuresFound int       `json:"treasures_found"`
	Distance       float64   `json:"distance"`
	DiscoveredAt   time.Time `json:"discovered_at"`
}

func discoveryFromModel(r game.ClaimResult) DiscoveryResult {
	return DiscoveryResult{
		TreasureID:     r.TreasureID,
		TreasureName:   r.TreasureName,
		PointsEarned:   r.PointsAwarded,
		TotalScore:     r.TotalScore,
		TreasuresFound: r.TreasuresFound,
		Distance:       r.Distance,
		DiscoveredAt:   r.DiscoveredAt,
	}
}

// Standing is one leaderboard row on the wire.
type Standing struct {
	Rank           int    `json:"rank"`
	Identity       string `json:"identity"`
	TotalScore     int    `json:"total_score"`
	TreasuresFound int    `json:"treasures_found"`
}

func standingsFromModel(in []leaderboard.Entry) []Standing {
	out := make([]Standing, 0, len(in))
	for _, e := range in {
		out = append(out, Standing{
			Rank:           e.Rank,
			Identity:       e.Identity,
			TotalScore:     e.TotalScore,
			TreasuresFound: e.TreasuresFound,
		})
	}
	return out
}

// Treasure is a catalog row on the wire. Exact coordinates are included; the
// listing route is for operators and map tooling, proximity scans hide
// anything outside the radius.
type Treasure struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Points          int     `json:"points"`
	DiscoveryRadius float64 `json:"discovery_radius"`
	IsActive        bool    `json:"is_active"`
}

func treasureFromModel(t model.Treasure) Treasure {
	return Treasure{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		Latitude:        t.Latitude,
		Longitude:       t.Longitude,
		Points:          t.Points,
		DiscoveryRadius: t.DiscoveryRadius,
		IsActive:        t.IsActive,
	}
}

func treasuresFromModel(in []model.Treasure) []Treasure {
	out := make([]Treasure, 0, len(in))
	for _, t := range in {
		out = append(out, treasureFromModel(t))
	}
	return out
}
