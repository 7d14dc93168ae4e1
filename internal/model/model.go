package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&GameConfig{},
	&Treasure{},
	&Player{},
	&Discovery{},
	&AdminAction{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// GameConfig is the single-row game configuration, seeded with defaults at setup.
// It is loaded once at startup and injected into the game service as a value.
type GameConfig struct {
	gorm.Model
	GameName               string  `json:"gameName" gorm:"size:127"`
	IsGameActive           bool    `json:"isGameActive"`
	DefaultTreasurePoints  int     `json:"defaultTreasurePoints"`
	DefaultDiscoveryRadius float64 `json:"defaultDiscoveryRadius"`
	LeaderboardLimit       int     `json:"leaderboardLimit"`
}

func (*GameConfig) TableName() string {
	return "game_configs"
}

////////////////////////
// GAME MODELS
////////////////////////

// Treasure is a fixed geographic point with a discovery radius and point value.
// Latitude/Longitude are WGS-84 degrees; Location is the same position projected
// to EPSG:3857 and stored as WKB so SQLite can round-trip it without spatial support.
type Treasure struct {
	gorm.Model
	Name            string     `json:"name" gorm:"size:127"`
	Description     string     `json:"description" gorm:"size:2000"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Location        geom.Point `json:"-" gorm:"type:geometry"`
	Points          int        `json:"points"`
	DiscoveryRadius float64    `json:"discoveryRadius"`
	IsActive        bool       `json:"isActive"`
}

func (*Treasure) TableName() string {
	return "treasures"
}

// Player is the aggregate score state for one caller identity.
// Created lazily on first discovery attempt; the unique index on Identity is
// what makes concurrent lazy creation race-free.
type Player struct {
	gorm.Model
	Identity       string `json:"identity" gorm:"size:127;uniqueIndex:idx_players_identity"`
	TotalScore     int    `json:"totalScore"`
	TreasuresFound int    `json:"treasuresFound"`
}

func (*Player) TableName() string {
	return "players"
}

// Discovery is an append-only record that one player found one treasure.
// The composite unique index on (player_id, treasure_id) is the arbiter of
// concurrent duplicate claims; reported coordinates are kept for audit only.
type Discovery struct {
	gorm.Model
	PlayerID          uint      `json:"playerId" gorm:"uniqueIndex:idx_discoveries_player_treasure"`
	Player            Player    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:PlayerID"`
	TreasureID        uint      `json:"treasureId" gorm:"uniqueIndex:idx_discoveries_player_treasure"`
	Treasure          Treasure  `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:TreasureID"`
	DiscoveredAt      time.Time `json:"discoveredAt"`
	ReportedLatitude  float64   `json:"reportedLatitude"`
	ReportedLongitude float64   `json:"reportedLongitude"`
}

func (*Discovery) TableName() string {
	return "discoveries"
}

////////////////////////
// AUDIT MODELS
////////////////////////

// Admin action kinds recorded in the audit trail.
const (
	ActionCreateTreasure     = "CREATE_TREASURE"
	ActionActivateTreasure   = "ACTIVATE_TREASURE"
	ActionDeactivateTreasure = "DEACTIVATE_TREASURE"
	ActionDeleteTreasure     = "DELETE_TREASURE"
)

// AdminAction is one entry in the admin audit trail.
type AdminAction struct {
	gorm.Model
	Actor       string         `json:"actor" gorm:"size:127"`
	Action      string         `json:"action" gorm:"size:32"`
	TreasureID  *uint          `json:"treasureId"`
	Description string         `json:"description" gorm:"size:2000"`
	Details     datatypes.JSON `json:"details"`
}

func (*AdminAction) TableName() string {
	return "admin_actions"
}
