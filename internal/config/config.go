package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           string        `json:"port" mapstructure:"port"`
	RequestTimeout time.Duration `json:"requestTimeout" mapstructure:"requestTimeout"`
	AdminKey       string        `json:"adminKey" mapstructure:"adminKey"`
}

// GameDefaults holds the values used to seed the game configuration row
type GameDefaults struct {
	Name                   string  `json:"name" mapstructure:"name"`
	Active                 bool    `json:"active" mapstructure:"active"`
	DefaultTreasurePoints  int     `json:"defaultTreasurePoints" mapstructure:"defaultTreasurePoints"`
	DefaultDiscoveryRadius float64 `json:"defaultDiscoveryRadius" mapstructure:"defaultDiscoveryRadius"`
	LeaderboardLimit       int     `json:"leaderboardLimit" mapstructure:"leaderboardLimit"`
}

// OTelConfig holds OpenTelemetry export settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./huntlogs")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.requestTimeout", "5s")
	viper.SetDefault("server.adminKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "treasurehunt")
	viper.SetDefault("db.sqlitePath", "./treasurehunt.db")

	viper.SetDefault("game.name", "Treasure Hunt")
	viper.SetDefault("game.active", true)
	viper.SetDefault("game.defaultTreasurePoints", 100)
	viper.SetDefault("game.defaultDiscoveryRadius", 50.0)
	viper.SetDefault("game.leaderboardLimit", 10)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "treasurehunt-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "treasurehunt-server")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("treasurehunt.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns HTTP listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Host:           viper.GetString("server.host"),
		Port:           viper.GetString("server.port"),
		RequestTimeout: viper.GetDuration("server.requestTimeout"),
		AdminKey:       viper.GetString("server.adminKey"),
	}
}

// GetGameDefaults returns the values used to seed the game configuration row.
func GetGameDefaults() GameDefaults {
	return GameDefaults{
		Name:                   viper.GetString("game.name"),
		Active:                 viper.GetBool("game.active"),
		DefaultTreasurePoints:  viper.GetInt("game.defaultTreasurePoints"),
		DefaultDiscoveryRadius: viper.GetFloat64("game.defaultDiscoveryRadius"),
		LeaderboardLimit:       viper.GetInt("game.leaderboardLimit"),
	}
}

// GetOTelConfig returns OpenTelemetry export settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
