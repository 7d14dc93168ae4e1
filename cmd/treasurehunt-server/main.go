package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/treasurehunt/server/internal/api"
	"github.com/treasurehunt/server/internal/audit"
	"github.com/treasurehunt/server/internal/cache"
	"github.com/treasurehunt/server/internal/catalog"
	"github.com/treasurehunt/server/internal/config"
	"github.com/treasurehunt/server/internal/database"
	"github.com/treasurehunt/server/internal/dispatcher"
	"github.com/treasurehunt/server/internal/game"
	"github.com/treasurehunt/server/internal/influx"
	"github.com/treasurehunt/server/internal/leaderboard"
	"github.com/treasurehunt/server/internal/ledger"
	"github.com/treasurehunt/server/internal/logging"
	"github.com/treasurehunt/server/internal/model"
	"github.com/treasurehunt/server/internal/monitor"
	intOtel "github.com/treasurehunt/server/internal/otel"
	"github.com/treasurehunt/server/internal/scoring"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version    = "0.0.1"
	BuildDate  = "unknown"
	ServerName = "treasurehunt-server"
)

var sessionStartTime = time.Now()

func main() {
	configDir := flag.String("config", ".", "directory containing treasurehunt.cfg.json")
	setupOnly := flag.Bool("setup-only", false, "run database setup and exit")
	seed := flag.Bool("seed", false, "run database setup, insert demo treasures and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ServerName, Version, BuildDate)
		return
	}

	if err := run(*configDir, *setupOnly, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServerName, err)
		os.Exit(1)
	}
}

func run(configDir string, setupOnly, seed bool) error {
	// Bootstrap logger until config is loaded
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, nil, "info", nil, nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
	}

	logFilePath := logging.LogFilePath(logsDir, ServerName, sessionStartTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}
	defer logFile.Close()

	otelProvider, otelLogFile, err := setupOTel(logsDir)
	if err != nil {
		return err
	}
	if otelLogFile != nil {
		defer otelLogFile.Close()
	}

	var gelfWriter io.Writer
	if viper.GetBool("graylog.enabled") {
		gelfWriter, err = logging.NewGelfWriter(viper.GetString("graylog.address"))
		if err != nil {
			logger.Warn("Graylog unavailable, continuing without it", "error", err)
			gelfWriter = nil
		}
	}

	// Full logging setup now that everything is known. The context provider
	// stamps the game name on every record once the config row is loaded.
	var gameConfig model.GameConfig
	slogManager.Setup(logFile, gelfWriter, viper.GetString("logLevel"),
		otelProvider.LoggerProvider(), func() []slog.Attr {
			if gameConfig.GameName == "" {
				return nil
			}
			return []slog.Attr{slog.String("game", gameConfig.GameName)}
		})
	logger = slogManager.Logger()
	logger.Info("Starting", "version", Version, "buildDate", BuildDate)

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	dbManager := database.NewManager(zlog)
	if err := dbManager.Connect(); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Setup(); err != nil {
		return fmt.Errorf("database setup failed: %w", err)
	}
	if setupOnly {
		logger.Info("Database setup complete")
		return nil
	}

	gameConfig, err = dbManager.LoadGameConfig()
	if err != nil {
		return fmt.Errorf("failed to load game config: %w", err)
	}

	if seed {
		created, err := catalog.New(dbManager.DB, gameConfig).SeedDemo(context.Background())
		if err != nil {
			return fmt.Errorf("failed to seed demo treasures: %w", err)
		}
		if len(created) == 0 {
			logger.Info("Catalog not empty, demo seed skipped")
		} else {
			logger.Info("Demo treasures seeded", "count", len(created))
		}
		return nil
	}
	logger.Info("Game config loaded", "name", gameConfig.GameName, "active", gameConfig.IsGameActive)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	auditSink := audit.NewSink(dbManager.DB, logger, 10*time.Second)
	auditSink.RegisterHandlers(eventDispatcher)
	auditSink.Start()

	var influxManager *influx.Manager
	if viper.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, continuing without metrics", "error", err)
			influxManager = nil
		} else {
			influxManager.RegisterHandlers(eventDispatcher)
			defer influxManager.Close()
		}
	}

	catalogService := catalog.New(dbManager.DB, gameConfig)
	gameService := game.New(game.Dependencies{
		DB:          dbManager.DB,
		Catalog:     catalogService,
		Ledger:      ledger.New(dbManager.DB),
		Scoring:     scoring.New(dbManager.DB, cache.NewPlayerCache()),
		Leaderboard: leaderboard.New(dbManager.DB),
		Config:      gameConfig,
		Dispatcher:  eventDispatcher,
		Logger:      logger,
	})

	monitorService := monitor.NewService(monitor.Dependencies{
		Game:       gameService,
		Influx:     influxManager,
		LogManager: slogManager,
		StatusPath: filepath.Join(logsDir, "status.json"),
		Interval:   10 * time.Second,
	})
	if err := monitorService.Start(); err != nil {
		logger.Warn("Status monitor failed to start", "error", err)
	}

	serverConfig := config.GetServerConfig()
	handler := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Game:           gameService,
		Catalog:        catalogService,
		Dispatcher:     eventDispatcher,
		AdminKey:       serverConfig.AdminKey,
		RequestTimeout: serverConfig.RequestTimeout,
	})

	httpConfig := api.DefaultServerConfig()
	httpConfig.Host = serverConfig.Host
	httpConfig.Port = viper.GetInt("server.port")
	server := api.NewServer(handler, httpConfig, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	monitorService.Stop()
	if err := auditSink.Stop(shutdownCtx); err != nil {
		logger.Error("Audit sink shutdown failed", "error", err)
	}
	if err := slogManager.Flush(shutdownCtx); err != nil {
		logger.Error("Log flush failed", "error", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("OTel shutdown failed", "error", err)
	}

	logger.Info("Stopped")
	return nil
}

// setupOTel builds the OTel provider from config. The returned file, when
// non-nil, backs the file log exporter and must outlive the provider.
func setupOTel(logsDir string) (*intOtel.Provider, *os.File, error) {
	cfg := config.GetOTelConfig()
	if !cfg.Enabled {
		provider, err := intOtel.New(intOtel.Config{Enabled: false})
		return provider, nil, err
	}

	otelLogPath := filepath.Join(logsDir,
		fmt.Sprintf("%s.%s.otel.log", ServerName, sessionStartTime.Format("20060102_150405")))
	otelLogFile, err := os.OpenFile(otelLogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open otel log file: %w", err)
	}

	provider, err := intOtel.New(intOtel.Config{
		Enabled:      true,
		ServiceName:  cfg.ServiceName,
		BatchTimeout: cfg.BatchTimeout,
		LogWriter:    otelLogFile,
		Endpoint:     cfg.Endpoint,
		Insecure:     cfg.Insecure,
	})
	if err != nil {
		otelLogFile.Close()
		return nil, nil, fmt.Errorf("failed to create otel provider: %w", err)
	}
	return provider, otelLogFile, nil
}
