package monitor

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/treasurehunt/server/internal/game"
	"github.com/treasurehunt/server/internal/influx"
	"github.com/treasurehunt/server/internal/logging"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Game       *game.Service
	Influx     *influx.Manager
	LogManager *logging.SlogManager
	StatusPath string
	Interval   time.Duration
}

// Snapshot is one status report written to the status file.
type Snapshot struct {
	Time       time.Time  `json:"time"`
	Uptime     string     `json:"uptime"`
	Goroutines int        `json:"goroutines"`
	HeapMB     float64    `json:"heapMB"`
	Game       game.Stats `json:"game"`
}

// Service periodically snapshots game and runtime state to a status file and,
// when InfluxDB is wired, to the server_performance bucket.
type Service struct {
	deps      Dependencies
	startedAt time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:      deps,
		startedAt: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current status report.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stats, err := s.deps.Game.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		Time:       time.Now().UTC(),
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1024 * 1024),
		Game:       stats,
	}, nil
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusPath)
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				snap, err := s.Snapshot(context.Background())
				if err != nil {
					logger.Error("Error collecting status snapshot", "error", err)
					continue
				}

				if statusFile != nil {
					data, err := json.MarshalIndent(snap, "", "  ")
					if err == nil {
						statusFile.Truncate(0)
						statusFile.Seek(0, 0)
						statusFile.Write(append(data, '\n'))
					}
				}

				if s.deps.Influx != nil {
					err = s.deps.Influx.WritePoint(
						context.Background(),
						influx.BucketServerPerf,
						performancePoint(snap),
					)
					if err != nil {
						logger.Error("Error writing performance point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func performancePoint(snap Snapshot) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("server_status").
		AddField("goroutines", snap.Goroutines).
		AddField("heapMB", snap.HeapMB).
		AddField("players", snap.Game.TotalPlayers).
		AddField("discoveries", snap.Game.TotalDiscoveries).
		AddField("activeTreasures", snap.Game.ActiveTreasures).
		SetTime(snap.Time)
}
