package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/treasurehunt/server/internal/dispatcher"
	"github.com/treasurehunt/server/internal/model"
	"github.com/treasurehunt/server/internal/queue"
)

// EventAdminAction is the dispatcher event carrying a model.AdminAction payload.
const EventAdminAction = "admin.action"

// Sink collects admin actions and writes them to the audit trail in periodic
// batches. Entries queue in memory between flushes so recording an action
// never blocks the admin request on a database write.
type Sink struct {
	db       *gorm.DB
	queue    *queue.Queue[model.AdminAction]
	log      *slog.Logger
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewSink creates an audit sink flushing at the given interval.
func NewSink(db *gorm.DB, log *slog.Logger, interval time.Duration) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		db:       db,
		queue:    queue.New[model.AdminAction](),
		log:      log,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandlers subscribes the sink to admin action events.
func (s *Sink) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(EventAdminAction, s.handleAdminAction, dispatcher.Buffered(500), dispatcher.Logged())
}

func (s *Sink) handleAdminAction(e dispatcher.Event) (any, error) {
	action, ok := e.Payload.(model.AdminAction)
	if !ok {
		return nil, fmt.Errorf("unexpected admin action payload: %T", e.Payload)
	}
	s.Record(action)
	return nil, nil
}

// Record queues an admin action for the next flush.
func (s *Sink) Record(action model.AdminAction) {
	s.queue.Push(action)
}

// Pending returns the number of queued, unflushed actions.
func (s *Sink) Pending() int {
	return s.queue.Len()
}

// Start launches the periodic flush goroutine.
func (s *Sink) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.done)
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := s.Flush(context.Background()); err != nil {
						s.log.Error("audit flush failed", "error", err)
					}
				case <-s.stop:
					return
				}
			}
		}()
	})
}

// Flush writes all queued actions in a single transaction. On failure the
// batch is re-queued for the next attempt.
func (s *Sink) Flush(ctx context.Context) error {
	batch := s.queue.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&batch).Error
	})
	if err != nil {
		s.queue.Push(batch...)
		return fmt.Errorf("failed to write audit batch of %d: %w", len(batch), err)
	}

	s.log.Debug("audit batch written", "count", len(batch))
	return nil
}

// Stop halts the flush goroutine and performs a final flush.
func (s *Sink) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		select {
		case <-s.done:
		case <-ctx.Done():
		}
		err = s.Flush(ctx)
	})
	return err
}

// DetailsJSON marshals a value into the audit details column. Unmarshalable
// values degrade to an empty object rather than dropping the entry.
func DetailsJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}
