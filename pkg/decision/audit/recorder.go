package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/saturn/pkg/decision"
)

// RecorderConfig contains configuration for the asynchronous recorder.
type RecorderConfig struct {
	// Buffer is the size of the event channel. Default: 1000.
	Buffer int

	// WriteTimeout bounds one storage write. Default: 5s.
	WriteTimeout time.Duration
}

// Recorder implements decision.Sink by buffering events and writing
// them to a store from a background worker. Emit never blocks; when the
// buffer is full the event is dropped and counted.
type Recorder struct {
	store  *SQLiteStore
	config RecorderConfig
	events chan *decision.Event
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	dropped atomic.Int64
}

// NewRecorder creates a recorder writing to store and starts its
// worker.
func NewRecorder(store *SQLiteStore, config RecorderConfig, logger *slog.Logger) *Recorder {
	if config.Buffer <= 0 {
		config.Buffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:  store,
		config: config,
		events: make(chan *decision.Event, config.Buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "decision.audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Emit implements decision.Sink.
func (r *Recorder) Emit(ctx context.Context, event *decision.Event) {
	select {
	case r.events <- event:
	default:
		n := r.dropped.Add(1)
		if n%1000 == 1 {
			r.logger.Warn("audit buffer full, dropping events", "dropped_total", n)
		}
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Drain what is already buffered before exiting.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *decision.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Record(ctx, event); err != nil {
		r.logger.Error("failed to record decision event",
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// Dropped returns the number of events discarded because the buffer
// was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops the worker after draining buffered events. The store is
// not closed; the caller owns it.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}
