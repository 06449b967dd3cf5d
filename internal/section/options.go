package section

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies a lifecycle notification.
type EventKind string

// Lifecycle notifications delivered to a Listener.
const (
	EventLoaded     EventKind = "loaded"
	EventLoadFailed EventKind = "load_failed"
	EventSaved      EventKind = "saved"
	EventSaveFailed EventKind = "save_failed"
)

// Event describes a completed load or save.
type Event struct {
	Kind       EventKind
	Collection string
	ReportID   string
	At         time.Time
	Err        error
}

// Listener receives lifecycle events. It is called without the store lock held
// and must not block for long.
type Listener func(Event)

// Recorder observes operation outcomes.
type Recorder interface {
	Observe(ctx context.Context, operation, collection string, success bool, duration time.Duration)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Store) { s.recorder = rec }
}

// WithListener registers a lifecycle listener. Multiple listeners are called in order.
func WithListener(l Listener) Option {
	return func(s *Store) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}
