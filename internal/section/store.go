// Package section implements the per-section state container: it loads one
// record for a (collection, report) pair, tracks edits against the last
// persisted snapshot, recomputes derived fields and saves on request.
package section

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"vsmecore/pkg/domain"
)

// Operation names reported to the Recorder.
const (
	OpLoad = "load"
	OpSave = "save"
)

// Snapshot is a read-only view of the store state.
type Snapshot struct {
	ReportID      string
	Collection    string
	Current       domain.Fields
	LastPersisted domain.Fields
	Loading       bool
	Saving        bool
	Dirty         bool
	Loaded        bool
	LastSavedAt   *time.Time
	LastError     error
}

// Store owns the load/edit/dirty/save lifecycle of one section record.
type Store struct {
	backend   domain.Backend
	def       domain.Section
	engine    *domain.RulesEngine
	naming    domain.Naming
	logger    *zap.Logger
	nowFn     func() time.Time
	recorder  Recorder
	listeners []Listener

	// lane admits one backend call at a time; loads queue on it.
	lane *semaphore.Weighted
	bg   sync.WaitGroup

	mu            sync.Mutex
	reportID      string
	generation    uint64
	loadSeq       uint64
	pendingLoads  int
	saving        bool
	loaded        bool
	current       domain.Fields
	lastPersisted domain.Fields
	lastSavedAt   *time.Time
	lastErr       error
}

// New constructs an unbound store for the section definition. Until Bind is
// called with a report id the store is empty, clean and never touches the backend.
func New(backend domain.Backend, def domain.Section, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		def:           def,
		engine:        def.Engine(),
		naming:        def.FieldNaming(),
		logger:        zap.NewNop(),
		nowFn:         func() time.Time { return time.Now().UTC() },
		lane:          semaphore.NewWeighted(1),
		current:       def.InitialFields(),
		lastPersisted: def.InitialFields(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("collection", def.Collection))
	return s
}

// Section returns the section definition.
func (s *Store) Section() domain.Section { return s.def }

// ReportID returns the bound report id.
func (s *Store) ReportID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportID
}

// Bind selects the report the store is scoped to. State resets to the initial
// shape and a load starts in the background. Responses still in flight for the
// previous report are discarded.
func (s *Store) Bind(ctx context.Context, reportID string) {
	s.mu.Lock()
	s.reportID = reportID
	s.generation++
	s.current = s.def.InitialFields()
	s.lastPersisted = s.def.InitialFields()
	s.lastSavedAt = nil
	s.loaded = false
	s.lastErr = nil
	if reportID == "" {
		s.mu.Unlock()
		return
	}
	seq, gen := s.beginLoadLocked()
	s.mu.Unlock()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_ = s.load(ctx, reportID, seq, gen)
	}()
}

// Wait blocks until loads started by Bind have finished.
func (s *Store) Wait() { s.bg.Wait() }

// Load fetches the record for the bound report. A missing record is not an
// error: the store keeps its initial shape. Loads are served one at a time and
// a load overtaken by a newer one drops its response.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.reportID == "" {
		s.mu.Unlock()
		return nil
	}
	seq, gen := s.beginLoadLocked()
	reportID := s.reportID
	s.mu.Unlock()
	return s.load(ctx, reportID, seq, gen)
}

// beginLoadLocked registers a pending load so edits are refused until its
// response has landed. s.mu must be held.
func (s *Store) beginLoadLocked() (seq, gen uint64) {
	s.loadSeq++
	s.pendingLoads++
	return s.loadSeq, s.generation
}

func (s *Store) load(ctx context.Context, reportID string, seq, gen uint64) error {
	defer func() {
		s.mu.Lock()
		s.pendingLoads--
		s.mu.Unlock()
	}()

	started := time.Now()
	if err := s.lane.Acquire(ctx, 1); err != nil {
		return s.loadFailed(ctx, reportID, gen, err, started)
	}
	defer s.lane.Release(1)

	if s.stale(seq, gen) {
		s.logger.Debug("skipping superseded load", zap.String("report_id", reportID))
		return nil
	}

	rec, err := s.backend.FetchOne(ctx, s.def.Collection, reportID)
	var (
		fields    domain.Fields
		updatedAt *time.Time
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		fields = s.def.InitialFields()
	case err != nil:
		return s.loadFailed(ctx, reportID, gen, err, started)
	default:
		conformed, dropped, cerr := s.def.Schema.Conform(domain.FieldsToInternal(s.naming, rec.Fields))
		if cerr != nil {
			return s.loadFailed(ctx, reportID, gen, cerr, started)
		}
		if len(dropped) > 0 {
			s.logger.Debug("dropping unknown fields", zap.String("report_id", reportID), zap.Strings("fields", dropped))
		}
		fields = conformed
		ts := rec.UpdatedAt
		updatedAt = &ts
	}

	s.mu.Lock()
	if s.generation != gen || s.loadSeq != seq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale load response", zap.String("report_id", reportID))
		return nil
	}
	s.current = fields
	s.lastPersisted = fields.Clone()
	s.lastSavedAt = updatedAt
	s.loaded = true
	s.lastErr = nil
	s.mu.Unlock()

	s.observe(ctx, OpLoad, true, time.Since(started))
	s.emit(Event{Kind: EventLoaded, Collection: s.def.Collection, ReportID: reportID, At: s.nowFn()})
	return nil
}

func (s *Store) stale(seq, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation != gen || s.loadSeq != seq
}

func (s *Store) loadFailed(ctx context.Context, reportID string, gen uint64, cause error, started time.Time) error {
	err := &LoadError{Collection: s.def.Collection, ReportID: reportID, Err: cause}
	s.mu.Lock()
	if s.generation == gen {
		s.lastErr = err
	}
	s.mu.Unlock()
	s.logger.Warn("section load failed", zap.String("report_id", reportID), zap.Error(cause))
	s.observe(ctx, OpLoad, false, time.Since(started))
	s.emit(Event{Kind: EventLoadFailed, Collection: s.def.Collection, ReportID: reportID, At: s.nowFn(), Err: err})
	return err
}

// SetField assigns one field and recomputes derived fields.
func (s *Store) SetField(name string, value any) error {
	return s.SetFields(domain.Fields{name: value})
}

// SetFields merges partial into the current values and recomputes derived
// fields. Either every assignment passes the schema or none is applied. Edits
// are refused while a load is pending, since its response replaces current.
func (s *Store) SetFields(partial domain.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.reportID == "":
		return ErrNoReport
	case s.pendingLoads > 0:
		return ErrLoadInProgress
	}
	next := s.current.Clone()
	for _, name := range partial.Keys() {
		v, err := s.def.Schema.Check(name, partial[name])
		if err != nil {
			return err
		}
		next[name] = v
	}
	s.current = s.engine.Apply(next)
	return nil
}

// Save writes the current values for the bound report. A save is refused while
// a load is pending or another save is running.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.reportID == "":
		s.mu.Unlock()
		return ErrNoReport
	case s.pendingLoads > 0:
		s.mu.Unlock()
		return ErrLoadInProgress
	case s.saving:
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	gen, reportID := s.generation, s.reportID
	snapshot := s.current.Clone()
	s.mu.Unlock()

	started := time.Now()
	if err := s.lane.Acquire(ctx, 1); err != nil {
		return s.saveFailed(ctx, reportID, gen, err, started)
	}
	at := s.nowFn()
	_, err := s.backend.Upsert(ctx, s.def.Collection, reportID, domain.FieldsToExternal(s.naming, snapshot), at)
	s.lane.Release(1)
	if err != nil {
		return s.saveFailed(ctx, reportID, gen, err, started)
	}

	s.mu.Lock()
	s.saving = false
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("report changed during save", zap.String("report_id", reportID))
		return nil
	}
	s.lastPersisted = snapshot
	s.lastSavedAt = &at
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Debug("section saved", zap.String("report_id", reportID))
	s.observe(ctx, OpSave, true, time.Since(started))
	s.emit(Event{Kind: EventSaved, Collection: s.def.Collection, ReportID: reportID, At: at})
	return nil
}

func (s *Store) saveFailed(ctx context.Context, reportID string, gen uint64, cause error, started time.Time) error {
	err := &SaveError{Collection: s.def.Collection, ReportID: reportID, Err: cause}
	s.mu.Lock()
	s.saving = false
	if s.generation == gen {
		s.lastErr = err
	}
	s.mu.Unlock()
	s.logger.Warn("section save failed", zap.String("report_id", reportID), zap.Error(cause))
	s.observe(ctx, OpSave, false, time.Since(started))
	s.emit(Event{Kind: EventSaveFailed, Collection: s.def.Collection, ReportID: reportID, At: s.nowFn(), Err: err})
	return err
}

// Dirty reports whether current values differ from the last persisted snapshot.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.current.Equal(s.lastPersisted)
}

// Current returns a copy of the editable values.
func (s *Store) Current() domain.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Get returns one current value.
func (s *Store) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.current[name]
	return v, ok
}

// State returns a consistent snapshot of the store.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ReportID:      s.reportID,
		Collection:    s.def.Collection,
		Current:       s.current.Clone(),
		LastPersisted: s.lastPersisted.Clone(),
		Loading:       s.pendingLoads > 0,
		Saving:        s.saving,
		Dirty:         !s.current.Equal(s.lastPersisted),
		Loaded:        s.loaded,
		LastError:     s.lastErr,
	}
	if s.lastSavedAt != nil {
		ts := *s.lastSavedAt
		snap.LastSavedAt = &ts
	}
	return snap
}

func (s *Store) observe(ctx context.Context, op string, success bool, d time.Duration) {
	if s.recorder == nil {
		return
	}
	s.recorder.Observe(ctx, op, s.def.Collection, success, d)
}

func (s *Store) emit(ev Event) {
	for _, l := range s.listeners {
		l(ev)
	}
}
