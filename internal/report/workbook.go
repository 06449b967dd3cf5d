// Package report groups one section store per report section into a workbook:
// explicit report selection, bulk load and save, autosave status indicators and
// submission aggregation.
package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vsmecore/internal/section"
	"vsmecore/pkg/domain"
)

const defaultConcurrency = 4

// Option configures a Workbook.
type Option func(*Workbook)

// WithStoreOptions passes opts to every section store.
func WithStoreOptions(opts ...section.Option) Option {
	return func(w *Workbook) { w.storeOpts = append(w.storeOpts, opts...) }
}

// WithLogger sets the workbook logger and hands it to every store.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workbook) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithConcurrency caps the number of sections loaded or saved at once.
func WithConcurrency(n int) Option {
	return func(w *Workbook) {
		if n > 0 {
			w.limit = n
		}
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Workbook) {
		if now != nil {
			w.nowFn = now
		}
	}
}

// Workbook owns the section stores of one report at a time.
type Workbook struct {
	stores       []*section.Store
	byCollection map[string]*section.Store
	storeOpts    []section.Option
	logger       *zap.Logger
	limit        int
	nowFn        func() time.Time

	mu       sync.Mutex
	reportID string
}

// NewWorkbook builds one unbound store per section, in the order given.
func NewWorkbook(backend domain.Backend, sections []domain.Section, opts ...Option) *Workbook {
	w := &Workbook{
		byCollection: make(map[string]*section.Store, len(sections)),
		logger:       zap.NewNop(),
		limit:        defaultConcurrency,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	storeOpts := append([]section.Option{section.WithLogger(w.logger)}, w.storeOpts...)
	for _, def := range sections {
		st := section.New(backend, def, storeOpts...)
		w.stores = append(w.stores, st)
		w.byCollection[def.Collection] = st
	}
	return w
}

// ReportID returns the selected report.
func (w *Workbook) ReportID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reportID
}

// Select binds every store to reportID and starts their loads in the
// background. Use Wait to block until they settle.
func (w *Workbook) Select(ctx context.Context, reportID string) {
	w.mu.Lock()
	w.reportID = reportID
	w.mu.Unlock()
	w.logger.Debug("report selected", zap.String("report_id", reportID), zap.Int("sections", len(w.stores)))
	for _, st := range w.stores {
		st.Bind(ctx, reportID)
	}
}

// Wait blocks until every background load started by Select has finished.
func (w *Workbook) Wait() {
	for _, st := range w.stores {
		st.Wait()
	}
}

// Section returns the store for collection.
func (w *Workbook) Section(collection string) (*section.Store, bool) {
	st, ok := w.byCollection[collection]
	return st, ok
}

// Stores returns the stores in section order.
func (w *Workbook) Stores() []*section.Store {
	return append([]*section.Store(nil), w.stores...)
}

// LoadAll reloads every section concurrently. A failing section does not stop
// the others; all failures are joined.
func (w *Workbook) LoadAll(ctx context.Context) error {
	if w.ReportID() == "" {
		return section.ErrNoReport
	}
	return w.each(w.stores, func(st *section.Store) error { return st.Load(ctx) })
}

// SaveDirty saves every section with unsaved edits and returns the
// collections that were written.
func (w *Workbook) SaveDirty(ctx context.Context) ([]string, error) {
	if w.ReportID() == "" {
		return nil, section.ErrNoReport
	}
	var dirty []*section.Store
	for _, st := range w.stores {
		if st.Dirty() {
			dirty = append(dirty, st)
		}
	}
	var (
		mu    sync.Mutex
		saved []string
	)
	err := w.each(dirty, func(st *section.Store) error {
		if err := st.Save(ctx); err != nil {
			return err
		}
		mu.Lock()
		saved = append(saved, st.Section().Collection)
		mu.Unlock()
		return nil
	})
	return orderLike(w.stores, saved), err
}

func (w *Workbook) each(stores []*section.Store, fn func(*section.Store) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(w.limit)
	for _, st := range stores {
		g.Go(func() error {
			if err := fn(st); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func orderLike(stores []*section.Store, collections []string) []string {
	if len(collections) == 0 {
		return nil
	}
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}
	out := make([]string, 0, len(collections))
	for _, st := range stores {
		if c := st.Section().Collection; set[c] {
			out = append(out, c)
		}
	}
	return out
}
