package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vsmecore/internal/config"
	"vsmecore/internal/infra/blob/core"
	"vsmecore/internal/observability"
	"vsmecore/internal/report"
	"vsmecore/internal/section"
	"vsmecore/internal/storage"
	"vsmecore/internal/vsme"
	"vsmecore/pkg/domain"
)

// app holds the resources shared by every subcommand. They are opened lazily
// so that commands like "sections" work without a reachable backend.
type app struct {
	configPath string
	debug      bool
	metrics    bool

	cfg      *config.Config
	logger   *zap.Logger
	backend  domain.PersistentBackend
	archive  core.Store
	registry *prometheus.Registry
	expvar   *observability.ExpvarRecorder
	recorder section.Recorder
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	sm, err := observability.NewSectionMetrics(a.registry)
	if err != nil {
		return err
	}
	a.expvar = observability.NewExpvarRecorder("")
	a.recorder = observability.Recorders{sm, a.expvar}
	return nil
}

func (a *app) openBackend(ctx context.Context) (domain.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := storage.OpenBackend(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("storage opened", zap.String("driver", a.cfg.Storage.Driver))
	a.backend = b
	return b, nil
}

func (a *app) openArchive(ctx context.Context) (*report.Archiver, error) {
	if a.archive == nil {
		s, err := storage.OpenArchive(ctx, a.cfg.Archive)
		if err != nil {
			return nil, err
		}
		a.archive = s
	}
	return report.NewArchiver(a.archive, a.logger), nil
}

// workbook opens the backend and binds a workbook over sections to reportID,
// waiting for every initial load.
func (a *app) workbook(ctx context.Context, reportID string, sections []domain.Section) (*report.Workbook, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, errors.New("--report is required")
	}
	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	w := report.NewWorkbook(backend, sections,
		report.WithLogger(a.logger),
		report.WithStoreOptions(section.WithRecorder(a.recorder)),
	)
	w.Select(ctx, reportID)
	w.Wait()
	var errs []error
	for _, st := range w.Stores() {
		if snap := st.State(); snap.LastError != nil {
			errs = append(errs, snap.LastError)
		}
	}
	return w, errors.Join(errs...)
}

func lookupSection(collection string) (domain.Section, error) {
	def, ok := vsme.Lookup(collection)
	if !ok {
		return domain.Section{}, fmt.Errorf("unknown section %q (see vsmectl sections)", collection)
	}
	return def, nil
}

// metricLines renders the Prometheus counters gathered during the command as
// "name{labels} value" lines, followed by the expvar totals.
func (a *app) metricLines() ([]string, error) {
	families, err := a.registry.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	for _, l := range a.expvar.Totals().Lines() {
		lines = append(lines, a.expvar.Name()+" "+l)
	}
	return lines, nil
}

func (a *app) close() error {
	var errs []error
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
