package observability

import (
	"context"
	"expvar"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationTotals aggregates every observation of one operation on one
// section collection.
type OperationTotals struct {
	Success int64   `json:"success"`
	Errors  int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
}

// SectionTotals is the published expvar value, keyed "operation/collection".
type SectionTotals map[string]OperationTotals

// Lines renders one "operation/collection success=N error=N total_ms=X" line
// per key in key order.
func (t SectionTotals) Lines() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		tot := t[k]
		lines = append(lines, fmt.Sprintf("%s success=%d error=%d total_ms=%.3f", k, tot.Success, tot.Errors, tot.TotalMS))
	}
	return lines
}

// ExpvarRecorder keeps per-section operation totals and publishes them under
// an expvar name, so a process serving /debug/vars exposes them as well.
type ExpvarRecorder struct {
	name   string
	mu     sync.Mutex
	totals SectionTotals
}

// NewExpvarRecorder publishes a recorder under name, or under a generated
// unique name when name is empty.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("vsmecore_section_totals_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarRecorder{name: name, totals: make(SectionTotals)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Totals() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Totals returns a copy of the aggregated totals.
func (r *ExpvarRecorder) Totals() SectionTotals {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(SectionTotals, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}

// Observe implements section.Recorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation, collection string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	key := operation + "/" + collection
	r.mu.Lock()
	defer r.mu.Unlock()
	tot := r.totals[key]
	if success {
		tot.Success++
	} else {
		tot.Errors++
	}
	tot.TotalMS += float64(duration) / float64(time.Millisecond)
	r.totals[key] = tot
}
