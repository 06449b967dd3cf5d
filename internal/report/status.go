package report

import "time"

// StatusKind is the autosave indicator shown next to a section.
type StatusKind string

const (
	StatusIdle    StatusKind = "idle"
	StatusLoading StatusKind = "loading"
	StatusSaving  StatusKind = "saving"
	StatusUnsaved StatusKind = "unsaved"
	StatusSaved   StatusKind = "saved"
	StatusFailed  StatusKind = "failed"
)

// Status describes one section of the selected report.
type Status struct {
	Collection  string     `json:"collection" yaml:"collection"`
	Title       string     `json:"title" yaml:"title"`
	Kind        StatusKind `json:"status" yaml:"status"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty" yaml:"last_saved_at,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Statuses reports every section's indicator in section order. In-flight
// operations win over errors, errors over unsaved edits.
func (w *Workbook) Statuses() []Status {
	out := make([]Status, 0, len(w.stores))
	for _, st := range w.stores {
		snap := st.State()
		s := Status{
			Collection:  snap.Collection,
			Title:       st.Section().Title,
			LastSavedAt: snap.LastSavedAt,
		}
		switch {
		case snap.Loading:
			s.Kind = StatusLoading
		case snap.Saving:
			s.Kind = StatusSaving
		case snap.LastError != nil:
			s.Kind = StatusFailed
			s.Error = snap.LastError.Error()
		case snap.Dirty:
			s.Kind = StatusUnsaved
		case snap.LastSavedAt != nil:
			s.Kind = StatusSaved
		default:
			s.Kind = StatusIdle
		}
		out = append(out, s)
	}
	return out
}
