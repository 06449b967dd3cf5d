package report

import (
	"time"

	"vsmecore/pkg/domain"
)

// Submission is the aggregated content of every section of one report.
type Submission struct {
	ReportID    string              `json:"report_id" yaml:"report_id"`
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Sections    []SectionSubmission `json:"sections" yaml:"sections"`
}

// SectionSubmission carries one section's current values in internal naming.
type SectionSubmission struct {
	Collection  string        `json:"collection" yaml:"collection"`
	Title       string        `json:"title" yaml:"title"`
	Fields      domain.Fields `json:"fields" yaml:"fields"`
	Dirty       bool          `json:"dirty" yaml:"dirty"`
	LastSavedAt *time.Time    `json:"last_saved_at,omitempty" yaml:"last_saved_at,omitempty"`
}

// Submission snapshots every store's current values.
func (w *Workbook) Submission() Submission {
	sub := Submission{
		ReportID:    w.ReportID(),
		GeneratedAt: w.nowFn(),
		Sections:    make([]SectionSubmission, 0, len(w.stores)),
	}
	for _, st := range w.stores {
		snap := st.State()
		sub.Sections = append(sub.Sections, SectionSubmission{
			Collection:  snap.Collection,
			Title:       st.Section().Title,
			Fields:      snap.Current,
			Dirty:       snap.Dirty,
			LastSavedAt: snap.LastSavedAt,
		})
	}
	return sub
}

// Section returns the entry for collection.
func (s Submission) Section(collection string) (SectionSubmission, bool) {
	for _, sec := range s.Sections {
		if sec.Collection == collection {
			return sec, true
		}
	}
	return SectionSubmission{}, false
}
