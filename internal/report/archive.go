package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vsmecore/internal/infra/blob/core"
	"vsmecore/pkg/domain"
)

// Format is a submission encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for encodings other than json and yaml.
var ErrUnknownFormat = errors.New("report: unknown submission format")

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) contentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Encode writes sub to w in format f.
func Encode(w io.Writer, sub Submission, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sub)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sub); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Decode reads a submission written by Encode. Field values are normalized
// back to the domain value kinds.
func Decode(r io.Reader, f Format) (Submission, error) {
	var sub Submission
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&sub)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&sub)
	default:
		return Submission{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	for i, sec := range sub.Sections {
		for name, v := range sec.Fields {
			nv, err := domain.Normalize(v)
			if err != nil {
				return Submission{}, fmt.Errorf("section %s field %s: %w", sec.Collection, name, err)
			}
			sub.Sections[i].Fields[name] = nv
		}
	}
	return sub, nil
}

// Archiver writes submissions to a create-only blob store under
// reports/<report id>/submission-<UTC timestamp>.<format>.
type Archiver struct {
	store  core.Store
	logger *zap.Logger
}

// NewArchiver wraps store. A nil logger is replaced by a no-op logger.
func NewArchiver(store core.Store, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, logger: logger}
}

// reportPrefix escapes the report id into one path segment. Dots are escaped
// too so that ids such as "." or "2024..draft" never form traversal segments.
func reportPrefix(reportID string) string {
	return "reports/" + strings.ReplaceAll(url.PathEscape(reportID), ".", "%2E") + "/"
}

// Key returns the object key a submission is archived under.
func Key(sub Submission, f Format) string {
	ts := sub.GeneratedAt.UTC().Format("20060102T150405.000000000Z")
	return reportPrefix(sub.ReportID) + "submission-" + ts + "." + string(f)
}

// Archive encodes sub and stores it. Submissions are never overwritten.
func (a *Archiver) Archive(ctx context.Context, sub Submission, f Format) (core.Info, error) {
	if sub.ReportID == "" {
		return core.Info{}, errors.New("report: submission has no report id")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, sub, f); err != nil {
		return core.Info{}, err
	}
	key := Key(sub, f)
	info, err := a.store.Put(ctx, key, &buf, core.PutOptions{
		ContentType: f.contentType(),
		Metadata: map[string]string{
			"report_id":    sub.ReportID,
			"generated_at": sub.GeneratedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("archive %s: %w", key, err)
	}
	a.logger.Info("submission archived",
		zap.String("report_id", sub.ReportID),
		zap.String("key", key),
		zap.String("driver", string(a.store.Driver())),
		zap.Int64("size_bytes", info.Size))
	return info, nil
}

// History lists the archived submissions of reportID, oldest first.
func (a *Archiver) History(ctx context.Context, reportID string) ([]core.Info, error) {
	return a.store.List(ctx, reportPrefix(reportID))
}

// Fetch reads back an archived submission. The format follows the key extension.
func (a *Archiver) Fetch(ctx context.Context, key string) (Submission, error) {
	f, err := ParseFormat(strings.TrimPrefix(path.Ext(key), "."))
	if err != nil {
		return Submission{}, err
	}
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Submission{}, err
	}
	defer func() { _ = rc.Close() }()
	return Decode(rc, f)
}
