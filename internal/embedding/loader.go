package embedding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrResourceNotFound is returned when a named embedding table cannot be located.
var ErrResourceNotFound = errors.New("embedding resource not found")

// ErrMalformedRow marks a row that could not be parsed as token + coordinates.
var ErrMalformedRow = errors.New("malformed embedding row")

// MalformedRowError describes one rejected row. Line is 1-based; Field is the
// 1-based coordinate column, or 0 when the row as a whole is wrong.
type MalformedRowError struct {
	Line   int
	Field  int
	Reason string
	Err    error
}

func (e *MalformedRowError) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	if e.Field > 0 {
		msg = fmt.Sprintf("line %d field %d: %s", e.Line, e.Field, e.Reason)
	}
	if cause := e.cause(); cause != "" {
		msg += ": " + cause
	}
	return msg
}

// cause describes Err without echoing the row's text.
func (e *MalformedRowError) cause() string {
	var numErr *strconv.NumError
	switch {
	case e.Err == nil:
		return ""
	case errors.As(e.Err, &numErr):
		return numErr.Err.Error()
	default:
		return e.Err.Error()
	}
}

// Unwrap exposes the sentinel and the underlying parse error.
func (e *MalformedRowError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRow, e.Err}
	}
	return []error{ErrMalformedRow}
}

// MalformedRowPolicy decides what a load does when a row is rejected.
type MalformedRowPolicy string

const (
	// PolicySkip logs the row, records it in the report, and keeps loading.
	PolicySkip MalformedRowPolicy = "skip"
	// PolicyAbort stops the load and returns the row error with no index.
	PolicyAbort MalformedRowPolicy = "abort"
)

// ParsePolicy converts a config value to a policy. Empty means PolicySkip.
func ParsePolicy(s string) (MalformedRowPolicy, error) {
	switch MalformedRowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySkip, "":
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown malformed row policy %q (supported: skip, abort)", s)
	}
}

// SkippedRow is a row left out of the index under PolicySkip.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LoadReport summarizes one load.
type LoadReport struct {
	Resource   string        `json:"resource"`
	Rows       int           `json:"rows"`
	Loaded     int           `json:"loaded"`
	Dimensions int           `json:"dimensions"`
	Skipped    []SkippedRow  `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

const (
	defaultDelimiter = ","
	maxLineBytes     = 1 << 20
)

// Loader parses delimited embedding tables. Each call produces a new Index;
// nothing is merged into a previous one.
type Loader struct {
	resolver  *Resolver
	policy    MalformedRowPolicy
	delimiter string
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for rejected rows and load summaries.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithPolicy sets the malformed row policy (default PolicySkip).
func WithPolicy(p MalformedRowPolicy) LoaderOption {
	return func(ld *Loader) { ld.policy = p }
}

// WithDelimiter overrides the field delimiter (default ",").
func WithDelimiter(d string) LoaderOption {
	return func(ld *Loader) {
		if d != "" {
			ld.delimiter = d
		}
	}
}

// NewLoader returns a loader. resolver may be nil when only LoadFile and Load are used.
func NewLoader(resolver *Resolver, opts ...LoaderOption) *Loader {
	ld := &Loader{
		resolver:  resolver,
		policy:    PolicySkip,
		delimiter: defaultDelimiter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// LoadResource resolves name and loads it.
func (ld *Loader) LoadResource(ctx context.Context, name string) (*Index, *LoadReport, error) {
	if ld.resolver == nil {
		return nil, nil, fmt.Errorf("%w: %s (no resolver configured)", ErrResourceNotFound, name)
	}
	path, err := ld.resolver.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	return ld.LoadFile(ctx, path)
}

// LoadFromDirs loads name from the resolver's directories only. It is the
// entry point for names supplied by remote callers.
func (ld *Loader) LoadFromDirs(ctx context.Context, name string) (*Index, *LoadReport, error) {
	if ld.resolver == nil {
		return nil, nil, fmt.Errorf("%w: %s (no resolver configured)", ErrResourceNotFound, name)
	}
	path, err := ld.resolver.ResolveInDirs(name)
	if err != nil {
		return nil, nil, err
	}
	return ld.LoadFile(ctx, path)
}

// LoadFile opens path and loads it. The file is closed on every return path.
func (ld *Loader) LoadFile(ctx context.Context, path string) (*Index, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
		}
		return nil, nil, fmt.Errorf("open embedding table: %w", err)
	}
	defer f.Close()

	idx, report, err := ld.Load(ctx, f)
	if report != nil {
		report.Resource = path
	}
	return idx, report, err
}

// Load parses r. Blank lines are ignored. Field 0 of each row is the token and
// the remaining fields are its coordinates in column order. Under PolicyAbort
// the first rejected row is returned as a *MalformedRowError and the index is nil.
func (ld *Loader) Load(ctx context.Context, r io.Reader) (*Index, *LoadReport, error) {
	start := time.Now()
	idx := newIndex(0)
	report := &LoadReport{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, report, err
			}
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		report.Rows++

		word, vec, rowErr := ld.parseRow(text, line, idx.dimensions, idx.Len() == 0)
		if rowErr != nil {
			if ld.policy == PolicyAbort {
				ld.logger.Error("embedding load aborted", zap.Int("line", line), zap.Error(rowErr))
				return nil, report, rowErr
			}
			ld.logger.Warn("skipping malformed embedding row", zap.Int("line", line), zap.Error(rowErr))
			report.Skipped = append(report.Skipped, SkippedRow{Line: line, Reason: rowErr.Error()})
			continue
		}
		idx.append(word, vec)
	}
	if err := sc.Err(); err != nil {
		return nil, report, fmt.Errorf("read embedding table: %w", err)
	}

	report.Loaded = idx.Len()
	report.Dimensions = idx.Dimensions()
	report.Duration = time.Since(start)
	ld.logger.Info("embedding table loaded",
		zap.Int("rows", report.Rows),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("dimensions", report.Dimensions),
		zap.Duration("duration", report.Duration),
	)
	return idx, report, nil
}

// parseRow splits one row. dims is the expected coordinate count; it is not
// checked for the first accepted row, which defines it.
func (ld *Loader) parseRow(text string, line, dims int, first bool) (string, []float64, error) {
	fields := strings.Split(text, ld.delimiter)
	word := strings.TrimSpace(fields[0])
	if word == "" {
		return "", nil, &MalformedRowError{Line: line, Reason: "empty token"}
	}
	if len(fields) < 2 {
		return "", nil, &MalformedRowError{Line: line, Reason: "no coordinates"}
	}
	if !first && len(fields)-1 != dims {
		return "", nil, &MalformedRowError{
			Line:   line,
			Reason: fmt.Sprintf("dimension mismatch: got %d, expected %d", len(fields)-1, dims),
		}
	}
	vec := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, &MalformedRowError{Line: line, Field: i + 1, Reason: "not a number", Err: err}
		}
		vec[i] = v
	}
	return word, vec, nil
}
