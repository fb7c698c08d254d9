// Package manifest writes the human-readable route listing produced at
// generation time and publishes it to files or S3.
//
// The listing is tab-separated UTF-8 text: a timestamp header line, a
// column line, then one line per route in table order.
//
//	# telepath route manifest, generated 2024-05-01 12:00:00
//	path	prefix	description	method
//	/api	true	API landing	example.com/app/nav.OpenAPI(c *ctl.Controller, p string)
package manifest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telepath-dev/telepath/pkg/route"
)

// TimeLayout formats the header timestamp.
const TimeLayout = "2006-01-02 15:04:05"

const (
	headerPrefix = "# telepath route manifest, generated "
	columnLine   = "path\tprefix\tdescription\tmethod"
)

// Write writes the manifest for t to w.
func Write(w io.Writer, t *route.Table, at time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s%s\n", headerPrefix, at.Format(TimeLayout))
	fmt.Fprintln(bw, columnLine)
	for _, n := range t.Nodes() {
		fmt.Fprintf(bw, "%s\t%t\t%s\t%s\n", n.Path(), n.Prefix(), field(n.Description()), n.Signature())
	}
	return bw.Flush()
}

// Render returns the manifest for t.
func Render(t *route.Table, at time.Time) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, t, at)
	return buf.Bytes()
}

// field keeps a value on one line and inside one column.
func field(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}

// Entry is one parsed manifest line.
type Entry struct {
	Path        string
	Prefix      bool
	Description string
	Method      string
}

// Parse reads a manifest written by Write.
func Parse(r io.Reader) (time.Time, []Entry, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return time.Time{}, nil, errors.New("manifest: empty input")
	}
	header := sc.Text()
	if !strings.HasPrefix(header, headerPrefix) {
		return time.Time{}, nil, fmt.Errorf("manifest: bad header %q", header)
	}
	at, err := time.Parse(TimeLayout, strings.TrimPrefix(header, headerPrefix))
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("manifest: bad timestamp: %w", err)
	}
	if !sc.Scan() || sc.Text() != columnLine {
		return time.Time{}, nil, errors.New("manifest: missing column line")
	}

	var entries []Entry
	for line := 3; sc.Scan(); line++ {
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) != 4 {
			return time.Time{}, nil, fmt.Errorf("manifest: line %d: want 4 columns, got %d", line, len(cols))
		}
		prefix, err := strconv.ParseBool(cols[1])
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("manifest: line %d: %w", line, err)
		}
		entries = append(entries, Entry{Path: cols[0], Prefix: prefix, Description: cols[2], Method: cols[3]})
	}
	return at, entries, sc.Err()
}

// Sink publishes a rendered manifest.
type Sink interface {
	Publish(ctx context.Context, data []byte) error
	String() string
}

// Emitter renders a table's manifest and hands it to every sink.
type Emitter struct {
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter publishing to sinks.
func NewEmitter(logger *zap.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sinks: sinks, logger: logger, now: time.Now}
}

// Emit publishes the manifest of t. Sink failures are logged as warnings
// and returned joined; they never invalidate the table.
func (e *Emitter) Emit(ctx context.Context, t *route.Table) error {
	data := Render(t, e.now())
	var errs []error
	for _, s := range e.sinks {
		if err := s.Publish(ctx, data); err != nil {
			e.logger.Warn("manifest emission failed", zap.String("sink", s.String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		e.logger.Debug("manifest published", zap.String("sink", s.String()), zap.Int("routes", t.Len()))
	}
	return errors.Join(errs...)
}
