// Package outputs writes pass results as line-delimited JSON under a
// venue/date partitioned directory tree.
package outputs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Writer lays out files as <Dir>/<kind>/venue=<Venue>/date=<Date>/<file>.
type Writer struct {
	Dir   string
	Venue string
	Date  string
}

func New(dir, venue, date string) *Writer {
	return &Writer{Dir: dir, Venue: venue, Date: date}
}

func (w *Writer) partition(kind, file string) string {
	return filepath.Join(w.Dir, kind, "venue="+w.Venue, "date="+w.Date, file)
}

func (w *Writer) ViolationsPath() string   { return w.partition("violations", "violations.jsonl") }
func (w *Writer) SummaryPath() string      { return w.partition("violations", "summary.json") }
func (w *Writer) ReviewQueuePath() string  { return w.partition("review_queue", "queue.jsonl") }
func (w *Writer) ConstraintsPath() string  { return w.partition("constraints", "constraints.jsonl") }
func (w *Writer) PropositionsPath() string { return w.partition("propositions", "propositions.jsonl") }
func (w *Writer) ExtractionStatsPath() string {
	return w.partition("propositions", "extraction_stats.json")
}

// Emit replaces the violation, constraint and summary files and appends the
// review delta to the queue file. Each write is attempted even if an earlier
// one failed.
func (w *Writer) Emit(_ context.Context, res engine.PassResult) error {
	errs := []error{
		WriteJSONL(w.ViolationsPath(), res.Violations),
		WriteJSONL(w.ConstraintsPath(), res.Constraints),
		AppendJSONL(w.ReviewQueuePath(), res.ReviewDelta),
		WriteJSON(w.SummaryPath(), res.Summary),
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	logging.Infof("[outputs] wrote %d violations and %d review items to %s", len(res.Violations), len(res.ReviewDelta), w.Dir)
	return nil
}

// WritePropositions snapshots props for the partition.
func (w *Writer) WritePropositions(props []proposition.Proposition) error {
	return WriteJSONL(w.PropositionsPath(), props)
}

// WriteJSONL atomically replaces path with one JSON document per record.
func WriteJSONL[T any](path string, records []T) error {
	return replace(path, func(f io.Writer) error { return encodeLines(f, records) })
}

// AppendJSONL appends records to path, creating it if needed.
func AppendJSONL[T any](path string, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := encodeLines(bw, records); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON atomically replaces path with an indented JSON document.
func WriteJSON(path string, v any) error {
	return replace(path, func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// ReadJSONL decodes every line of path into T. Blank lines are skipped; a
// missing file yields no records.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(b, &rec); err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

func encodeLines[T any](w io.Writer, records []T) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return err
		}
	}
	return nil
}

func replace(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
