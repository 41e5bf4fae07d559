// Package chrometrace renders spans as a Chrome trace-event document
// (the JSON format read by chrome://tracing and Perfetto).
//
// Each span becomes a Begin/End event pair. All spans share one process
// track (pid 0); the span's lane is used as the thread id so that
// concurrently running commands land on separate rows.
package chrometrace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"

	"github.com/ppiankov/tracemake/internal/span"
)

// Phase constants
const (
	PhaseBegin = "B"
	PhaseEnd   = "E"
)

// DisplayTimeUnit is the unit hint written into every document.
const DisplayTimeUnit = "ms"

// ErrTimeRange is returned when a span time cannot be expressed in
// integer microseconds.
var ErrTimeRange = errors.New("chrometrace: time out of range")

// Event is one trace event.
type Event struct {
	Name      string         `json:"name"`
	Phase     string         `json:"ph"`
	Timestamp int64          `json:"ts"`
	ProcessID int            `json:"pid"`
	ThreadID  int            `json:"tid"`
	Args      map[string]any `json:"args"`
}

// Document is the top-level trace object.
type Document struct {
	TraceEvents     []Event `json:"traceEvents"`
	DisplayTimeUnit string  `json:"displayTimeUnit"`
}

// Name derives the label for a command: a leading "-c" (the shell's
// "run this string" flag) is dropped and the rest joined with spaces.
func Name(command []string) string {
	if len(command) > 0 && command[0] == "-c" {
		command = command[1:]
	}
	return strings.Join(command, " ")
}

// Build converts spans, already ordered by start, into a Document.
func Build(spans []span.Span) (*Document, error) {
	doc := &Document{
		TraceEvents:     make([]Event, 0, 2*len(spans)),
		DisplayTimeUnit: DisplayTimeUnit,
	}

	for _, s := range spans {
		start, err := Micros(s.Start)
		if err != nil {
			return nil, fmt.Errorf("span pid %d start: %w", s.PID, err)
		}
		stop, err := Micros(s.Stop)
		if err != nil {
			return nil, fmt.Errorf("span pid %d stop: %w", s.PID, err)
		}

		name := Name(s.Command)
		command := s.Command
		if command == nil {
			command = []string{}
		}
		doc.TraceEvents = append(doc.TraceEvents,
			Event{
				Name:      name,
				Phase:     PhaseBegin,
				Timestamp: start,
				ProcessID: 0,
				ThreadID:  s.Slot,
				Args:      map[string]any{"command": command},
			},
			Event{
				Name:      name,
				Phase:     PhaseEnd,
				Timestamp: stop,
				ProcessID: 0,
				ThreadID:  s.Slot,
				Args:      map[string]any{},
			},
		)
	}
	return doc, nil
}

// Micros converts fractional seconds to integer microseconds, rounding to
// the nearest microsecond.
func Micros(seconds float64) (int64, error) {
	us, err := safecast.Round[int64](seconds * 1e6)
	if err != nil {
		return 0, fmt.Errorf("%w: %v s", ErrTimeRange, seconds)
	}
	return us, nil
}

// Write encodes doc as JSON to w.
func Write(w io.Writer, doc *Document) error {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("chrometrace: encode: %w", err)
	}
	return nil
}

// WriteFile writes doc to path through a temporary file in the same
// directory, so readers never observe a partially written document.
func WriteFile(path string, doc *Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("chrometrace: create output: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chrometrace: close output: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chrometrace: chmod output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("chrometrace: write output: %w", err)
	}
	return nil
}
