// Package aggregate runs the log → spans → trace document pipeline.
package aggregate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/tracemake/internal/chrometrace"
	"github.com/ppiankov/tracemake/internal/span"
	"github.com/ppiankov/tracemake/internal/tracelog"
)

// Options configures one aggregation pass.
type Options struct {
	Input  string
	Output string
	Logger *zap.Logger
}

// Result describes what an aggregation pass produced.
type Result struct {
	Output string
	Stats  span.Stats
	Events int
	Failed int

	// Wall is the extent from the earliest start to the latest stop, in seconds.
	Wall float64
}

// Run reads the trace log, pairs its records and writes the trace document.
// Malformed log lines and output I/O errors abort the pass.
func Run(opts Options) (*Result, error) {
	records, err := tracelog.ReadFile(opts.Input)
	if err != nil {
		return nil, err
	}

	engine := span.NewEngine(opts.Logger)
	spans := engine.Pair(records)

	doc, err := chrometrace.Build(spans)
	if err != nil {
		return nil, err
	}
	if err := chrometrace.WriteFile(opts.Output, doc); err != nil {
		return nil, err
	}

	return &Result{
		Output: opts.Output,
		Stats:  engine.Stats(),
		Events: len(doc.TraceEvents),
		Failed: countFailed(spans),
		Wall:   wall(spans),
	}, nil
}

func countFailed(spans []span.Span) int {
	n := 0
	for _, s := range spans {
		if s.ExitStatus != nil && *s.ExitStatus != 0 {
			n++
		}
	}
	return n
}

func wall(spans []span.Span) float64 {
	if len(spans) == 0 {
		return 0
	}
	first := spans[0].Start
	last := spans[0].Stop
	for _, s := range spans[1:] {
		if s.Stop > last {
			last = s.Stop
		}
	}
	return last - first
}

// FormatSummary renders a one-line description of a pass.
func FormatSummary(r *Result) string {
	parts := []string{
		fmt.Sprintf("%d commands", r.Stats.Closed),
		fmt.Sprintf("%d lanes", r.Stats.Lanes),
		fmt.Sprintf("wall %.2fs", r.Wall),
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Stats.OrphanEnds > 0 {
		parts = append(parts, fmt.Sprintf("%d orphan ends", r.Stats.OrphanEnds))
	}
	if r.Stats.Dangling > 0 {
		parts = append(parts, fmt.Sprintf("%d dangling", r.Stats.Dangling))
	}
	return fmt.Sprintf("Trace aggregated to %s (%s)\n", r.Output, strings.Join(parts, ", "))
}
