// Package span pairs Begin and End trace records into closed spans and
// assigns each span a visualization lane.
package span

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/ppiankov/tracemake/internal/slots"
	"github.com/ppiankov/tracemake/internal/tracelog"
)

// Span is the execution window of one traced command.
type Span struct {
	Start      float64
	PID        int
	Slot       int
	Command    []string
	Stop       float64
	ExitStatus *int
}

// Duration returns Stop-Start in seconds.
func (s Span) Duration() float64 {
	return s.Stop - s.Start
}

// Stats counts what happened during one pairing pass.
type Stats struct {
	Records    int
	Closed     int
	OrphanEnds int
	Dangling   int
	Reused     int
	Lanes      int
}

// Engine replays a record stream. It owns the lane allocator and the
// open-span table; each Pair call starts from empty state.
type Engine struct {
	logger   *zap.Logger
	slots    *slots.Allocator
	open     map[int]*opened
	closed   []opened
	dangling []Span
	stats    Stats
}

// opened is a span plus the position of its Begin in the sorted stream,
// which breaks ties between spans starting at the same time.
type opened struct {
	Span
	seq int
}

func byStart(a, b opened) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// NewEngine returns an Engine that reports anomalies to logger.
// A nil logger discards them.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger: logger,
		slots:  slots.New(),
		open:   make(map[int]*opened),
	}
}

// Pair sorts records by time (equal times keep log order), replays them and
// returns the closed spans ordered by start time. Spans that never see an
// End are left out of the result and reported via Dangling.
func (e *Engine) Pair(records []tracelog.Record) []Span {
	e.reset()

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, byTime)

	for i, rec := range sorted {
		e.stats.Records++
		switch rec.Phase {
		case tracelog.Begin:
			e.begin(i, rec)
		case tracelog.End:
			e.end(rec)
		}
	}
	e.collectDangling()

	slices.SortFunc(e.closed, byStart)
	spans := make([]Span, len(e.closed))
	for i, o := range e.closed {
		spans[i] = o.Span
	}
	e.stats.Closed = len(spans)
	e.stats.Lanes = e.slots.Count()
	return spans
}

func (e *Engine) reset() {
	e.slots = slots.New()
	clear(e.open)
	e.closed = nil
	e.dangling = nil
	e.stats = Stats{}
}

func byTime(a, b tracelog.Record) int {
	return cmp.Compare(a.Time, b.Time)
}

func (e *Engine) begin(seq int, rec tracelog.Record) {
	if prev, ok := e.open[rec.PID]; ok {
		// Most recent Begin wins; release the stale lane before rescheduling.
		e.stats.Reused++
		e.logger.Warn("pid reused before end, discarding earlier span",
			zap.Int("pid", rec.PID),
			zap.Float64("earlier_start", prev.Start),
			zap.Float64("time", rec.Time),
		)
		e.slots.Free(rec.PID)
		delete(e.open, rec.PID)
	}

	e.open[rec.PID] = &opened{
		Span: Span{
			Start:   rec.Time,
			PID:     rec.PID,
			Slot:    e.slots.Schedule(rec.PID),
			Command: rec.Args,
		},
		seq: seq,
	}
}

func (e *Engine) end(rec tracelog.Record) {
	e.slots.Free(rec.PID)

	s, ok := e.open[rec.PID]
	if !ok {
		e.stats.OrphanEnds++
		e.logger.Warn("orphan end, no start for pid",
			zap.Int("pid", rec.PID),
			zap.Float64("time", rec.Time),
		)
		return
	}
	delete(e.open, rec.PID)
	s.Stop = rec.Time
	s.ExitStatus = rec.ExitStatus
	e.closed = append(e.closed, *s)
}

func (e *Engine) collectDangling() {
	left := make([]opened, 0, len(e.open))
	for _, o := range e.open {
		left = append(left, *o)
	}
	clear(e.open)

	slices.SortFunc(left, byStart)
	for _, o := range left {
		e.dangling = append(e.dangling, o.Span)
	}
	for _, s := range e.dangling {
		e.logger.Warn("dangling begin, command never ended",
			zap.Int("pid", s.PID),
			zap.Float64("start", s.Start),
			zap.Strings("command", s.Command),
		)
	}
	e.stats.Dangling = len(e.dangling)
}

// Dangling returns spans whose Begin was never matched by an End.
func (e *Engine) Dangling() []Span {
	return e.dangling
}

// Stats returns counters for the last Pair call.
func (e *Engine) Stats() Stats {
	return e.stats
}
