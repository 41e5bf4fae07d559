package tracelog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Phase marks a record as the start or the end of a traced command.
type Phase string

const (
	Begin Phase = "B"
	End   Phase = "E"
)

// Format names the on-disk record layout. Bump it if a field changes meaning.
const Format = "tracemake-jsonl/1"

// ErrMalformedRecord is wrapped by every error returned for a log line
// that does not decode into a valid Record.
var ErrMalformedRecord = errors.New("malformed trace record")

// Record is one line in the JSONL trace log.
// Args is only set on Begin records, ExitStatus only (optionally) on End.
type Record struct {
	PID        int      `json:"pid"`
	Phase      Phase    `json:"type"`
	Time       float64  `json:"time"`
	Args       []string `json:"args,omitempty"`
	ExitStatus *int     `json:"exit_status,omitempty"`
}

// wireRecord mirrors Record with pointer fields so that missing keys
// can be told apart from zero values.
type wireRecord struct {
	PID        *int     `json:"pid"`
	Phase      Phase    `json:"type"`
	Time       *float64 `json:"time"`
	Args       []string `json:"args"`
	ExitStatus *int     `json:"exit_status"`
}

// ParseRecord decodes a single log line.
func ParseRecord(line []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if w.PID == nil {
		return Record{}, fmt.Errorf("%w: missing pid", ErrMalformedRecord)
	}
	if w.Time == nil {
		return Record{}, fmt.Errorf("%w: missing time", ErrMalformedRecord)
	}
	switch w.Phase {
	case Begin, End:
	default:
		return Record{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRecord, w.Phase)
	}

	rec := Record{
		PID:   *w.PID,
		Phase: w.Phase,
		Time:  *w.Time,
	}
	if rec.Phase == Begin {
		rec.Args = w.Args
	} else {
		rec.ExitStatus = w.ExitStatus
	}
	return rec, nil
}

// MarshalLine encodes r as a newline-terminated JSON line.
func (r Record) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("tracelog: marshal record: %w", err)
	}
	return append(data, '\n'), nil
}
