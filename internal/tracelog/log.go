package tracelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockUnsupported is returned by Append on platforms without flock.
var ErrLockUnsupported = errors.New("exclusive file lock not supported on this platform")

// Log is an append-only JSONL trace log shared by many writer processes.
// Every Append opens the file, takes an exclusive lock, writes one whole
// line and releases the lock, so lines from concurrent writers never
// interleave. Readers take no lock.
type Log struct {
	path string
}

// Open prepares a trace log at path, creating its parent directory.
// The file itself is created lazily by the first Append.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("tracelog: create directory: %w", err)
	}
	return &Log{path: path}, nil
}

// Path returns the file path of the log.
func (l *Log) Path() string {
	return l.path
}

// Append writes rec as one line while holding an exclusive lock on the file.
func (l *Log) Append(rec Record) error {
	line, err := rec.MarshalLine()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("tracelog: open file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("tracelog: lock: %w", err)
	}
	defer unlockFile(f)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("tracelog: write record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("tracelog: sync: %w", err)
	}
	return nil
}

// Begin appends a Begin record for pid at t carrying the command argv.
func (l *Log) Begin(pid int, t time.Time, args []string) error {
	return l.Append(Record{
		PID:   pid,
		Phase: Begin,
		Time:  Seconds(t),
		Args:  args,
	})
}

// End appends an End record for pid at t with the command's exit status.
func (l *Log) End(pid int, t time.Time, exitStatus int) error {
	return l.Append(Record{
		PID:        pid,
		Phase:      End,
		Time:       Seconds(t),
		ExitStatus: &exitStatus,
	})
}

// Seconds converts t to fractional seconds since the Unix epoch.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
