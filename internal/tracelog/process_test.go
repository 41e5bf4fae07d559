package tracelog

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	appenderPathEnv  = "TRACELOG_TEST_APPENDER_PATH"
	appenderCountEnv = "TRACELOG_TEST_APPENDER_COUNT"
)

// TestMain doubles as an appender process when the helper env is set,
// so the multi-process test exercises real independent writers.
func TestMain(m *testing.M) {
	if path := os.Getenv(appenderPathEnv); path != "" {
		os.Exit(runAppender(path))
	}
	os.Exit(m.Run())
}

func runAppender(path string) int {
	n, _ := strconv.Atoi(os.Getenv(appenderCountEnv))
	l, err := Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	payload := strings.Repeat(strconv.Itoa(os.Getpid()%10), 16*1024)
	for i := 0; i < n; i++ {
		if err := l.Begin(os.Getpid(), time.Now(), []string{"-c", payload}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := l.End(os.Getpid(), time.Now(), i%3); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

func TestConcurrentAppendersAcrossProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns writer processes")
	}

	path := filepath.Join(t.TempDir(), "shared.trace")
	const (
		writers   = 8
		perWriter = 40
	)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			cmd := exec.Command(os.Args[0], "-test.run=^$")
			cmd.Env = append(os.Environ(),
				appenderPathEnv+"="+path,
				appenderCountEnv+"="+strconv.Itoa(perWriter),
			)
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("appender: %v: %s", err, out)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("expected every line to parse independently, got: %v", err)
	}
	if len(records) != writers*perWriter*2 {
		t.Fatalf("expected %d records, got %d", writers*perWriter*2, len(records))
	}

	perPID := map[int]int{}
	for _, rec := range records {
		perPID[rec.PID]++
		if rec.Phase == Begin {
			want := strings.Repeat(strconv.Itoa(rec.PID%10), 16*1024)
			if rec.Args[1] != want {
				t.Fatalf("pid %d: payload corrupted", rec.PID)
			}
		}
	}
	if len(perPID) != writers {
		t.Fatalf("expected %d distinct writers, got %d", writers, len(perPID))
	}
	for pid, n := range perPID {
		if n != perWriter*2 {
			t.Errorf("pid %d wrote %d records, want %d", pid, n, perWriter*2)
		}
	}
}
