package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ppiankov/tracemake/internal/chrometrace"
	"github.com/ppiankov/tracemake/internal/tracelog"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Reset flags between runs.
	configPath = ""
	verbose = false
	aggregateOutput = ""
	aggregateWatch = false
	aggregateDebounce = 0
	aggregateMaxWait = 0
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })
	return &code
}

func TestShellThenAggregate(t *testing.T) {
	dir := t.TempDir()
	traceFile := filepath.Join(dir, "logs", "make.trace")
	t.Setenv("TRACE_FILE", traceFile)
	t.Setenv("TRACEMAKE_SHELL", "")
	captureExit(t)

	for _, recipe := range []string{`echo "Building step1"`, "sleep 0.05", `echo "Linking"`} {
		if _, stderr, err := execute(t, "shell", "-c", recipe); err != nil {
			t.Fatalf("shell %q: %v (%s)", recipe, err, stderr)
		}
	}

	output := filepath.Join(dir, "trace.json")
	stdout, _, err := execute(t, "aggregate", "-o", output)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !strings.Contains(stdout, "3 commands") {
		t.Errorf("expected summary with 3 commands, got %q", stdout)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var doc chrometrace.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.TraceEvents) != 6 {
		t.Fatalf("expected 6 events, got %d", len(doc.TraceEvents))
	}
	names := map[string]bool{}
	for _, ev := range doc.TraceEvents {
		names[ev.Name] = true
	}
	for _, want := range []string{`echo "Building step1"`, "sleep 0.05", `echo "Linking"`} {
		if !names[want] {
			t.Errorf("missing command %q in %v", want, names)
		}
	}
}

func TestShellMirrorsExitCode(t *testing.T) {
	t.Setenv("TRACE_FILE", filepath.Join(t.TempDir(), "make.trace"))
	t.Setenv("TRACEMAKE_SHELL", "")
	code := captureExit(t)

	if _, _, err := execute(t, "shell", "-c", "exit 4"); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if *code != 4 {
		t.Fatalf("expected exit 4, got %d", *code)
	}
}

func TestAggregatePositionalInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "custom.trace")
	l, err := tracelog.Open(input)
	if err != nil {
		t.Fatal(err)
	}
	l.Append(tracelog.Record{PID: 1, Phase: tracelog.Begin, Time: 1, Args: []string{"-c", "true"}})
	l.Append(tracelog.Record{PID: 1, Phase: tracelog.End, Time: 2})

	t.Setenv("TRACE_FILE", filepath.Join(dir, "ignored.trace"))
	output := filepath.Join(dir, "out.json")
	if _, _, err := execute(t, "aggregate", input, "-o", output); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestAggregateRequiresOutput(t *testing.T) {
	stdout, stderr, err := execute(t, "aggregate")
	if !errors.Is(err, errOutputRequired) {
		t.Fatalf("expected errOutputRequired, got %v", err)
	}
	if !strings.Contains(stdout+stderr, "Usage:") {
		t.Errorf("expected usage text, got %q", stdout+stderr)
	}
}

func TestAggregateMalformedLogFails(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.trace")
	os.WriteFile(input, []byte("{oops\n"), 0644)

	_, _, err := execute(t, "aggregate", input, "-o", filepath.Join(dir, "out.json"))
	var pe *tracelog.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestAggregateWarnsOnOrphanEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "orphan.trace")
	os.WriteFile(input, []byte(`{"pid":9,"type":"E","time":1}`+"\n"), 0644)

	_, stderr, err := execute(t, "aggregate", input, "-o", filepath.Join(dir, "out.json"))
	if err != nil {
		t.Fatalf("orphan end must not fail the run: %v", err)
	}
	if !strings.Contains(stderr, "orphan end") {
		t.Errorf("expected orphan warning on stderr, got %q", stderr)
	}
}

func TestNoSubcommandIsUsageError(t *testing.T) {
	if _, _, err := execute(t); !errors.Is(err, errUsage) {
		t.Fatalf("expected errUsage, got %v", err)
	}
	if _, _, err := execute(t, "bogus"); err == nil {
		t.Fatal("expected error for unknown subcommand")
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("version output is not JSON: %v", err)
	}
	if info["name"] != "tracemake" || info["version"] != version {
		t.Errorf("unexpected version info: %v", info)
	}
	if info["log_format"] != tracelog.Format {
		t.Errorf("expected log_format %q, got %q", tracelog.Format, info["log_format"])
	}
}
