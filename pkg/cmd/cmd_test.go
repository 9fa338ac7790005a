package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/report"
	"github.com/maxgio92/tracegraph/pkg/trace"
)

const fixture = "../static/testdata/test_static_output"

func newTestCommand(t *testing.T, ctx context.Context) *cobra.Command {
	t.Helper()
	logger := log.New(log.NewTestWriter(t))
	opts := NewOptions(WithContext(ctx), WithLogger(logger))

	return NewCommand(opts)
}

// shortTempDir returns a directory short enough to hold unix sockets.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tg")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return dir
}

// usePidFile points the daemon PID file to path for the test.
func usePidFile(t *testing.T, path string) {
	t.Helper()
	orig := settings.PidFile
	settings.PidFile = path
	t.Cleanup(func() { settings.PidFile = orig })
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

func TestNewCommand(t *testing.T) {
	cmd := newTestCommand(t, context.Background())
	require.NotNil(t, cmd)

	require.Equal(t, "tracegraph", cmd.Name())
	require.Contains(t, cmd.Short, "call graphs")
	require.NotEmpty(t, cmd.Long)
	require.True(t, cmd.HasSubCommands())
	require.True(t, cmd.DisableAutoGenTag)
}

func TestCommandFlags(t *testing.T) {
	cmd := newTestCommand(t, context.Background())

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	require.Equal(t, "string", flag.Value.Type())
	require.Equal(t, "info", flag.DefValue)
	require.Contains(t, flag.Usage, "log level")
}

func TestCommandSubcommands(t *testing.T) {
	cmd := newTestCommand(t, context.Background())

	subcommands := make(map[string]*cobra.Command)
	for _, subCmd := range cmd.Commands() {
		subcommands[subCmd.Name()] = subCmd
	}

	for _, expected := range []string{"trace", "load", "funcs", "status", "stop", "wait"} {
		require.Contains(t, subcommands, expected)
		require.True(t, subcommands[expected].DisableAutoGenTag)
	}
}

func TestCommandHelp(t *testing.T) {
	out, err := execute(t, newTestCommand(t, context.Background()), "--help")
	require.NoError(t, err)

	require.Contains(t, out, "tracegraph")
	require.Contains(t, out, "Available Commands:")
	for _, sub := range []string{"trace", "load", "funcs", "status", "stop", "wait"} {
		require.Contains(t, out, sub)
	}
}

func TestCommandInvalidFlag(t *testing.T) {
	out, err := execute(t, newTestCommand(t, context.Background()), "--invalid-flag")
	require.Error(t, err)
	require.Contains(t, out, "unknown flag")
}

func TestCommandLogLevelFlag(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		wantErr  bool
	}{
		{"trace level", "trace", false},
		{"debug level", "debug", false},
		{"info level", "info", false},
		{"warn level", "warn", false},
		{"error level", "error", false},
		{"invalid level", "invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCommand(t, context.Background())
			_, err := execute(t, cmd, "--log-level", tt.logLevel, "load", fixture)
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid log level")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		wantErr  bool
	}{
		{
			name:     "text",
			args:     []string{"load", fixture},
			contains: []string{"Nodes (6):", "func6 -> func1 2 (...)"},
		},
		{
			name:     "dot",
			args:     []string{"load", "-o", "dot", fixture},
			contains: []string{"digraph tracegraph {", `label="func3"`},
		},
		{
			name:     "json",
			args:     []string{"load", "--output=json", fixture},
			contains: []string{`"called_name": "func2"`, `"label": "3"`},
		},
		{
			name:    "unknown format",
			args:    []string{"load", "-o", "svg", fixture},
			wantErr: true,
		},
		{
			name:    "missing file",
			args:    []string{"load", filepath.Join(t.TempDir(), "missing")},
			wantErr: true,
		},
		{
			name:    "no file",
			args:    []string{"load"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, newTestCommand(t, context.Background()), tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				require.Contains(t, out, s)
			}
		})
	}
}

func TestFuncsCommand(t *testing.T) {
	bin, err := os.Executable()
	require.NoError(t, err)

	out, err := execute(t, newTestCommand(t, context.Background()),
		"funcs", "--include", `^testing\.tRunner$`, bin)
	require.NoError(t, err)
	require.Contains(t, out, "\ttesting.tRunner\n")

	_, err = execute(t, newTestCommand(t, context.Background()), "funcs", "/nonexistent/app")
	require.ErrorIs(t, err, trace.ErrBinaryNotFound)
}

func TestTraceCommand_NoFunctions(t *testing.T) {
	dir := shortTempDir(t)
	usePidFile(t, filepath.Join(dir, "pid"))

	_, err := execute(t, newTestCommand(t, context.Background()),
		"trace", "--report", "", "--socket-path", filepath.Join(dir, "s.sock"))
	require.ErrorIs(t, err, trace.ErrNoFunctionsToTrace)

	_, err = os.Stat(settings.PidFile)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestTraceCommand_ShellTracer(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := shortTempDir(t)
	usePidFile(t, filepath.Join(dir, "pid"))
	reportPath := filepath.Join(dir, "report.json")

	// The tracer prints one stack, then exits on its own.
	script := `printf '1 1 app func1 42\n  func1+0x0 [app]\n  main+0x14 [app]\n\n'; sleep 0.5`

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := execute(t, newTestCommand(t, ctx),
		"trace",
		"--tracer", "/bin/sh",
		"--stack-flag", "-c",
		"--report", reportPath,
		"--socket-path", filepath.Join(dir, "s.sock"),
		"--", script,
	)
	require.ErrorIs(t, err, trace.ErrTracingStopped)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var r report.GraphReport
	require.NoError(t, json.Unmarshal(data, &r))
	require.NotEmpty(t, r.Session)
	require.Equal(t, uint64(1), r.Stacks)
	require.Len(t, r.Nodes, 2)
	require.Len(t, r.Edges, 1)
	require.Equal(t, "main", r.Edges[0].CallerName)
	require.Equal(t, "func1", r.Edges[0].CalledName)
	require.Equal(t, "42", r.Edges[0].Label)
}

// lockedBuffer collects log lines written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestTraceCommand_UnwritablePidFile(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := shortTempDir(t)
	usePidFile(t, filepath.Join(dir, "missing", "pid"))
	reportPath := filepath.Join(dir, "report.json")

	var logs lockedBuffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := NewCommand(NewOptions(WithContext(ctx), WithLogger(log.New(&logs))))

	script := `printf '1 1 app func1\n  func1+0x0 [app]\n  main+0x14 [app]\n\n'`
	_, err := execute(t, cmd,
		"trace",
		"--tracer", "/bin/sh",
		"--stack-flag", "-c",
		"--report", reportPath,
		"--socket-path", filepath.Join(dir, "s.sock"),
		"--", script,
	)
	require.ErrorIs(t, err, trace.ErrTracingStopped)
	require.Contains(t, logs.String(), "failed to write PID file")
	require.Contains(t, logs.String(), settings.PidFile)

	// The session still ran and reported.
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var r report.GraphReport
	require.NoError(t, json.Unmarshal(data, &r))
	require.Equal(t, uint64(1), r.Stacks)
}

func TestStatusCommand(t *testing.T) {
	dir := shortTempDir(t)
	usePidFile(t, filepath.Join(dir, "pid"))

	out, err := execute(t, newTestCommand(t, context.Background()), "status")
	require.NoError(t, err)
	require.Equal(t, "tracegraph is not running\n", out)

	require.NoError(t, os.WriteFile(settings.PidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))
	out, err = execute(t, newTestCommand(t, context.Background()), "status")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("tracegraph is running (PID %d)\n", os.Getpid()), out)
}

func TestStopCommand_NotRunning(t *testing.T) {
	dir := shortTempDir(t)
	usePidFile(t, filepath.Join(dir, "pid"))

	out, err := execute(t, newTestCommand(t, context.Background()), "stop")
	require.NoError(t, err)
	require.Contains(t, out, "not running")
}

func TestWaitCommand_Timeout(t *testing.T) {
	dir := shortTempDir(t)

	_, err := execute(t, newTestCommand(t, context.Background()),
		"wait", "--socket-path", filepath.Join(dir, "s.sock"), "--timeout", "100ms")
	require.ErrorContains(t, err, "tracer not ready")
}

func TestCommandContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := newTestCommand(t, ctx)
	cmd.SetContext(ctx)
	require.Equal(t, ctx, cmd.Context())
}

func TestCommandExecutionWithoutSubcommand(t *testing.T) {
	out, err := execute(t, newTestCommand(t, context.Background()))
	require.NoError(t, err)

	// Should show help when no subcommand is provided
	require.Contains(t, out, "tracegraph")
	require.Contains(t, out, "Available Commands:")
}
