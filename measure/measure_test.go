package measure

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "measure.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))

	return path
}

func TestInvokeCapturesOutputAndTiming(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\n"+
		"printf 'dir\\tparallel\\n%s\\t%s\\n' \"$1\" \"$2\"\n")

	cmd := NewExecCommand(script, nil, testLogger())

	m, err := cmd.Invoke(context.Background(), "/some/dir", 4)
	require.NoError(t, err)

	assert.Contains(t, m.Output, "/some/dir\t4")
	assert.True(t, strings.HasPrefix(m.Output, "dir\tparallel\n"))
	assert.Greater(t, m.Elapsed, time.Duration(0))
}

func TestInvokeExtraArgsPrecedePositionals(t *testing.T) {
	dir := t.TempDir()

	script := filepath.Join(dir, "wrapped.sh")
	require.NoError(t, os.WriteFile(script,
		[]byte("printf '%s %s\\n' \"$1\" \"$2\"\n"), 0o644))

	// The script has no shebang; run it through an interpreter the
	// way nvim runs a lua script.
	cmd := NewExecCommand("sh", []string{script}, testLogger())

	m, err := cmd.Invoke(context.Background(), dir, 2)
	require.NoError(t, err)
	assert.Equal(t, dir+" 2\n", m.Output)
}

func TestInvokeNonZeroExit(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\n"+
		"echo 'EMFILE: too many open files' >&2\n"+
		"exit 3\n")

	cmd := NewExecCommand(script, nil, testLogger())

	m, err := cmd.Invoke(context.Background(), ".", 1)
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Stderr, "EMFILE: too many open files")
	assert.Equal(t, script, cmdErr.Path)

	assert.Zero(t, m)
}

func TestInvokeMissingBinary(t *testing.T) {
	cmd := NewExecCommand(
		filepath.Join(t.TempDir(), "does-not-exist"), nil, testLogger(),
	)

	_, err := cmd.Invoke(context.Background(), ".", 1)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
}

func TestMeasurementElapsedMs(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 0},
		{1500 * time.Microsecond, 1.5},
		{time.Second, 1000},
		{250 * time.Millisecond, 250},
	}

	for _, tt := range tests {
		m := Measurement{Elapsed: tt.elapsed}
		assert.InDelta(t, tt.want, m.ElapsedMs(), 1e-9)
	}
}
