// Package measure runs single invocations of the external measurement
// command and captures their timing and tabular output.
package measure

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// Measurement is the outcome of one successful invocation: the
// wall-clock time of the full spawn-wait lifecycle and the captured
// standard output. Values are never modified after being returned.
type Measurement struct {
	Elapsed time.Duration
	Output  string
}

// ElapsedMs returns the elapsed time in milliseconds as a float,
// the unit all latency arithmetic uses.
func (m Measurement) ElapsedMs() float64 {
	return float64(m.Elapsed.Microseconds()) / 1000.0
}

// Command runs the measurement command once against a directory with a
// given parallelism level. Implementations must run calls one at a
// time; callers rely on sequential invocation for independent timing
// samples.
type Command interface {
	Invoke(ctx context.Context, dir string, parallelism int) (Measurement, error)
}

// CommandError reports a measurement command that exited non-zero.
// Stderr holds whatever diagnostics the command wrote.
type CommandError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf(
		"measurement command %s failed: %v\nstderr: %s",
		e.Path, e.Err, e.Stderr,
	)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecCommand invokes a real external command. The command is run as
//
//	path [extraArgs...] dir parallelism
//
// For wrapped commands (e.g. an interpreter plus a script), pass the
// interpreter as Path and the script in ExtraArgs.
type ExecCommand struct {
	Path      string
	ExtraArgs []string
	Logger    *slog.Logger
}

// NewExecCommand creates an ExecCommand for the given binary.
func NewExecCommand(path string, extraArgs []string, logger *slog.Logger) *ExecCommand {
	return &ExecCommand{
		Path:      path,
		ExtraArgs: extraArgs,
		Logger:    logger.With(slog.String("command", path)),
	}
}

// Invoke spawns one measurement process and waits for it. The elapsed
// time covers the whole spawn-wait lifecycle, not just the command's
// in-process compute time.
func (c *ExecCommand) Invoke(
	ctx context.Context, dir string, parallelism int,
) (Measurement, error) {
	args := make([]string, 0, len(c.ExtraArgs)+2)
	args = append(args, c.ExtraArgs...)
	args = append(args, dir, strconv.Itoa(parallelism))

	cmd := exec.CommandContext(ctx, c.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.Logger.Debug("invoking measurement command",
		slog.String("dir", dir),
		slog.Int("parallelism", parallelism),
	)

	start := time.Now()

	if err := cmd.Run(); err != nil {
		return Measurement{}, &CommandError{
			Path:   c.Path,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	elapsed := time.Since(start)

	c.Logger.Debug("measurement command finished",
		slog.Duration("elapsed", elapsed),
	)

	if stderr.Len() > 0 {
		c.Logger.Warn("measurement command wrote to stderr",
			slog.String("stderr", stderr.String()),
		)
	}

	return Measurement{
		Elapsed: elapsed,
		Output:  stdout.String(),
	}, nil
}
