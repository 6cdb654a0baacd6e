// Package bench drives the warm-up, scheduling, and aggregation phases
// of a benchmark: it estimates the measurement command's mean latency
// from a warm-up sample, sizes the main run to a target wall-clock
// duration, and merges the repeated tabular outputs into one table
// with a single header line.
//
// Every invocation of the measurement command is strictly sequential.
// That is an invariant, not an accident: one process finishes before
// the next starts, so timing samples stay independent and runs never
// contend with each other for resources.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"dirbench/measure"
)

const (
	// MinWarmup is the smallest warm-up count that yields a usable
	// latency estimate.
	MinWarmup = 10

	// MinRuns is the floor on the main run count: even when the
	// estimated mean latency exceeds the target duration, at least
	// this many runs are scheduled so the sample stays meaningful.
	MinRuns = 10

	// MinDuration is the smallest accepted target duration.
	MinDuration = time.Second
)

var (
	// ErrNoSamples reports a mean requested over zero samples.
	ErrNoSamples = errors.New("no timing samples collected")

	// ErrEmptyOutput reports an aggregation that produced no lines.
	ErrEmptyOutput = errors.New("merged output is empty")
)

// RunConfig holds the validated parameters for one benchmark cell.
// Construct it once, call Validate, and treat it as read-only.
type RunConfig struct {
	Dir         string
	Parallelism int
	Warmup      int
	Duration    time.Duration
}

// Validate checks every parameter before any subprocess is spawned.
func (cfg RunConfig) Validate() error {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return fmt.Errorf("target dir %s: %w", cfg.Dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("target dir %s: not a directory", cfg.Dir)
	}

	if cfg.Parallelism < 1 {
		return fmt.Errorf("parallelism must be >= 1, got %d", cfg.Parallelism)
	}

	if cfg.Warmup < MinWarmup {
		return fmt.Errorf(
			"warmup count must be >= %d, got %d", MinWarmup, cfg.Warmup,
		)
	}

	if cfg.Duration < MinDuration {
		return fmt.Errorf(
			"duration must be >= %v, got %v", MinDuration, cfg.Duration,
		)
	}

	return nil
}

// Runner executes benchmark phases against an injected measurement
// command, so tests can substitute deterministic stubs for real
// processes.
type Runner struct {
	cmd measure.Command
	log *slog.Logger
}

// NewRunner creates a Runner around the given measurement command.
func NewRunner(cmd measure.Command, logger *slog.Logger) *Runner {
	return &Runner{
		cmd: cmd,
		log: logger.With(slog.String("component", "bench")),
	}
}

// EstimateLatency runs the measurement command cfg.Warmup times and
// returns the arithmetic mean of the elapsed times in milliseconds.
// Output from the warm-up runs is discarded; only timing is used.
// Any failed invocation aborts the whole estimate.
func (r *Runner) EstimateLatency(ctx context.Context, cfg RunConfig) (float64, error) {
	samples := make([]float64, 0, cfg.Warmup)

	for i := 0; i < cfg.Warmup; i++ {
		m, err := r.cmd.Invoke(ctx, cfg.Dir, cfg.Parallelism)
		if err != nil {
			return 0, fmt.Errorf("warmup run %d/%d: %w", i+1, cfg.Warmup, err)
		}

		samples = append(samples, m.ElapsedMs())
	}

	if len(samples) == 0 {
		return 0, ErrNoSamples
	}

	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, fmt.Errorf("mean over %d samples: %w", len(samples), err)
	}

	r.log.Info("latency estimated",
		slog.Int("warmup_runs", cfg.Warmup),
		slog.Float64("mean_ms", mean),
	)

	return mean, nil
}

// ComputeRunCount returns how many main runs fit into the target
// duration given the estimated mean latency, never fewer than MinRuns.
// A tiny mean can yield an enormous count; that is the caller's risk
// and is deliberately not capped here.
func ComputeRunCount(duration time.Duration, meanMs float64) int {
	if meanMs <= 0 {
		// No scheduling signal; real timings are strictly positive.
		return MinRuns
	}

	n := int(duration.Seconds() * 1000 / meanMs)
	if n < MinRuns {
		return MinRuns
	}

	return n
}

// RunAndMerge executes the measurement command runs times and merges
// the tabular outputs: the header line is kept from the first run that
// prints anything, and every later run contributes only its data
// lines, in invocation order. A single failed run aborts the whole
// aggregation with no partial result.
func (r *Runner) RunAndMerge(
	ctx context.Context, cfg RunConfig, runs int,
) ([]string, error) {
	if runs <= 0 {
		return nil, ErrEmptyOutput
	}

	var merged []string

	headerSeen := false

	for i := 0; i < runs; i++ {
		m, err := r.cmd.Invoke(ctx, cfg.Dir, cfg.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("main run %d/%d: %w", i+1, runs, err)
		}

		lines := splitLines(m.Output)
		if len(lines) == 0 {
			continue
		}

		if headerSeen {
			lines = lines[1:]
		}

		headerSeen = true
		merged = append(merged, lines...)
	}

	if len(merged) == 0 {
		return nil, ErrEmptyOutput
	}

	return merged, nil
}

// Run performs a full benchmark cell: warm-up estimation, run-count
// scheduling, then the merged main run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) ([]string, error) {
	meanMs, err := r.EstimateLatency(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runs := ComputeRunCount(cfg.Duration, meanMs)

	r.log.Info("main run scheduled",
		slog.Int("runs", runs),
		slog.Duration("target", cfg.Duration),
	)

	return r.RunAndMerge(ctx, cfg, runs)
}

// splitLines breaks output into trimmed, non-empty lines.
func splitLines(s string) []string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
