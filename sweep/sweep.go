// Package sweep runs the benchmark driver over a grid of file-count
// and parallelism values, reducing each cell's merged table to one
// row of summary statistics and writing the combined TSV report.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"dirbench/bench"
	"dirbench/measure"
	"dirbench/report"
	"dirbench/workload"
)

// Cell outcome statuses.
const (
	StatusOK      = "ok"
	StatusEMFILE  = "emfile"
	StatusTimeout = "timeout"
)

// knownErrors maps a status code to the stderr pattern that
// identifies it. A cell failing with one of these is recorded as a
// NaN row instead of aborting the sweep.
var knownErrors = map[string]string{
	StatusEMFILE:  "EMFILE: too many open files",
	StatusTimeout: "promise timeout of 20000ms reached",
}

// errorColumns are the statistics columns reported for a cell that
// failed in a recognized way and produced no table.
var errorColumns = []string{"setup_ms", "time_ms"}

// Range is a half-open integer range: Start, Start+Stride, ...
// up to but excluding Stop.
type Range struct {
	Start  int
	Stop   int
	Stride int
}

// Values expands the range.
func (r Range) Values() []int {
	if r.Stride <= 0 {
		return nil
	}

	var values []int
	for v := r.Start; v < r.Stop; v += r.Stride {
		values = append(values, v)
	}

	return values
}

// IsZero reports whether the range was left unset.
func (r Range) IsZero() bool {
	return r == Range{}
}

// Config holds sweep parameters.
type Config struct {
	FilesRange    Range
	ParallelRange Range // unset: same as FilesRange
	Warmup        int
	Duration      time.Duration

	// HeadlineCount and Seed are passed through to the workload
	// generator; zero HeadlineCount creates empty files.
	HeadlineCount int
	Seed          int64
}

// Sweeper iterates the grid. The measurement command is injected so
// tests can run the whole sweep with deterministic stubs.
type Sweeper struct {
	cmd measure.Command
	cfg Config
	log *slog.Logger
}

// New creates a Sweeper.
func New(cmd measure.Command, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cmd: cmd,
		cfg: cfg,
		log: logger.With(slog.String("component", "sweep")),
	}
}

// Run executes the full grid and writes the combined TSV to w. If a
// cell fails in an unrecognized way, the rows collected so far are
// still written before the error is returned.
func (s *Sweeper) Run(ctx context.Context, w io.Writer) error {
	parallel := s.cfg.ParallelRange
	if parallel.IsZero() {
		parallel = s.cfg.FilesRange
	}

	var rows []report.SweepRow

	for _, nFiles := range s.cfg.FilesRange.Values() {
		cellRows, err := s.filesRow(ctx, nFiles, parallel)
		rows = append(rows, cellRows...)

		if err != nil {
			// Save what data we can.
			if len(rows) > 0 {
				if werr := report.WriteSweep(w, rows); werr != nil {
					s.log.Warn("flushing partial results failed",
						slog.String("error", werr.Error()),
					)
				}
			}

			return err
		}
	}

	if len(rows) == 0 {
		return fmt.Errorf("no data")
	}

	return report.WriteSweep(w, rows)
}

// filesRow runs every parallelism cell for one file count inside a
// scratch directory that lives exactly as long as the row.
func (s *Sweeper) filesRow(
	ctx context.Context, nFiles int, parallel Range,
) ([]report.SweepRow, error) {
	dir, err := os.MkdirTemp(".", "org_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	gen := workload.NewGenerator(workload.Config{
		NumFiles:      nFiles,
		HeadlineCount: s.cfg.HeadlineCount,
		Seed:          s.cfg.Seed,
	})

	if _, err := gen.Populate(dir); err != nil {
		return nil, fmt.Errorf("populate %s: %w", dir, err)
	}

	s.log.Info("scratch dir ready",
		slog.String("dir", dir),
		slog.Int("n_files", nFiles),
	)

	var rows []report.SweepRow

	for _, nParallel := range parallel.Values() {
		row, err := s.cell(ctx, dir, nFiles, nParallel)
		if err != nil {
			return rows, fmt.Errorf(
				"cell (%d files, %d parallel): %w", nFiles, nParallel, err,
			)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// cell runs one full warm-up/main-run cycle and reduces the merged
// table to a statistics row. Recognized failures of the measurement
// command become NaN rows; anything else is an error.
func (s *Sweeper) cell(
	ctx context.Context, dir string, nFiles, nParallel int,
) (report.SweepRow, error) {
	runner := bench.NewRunner(s.cmd, s.log)

	lines, err := runner.Run(ctx, bench.RunConfig{
		Dir:         dir,
		Parallelism: nParallel,
		Warmup:      s.cfg.Warmup,
		Duration:    s.cfg.Duration,
	})
	if err != nil {
		if status, ok := classifyError(err); ok {
			s.log.Warn("cell failed with known error",
				slog.Int("n_files", nFiles),
				slog.Int("n_parallel", nParallel),
				slog.String("status", status),
			)

			return errorRow(nFiles, nParallel, status), nil
		}

		return report.SweepRow{}, err
	}

	table, err := report.Parse(lines)
	if err != nil {
		return report.SweepRow{}, fmt.Errorf("parse merged output: %w", err)
	}

	if err := checkKeyColumn(table, "n_files", nFiles); err != nil {
		return report.SweepRow{}, err
	}

	if err := checkKeyColumn(table, "n_parallel", nParallel); err != nil {
		return report.SweepRow{}, err
	}

	var cols []report.ColStats

	for _, col := range table.Columns {
		if col == "n_files" || col == "n_parallel" {
			continue
		}

		values, err := table.FloatColumn(col)
		if err != nil {
			return report.SweepRow{}, err
		}

		cs, err := report.Summarize(col, values)
		if err != nil {
			return report.SweepRow{}, err
		}

		cols = append(cols, cs)
	}

	return report.SweepRow{
		NFiles:    nFiles,
		NParallel: nParallel,
		Status:    StatusOK,
		Stats:     cols,
	}, nil
}

// checkKeyColumn verifies that a key column, when the measurement
// command reports it, matches the cell coordinates everywhere.
func checkKeyColumn(table *report.Table, name string, want int) error {
	if table.ColumnIndex(name) < 0 {
		return nil
	}

	values, err := table.IntColumn(name)
	if err != nil {
		return err
	}

	for i, v := range values {
		if v != want {
			return fmt.Errorf(
				"%s row %d reports %d, expected %d", name, i+1, v, want,
			)
		}
	}

	return nil
}

// classifyError matches the first stderr line of a failed measurement
// command against the known failure patterns.
func classifyError(err error) (string, bool) {
	var cmdErr *measure.CommandError
	if !errors.As(err, &cmdErr) {
		return "", false
	}

	head, _, _ := strings.Cut(cmdErr.Stderr, "\n")

	for status, pattern := range knownErrors {
		if strings.Contains(head, pattern) {
			return status, true
		}
	}

	return "", false
}

func errorRow(nFiles, nParallel int, status string) report.SweepRow {
	cols := make([]report.ColStats, len(errorColumns))
	for i, name := range errorColumns {
		cols[i] = report.NaNStats(name)
	}

	return report.SweepRow{
		NFiles:    nFiles,
		NParallel: nParallel,
		Status:    status,
		Stats:     cols,
	}
}
