// Package main provides the CLI entry point for dirbench, a driver
// that benchmarks an external directory-loading command.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dirbench/bench"
	"dirbench/measure"
	"dirbench/report"
	"dirbench/sweep"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "dirbench",
		Short: "Duration-bounded micro-benchmark driver",
		Long: `Dirbench repeatedly invokes an external measurement command against
a target directory, estimates the command's mean run time from a warm-up
phase, runs it for a target wall-clock duration, and merges the
tab-separated outputs into a single report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newSweepCmd(logger))

	return root
}

// commandFlags is the measurement-command configuration shared by run
// and sweep. The defaults match the reference workload: nvim loading a
// directory of org files through a benchmarking script.
type commandFlags struct {
	path string
	args []string
}

func registerCommandFlags(cmd *cobra.Command, cf *commandFlags) {
	flags := cmd.Flags()
	flags.StringVar(&cf.path, "command", "nvim",
		"Measurement command to invoke")
	flags.StringSliceVar(&cf.args, "command-args",
		[]string{"-l", "benchmark_dir.lua"},
		"Arguments placed before DIR and PARALLEL; the default script "+
			"path is relative to the working directory")
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		cf         commandFlags
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "run DIR PARALLEL WARMUP DURATION_SECS",
		Short: "Benchmark one directory at one parallelism level",
		Long: `Run the measurement command WARMUP times to estimate its mean
latency, compute how many runs fit into DURATION_SECS (at least 10),
execute them, and write the merged table to stdout.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(4)(cmd, args); err != nil {
				_ = cmd.Usage()

				return err
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseRunArgs(args)
			if err != nil {
				_ = cmd.Usage()

				return err
			}

			return runOnce(cmd, logger, cfg, cf, outputPath)
		},
	}

	registerCommandFlags(cmd, &cf)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"Write the merged table to this file instead of stdout")

	return cmd
}

// parseRunArgs converts the four positional arguments into a validated
// RunConfig. Nothing is spawned until this succeeds.
func parseRunArgs(args []string) (bench.RunConfig, error) {
	var cfg bench.RunConfig

	cfg.Dir = args[0]

	parallel, err := strconv.Atoi(args[1])
	if err != nil {
		return cfg, fmt.Errorf("PARALLEL: %w", err)
	}

	cfg.Parallelism = parallel

	warmup, err := strconv.Atoi(args[2])
	if err != nil {
		return cfg, fmt.Errorf("WARMUP: %w", err)
	}

	cfg.Warmup = warmup

	secs, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return cfg, fmt.Errorf("DURATION_SECS: %w", err)
	}

	cfg.Duration = time.Duration(secs * float64(time.Second))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func runOnce(
	cmd *cobra.Command,
	logger *slog.Logger,
	cfg bench.RunConfig,
	cf commandFlags,
	outputPath string,
) error {
	logger.Info("starting benchmark",
		slog.String("dir", cfg.Dir),
		slog.Int("parallelism", cfg.Parallelism),
		slog.Int("warmup", cfg.Warmup),
		slog.Duration("duration", cfg.Duration),
	)

	runner := bench.NewRunner(
		measure.NewExecCommand(cf.path, cf.args, logger), logger,
	)

	lines, err := runner.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	if err := report.WriteMerged(out, lines); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("benchmark complete", slog.Int("lines", len(lines)))

	return nil
}

func newSweepCmd(logger *slog.Logger) *cobra.Command {
	var (
		cf            commandFlags
		filesRange    []int
		parallelRange []int
		warmup        int
		durationSecs  float64
		headlines     int
		seed          int64
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Benchmark a grid of file counts and parallelism levels",
		Long: `Iterate file-count and parallelism ranges, generate a scratch
directory per file count, run the full warm-up and main-run cycle for
every cell, and write one TSV of per-column summary statistics.

Ranges are half-open: START STOP STRIDE covers START, START+STRIDE, ...
up to but excluding STOP. The parallelism range defaults to the
files range.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := sweep.Config{
				Warmup:        warmup,
				Duration:      time.Duration(durationSecs * float64(time.Second)),
				HeadlineCount: headlines,
				Seed:          seed,
			}

			var err error

			cfg.FilesRange, err = parseRange("files-range", filesRange)
			if err != nil {
				return err
			}

			if len(parallelRange) > 0 {
				cfg.ParallelRange, err = parseRange(
					"parallel-range", parallelRange,
				)
				if err != nil {
					return err
				}
			}

			out, closeOut, err := openOutput(outputPath)
			if err != nil {
				return err
			}
			defer closeOut()

			s := sweep.New(
				measure.NewExecCommand(cf.path, cf.args, logger),
				cfg, logger,
			)

			return s.Run(cmd.Context(), out)
		},
	}

	registerCommandFlags(cmd, &cf)

	flags := cmd.Flags()
	flags.IntSliceVarP(&filesRange, "files-range", "f",
		[]int{0, 2000, 100},
		"Iterate the file count over START,STOP,STRIDE")
	flags.IntSliceVarP(&parallelRange, "parallel-range", "p", nil,
		"Iterate the parallelism over START,STOP,STRIDE "+
			"(default: same as --files-range)")
	flags.IntVarP(&warmup, "n-warmup", "w", 10,
		"Warm-up runs per cell before the timed runs")
	flags.Float64VarP(&durationSecs, "duration", "d", 2.0,
		"Target wall-clock seconds of timed runs per cell")
	flags.IntVar(&headlines, "headlines", 0,
		"Fill generated files with this many org headlines (0 = empty files)")
	flags.Int64Var(&seed, "seed", 0,
		"Seed for generated file content")
	flags.StringVarP(&outputPath, "output", "o", "",
		"Write the TSV report to this file instead of stdout")

	return cmd
}

func parseRange(name string, values []int) (sweep.Range, error) {
	if len(values) != 3 {
		return sweep.Range{}, fmt.Errorf(
			"--%s needs START,STOP,STRIDE, got %d values", name, len(values),
		)
	}

	r := sweep.Range{Start: values[0], Stop: values[1], Stride: values[2]}
	if r.Stride <= 0 {
		return sweep.Range{}, fmt.Errorf(
			"--%s stride must be positive, got %d", name, r.Stride,
		)
	}

	return r, nil
}

// openOutput returns stdout or the named file plus a close function.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output %s: %w", path, err)
	}

	return f, func() { f.Close() }, nil
}
