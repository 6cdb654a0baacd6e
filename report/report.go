// Package report handles the textual output of the driver: emission of
// merged measurement tables, parsing of the measurement command's
// tab-separated output, and the summary-statistics rows produced by a
// sweep.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// WriteMerged writes the merged table lines to w, one per line.
func WriteMerged(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return fmt.Errorf("no lines to report")
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// Table is the columnar form of a measurement command's tab-separated
// output: a header naming the columns, then one row per data line.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Parse builds a Table from merged output lines. The first line is the
// header; every data line must have as many fields as the header.
func Parse(lines []string) (*Table, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	t := &Table{
		Columns: strings.Split(lines[0], "\t"),
		Rows:    make([][]string, 0, len(lines)-1),
	}

	for i, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf(
				"row %d has %d fields, header has %d",
				i+1, len(fields), len(t.Columns),
			)
		}

		t.Rows = append(t.Rows, fields)
	}

	return t, nil
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}

	return -1
}

// FloatColumn parses the named column as float64 values. The literal
// "nan" (any case) parses as NaN, matching how sweep reports render
// missing data.
func (t *Table) FloatColumn(name string) ([]float64, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", name)
	}

	values := make([]float64, len(t.Rows))

	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return nil, fmt.Errorf(
				"column %q row %d: parse %q: %w", name, i+1, row[idx], err,
			)
		}

		values[i] = v
	}

	return values, nil
}

// IntColumn parses the named column as int values.
func (t *Table) IntColumn(name string) ([]int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", name)
	}

	values := make([]int, len(t.Rows))

	for i, row := range t.Rows {
		v, err := strconv.Atoi(row[idx])
		if err != nil {
			return nil, fmt.Errorf(
				"column %q row %d: parse %q: %w", name, i+1, row[idx], err,
			)
		}

		values[i] = v
	}

	return values, nil
}

// ColStats summarizes one measured column across the runs of a cell.
// Std is the sample standard deviation (NaN for a single sample).
type ColStats struct {
	Column string
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Std    float64
}

// Summarize computes the statistics battery for one column.
func Summarize(column string, values []float64) (ColStats, error) {
	if len(values) == 0 {
		return ColStats{}, fmt.Errorf("column %q: no values", column)
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return ColStats{}, fmt.Errorf("column %q mean: %w", column, err)
	}

	median, err := stats.Median(values)
	if err != nil {
		return ColStats{}, fmt.Errorf("column %q median: %w", column, err)
	}

	minV, err := stats.Min(values)
	if err != nil {
		return ColStats{}, fmt.Errorf("column %q min: %w", column, err)
	}

	maxV, err := stats.Max(values)
	if err != nil {
		return ColStats{}, fmt.Errorf("column %q max: %w", column, err)
	}

	std, err := stats.StandardDeviationSample(values)
	if err != nil {
		return ColStats{}, fmt.Errorf("column %q std: %w", column, err)
	}

	return ColStats{
		Column: column,
		Mean:   mean,
		Median: median,
		Min:    minV,
		Max:    maxV,
		Std:    std,
	}, nil
}

// NaNStats returns an all-NaN statistics entry for a column, used when
// a cell failed in a recognized way and produced no data.
func NaNStats(column string) ColStats {
	nan := math.NaN()

	return ColStats{
		Column: column,
		Mean:   nan,
		Median: nan,
		Min:    nan,
		Max:    nan,
		Std:    nan,
	}
}

// SweepRow is one grid cell of a sweep: its coordinates, the outcome
// status ("ok", "emfile", "timeout"), and per-column statistics.
type SweepRow struct {
	NFiles    int
	NParallel int
	Status    string
	Stats     []ColStats
}

// WriteSweep renders sweep rows as one TSV table. The column layout is
// taken from the first row; later rows are matched to it by column
// name, so rows may list the same columns in any order. A row whose
// column set differs is an error. NaN renders as "nan".
func WriteSweep(w io.Writer, rows []SweepRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("no rows to report")
	}

	header := []string{"n_files", "n_parallel", "status"}
	for _, cs := range rows[0].Stats {
		header = append(header,
			cs.Column+"_mean",
			cs.Column+"_median",
			cs.Column+"_min",
			cs.Column+"_max",
			cs.Column+"_std",
		)
	}

	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		if len(row.Stats) != len(rows[0].Stats) {
			return fmt.Errorf(
				"row (%d, %d) has %d stat columns, expected %d",
				row.NFiles, row.NParallel,
				len(row.Stats), len(rows[0].Stats),
			)
		}

		byName := make(map[string]ColStats, len(row.Stats))
		for _, cs := range row.Stats {
			byName[cs.Column] = cs
		}

		fields := []string{
			strconv.Itoa(row.NFiles),
			strconv.Itoa(row.NParallel),
			row.Status,
		}

		for _, ref := range rows[0].Stats {
			cs, ok := byName[ref.Column]
			if !ok {
				return fmt.Errorf(
					"row (%d, %d) has no column %q",
					row.NFiles, row.NParallel, ref.Column,
				)
			}

			fields = append(fields,
				formatFloat(cs.Mean),
				formatFloat(cs.Median),
				formatFloat(cs.Min),
				formatFloat(cs.Max),
				formatFloat(cs.Std),
			)
		}

		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}

	return nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}
