package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirbench/sweep"
)

func TestParseRunArgs(t *testing.T) {
	dir := t.TempDir()

	cfg, err := parseRunArgs([]string{dir, "4", "10", "2.5"})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 10, cfg.Warmup)
	assert.Equal(t, 2500*time.Millisecond, cfg.Duration)
}

func TestParseRunArgsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing dir", []string{dir + "/nope", "1", "10", "2"}},
		{"non-numeric parallel", []string{dir, "four", "10", "2"}},
		{"zero parallel", []string{dir, "0", "10", "2"}},
		{"non-numeric warmup", []string{dir, "1", "ten", "2"}},
		{"low warmup", []string{dir, "1", "5", "2"}},
		{"non-numeric duration", []string{dir, "1", "10", "soon"}},
		{"zero duration", []string{dir, "1", "10", "0"}},
		{"sub-second duration", []string{dir, "1", "10", "0.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRunArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("files-range", []int{0, 2000, 100})
	require.NoError(t, err)
	assert.Equal(t, sweep.Range{Start: 0, Stop: 2000, Stride: 100}, r)

	_, err = parseRange("files-range", []int{0, 2000})
	assert.Error(t, err)

	_, err = parseRange("files-range", []int{0, 2000, 0})
	assert.Error(t, err)

	_, err = parseRange("files-range", []int{0, 2000, -5})
	assert.Error(t, err)
}
