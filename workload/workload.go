// Package workload populates benchmark input directories with
// deterministic sets of org files for the measurement command to load.
package workload

import (
	"fmt"
	mrand "math/rand"
	"os"
	"path/filepath"
)

// Config controls directory population.
type Config struct {
	// NumFiles is how many files to create. Zero is valid: the
	// measurement command is expected to handle an empty directory.
	NumFiles int

	// Extension is the file suffix including the dot. Defaults to
	// ".org" when empty.
	Extension string

	// HeadlineCount, when positive, fills each file with this many
	// org headlines of seeded random text instead of leaving it
	// empty.
	HeadlineCount int

	// Seed drives the content generator. Ignored when
	// HeadlineCount is zero.
	Seed int64
}

// Summary reports what Populate created.
type Summary struct {
	FilesCreated int
	BytesWritten int64
}

// Generator creates benchmark input files from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	if cfg.Extension == "" {
		cfg.Extension = ".org"
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Populate creates files 1<ext> through N<ext> inside dir, which must
// already exist. Existing files with those names are truncated, so a
// directory can be repopulated with a different count.
func (g *Generator) Populate(dir string) (Summary, error) {
	var summary Summary

	for i := 1; i <= g.cfg.NumFiles; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%d%s", i, g.cfg.Extension))

		content := g.fileContent()

		if err := os.WriteFile(name, content, 0o644); err != nil {
			return summary, fmt.Errorf("write %s: %w", name, err)
		}

		summary.FilesCreated++
		summary.BytesWritten += int64(len(content))
	}

	return summary, nil
}

func (g *Generator) fileContent() []byte {
	if g.cfg.HeadlineCount <= 0 {
		return nil
	}

	var buf []byte

	for i := 0; i < g.cfg.HeadlineCount; i++ {
		depth := 1 + g.rng.Intn(3)
		for j := 0; j < depth; j++ {
			buf = append(buf, '*')
		}

		buf = append(buf, ' ')
		buf = append(buf, randomWords(g.rng, 2+g.rng.Intn(5))...)
		buf = append(buf, '\n')
	}

	return buf
}

func randomWords(rng *mrand.Rand, n int) []byte {
	var buf []byte

	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ' ')
		}

		wordLen := 3 + rng.Intn(8)
		for j := 0; j < wordLen; j++ {
			buf = append(buf, byte('a'+rng.Intn(26)))
		}
	}

	return buf
}
