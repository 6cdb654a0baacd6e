package workload

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPopulateCreatesNumberedFiles(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(Config{NumFiles: 5})

	summary, err := gen.Populate(dir)
	if err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if summary.FilesCreated != 5 {
		t.Errorf("FilesCreated = %d, want 5", summary.FilesCreated)
	}
	if summary.BytesWritten != 0 {
		t.Errorf("BytesWritten = %d, want 0", summary.BytesWritten)
	}

	for i := 1; i <= 5; i++ {
		name := filepath.Join(dir, strconv.Itoa(i)+".org")

		info, err := os.Stat(name)
		if err != nil {
			t.Fatalf("missing file %s: %v", name, err)
		}

		if info.Size() != 0 {
			t.Errorf("%s size = %d, want 0", name, info.Size())
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	if len(entries) != 5 {
		t.Errorf("dir has %d entries, want 5", len(entries))
	}
}

func TestPopulateZeroFiles(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(Config{NumFiles: 0})

	summary, err := gen.Populate(dir)
	if err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if summary.FilesCreated != 0 {
		t.Errorf("FilesCreated = %d, want 0", summary.FilesCreated)
	}
}

func TestPopulateCustomExtension(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(Config{NumFiles: 1, Extension: ".txt"})

	if _, err := gen.Populate(dir); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "1.txt")); err != nil {
		t.Errorf("missing 1.txt: %v", err)
	}
}

func TestPopulateHeadlinesDeterministic(t *testing.T) {
	cfg := Config{NumFiles: 3, HeadlineCount: 4, Seed: 7}

	dirA := t.TempDir()
	if _, err := NewGenerator(cfg).Populate(dirA); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	dirB := t.TempDir()
	if _, err := NewGenerator(cfg).Populate(dirB); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		a, err := os.ReadFile(filepath.Join(dirA, strconv.Itoa(i)+".org"))
		if err != nil {
			t.Fatal(err)
		}

		b, err := os.ReadFile(filepath.Join(dirB, strconv.Itoa(i)+".org"))
		if err != nil {
			t.Fatal(err)
		}

		if len(a) == 0 {
			t.Errorf("file %d is empty, want headlines", i)
		}
		if a[0] != '*' {
			t.Errorf("file %d does not start with a headline: %q", i, a[:1])
		}
		if string(a) != string(b) {
			t.Errorf("file %d differs between equal seeds", i)
		}
	}
}

func TestPopulateRepopulatesSmaller(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewGenerator(Config{NumFiles: 3, HeadlineCount: 2}).Populate(dir); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if _, err := NewGenerator(Config{NumFiles: 1}).Populate(dir); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	// File 1 is truncated back to empty; 2 and 3 remain from the
	// earlier population.
	info, err := os.Stat(filepath.Join(dir, "1.org"))
	if err != nil {
		t.Fatal(err)
	}

	if info.Size() != 0 {
		t.Errorf("1.org size = %d, want 0 after repopulation", info.Size())
	}
}
