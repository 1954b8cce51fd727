package output

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestFileWriterDisabled(t *testing.T) {
	w := NewFileWriter("", 10)
	if err := w.Write("ignored"); err != nil {
		t.Fatalf("Write on disabled writer: %v", err)
	}
}

func TestFileWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.log")
	w := NewFileWriter(path, 2)

	for _, line := range []string{"a", "b", "c"} {
		if err := w.Write(line); err != nil {
			t.Fatalf("Write(%q): %v", line, err)
		}
	}

	if got := readLines(t, path+".1"); strings.Join(got, ",") != "a,b" {
		t.Fatalf("backup = %v, want [a b]", got)
	}
	if got := readLines(t, path); strings.Join(got, ",") != "c" {
		t.Fatalf("current = %v, want [c]", got)
	}
}

func TestFileWritersShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.log")
	a := NewFileWriter(path, 1000)
	b := NewFileWriter(path, 1000)

	var wg sync.WaitGroup
	for _, w := range []*FileWriter{a, b} {
		wg.Add(1)
		go func(w *FileWriter) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := w.Write("0123456789"); err != nil {
					t.Errorf("Write: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	lines := readLines(t, path)
	if len(lines) != 100 {
		t.Fatalf("got %d lines, want 100", len(lines))
	}
	for i, l := range lines {
		if l != "0123456789" {
			t.Fatalf("line %d is torn: %q", i, l)
		}
	}
}
