package output

import (
	"fmt"
	"os"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// FileWriter appends transcript lines to a file that the initiator and the
// responder child process share. Every write holds a lock file next to the
// transcript, so lines from both processes never interleave and rotation
// never races an append.
type FileWriter struct {
	path       string
	maxRecords int
	lock       *lockedfile.Mutex
	count      int
}

func NewFileWriter(path string, maxRecords int) *FileWriter {
	w := &FileWriter{
		path:       path,
		maxRecords: maxRecords,
	}
	if path != "" {
		w.lock = lockedfile.MutexAt(path + ".lock")
	}
	return w
}

func (w *FileWriter) Write(line string) error {
	if w.path == "" {
		return nil
	}

	unlock, err := w.lock.Lock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", w.path, err)
	}
	defer unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	w.count++
	if w.maxRecords > 0 && w.count >= w.maxRecords {
		return w.rotate()
	}
	return nil
}

func (w *FileWriter) Close() error {
	return nil
}

// rotate must be called with the lock held.
func (w *FileWriter) rotate() error {
	w.count = 0
	backup := w.path + ".1"
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(w.path, backup)
}
