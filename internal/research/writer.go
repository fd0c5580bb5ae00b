package research

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const reportFileName = "research.md"

// Writer persists completed reports. Every write goes to a fresh
// timestamped directory, so re-fetching a completed interaction
// produces a new file instead of overwriting an earlier one.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a Writer rooted at dir. An empty dir defaults to a
// deepr directory under the system temp dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "deepr")
	}
	return &Writer{dir: dir, now: time.Now}
}

// Write persists the report from a completed status and returns the
// absolute path of the written file. It refuses non-completed states
// and completed states without outputs; in both cases no file or
// directory is created.
func (w *Writer) Write(st Status) (string, error) {
	if st.State != StateCompleted {
		return "", &NotCompletedError{Status: st}
	}
	text, ok := st.Report()
	if !ok {
		return "", ErrNoOutputs
	}

	stamp := w.now().Format("2006-01-02T15-04-05")
	dir := filepath.Join(w.dir, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, reportFileName)

	// Write to a temp file in the same directory and rename, so an
	// interrupted run leaves either no report or a complete one.
	tmp, err := os.CreateTemp(dir, reportFileName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing report file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalizing report file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
