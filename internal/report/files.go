package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileWriter creates report files below Dir
type FileWriter struct {
	Dir string
}

// Write creates name below Dir and renders into it. It returns the full path.
func (fw FileWriter) Write(name string, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(fw.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(fw.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// Sub returns a writer for a subdirectory
func (fw FileWriter) Sub(dir string) FileWriter {
	return FileWriter{Dir: filepath.Join(fw.Dir, dir)}
}
