// Package publish writes build artifacts: chunk files, the package
// manifest read by the external packager, and laid out HTML pages.
package publish

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// WriteChunks writes each chunk to dir in spine order, one file per
// chunk, creating dir if needed. Writes are sequential so the first
// failure leaves every earlier file in place.
func WriteChunks(dir string, chunks []doctree.Chunk, log *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, c := range chunks {
		path := filepath.Join(dir, c.Filename)
		if err := os.WriteFile(path, []byte(c.Content), 0o644); err != nil {
			return fmt.Errorf("write chunk %s: %w", c.Name, err)
		}
		if log != nil {
			log.Debug("wrote chunk", "file", path, "title", c.Title)
		}
	}
	return nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CopyFiles copies files (paths relative to src) from src to dst,
// keeping their relative layout.
func CopyFiles(src, dst string, files []string) error {
	for _, rel := range files {
		if err := copyFile(filepath.Join(src, rel), filepath.Join(dst, rel)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("open %s: %w", from, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(to), err)
	}
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("create %s: %w", to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", from, err)
	}
	return out.Close()
}
