package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"

	"github.com/dgallion1/bookpress/internal/book"
	"github.com/dgallion1/bookpress/internal/failure"
)

// Runner locates and runs the external renderers.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes name in dir and returns its combined output.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("run %s: %w", name, err)
	}
	return out.Bytes(), nil
}

// requiredTool names the external program format needs, if any.
func (b *Builder) requiredTool(format string) string {
	cfg := b.config()
	switch format {
	case "pdf":
		return cfg.Prince
	case "mobi":
		return cfg.Kindlegen
	}
	return ""
}

// checkTool fails with an environment error when the renderer for
// format is not installed.
func (b *Builder) checkTool(format string) (string, error) {
	name := b.requiredTool(format)
	if name == "" {
		return "", nil
	}
	path, err := b.runner.LookPath(name)
	if err != nil {
		return "", failure.Environmentf("build "+format, "%s not found on PATH", name).
			WithDetails(err.Error())
	}
	return path, nil
}

// CheckTools validates every format and confirms its renderer is
// installed, so a multi-format build fails before any of it starts.
func (b *Builder) CheckTools(formats []string) error {
	for _, format := range formats {
		if err := checkFormat(format); err != nil {
			return err
		}
		if _, err := b.checkTool(format); err != nil {
			return err
		}
	}
	return nil
}

func checkFormat(format string) error {
	if !slices.Contains(book.Formats, format) {
		return failure.Consistencyf("build", "unknown format %q", format).
			WithDetails(fmt.Sprintf("formats: %v", book.Formats))
	}
	return nil
}
