// Package book reads a book project from disk and assembles its
// manuscript into one document tree.
package book

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
)

// ManifestFile is the project manifest at the project root.
const ManifestFile = "book.yaml"

// Manifest is the content of book.yaml.
type Manifest struct {
	Title       string            `yaml:"title"`
	Subtitle    string            `yaml:"subtitle,omitempty"`
	Slug        string            `yaml:"slug,omitempty"`
	Language    string            `yaml:"language,omitempty"`
	Authors     []string          `yaml:"authors,omitempty"`
	Publisher   string            `yaml:"publisher,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Keywords    []string          `yaml:"keywords,omitempty"`
	Copyright   string            `yaml:"copyright,omitempty"`
	Identifier  string            `yaml:"identifier,omitempty"`
	Cover       string            `yaml:"cover,omitempty"`
	Preamble    string            `yaml:"preamble,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
	Chapters    []string          `yaml:"chapters"`
}

// Project is a book project rooted at a directory.
type Project struct {
	Root     string
	Manifest Manifest
	log      *slog.Logger
}

// Open reads book.yaml under root.
func Open(root string, log *slog.Logger) (*Project, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.Consistencyf("open project", "%s not found in %s", ManifestFile, root)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, failure.Consistencyf("open project", "invalid %s: %v", ManifestFile, err)
	}
	if strings.TrimSpace(m.Title) == "" {
		return nil, failure.Consistencyf("open project", "%s has no title", ManifestFile)
	}
	if len(m.Chapters) == 0 {
		return nil, failure.Consistencyf("open project", "%s lists no chapters", ManifestFile)
	}
	return &Project{Root: root, Manifest: m, log: log.With("project", filepath.Base(root))}, nil
}

// ManuscriptDir holds chapter source files.
func (p *Project) ManuscriptDir() string { return filepath.Join(p.Root, "manuscript") }

// ImagesDir holds images referenced by the manuscript.
func (p *Project) ImagesDir() string { return filepath.Join(p.Root, "images") }

// ThemesDir holds per-format stylesheets and layouts.
func (p *Project) ThemesDir(format string) string {
	return filepath.Join(p.Root, "themes", format)
}

// BuildDir holds finished output for a format.
func (p *Project) BuildDir(format string) string {
	return filepath.Join(p.Root, "builds", format)
}

// TmpDir holds intermediate files for a format.
func (p *Project) TmpDir(format string) string {
	return filepath.Join(p.Root, "tmp", format)
}

// Slug is the file-safe book name used for combined outputs.
func (p *Project) Slug() string {
	if p.Manifest.Slug != "" {
		return p.Manifest.Slug
	}
	return strings.Trim(doctree.SectionID(p.Manifest.Title), "_")
}

// Lang returns the canonical BCP 47 tag of the manifest language,
// "en" when unset or invalid.
func (p *Project) Lang() string {
	if p.Manifest.Language == "" {
		return "en"
	}
	tag, err := language.Parse(p.Manifest.Language)
	if err != nil {
		p.log.Warn("invalid language, using en", "language", p.Manifest.Language, "error", err)
		return "en"
	}
	return tag.String()
}

// WatchPaths lists the directories whose changes call for a rebuild:
// the project root plus every directory under manuscript, images and
// themes. Hidden directories are skipped.
func (p *Project) WatchPaths() []string {
	paths := []string{p.Root}
	for _, top := range []string{p.ManuscriptDir(), p.ImagesDir(), filepath.Join(p.Root, "themes")} {
		err := filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != top && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.log.Warn("skipping unreadable directory", "dir", top, "error", err)
		}
	}
	return paths
}
