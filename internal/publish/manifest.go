package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/spine"
)

// PackageFile is the manifest name the external packager reads.
const PackageFile = "package.json"

// Package describes one chunked build for the external packager.
type Package struct {
	Identifier  string       `json:"identifier"`
	Title       string       `json:"title"`
	Subtitle    string       `json:"subtitle,omitempty"`
	Language    string       `json:"language"`
	Authors     []string     `json:"authors,omitempty"`
	Publisher   string       `json:"publisher,omitempty"`
	Description string       `json:"description,omitempty"`
	Format      string       `json:"format"`
	Modified    string       `json:"modified"`
	Cover       string       `json:"cover,omitempty"`
	Spine       []SpineEntry `json:"spine"`
	Assets      []string     `json:"assets,omitempty"`
}

// SpineEntry is one chunk file in reading order.
type SpineEntry struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Title string `json:"title"`
}

// Metadata is the book-level information a Package carries.
type Metadata struct {
	Identifier  string
	Title       string
	Subtitle    string
	Language    string
	Authors     []string
	Publisher   string
	Description string
}

// BookIdentifier returns id when set, otherwise a urn:uuid derived from
// the title and authors so rebuilds keep the same identifier.
func BookIdentifier(id, title string, authors []string) string {
	if id != "" {
		return id
	}
	name := title + "\x00" + strings.Join(authors, "\x00")
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// NewPackage builds the manifest for chunks.
func NewPackage(meta Metadata, format string, chunks []doctree.Chunk, assets []string, now time.Time) Package {
	pkg := Package{
		Identifier:  BookIdentifier(meta.Identifier, meta.Title, meta.Authors),
		Title:       meta.Title,
		Subtitle:    meta.Subtitle,
		Language:    meta.Language,
		Authors:     meta.Authors,
		Publisher:   meta.Publisher,
		Description: meta.Description,
		Format:      format,
		Modified:    now.UTC().Format(time.RFC3339),
		Assets:      assets,
	}
	for _, c := range chunks {
		pkg.Spine = append(pkg.Spine, SpineEntry{Name: c.Name, File: c.Filename, Title: c.Title})
		if c.Name == spine.Cover {
			pkg.Cover = c.Filename
		}
	}
	return pkg
}

// Marshal encodes the package as indented JSON.
func (p Package) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", PackageFile, err)
	}
	return append(data, '\n'), nil
}
