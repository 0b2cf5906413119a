// Package parser adapts source files into document trees.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions a chapter may use.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".docx":     true,
	".json":     true,
	".yaml":     true,
	".yml":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json", ".yaml", ".yml":
		return &TreeParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// TreeParser reads a tree already built by an external parse engine.
type TreeParser struct{}

func (p *TreeParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	return doctree.Decode(r, filename)
}

// baseName strips directory and extension from a filename.
func baseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outline nests sections by heading depth. Blocks go to the innermost
// open section, or to the top level before the first heading.
type outline struct {
	base  int // section level of a level-1 heading
	root  []*doctree.DocNode
	stack []*doctree.DocNode
}

func newOutline(base int) *outline {
	return &outline{base: base}
}

// section opens a section for a heading of the given depth (1 = h1).
func (o *outline) section(heading int, title string) *doctree.DocNode {
	s := &doctree.DocNode{
		Kind:  doctree.KindSection,
		Level: heading - 1 + o.base,
		Title: title,
	}
	for len(o.stack) > 0 && o.stack[len(o.stack)-1].Level >= s.Level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	o.add(s)
	o.stack = append(o.stack, s)
	return s
}

func (o *outline) add(n *doctree.DocNode) {
	if n == nil {
		return
	}
	if len(o.stack) == 0 {
		o.root = append(o.root, n)
		return
	}
	top := o.stack[len(o.stack)-1]
	top.Children = append(top.Children, n)
}

// first returns the first section opened, nil when there was none.
func (o *outline) first() *doctree.DocNode {
	for _, n := range o.root {
		if n.Kind == doctree.KindSection {
			return n
		}
	}
	return nil
}

func (o *outline) tree(title string) *doctree.DocTree {
	return &doctree.DocTree{
		Title:      title,
		Attributes: doctree.Attributes{},
		Children:   o.root,
	}
}

func textNode(s string) *doctree.DocNode {
	return &doctree.DocNode{Kind: doctree.KindText, Text: s}
}

func paragraphNode(s string) *doctree.DocNode {
	return &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: []*doctree.DocNode{textNode(s)}}
}
