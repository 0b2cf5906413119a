package book

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
	"github.com/dgallion1/bookpress/internal/parser"
)

// Formats lists every output format a project can be built for.
var Formats = []string{"pdf", "epub", "duokan", "mobi", "html", "site"}

// Attributes returns the document attributes derived from the manifest.
// Explicit manifest attributes win over derived ones.
func (p *Project) Attributes() doctree.Attributes {
	m := p.Manifest
	attrs := doctree.Attributes{
		"lang":       p.Lang(),
		"imagesdir":  "images",
		"themes-dir": filepath.Join(p.Root, "themes"),
	}
	set := func(key, value string) {
		if value != "" {
			attrs[key] = value
		}
	}
	set("subtitle", m.Subtitle)
	set("author", strings.Join(m.Authors, ", "))
	set("publisher", m.Publisher)
	set("description", m.Description)
	set("keywords", strings.Join(m.Keywords, ", "))
	set("copyright", m.Copyright)
	if m.Cover != "" {
		for _, f := range Formats {
			attrs[f+"-cover-image"] = m.Cover
		}
	}
	for k, v := range m.Attributes {
		attrs[k] = v
	}
	return attrs
}

// Assemble parses the preamble and every chapter in manifest order into
// one tree. Each chapter file must hold exactly one top-level section;
// a file whose section is a part opens it, and following chapters nest
// under the most recent part. Includes records each chapter basename in
// manifest order. With sample set only sections marked sample are kept.
func (p *Project) Assemble(sample bool) (*doctree.DocTree, error) {
	tree := &doctree.DocTree{
		Title:      p.Manifest.Title,
		Subtitle:   p.Manifest.Subtitle,
		Attributes: p.Attributes(),
	}

	if p.Manifest.Preamble != "" {
		pre, err := p.parse(p.Manifest.Preamble)
		if err != nil {
			return nil, err
		}
		var blocks []*doctree.DocNode
		for _, n := range pre.Children {
			if n.Kind == doctree.KindSection {
				blocks = append(blocks, n.Children...)
				continue
			}
			blocks = append(blocks, n)
		}
		if len(blocks) > 0 {
			tree.Children = append(tree.Children, &doctree.DocNode{Kind: doctree.KindPreamble, Children: blocks})
		}
	}

	var part *doctree.DocNode
	for _, rel := range p.Manifest.Chapters {
		sub, err := p.parse(rel)
		if err != nil {
			return nil, err
		}
		sec, err := topSection(rel, sub)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		sec.Source = name
		tree.Includes = append(tree.Includes, name)

		switch {
		case sec.Level == 0:
			part = sec
			tree.Children = append(tree.Children, sec)
		case part != nil:
			part.Children = append(part.Children, sec)
		default:
			tree.Children = append(tree.Children, sec)
		}
		p.log.Debug("included chapter", "file", rel, "title", sec.Title, "level", sec.Level)
	}

	if sample {
		tree.FilterSample()
		p.log.Info("sample mode", "included", len(tree.Includes), "of", len(p.Manifest.Chapters))
	} else {
		tree.Prepare()
	}
	return tree, nil
}

// parse reads one manuscript file with the adapter for its extension.
func (p *Project) parse(rel string) (*doctree.DocTree, error) {
	path := filepath.Join(p.ManuscriptDir(), rel)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.Consistencyf("assemble", "chapter %q listed in %s does not exist", rel, ManifestFile).
			WithDetails("looked for " + path)
	}
	if err != nil {
		return nil, fmt.Errorf("open chapter: %w", err)
	}
	defer f.Close()

	ps, err := parser.ForFile(rel)
	if err != nil {
		return nil, failure.Consistencyf("assemble", "chapter %q: %v", rel, err)
	}
	tree, err := ps.Parse(f, rel)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	return tree, nil
}

// topSection reduces a parsed chapter to its single top-level section.
// Blocks ahead of the first heading move into that section; a file with
// no heading becomes a chapter titled after the file.
func topSection(rel string, sub *doctree.DocTree) (*doctree.DocNode, error) {
	var lead []*doctree.DocNode
	var sec *doctree.DocNode
	for _, n := range sub.Children {
		if n.Kind != doctree.KindSection {
			if sec == nil {
				lead = append(lead, n)
			} else {
				sec.Children = append(sec.Children, n)
			}
			continue
		}
		if sec != nil {
			return nil, failure.Consistencyf("assemble",
				"chapter %q has more than one top-level section (%q and %q)", rel, sec.Title, n.Title).
				WithDetails("each chapter file becomes one output unit; split it or demote the heading")
		}
		sec = n
	}
	if sec == nil {
		return &doctree.DocNode{Kind: doctree.KindSection, Level: 1, Title: sub.Title, Children: lead}, nil
	}
	sec.Children = append(lead, sec.Children...)
	if sec.Level == 0 {
		for _, c := range sec.Children {
			if c.Kind == doctree.KindSection {
				return nil, failure.Consistencyf("assemble",
					"part %q holds chapter %q; list chapters as their own files", sec.Title, c.Title)
			}
		}
	}
	return sec, nil
}
