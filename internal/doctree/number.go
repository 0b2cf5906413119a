package doctree

import (
	"strconv"
	"strings"
	"unicode"
)

// SpecialSections are section kinds that are never numbered.
var SpecialSections = map[string]bool{
	"preface":         true,
	"foreword":        true,
	"dedication":      true,
	"colophon":        true,
	"glossary":        true,
	"index":           true,
	"bibliography":    true,
	"acknowledgments": true,
	"abstract":        true,
}

// Prepare links parents, assigns missing section ids and numbers sections.
func (t *DocTree) Prepare() {
	t.Link()
	t.assignIDs()
	t.number()
}

// number assigns chapter numbers sequentially across parts, letters to
// appendices, and dotted numbers to subsections of numbered sections.
func (t *DocTree) number() {
	chapter, appendix := 0, 0
	var visit func(n *DocNode)
	visit = func(n *DocNode) {
		if n.Kind != KindSection {
			return
		}
		switch {
		case n.Level == 0:
			n.Numbered, n.Number = false, ""
		case n.Level == 1 && n.SectName == "appendix":
			appendix++
			n.Numbered, n.Number = true, AppendixLetter(appendix)
		case n.Level == 1 && SpecialSections[n.SectName]:
			n.Numbered, n.Number = false, ""
		case n.Level == 1:
			chapter++
			n.Numbered, n.Number = true, strconv.Itoa(chapter)
		}
		sub := 0
		for _, c := range n.Children {
			if c.Kind != KindSection {
				continue
			}
			if c.Level > 1 {
				if n.Numbered && n.Level >= 1 {
					sub++
					c.Numbered, c.Number = true, n.Number+"."+strconv.Itoa(sub)
				} else {
					c.Numbered, c.Number = false, ""
				}
			}
			visit(c)
		}
	}
	for _, c := range t.Children {
		visit(c)
	}
}

// AppendixLetter returns the letter for the n-th appendix (1 = A).
func AppendixLetter(n int) string {
	var sb []byte
	for n > 0 {
		n--
		sb = append([]byte{byte('A' + n%26)}, sb...)
		n /= 26
	}
	return string(sb)
}

func (t *DocTree) assignIDs() {
	seen := map[string]bool{}
	t.Walk(func(n *DocNode) bool {
		if n.ID != "" {
			seen[n.ID] = true
		}
		return true
	})
	t.Walk(func(n *DocNode) bool {
		if n.Kind == KindSection && n.ID == "" {
			id := SectionID(n.Title)
			base := id
			for i := 2; seen[id]; i++ {
				id = base + "_" + strconv.Itoa(i)
			}
			n.ID = id
			seen[id] = true
		}
		return true
	})
}

// SectionID derives an id from a title: lowercased, prefixed with an
// underscore, runs of other characters collapsed to single underscores.
func SectionID(title string) string {
	var sb strings.Builder
	sb.WriteByte('_')
	sep := true
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			sep = false
			continue
		}
		if !sep {
			sb.WriteByte('_')
			sep = true
		}
	}
	return strings.TrimRight(sb.String(), "_")
}

// FilterSample drops top-level sections (and chapters inside parts) not
// flagged with the "sample" attribute, along with their includes. Parts
// left without chapters are dropped too.
func (t *DocTree) FilterSample() {
	keep := map[string]bool{}
	var kept []*DocNode
	for _, c := range t.Children {
		if c.Kind != KindSection {
			kept = append(kept, c)
			continue
		}
		if c.Level == 0 {
			var chapters []*DocNode
			for _, ch := range c.Children {
				if ch.Kind != KindSection || ch.HasAttr("sample") {
					chapters = append(chapters, ch)
					if ch.Kind == KindSection {
						keep[ch.Source] = true
					}
				}
			}
			if len(sections(chapters)) == 0 {
				continue
			}
			c.Children = chapters
			keep[c.Source] = true
			kept = append(kept, c)
			continue
		}
		if c.HasAttr("sample") {
			keep[c.Source] = true
			kept = append(kept, c)
		}
	}
	t.Children = kept
	var includes []string
	for _, inc := range t.Includes {
		if keep[inc] {
			includes = append(includes, inc)
		}
	}
	t.Includes = includes
	t.Prepare()
}
