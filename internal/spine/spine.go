// Package spine decides the ordered list of output units for paginated
// formats.
package spine

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/bookpress/internal/failure"
)

// Fixed spine item names, in their fixed order.
const (
	Cover     = "cover"
	TitlePage = "titlepage"
	Nav       = "nav"
	Preamble  = "preamble"
)

// FixedNames lists the fixed leading members in spine order.
var FixedNames = []string{Cover, TitlePage, Nav, Preamble}

// Presence records which fixed units exist in the rendered markup.
type Presence struct {
	Cover     bool
	TitlePage bool
	TOC       bool
	Preamble  bool
}

// Resolve returns the fixed members that are present followed by the
// included documents in inclusion order. A name appearing twice is a
// consistency error.
func Resolve(includes []string, p Presence) ([]string, error) {
	var items []string
	for _, fixed := range []struct {
		name    string
		present bool
	}{
		{Cover, p.Cover},
		{TitlePage, p.TitlePage},
		{Nav, p.TOC},
		{Preamble, p.Preamble},
	} {
		if fixed.present {
			items = append(items, fixed.name)
		}
	}
	items = append(items, includes...)

	seen := make(map[string]int, len(items))
	for i, name := range items {
		if name == "" {
			return nil, failure.Consistencyf("resolve spine", "empty spine item name at position %d", i)
		}
		if j, dup := seen[name]; dup {
			return nil, failure.Consistencyf("resolve spine", "duplicate spine item %q at positions %d and %d", name, j, i).
				WithDetails("spine items: " + strings.Join(items, ", "))
		}
		seen[name] = i
	}
	return items, nil
}

// IsFixed reports whether name is one of the fixed member names.
func IsFixed(name string) bool {
	for _, f := range FixedNames {
		if f == name {
			return true
		}
	}
	return false
}

// Content returns the spine without its fixed members.
func Content(items []string) []string {
	var out []string
	for _, name := range items {
		if !IsFixed(name) {
			out = append(out, name)
		}
	}
	return out
}

// Inspect reports which fixed units are direct children of the book body.
func Inspect(markup string) (Presence, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Presence{}, err
	}
	return InspectDocument(doc), nil
}

// InspectDocument is Inspect over an already parsed document.
func InspectDocument(doc *goquery.Document) Presence {
	body := doc.Find("body").First()
	has := func(sel string) bool { return body.ChildrenFiltered(sel).Length() > 0 }
	return Presence{
		Cover:     has(`div[data-type="cover"]`),
		TitlePage: has(`section[data-type="titlepage"]`),
		TOC:       has(`nav[data-type="toc"]`),
		Preamble:  has(`section[data-type="preamble"]`),
	}
}
