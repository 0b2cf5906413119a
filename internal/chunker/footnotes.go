package chunker

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractFootnotes replaces every footnote marker under sel with a
// numbered superscript link and returns the footnote block for the end
// of the chunk. Numbering starts at 1 in document order. Footnote
// references to a marker in the same fragment are pointed at its entry.
// References to a marker outside the fragment are unwrapped to their
// text and their targets returned as dangling. With no markers the
// block is "".
func ExtractFootnotes(sel *goquery.Selection, epub bool) (block string, dangling []string) {
	byID := make(map[string]int)
	markers := sel.Find(`span[data-type="footnote"]`)
	if markers.Length() > 0 {
		var b strings.Builder
		b.WriteString("<div class=\"footnotes\">\n<ol>\n")
		markers.Each(func(i int, m *goquery.Selection) {
			n := strconv.Itoa(i + 1)
			if id, ok := m.Attr("id"); ok && id != "" {
				byID[id] = i + 1
			}
			inner, _ := m.Html()
			b.WriteString(`<li id="fn-` + n + `"`)
			if epub {
				b.WriteString(` epub:type="footnote"`)
			}
			b.WriteString(">" + inner + ` <a href="#fn-ref-` + n + `">&#8617;</a></li>` + "\n")
			m.ReplaceWithHtml(`<sup>[<a id="fn-ref-` + n + `" href="#fn-` + n + `">` + n + `</a>]</sup>`)
		})
		b.WriteString("</ol>\n</div>")
		block = b.String()
	}

	sel.Find(`a[data-type="footnoteref"]`).Each(func(_ int, a *goquery.Selection) {
		id := strings.TrimPrefix(a.AttrOr("href", ""), "#")
		if n, ok := byID[id]; ok {
			num := strconv.Itoa(n)
			a.SetAttr("href", "#fn-"+num)
			a.SetText(num)
			return
		}
		dangling = append(dangling, id)
		a.ReplaceWithSelection(a.Contents())
	})
	return block, dangling
}
