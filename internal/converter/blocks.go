package converter

import (
	"fmt"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// admonitionEPUBTypes maps admonition names to epub:type values.
var admonitionEPUBTypes = map[string]string{
	"tip":       "help",
	"note":      "note",
	"important": "warning",
	"warning":   "warning",
	"caution":   "warning",
}

var calloutDigits = []string{
	"&#x278a;", "&#x278b;", "&#x278c;", "&#x278d;", "&#x278e;",
	"&#x278f;", "&#x2790;", "&#x2791;", "&#x2792;", "&#x2793;",
}

var blockMathDelimiters = map[string][2]string{
	"latexmath": {`\[`, `\]`},
	"asciimath": {`\$`, `\$`},
}

func (r *renderer) paragraph(n *doctree.DocNode) string {
	return fmt.Sprintf("<p%s%s>%s</p>", idAttr(n), roleAttr(n), r.inlines(n.Inlines))
}

func (r *renderer) admonition(n *doctree.DocNode) string {
	name := strings.ToLower(n.Attr("name", n.Style))
	epubType := ""
	if r.epub {
		epubType = attr("epub:type", admonitionEPUBTypes[name])
	}
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf("<h1>%s</h1>", esc(n.Title))
	}
	return lines(
		fmt.Sprintf(`<div data-type="%s"%s%s%s>`, esc(name), epubType, idAttr(n), roleAttr(n)),
		title,
		r.blocks(n.Children),
		"</div>",
	)
}

func (r *renderer) listItemBody(item *doctree.DocNode, marker string) string {
	return lines(
		fmt.Sprintf("<p>%s%s</p>", marker, r.inlines(item.Inlines)),
		r.blocks(item.Children),
	)
}

func (r *renderer) ulist(n *doctree.DocNode) string {
	classes := []string{n.Style, n.Role}
	checklist := n.Attributes.Option("checklist")
	var checked, unchecked string
	if checklist {
		classes = append([]string{"checklist"}, classes...)
		switch {
		case n.Attributes.Option("interactive"):
			checked = `<input type="checkbox" data-item-complete="1"` + r.boolAttr("checked") + "/> "
			unchecked = `<input type="checkbox" data-item-complete="0"/> `
		case r.attrs.Get("icons", "") == "font":
			checked = `<i class="icon-check"></i> `
			unchecked = `<i class="icon-check-empty"></i> `
		default:
			checked = "&#10003; "
			unchecked = "&#10063; "
		}
	}
	out := []string{fmt.Sprintf("<ul%s%s>", idAttr(n), classAttr(classes...))}
	for _, item := range n.Children {
		marker := ""
		if checklist && item.HasAttr("checkbox") {
			marker = unchecked
			if item.HasAttr("checked") {
				marker = checked
			}
		}
		out = append(out, "<li>", r.listItemBody(item, marker), "</li>")
	}
	out = append(out, "</ul>")
	return lines(out...)
}

// listMarkerTypes maps ordered list styles to the html type keyword.
var listMarkerTypes = map[string]string{
	"arabic":     "1",
	"loweralpha": "a",
	"upperalpha": "A",
	"lowerroman": "i",
	"upperroman": "I",
	"lowergreek": "α",
}

func (r *renderer) olist(n *doctree.DocNode) string {
	out := []string{fmt.Sprintf("<ol%s%s%s%s>", idAttr(n), classAttr(n.Style, n.Role),
		attr("type", listMarkerTypes[n.Style]), attr("start", n.Attr("start", "")))}
	for _, item := range n.Children {
		out = append(out, "<li>", r.listItemBody(item, ""), "</li>")
	}
	out = append(out, "</ol>")
	return lines(out...)
}

func (r *renderer) colist(n *doctree.DocNode) string {
	out := []string{fmt.Sprintf("<dl%s%s%s>", idAttr(n), classAttr("calloutlist", n.Style, n.Role), attr("start", n.Attr("start", "")))}
	for i, item := range n.Children {
		digit := fmt.Sprintf("(%d)", i+1)
		if i < len(calloutDigits) {
			digit = calloutDigits[i]
		}
		out = append(out, fmt.Sprintf("<dt>%s</dt>", digit))
		out = append(out, fmt.Sprintf("<dd><p>%s</p>%s</dd>", r.inlines(item.Inlines), r.blocks(item.Children)))
	}
	out = append(out, "</dl>")
	return lines(out...)
}

// description renders the dd content of a description list item.
func (r *renderer) description(item *doctree.DocNode) []string {
	var out []string
	if len(item.Inlines) > 0 {
		out = append(out, fmt.Sprintf("<p>%s</p>", r.inlines(item.Inlines)))
	}
	if len(item.Children) > 0 {
		out = append(out, r.blocks(item.Children))
	}
	return out
}

func (r *renderer) dlist(n *doctree.DocNode) string {
	var classes []string
	switch n.Style {
	case "qanda":
		classes = []string{"qlist", "qanda", n.Role}
	case "horizontal":
		classes = []string{"hdlist", n.Role}
	default:
		classes = []string{"dlist", n.Style, n.Role}
	}
	out := []string{fmt.Sprintf("<div%s%s>", idAttr(n), classAttr(classes...))}
	if n.Title != "" {
		out = append(out, fmt.Sprintf(`<div class="title">%s</div>`, esc(n.Title)))
	}
	switch n.Style {
	case "qanda":
		out = append(out, "<ol>")
		for _, item := range n.Children {
			out = append(out, "<li>")
			for _, term := range item.Terms {
				out = append(out, fmt.Sprintf("<p><em>%s</em></p>", r.inlines(term)))
			}
			out = append(out, r.description(item)...)
			out = append(out, "</li>")
		}
		out = append(out, "</ol>")
	case "horizontal":
		out = append(out, "<table>")
		if n.HasAttr("labelwidth") || n.HasAttr("itemwidth") {
			out = append(out, "<colgroup>")
			for _, key := range []string{"labelwidth", "itemwidth"} {
				style := ""
				if n.HasAttr(key) {
					style = fmt.Sprintf(` style="width: %s%%;"`, esc(strings.TrimSuffix(n.Attr(key, ""), "%")))
				}
				out = append(out, fmt.Sprintf("<col%s/>", style))
			}
			out = append(out, "</colgroup>")
		}
		strong := ""
		if n.Attributes.Option("strong") {
			strong = " strong"
		}
		for _, item := range n.Children {
			out = append(out, "<tr>", fmt.Sprintf(`<td class="hdlist1%s">`, strong))
			for i, term := range item.Terms {
				out = append(out, r.inlines(term))
				if i < len(item.Terms)-1 {
					out = append(out, "<br/>")
				}
			}
			out = append(out, "</td>", `<td class="hdlist2">`)
			out = append(out, r.description(item)...)
			out = append(out, "</td>", "</tr>")
		}
		out = append(out, "</table>")
	default:
		out = append(out, "<dl>")
		dtClass := ""
		if n.Style == "" {
			dtClass = ` class="hdlist1"`
		}
		for _, item := range n.Children {
			for _, term := range item.Terms {
				out = append(out, fmt.Sprintf("<dt%s>%s</dt>", dtClass, r.inlines(term)))
			}
			if dd := r.description(item); len(dd) > 0 {
				out = append(out, "<dd>")
				out = append(out, dd...)
				out = append(out, "</dd>")
			}
		}
		out = append(out, "</dl>")
	}
	out = append(out, "</div>")
	return lines(out...)
}

func (r *renderer) example(n *doctree.DocNode) string {
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf("<h5>%s</h5>\n", captionedTitle(n))
	}
	return fmt.Sprintf(`<div data-type="example"%s%s>%s%s</div>`, idAttr(n), roleAttr(n), title, r.blocks(n.Children))
}

func (r *renderer) floatingTitle(n *doctree.DocNode) string {
	tag := fmt.Sprintf("h%d", n.Level+1)
	return fmt.Sprintf(`<%s%s class="%s">%s</%s>`, tag, idAttr(n), esc(strings.TrimSpace(n.Style+" "+n.Role)), esc(n.Title), tag)
}

func (r *renderer) literal(n *doctree.DocNode) string {
	cls := "literal"
	if n.Role != "" {
		cls += " " + n.Role
	}
	return lines(
		fmt.Sprintf(`<div%s class="%s">`, idAttr(n), esc(cls)),
		fmt.Sprintf("<pre>%s</pre>", esc(n.Text)),
		"</div>",
	)
}

func (r *renderer) listing(n *doctree.DocNode) string {
	var pre string
	if n.Style == "source" {
		language := n.Attr("language", r.attrs.Get("source-language", ""))
		linenums := n.HasAttr("linenums")
		switch {
		case r.attrs.Has("highlight"):
			pre = r.highlight(n.Text, language, "highlight language-"+language, linenums)
		case linenums:
			pre = r.highlight(n.Text, "plaintext", "", true)
		default:
			pre = fmt.Sprintf(`<pre><code%s>%s</code></pre>`, attr("class", "language-"+language), esc(n.Text))
		}
	} else {
		pre = fmt.Sprintf("<pre>%s</pre>", esc(n.Text))
	}
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf("<h5>%s</h5>", r.autoCaption(n, CategoryListing))
	}
	return lines(
		fmt.Sprintf(`<div%s data-type="listing"%s>`, idAttr(n), roleAttr(n)),
		title,
		pre,
		"</div>",
	)
}

func (r *renderer) math(n *doctree.DocNode) string {
	style := n.Style
	if _, ok := blockMathDelimiters[style]; !ok {
		style = "latexmath"
	}
	delims := blockMathDelimiters[style]
	equation := esc(strings.TrimSpace(n.Text))
	if !strings.HasPrefix(equation, delims[0]) || !strings.HasSuffix(equation, delims[1]) {
		equation = delims[0] + equation + delims[1]
	}
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf("<h5>%s</h5>", esc(n.Title))
	}
	return lines(
		fmt.Sprintf(`<div data-type="equation"%s%s>`, idAttr(n), roleAttr(n)),
		title,
		fmt.Sprintf(`<p data-type="tex">%s</p>`, equation),
		"</div>",
	)
}

func (r *renderer) open(n *doctree.DocNode) string {
	parent := n.Parent()
	book := r.attrs.Get("doctype", "book") == "book"
	switch n.Style {
	case "abstract":
		if parent == nil && book {
			r.warn("open", "abstract block cannot be used in a document without a title when doctype is book")
			return ""
		}
		title := ""
		if n.Title != "" {
			title = fmt.Sprintf(`<div class="title">%s</div>`, esc(n.Title))
		}
		return lines(
			fmt.Sprintf(`<div%s%s>`, idAttr(n), classAttr("quoteblock", "abstract", n.Role)),
			title,
			fmt.Sprintf("<blockquote>%s</blockquote>", r.blocks(n.Children)),
			"</div>",
		)
	case "partintro":
		if parent == nil || parent.Kind != doctree.KindSection || parent.Level != 0 || !book {
			r.warn("open", "partintro block can only be used when doctype is book and it's a child of a book part")
			return ""
		}
	}
	style := n.Style
	if style == "open" {
		style = ""
	}
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf(`<div class="title">%s</div>`, esc(n.Title))
	}
	return lines(
		fmt.Sprintf("<div%s%s>", idAttr(n), classAttr("openblock", style, n.Role)),
		title,
		r.blocks(n.Children),
		"</div>",
	)
}

func (r *renderer) pageBreak() string {
	if r.epub {
		return `<hr epub:type="pagebreak"/>`
	}
	return `<div style="page-break-after:always;"></div>`
}

// attribution renders the attribution paragraph of a quote or verse.
func (r *renderer) attribution(n *doctree.DocNode, sep string) string {
	who, cite := n.Attr("attribution", ""), n.Attr("citetitle", "")
	if who == "" && cite == "" {
		return ""
	}
	var body string
	if cite != "" {
		body = fmt.Sprintf("<cite>%s</cite>", esc(cite))
	}
	if who != "" {
		if cite != "" {
			body += "<br/>\n"
		}
		body += "&#8212; " + esc(who)
	}
	return fmt.Sprintf(`<p data-type="attribution">%s%s%s</p>`, sep, body, sep)
}

func (r *renderer) quote(n *doctree.DocNode) string {
	return fmt.Sprintf("<blockquote%s%s>%s%s</blockquote>", idAttr(n), roleAttr(n), r.blocks(n.Children), r.attribution(n, ""))
}

func (r *renderer) verse(n *doctree.DocNode) string {
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf(`<div class="title">%s</div>`, esc(n.Title))
	}
	return lines(
		fmt.Sprintf(`<blockquote data-type="epigraph"%s%s>`, idAttr(n), classAttr("verse", n.Role)),
		title,
		fmt.Sprintf("<pre>%s</pre>", esc(strings.TrimRight(n.Text, "\n"))),
		r.attribution(n, "\n"),
		"</blockquote>",
	)
}

func (r *renderer) sidebar(n *doctree.DocNode) string {
	epubType := ""
	if r.epub {
		epubType = ` epub:type="sidebar"`
	}
	title := ""
	if n.Title != "" {
		title = fmt.Sprintf("<h5>%s</h5>", esc(n.Title))
	}
	return lines(
		fmt.Sprintf(`<aside data-type="sidebar"%s%s%s>`, epubType, idAttr(n), classAttr("sidebar", n.Role)),
		title,
		r.blocks(n.Children),
		"</aside>",
	)
}
