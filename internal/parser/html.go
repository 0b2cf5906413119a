package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	o := newOutline(1)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				s := o.section(level, textContent(n))
				s.ID = getAttr(n, "id")
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			}
			if b := htmlBlock(n); b != nil {
				o.add(b)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	body := findBody(doc)
	if body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	tree := o.tree(baseName(filename))
	if title := findTitle(doc); title != "" {
		tree.Title = title
	}
	return tree, nil
}

// htmlBlock maps a block-level element, nil for containers whose
// children should be walked instead.
func htmlBlock(n *html.Node) *doctree.DocNode {
	switch n.Data {
	case "p":
		if t := textContent(n); t == "" && findElement(n, "img") == nil {
			return nil
		}
		if img := soleImage(n); img != nil {
			return imageBlock(img)
		}
		return &doctree.DocNode{Kind: doctree.KindParagraph, ID: getAttr(n, "id"), Inlines: htmlInlines(n)}
	case "img":
		return imageBlock(n)
	case "figure":
		img := findElement(n, "img")
		if img == nil {
			return nil
		}
		b := imageBlock(img)
		if fc := findElement(n, "figcaption"); fc != nil {
			b.Title = textContent(fc)
		}
		b.ID = getAttr(n, "id")
		return b
	case "ul", "ol":
		list := &doctree.DocNode{Kind: doctree.KindUList}
		if n.Data == "ol" {
			list.Kind, list.Style = doctree.KindOList, "arabic"
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				list.Children = append(list.Children, &doctree.DocNode{Kind: doctree.KindListItem, Inlines: htmlInlines(c)})
			}
		}
		return list
	case "pre":
		listing := &doctree.DocNode{Kind: doctree.KindListing, Text: strings.TrimRight(rawText(n), "\n")}
		if code := findElement(n, "code"); code != nil {
			for _, cls := range strings.Fields(getAttr(code, "class")) {
				if lang, ok := strings.CutPrefix(cls, "language-"); ok {
					listing.Style = "source"
					listing.Attributes = doctree.Attributes{"language": lang}
				}
			}
		}
		return listing
	case "blockquote":
		quote := &doctree.DocNode{Kind: doctree.KindQuote}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if b := htmlBlock(c); b != nil {
				quote.Children = append(quote.Children, b)
			}
		}
		if len(quote.Children) == 0 {
			if t := textContent(n); t != "" {
				quote.Children = []*doctree.DocNode{paragraphNode(t)}
			}
		}
		return quote
	case "hr":
		return &doctree.DocNode{Kind: doctree.KindThematicBreak}
	case "table":
		return htmlTable(n)
	}
	return nil
}

func imageBlock(img *html.Node) *doctree.DocNode {
	return &doctree.DocNode{
		Kind:       doctree.KindImage,
		Target:     getAttr(img, "src"),
		Title:      getAttr(img, "title"),
		Attributes: doctree.Attributes{"alt": getAttr(img, "alt")},
	}
}

func htmlTable(n *html.Node) *doctree.DocNode {
	grid := &doctree.Table{}
	var visit func(*html.Node, string)
	visit = func(n *html.Node, section string) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				visit(c, c.Data)
			case "tr":
				var row doctree.Row
				head := section == "thead"
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
						continue
					}
					if td.Data == "th" && section == "" && len(grid.Body) == 0 {
						head = true
					}
					row = append(row, doctree.Cell{Inlines: htmlInlines(td)})
				}
				switch {
				case head:
					grid.Head = append(grid.Head, row)
				case section == "tfoot":
					grid.Foot = append(grid.Foot, row)
				default:
					grid.Body = append(grid.Body, row)
				}
			}
		}
	}
	visit(n, "")
	table := &doctree.DocNode{Kind: doctree.KindTable, ID: getAttr(n, "id"), Table: grid}
	if fc := findElement(n, "caption"); fc != nil {
		table.Title = textContent(fc)
	}
	return table
}

var htmlQuoted = map[string]string{
	"em":     "emphasis",
	"i":      "emphasis",
	"strong": "strong",
	"b":      "strong",
	"code":   "monospaced",
	"sup":    "superscript",
	"sub":    "subscript",
	"del":    "strike",
	"s":      "strike",
}

func htmlInlines(n *html.Node) []*doctree.DocNode {
	var out []*doctree.DocNode
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			out = append(out, textNode(c.Data))
		case html.ElementNode:
			switch {
			case htmlQuoted[c.Data] != "":
				out = append(out, &doctree.DocNode{Kind: doctree.KindQuoted, Type: htmlQuoted[c.Data], Inlines: htmlInlines(c)})
			case c.Data == "a":
				href := getAttr(c, "href")
				a := &doctree.DocNode{Kind: doctree.KindAnchor, Type: "link", Target: href, Inlines: htmlInlines(c)}
				if frag, ok := strings.CutPrefix(href, "#"); ok {
					a.Type, a.Target = "xref", frag
					a.Attributes = doctree.Attributes{"refid": frag}
				}
				out = append(out, a)
			case c.Data == "img":
				out = append(out, &doctree.DocNode{
					Kind:       doctree.KindInlineImage,
					Target:     getAttr(c, "src"),
					Attributes: doctree.Attributes{"alt": getAttr(c, "alt")},
				})
			case c.Data == "br":
				out = append(out, &doctree.DocNode{Kind: doctree.KindBreak})
			case c.Data == "kbd":
				out = append(out, &doctree.DocNode{Kind: doctree.KindKbd, Attributes: doctree.Attributes{"keys": textContent(c)}})
			default:
				out = append(out, htmlInlines(c)...)
			}
		}
	}
	return out
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// soleImage returns the img when it is the only content of n.
func soleImage(n *html.Node) *html.Node {
	var img *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.ElementNode && c.Data == "img" && img == nil:
			img = c
		default:
			return nil
		}
	}
	return img
}

func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if f := findElement(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
