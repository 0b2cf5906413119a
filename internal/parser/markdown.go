package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark.
//
// Front matter keys apply to the first section: id, sectname (or style),
// role and sample. With part: true a level-1 heading opens a part.
// title sets the tree title; any other key becomes a tree attribute.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Footnote,
			extension.TaskList,
			meta.Meta,
		),
		goldmark.WithParserOptions(gmparser.WithAttribute()),
	)
	pc := gmparser.NewContext()
	doc := md.Parser().Parse(text.NewReader(src), gmparser.WithContext(pc))
	fm := meta.Get(pc)

	base := 1
	if truthy(fm["part"]) {
		base = 0
	}
	m := &mdConverter{
		src:       src,
		prefix:    baseName(filename),
		footnotes: map[int]*east.Footnote{},
		seen:      map[int]bool{},
	}
	m.collectFootnotes(doc)

	o := newOutline(base)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			s := o.section(h.Level, strings.TrimSpace(doctree.PlainText(m.inlines(h))))
			if id, ok := h.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					s.ID = string(b)
				}
			}
			continue
		}
		o.add(m.block(n))
	}

	tree := o.tree(baseName(filename))
	applyFrontMatter(tree, o.first(), fm)
	return tree, nil
}

func applyFrontMatter(tree *doctree.DocTree, first *doctree.DocNode, fm map[string]interface{}) {
	for key, v := range fm {
		val := fmt.Sprint(v)
		switch key {
		case "title":
			tree.Title = val
		case "part":
		case "id", "sectname", "style", "role", "sample":
			if first == nil {
				continue
			}
			switch key {
			case "id":
				first.ID = val
			case "sectname", "style":
				first.SectName = val
			case "role":
				first.Role = val
			case "sample":
				if truthy(v) {
					if first.Attributes == nil {
						first.Attributes = doctree.Attributes{}
					}
					first.Attributes["sample"] = ""
				}
			}
		default:
			tree.Attributes[key] = val
		}
	}
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok
	}
	return false
}

// mdConverter maps a goldmark AST onto DocNodes.
type mdConverter struct {
	src       []byte
	prefix    string // Disambiguates footnote ids across chapter files.
	footnotes map[int]*east.Footnote
	seen      map[int]bool
}

func (m *mdConverter) collectFootnotes(doc ast.Node) {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		list, ok := n.(*east.FootnoteList)
		if !ok {
			continue
		}
		for c := list.FirstChild(); c != nil; c = c.NextSibling() {
			if fn, ok := c.(*east.Footnote); ok {
				m.footnotes[fn.Index] = fn
			}
		}
	}
}

func (m *mdConverter) blocks(parent ast.Node) []*doctree.DocNode {
	var out []*doctree.DocNode
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := m.block(n); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (m *mdConverter) block(n ast.Node) *doctree.DocNode {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := node.FirstChild().(*ast.Image); ok && node.ChildCount() == 1 {
			return m.image(img)
		}
		return &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: m.inlines(node)}
	case *ast.Heading:
		return &doctree.DocNode{Kind: doctree.KindFloatingTitle, Title: doctree.PlainText(m.inlines(node)), Level: node.Level}
	case *ast.List:
		return m.list(node)
	case *ast.FencedCodeBlock:
		listing := &doctree.DocNode{Kind: doctree.KindListing, Text: m.lines(node)}
		if lang := string(node.Language(m.src)); lang != "" {
			listing.Style = "source"
			listing.Attributes = doctree.Attributes{"language": lang}
		}
		return listing
	case *ast.CodeBlock:
		return &doctree.DocNode{Kind: doctree.KindLiteral, Text: m.lines(node)}
	case *ast.Blockquote:
		return &doctree.DocNode{Kind: doctree.KindQuote, Children: m.blocks(node)}
	case *ast.ThematicBreak:
		return &doctree.DocNode{Kind: doctree.KindThematicBreak}
	case *ast.HTMLBlock:
		raw := m.lines(node)
		if node.HasClosure() {
			raw += "\n" + string(node.ClosureLine.Value(m.src))
		}
		return &doctree.DocNode{Kind: doctree.KindPass, Text: strings.TrimSpace(raw)}
	case *east.Table:
		return m.table(node)
	case *east.FootnoteList:
		return nil
	}
	return nil
}

func (m *mdConverter) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(m.src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *mdConverter) list(l *ast.List) *doctree.DocNode {
	out := &doctree.DocNode{Kind: doctree.KindUList, Attributes: doctree.Attributes{}}
	if l.IsOrdered() {
		out.Kind = doctree.KindOList
		out.Style = "arabic"
		if l.Start > 1 {
			out.Attributes["start"] = strconv.Itoa(l.Start)
		}
	}
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		li, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		item := &doctree.DocNode{Kind: doctree.KindListItem, Attributes: doctree.Attributes{}}
		first := li.FirstChild()
		if first != nil {
			switch first.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if box, ok := first.FirstChild().(*east.TaskCheckBox); ok {
					out.Attributes["options"] = "checklist"
					item.Attributes["checkbox"] = ""
					if box.IsChecked {
						item.Attributes["checked"] = ""
					}
				}
				item.Inlines = m.inlines(first)
				first = first.NextSibling()
			}
		}
		for n := first; n != nil; n = n.NextSibling() {
			if b := m.block(n); b != nil {
				item.Children = append(item.Children, b)
			}
		}
		out.Children = append(out.Children, item)
	}
	return out
}

func (m *mdConverter) image(img *ast.Image) *doctree.DocNode {
	return &doctree.DocNode{
		Kind:       doctree.KindImage,
		Target:     string(img.Destination),
		Title:      string(img.Title),
		Attributes: doctree.Attributes{"alt": doctree.PlainText(m.inlines(img))},
	}
}

func (m *mdConverter) table(t *east.Table) *doctree.DocNode {
	grid := &doctree.Table{}
	row := func(n ast.Node) doctree.Row {
		var r doctree.Row
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			cell, ok := c.(*east.TableCell)
			if !ok {
				continue
			}
			halign := ""
			if cell.Alignment != east.AlignNone {
				halign = cell.Alignment.String()
			}
			r = append(r, doctree.Cell{HAlign: halign, Inlines: m.inlines(cell)})
		}
		return r
	}
	for c := t.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *east.TableHeader:
			grid.Head = append(grid.Head, row(c))
		case *east.TableRow:
			grid.Body = append(grid.Body, row(c))
		}
	}
	return &doctree.DocNode{Kind: doctree.KindTable, Table: grid, Attributes: doctree.Attributes{}}
}

func (m *mdConverter) inlines(parent ast.Node) []*doctree.DocNode {
	var out []*doctree.DocNode
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, m.inline(n)...)
	}
	return out
}

func (m *mdConverter) inline(n ast.Node) []*doctree.DocNode {
	switch node := n.(type) {
	case *ast.Text:
		value := string(node.Segment.Value(m.src))
		switch {
		case node.HardLineBreak():
			return []*doctree.DocNode{{Kind: doctree.KindBreak, Text: value}}
		case node.SoftLineBreak():
			return []*doctree.DocNode{textNode(value + "\n")}
		}
		return []*doctree.DocNode{textNode(value)}
	case *ast.String:
		return []*doctree.DocNode{textNode(string(node.Value))}
	case *ast.Emphasis:
		typ := "emphasis"
		if node.Level >= 2 {
			typ = "strong"
		}
		return []*doctree.DocNode{{Kind: doctree.KindQuoted, Type: typ, Inlines: m.inlines(node)}}
	case *ast.CodeSpan:
		return []*doctree.DocNode{{Kind: doctree.KindQuoted, Type: "monospaced", Inlines: m.inlines(node)}}
	case *east.Strikethrough:
		return []*doctree.DocNode{{Kind: doctree.KindQuoted, Type: "strike", Inlines: m.inlines(node)}}
	case *ast.Link:
		return []*doctree.DocNode{m.link(string(node.Destination), m.inlines(node))}
	case *ast.AutoLink:
		url := string(node.URL(m.src))
		return []*doctree.DocNode{{Kind: doctree.KindAnchor, Type: "link", Target: url, Text: url}}
	case *ast.Image:
		img := &doctree.DocNode{
			Kind:       doctree.KindInlineImage,
			Target:     string(node.Destination),
			Attributes: doctree.Attributes{"alt": doctree.PlainText(m.inlines(node))},
		}
		if len(node.Title) > 0 {
			img.Attributes["title"] = string(node.Title)
		}
		return []*doctree.DocNode{img}
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			sb.Write(seg.Value(m.src))
		}
		return []*doctree.DocNode{{Kind: doctree.KindPass, Text: sb.String()}}
	case *east.FootnoteLink:
		return []*doctree.DocNode{m.footnote(node.Index)}
	case *east.FootnoteBacklink, *east.TaskCheckBox:
		return nil
	}
	return m.inlines(n)
}

// link turns in-document and cross-chapter targets into xrefs.
func (m *mdConverter) link(dest string, content []*doctree.DocNode) *doctree.DocNode {
	file, frag, hasFrag := strings.Cut(dest, "#")
	switch {
	case hasFrag && file == "":
		return &doctree.DocNode{Kind: doctree.KindAnchor, Type: "xref", Target: frag,
			Attributes: doctree.Attributes{"refid": frag}, Inlines: content}
	case hasFrag && IsSupportedExtension(file) && !strings.Contains(file, "://"):
		target := baseName(file) + "#" + frag
		return &doctree.DocNode{Kind: doctree.KindAnchor, Type: "xref", Target: target,
			Attributes: doctree.Attributes{"refid": frag}, Inlines: content}
	}
	return &doctree.DocNode{Kind: doctree.KindAnchor, Type: "link", Target: dest, Inlines: content}
}

// footnote inlines the definition at its first reference; later
// references point back at it.
func (m *mdConverter) footnote(index int) *doctree.DocNode {
	fn, ok := m.footnotes[index]
	if !ok {
		return textNode("[" + strconv.Itoa(index) + "]")
	}
	id := "_fn_" + m.prefix + "_" + doctree.SectionID(string(fn.Ref))[1:]
	if m.seen[index] {
		return &doctree.DocNode{Kind: doctree.KindFootnote, Type: "xref", Target: id,
			Attributes: doctree.Attributes{"index": strconv.Itoa(index)}}
	}
	m.seen[index] = true
	var content []*doctree.DocNode
	for c := fn.FirstChild(); c != nil; c = c.NextSibling() {
		if len(content) > 0 {
			content = append(content, textNode(" "))
		}
		content = append(content, m.inlines(c)...)
	}
	return &doctree.DocNode{Kind: doctree.KindFootnote, ID: id, Inlines: content}
}
