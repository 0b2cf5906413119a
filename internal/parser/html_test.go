package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/bookpress/internal/doctree"
)

func TestHTMLParser_SectionsAndBlocks(t *testing.T) {
	input := `<html><head><title>Field Notes</title><style>p{}</style></head><body>
<nav><a href="#x">skip</a></nav>
<h1 id="intro">Intro</h1>
<p>Hello <em>there</em>, see <a href="#deep">below</a>.</p>
<h2>Deep</h2>
<ul><li>one</li><li>two</li></ul>
<pre><code class="language-python">print("hi")
</code></pre>
<blockquote><p>Quoted.</p></blockquote>
<figure><img src="a.png" alt="A"/><figcaption>An image</figcaption></figure>
<table><caption>Sizes</caption><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>
</body></html>`

	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "notes.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Field Notes" {
		t.Errorf("expected title from <title>, got %q", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level section, got %d", len(tree.Children))
	}
	intro := tree.Children[0]
	if intro.ID != "intro" || intro.Level != 1 {
		t.Errorf("unexpected section id=%q level=%d", intro.ID, intro.Level)
	}
	if len(intro.Children) != 2 {
		t.Fatalf("expected paragraph and subsection, got %d", len(intro.Children))
	}
	para := intro.Children[0]
	if got := doctree.PlainText(para.Inlines); got != "Hello there, see below." {
		t.Errorf("unexpected paragraph text %q", got)
	}
	deep := intro.Children[1]
	kinds := make([]doctree.Kind, len(deep.Children))
	for i, c := range deep.Children {
		kinds[i] = c.Kind
	}
	want := []doctree.Kind{doctree.KindUList, doctree.KindListing, doctree.KindQuote, doctree.KindImage, doctree.KindTable}
	if len(kinds) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("block %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
	if l := deep.Children[1]; l.Attr("language", "") != "python" || l.Text != `print("hi")` {
		t.Errorf("unexpected listing %+v", l)
	}
	if img := deep.Children[3]; img.Title != "An image" || img.Target != "a.png" {
		t.Errorf("unexpected image %+v", img)
	}
	if tbl := deep.Children[4]; tbl.Title != "Sizes" || len(tbl.Table.Head) != 1 || len(tbl.Table.Body) != 1 {
		t.Errorf("unexpected table %+v", tbl.Table)
	}
}

func TestCSVParser_OneTable(t *testing.T) {
	input := "name,qty\napple,3\npear,5,extra\n"
	tree, err := (&CSVParser{}).Parse(strings.NewReader(input), "data.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "data" || len(tree.Children) != 1 {
		t.Fatalf("expected one table titled data, got %q with %d children", tree.Title, len(tree.Children))
	}
	tbl := tree.Children[0].Table
	if len(tbl.Head) != 1 || len(tbl.Body) != 2 {
		t.Fatalf("expected 1 header and 2 body rows, got %d/%d", len(tbl.Head), len(tbl.Body))
	}
	if got := doctree.PlainText(tbl.Body[1][2].Inlines); got != "extra" {
		t.Errorf("expected ragged row kept, got %q", got)
	}
}

func TestForFile(t *testing.T) {
	for name, want := range map[string]string{
		"a.md":   "*parser.MarkdownParser",
		"b.HTML": "*parser.HTMLParser",
		"c.docx": "*parser.DOCXParser",
		"d.yaml": "*parser.TreeParser",
		"e.txt":  "*parser.TextParser",
		"f.csv":  "*parser.CSVParser",
	} {
		p, err := ForFile(name)
		if err != nil {
			t.Fatalf("ForFile(%q): %v", name, err)
		}
		if got := typeName(p); got != want {
			t.Errorf("ForFile(%q) = %s, want %s", name, got, want)
		}
	}
	if _, err := ForFile("scan.pdf"); err == nil {
		t.Error("expected pdf to be unsupported")
	}
}

func typeName(p Parser) string {
	switch p.(type) {
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *HTMLParser:
		return "*parser.HTMLParser"
	case *DOCXParser:
		return "*parser.DOCXParser"
	case *TreeParser:
		return "*parser.TreeParser"
	case *TextParser:
		return "*parser.TextParser"
	case *CSVParser:
		return "*parser.CSVParser"
	}
	return "unknown"
}
