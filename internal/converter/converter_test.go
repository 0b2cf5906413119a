package converter

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
)

func text(s string) *doctree.DocNode { return &doctree.DocNode{Kind: doctree.KindText, Text: s} }

func para(s string) *doctree.DocNode {
	return &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: []*doctree.DocNode{text(s)}}
}

func sect(level int, title string, children ...*doctree.DocNode) *doctree.DocNode {
	return &doctree.DocNode{Kind: doctree.KindSection, Level: level, Title: title, Children: children}
}

func figure(title string) *doctree.DocNode {
	return &doctree.DocNode{Kind: doctree.KindImage, Title: title, Target: title + ".png"}
}

func newTestConverter(format string, attrs doctree.Attributes) *Converter {
	return New(Options{
		Format:     format,
		Attributes: attrs,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		FileExists: func(string) bool { return false },
		Now:        func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func convert(t *testing.T, c *Converter, tree *doctree.DocTree) Result {
	t.Helper()
	tree.Prepare()
	res, err := c.Convert(tree)
	require.NoError(t, err)
	return res
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(doctree.Attributes{
		"colophon-title": "Colophon",
		"preface-title":  "Before We Begin",
		"index-title":    "Index",
	})
	tests := []struct {
		level       int
		kind, title string
		want        string
	}{
		{0, "", "Part I", "part"},
		{0, "", "colophon", "colophon"},
		{0, "", "Index", "index"},
		{0, "colophon", "Anything", "colophon"},
		{1, "", "Getting Started", "chapter"},
		{1, "sect1", "Getting Started", "chapter"},
		{1, "appendix", "Reference", "appendix"},
		{1, "preface", "Hello", "preface"},
		{1, "", "Before We Begin", "preface"},
		{1, "", "Preface", "chapter"},
		{1, "preface", "Foreword", "foreword"},
		{1, "", "Glossary", "glossary"},
		{1, "", "dedication", "dedication"},
		{2, "", "Details", "sect1"},
		{4, "", "Deep", "sect3"},
	}
	for _, tt := range tests {
		got := c.Classify(tt.level, tt.kind, tt.title)
		assert.Equal(t, tt.want, got, "level=%d kind=%q title=%q", tt.level, tt.kind, tt.title)
		assert.Equal(t, got, c.Classify(tt.level, tt.kind, tt.title), "classification must be deterministic")
	}
}

func TestCaptionCounter_ResetsOncePerBoundary(t *testing.T) {
	ch1, ch2 := sect(1, "One"), sect(1, "Two")
	c := NewCaptionCounter()

	assert.Equal(t, 1, c.Next(ch1, CategoryImage))
	assert.Equal(t, 2, c.Next(ch1, CategoryImage))
	assert.Equal(t, 1, c.Next(ch1, CategoryTable))
	assert.Equal(t, 0, c.resets)

	assert.Equal(t, 1, c.Next(ch2, CategoryTable))
	assert.Equal(t, 1, c.Next(ch2, CategoryImage))
	assert.Equal(t, 2, c.Next(ch2, CategoryImage))
	assert.Equal(t, 1, c.resets)
}

func TestFillCaption(t *testing.T) {
	assert.Equal(t, "Figure 2-3", FillCaption("Figure %NUM%-%SUBNUM%", "2", 3))
	assert.Equal(t, "Figure 3", FillCaption("Figure %NUM%-%SUBNUM%", "", 3))
	assert.Equal(t, "Table A.1", FillCaption("Table %NUM%.%SUBNUM%", "A", 1))
}

func TestConvert_CaptionsResetPerChapter(t *testing.T) {
	tree := &doctree.DocTree{
		Title: "Book",
		Children: []*doctree.DocNode{
			sect(1, "One", figure("a"), sect(2, "Inner", figure("b"))),
			sect(1, "Two", figure("c")),
		},
	}
	c := newTestConverter("epub", doctree.Attributes{"image-caption": "Figure %NUM%-%SUBNUM%"})
	res := convert(t, c, tree)

	assert.Contains(t, res.Markup, `<figcaption><span class="label">Figure 1-1</span>a</figcaption>`)
	assert.Contains(t, res.Markup, `<span class="label">Figure 1-2</span>b`)
	assert.Contains(t, res.Markup, `<span class="label">Figure 2-1</span>c`)
	assert.NotContains(t, res.Markup, "Figure 2-3")
}

func TestConvert_CaptionAppendSpace(t *testing.T) {
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", figure("a"))}}
	c := newTestConverter("pdf", doctree.Attributes{"image-caption": "Fig %NUM%.%SUBNUM%", "caption-append-space": ""})
	res := convert(t, c, tree)
	assert.Contains(t, res.Markup, `<span class="label">Fig 1.1</span> a`)
}

func TestConvert_NoCounterLeakAcrossConversions(t *testing.T) {
	build := func() *doctree.DocTree {
		return &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", figure("a"), figure("b"))}}
	}
	c := newTestConverter("epub", doctree.Attributes{"image-caption": "Figure %NUM%-%SUBNUM%"})
	first := convert(t, c, build())
	second := convert(t, c, build())
	assert.Equal(t, first.Markup, second.Markup)
	assert.NotContains(t, second.Markup, "Figure 1-3")
}

func TestConvert_Outline(t *testing.T) {
	tree := &doctree.DocTree{
		Title: "Book",
		Children: []*doctree.DocNode{
			sect(0, "Part One",
				sect(1, "Alpha", sect(2, "A1", sect(3, "A1a")), sect(2, "A2")),
				sect(1, "Beta"),
			),
			sect(1, "Gamma"),
		},
	}
	c := newTestConverter("epub", doctree.Attributes{"toc": "", "sectnums": ""})
	res := convert(t, c, tree)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Markup))
	require.NoError(t, err)
	nav := doc.Find(`nav[data-type="toc"]`)
	require.Equal(t, 1, nav.Length())

	top := nav.ChildrenFiltered("ol").ChildrenFiltered("li")
	assert.Equal(t, 2, top.Length())
	assert.Equal(t, "part", top.First().AttrOr("data-type", ""))

	chapters := top.First().ChildrenFiltered("ol").ChildrenFiltered("li")
	assert.Equal(t, 2, chapters.Length())
	// toclevels defaults to 2: level-2 entries appear, level-3 do not.
	subs := chapters.First().ChildrenFiltered("ol").ChildrenFiltered("li")
	assert.Equal(t, 2, subs.Length())
	assert.Equal(t, 0, subs.First().ChildrenFiltered("ol").Length())

	href, _ := subs.First().Find("a").Attr("href")
	assert.Equal(t, "#_a1", href)
	assert.Contains(t, subs.First().Find("a").Text(), "1.1.")
}

func TestClassifier_DefaultTitles(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, "index", c.Classify(0, "", "Index"))
	assert.Equal(t, "colophon", c.Classify(0, "", "Colophon"))
	assert.Equal(t, "glossary", c.Classify(1, "", "Glossary"))
	assert.Equal(t, "foreword", c.Classify(1, "preface", "Foreword"))
	assert.Equal(t, "preface", c.Classify(1, "preface", "Preface"))

	custom := NewClassifier(doctree.Attributes{"foreword-title": "Opening Words"})
	assert.Equal(t, "foreword", custom.Classify(1, "preface", "Opening Words"))
	assert.Equal(t, "preface", custom.Classify(1, "preface", "Foreword"))
}

func TestConvert_OutlineStopsAtToclevels(t *testing.T) {
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "Alpha", sect(2, "A1"))}}
	c := newTestConverter("epub", doctree.Attributes{"toc": "", "toclevels": "1"})
	res := convert(t, c, tree)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Markup))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`nav li`).Length())
}

func TestConvert_OutlineSectnumlevels(t *testing.T) {
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "Alpha", sect(2, "A1"))}}
	c := newTestConverter("epub", doctree.Attributes{"toc": "", "sectnums": "", "sectnumlevels": "1"})
	res := convert(t, c, tree)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Markup))
	require.NoError(t, err)

	links := doc.Find(`nav li a`)
	require.Equal(t, 2, links.Length())
	assert.Equal(t, "1. Alpha", links.Eq(0).Text())
	assert.Equal(t, "A1", links.Eq(1).Text())
}

func TestConvert_ExplicitSectionCaption(t *testing.T) {
	ch := sect(1, "Alpha")
	ch.Caption = "Lesson One:"
	tree := &doctree.DocTree{Children: []*doctree.DocNode{ch, sect(1, "Beta")}}
	c := newTestConverter("epub", doctree.Attributes{"toc": "", "sectnums": ""})
	res := convert(t, c, tree)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Markup))
	require.NoError(t, err)

	links := doc.Find(`nav li a`)
	require.Equal(t, 2, links.Length())
	assert.Equal(t, "Lesson One: Alpha", links.Eq(0).Text())
	assert.Equal(t, "2. Beta", links.Eq(1).Text())
	assert.Equal(t, "Lesson One: Alpha", doc.Find(`section#_alpha > h1`).Text())
}

func TestConvert_ChapterAndAppendixLabels(t *testing.T) {
	app := sect(1, "Extras")
	app.SectName = "appendix"
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "Intro"), app}}
	c := newTestConverter("pdf", doctree.Attributes{
		"toc": "", "sectnums": "",
		"chapter-caption":  "Chapter %NUM%",
		"appendix-caption": "Appendix %NUM%",
	})
	res := convert(t, c, tree)

	assert.Equal(t, 2, strings.Count(res.Markup, `<span class="label">Chapter 1</span> Intro`))
	// Appendix letters restart after the outline consumed them.
	assert.Equal(t, 2, strings.Count(res.Markup, `<span class="label">Appendix A</span> Extras`))
	assert.NotContains(t, res.Markup, "Appendix B")
	assert.Contains(t, res.Markup, `<section data-type="appendix" id="_extras">`)
}

func TestConvert_Shell(t *testing.T) {
	tree := &doctree.DocTree{Title: "My Book", Children: []*doctree.DocNode{sect(1, "One", para("hi"))}}
	c := newTestConverter("epub", doctree.Attributes{"author": "Ann", "revdate": "2023-02-03"})
	res := convert(t, c, tree)

	assert.True(t, strings.HasPrefix(res.Markup, "<!DOCTYPE html>\n"))
	assert.Contains(t, res.Markup, `xmlns:epub="http://www.idpf.org/2007/ops"`)
	assert.Contains(t, res.Markup, `<meta name="generator" content="Bookpress `)
	assert.Contains(t, res.Markup, `<meta name="date" content="2023-02-03T00:00:00Z"/>`)
	assert.Contains(t, res.Markup, `<meta name="author" content="Ann"/>`)
	assert.Contains(t, res.Markup, `<link rel="stylesheet" href="epub.css"/>`)
	assert.Contains(t, res.Markup, `<body data-type="book">`)
	assert.Contains(t, res.Markup, `<section data-type="titlepage">`)
	assert.True(t, strings.HasSuffix(res.Markup, "</body>\n</html>"))
}

func TestConvert_StylesheetPerFormat(t *testing.T) {
	for format, want := range map[string]string{
		"pdf":  `href="themes/pdf/pdf.css"`,
		"site": `href="style.css"`,
		"html": `href="html.css"`,
	} {
		res := convert(t, newTestConverter(format, nil), &doctree.DocTree{Title: "B"})
		assert.Contains(t, res.Markup, want, format)
	}
}

func TestConvert_Cover(t *testing.T) {
	c := New(Options{
		Format:     "epub",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		FileExists: func(p string) bool { return p == "themes/epub/cover.png" },
	})
	res := convert(t, c, &doctree.DocTree{Title: "B"})
	assert.Contains(t, res.Markup, "<div data-type=\"cover\">\n<img src=\"cover.png\" style=\"max-width:100%\"/>\n</div>")

	html := New(Options{Format: "html", FileExists: func(string) bool { return true }})
	res = convert(t, html, &doctree.DocTree{Title: "B"})
	assert.NotContains(t, res.Markup, `data-type="cover"`)
	assert.NotContains(t, res.Markup, `data-type="titlepage"`)
}

func TestConvert_AdmonitionEPUBType(t *testing.T) {
	tip := &doctree.DocNode{Kind: doctree.KindAdmonition, Style: "tip", Children: []*doctree.DocNode{para("x")}}
	caution := &doctree.DocNode{Kind: doctree.KindAdmonition, Style: "caution"}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", tip, caution)}}

	res := convert(t, newTestConverter("duokan", nil), tree)
	assert.Contains(t, res.Markup, `<div data-type="tip" epub:type="help">`)
	assert.Contains(t, res.Markup, `<div data-type="caution" epub:type="warning">`)

	res = convert(t, newTestConverter("pdf", nil), tree)
	assert.Contains(t, res.Markup, `<div data-type="tip">`)
	assert.NotContains(t, res.Markup, "epub:type")
}

func TestConvert_UnknownAnchorIsStructuralWarning(t *testing.T) {
	bad := &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: []*doctree.DocNode{
		text("see "),
		{Kind: doctree.KindAnchor, Type: "teleport", Target: "nowhere"},
		text(" end"),
	}}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", bad)}}
	res := convert(t, newTestConverter("epub", nil), tree)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, failure.Structural, res.Warnings[0].Kind)
	assert.Contains(t, res.Markup, "<p>see  end</p>")
}

func TestConvert_PartIntroPlacement(t *testing.T) {
	intro := func() *doctree.DocNode {
		return &doctree.DocNode{Kind: doctree.KindOpen, Style: "partintro", Children: []*doctree.DocNode{para("intro text")}}
	}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{
		sect(0, "Part", intro(), sect(1, "Chapter", intro())),
	}}
	res := convert(t, newTestConverter("epub", nil), tree)

	assert.Equal(t, 1, strings.Count(res.Markup, "intro text"))
	assert.Contains(t, res.Markup, `<div class="openblock partintro">`)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Error(), "partintro")
}

func TestConvert_Footnotes(t *testing.T) {
	p := &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: []*doctree.DocNode{
		text("claim"),
		{Kind: doctree.KindFootnote, Inlines: []*doctree.DocNode{text("source")}},
	}}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", p)}}
	res := convert(t, newTestConverter("epub", nil), tree)
	assert.Contains(t, res.Markup, `<p>claim<span data-type="footnote">source</span></p>`)
}

func TestConvert_Xref(t *testing.T) {
	target := sect(1, "Target Chapter")
	target.ID = "tgt"
	p := &doctree.DocNode{Kind: doctree.KindParagraph, Inlines: []*doctree.DocNode{
		{Kind: doctree.KindAnchor, Type: "xref", Target: "ch02.adoc#tgt", Attributes: doctree.Attributes{"refid": "tgt"}},
	}}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", p), target}}
	res := convert(t, newTestConverter("pdf", nil), tree)
	assert.Contains(t, res.Markup, `<a href="#tgt">Target Chapter</a>`)
}

func TestConvert_SourceListing(t *testing.T) {
	listing := &doctree.DocNode{Kind: doctree.KindListing, Style: "source", Title: "Hello",
		Text: "fmt.Println(\"<hi>\")", Attributes: doctree.Attributes{"language": "go"}}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", listing)}}

	res := convert(t, newTestConverter("epub", doctree.Attributes{"listing-caption": "Example %NUM%-%SUBNUM%"}), tree)
	assert.Contains(t, res.Markup, `<pre><code class="language-go">fmt.Println(&#34;&lt;hi&gt;&#34;)</code></pre>`)
	assert.Contains(t, res.Markup, `<h5><span class="label">Example 1-1</span>Hello</h5>`)

	res = convert(t, newTestConverter("epub", doctree.Attributes{"highlight": ""}), tree)
	assert.Contains(t, res.Markup, `<div class="highlight language-go">`)
	assert.Contains(t, res.Markup, `class="chroma"`)
}

func TestConvert_Table(t *testing.T) {
	tbl := &doctree.DocNode{Kind: doctree.KindTable, Title: "Sizes", Table: &doctree.Table{
		Head: []doctree.Row{{{Inlines: []*doctree.DocNode{text("Name")}}, {Inlines: []*doctree.DocNode{text("Size")}}}},
		Body: []doctree.Row{{{Inlines: []*doctree.DocNode{text("a")}}, {Inlines: []*doctree.DocNode{text("1")}, HAlign: "right"}}},
	}}
	tree := &doctree.DocTree{Children: []*doctree.DocNode{sect(1, "One", tbl)}}
	res := convert(t, newTestConverter("epub", doctree.Attributes{"table-caption": "Table %NUM%-%SUBNUM%"}), tree)

	assert.Contains(t, res.Markup, `<table class="tableblock frame-all grid-all" style="width: 100%;">`)
	assert.Contains(t, res.Markup, `<caption class="title"><span class="label">Table 1-1</span>Sizes</caption>`)
	assert.Contains(t, res.Markup, `<col style="width: 50%;"/>`)
	assert.Contains(t, res.Markup, `<th class="tableblock halign-left valign-top">Name</th>`)
	assert.Contains(t, res.Markup, `<td class="tableblock halign-right valign-top"><p class="tableblock">1</p></td>`)
}

func TestConvert_PreambleAndPageBreak(t *testing.T) {
	tree := &doctree.DocTree{Children: []*doctree.DocNode{
		{Kind: doctree.KindPreamble, Children: []*doctree.DocNode{para("before")}},
		sect(1, "One", &doctree.DocNode{Kind: doctree.KindPageBreak}),
	}}
	res := convert(t, newTestConverter("epub", doctree.Attributes{"preamble-title": "Opening"}), tree)
	assert.Contains(t, res.Markup, "<section data-type=\"preamble\" epub:type=\"preamble\">\n<h1>Opening</h1>\n<p>before</p>\n</section>")
	assert.Contains(t, res.Markup, `<hr epub:type="pagebreak"/>`)
}
