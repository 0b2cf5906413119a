package converter

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/version"
)

const mathJax = `<script type="text/x-mathjax-config">
MathJax.Hub.Config({
  tex2jax: {
    inlineMath: [["\\(", "\\)"]],
    displayMath: [["\\[", "\\]"]],
    ignoreClass: "nomath|nolatexmath"
  },
  asciimath2jax: {
    delimiters: [["\\$", "\\$"]],
    ignoreClass: "nomath|noasciimath"
  }
});
</script>
<script type="text/javascript" src="https://cdn.jsdelivr.net/npm/mathjax@2/MathJax.js?config=TeX-MML-AM_HTMLorMML"></script>
<script>document.addEventListener('DOMContentLoaded', MathJax.Hub.TypeSet)</script>`

// revdateLayouts are the accepted revdate formats, tried in order.
var revdateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "January 2, 2006", "2006/01/02"}

func (r *renderer) document() string {
	a := r.attrs
	var out []string
	out = append(out, "<!DOCTYPE html>")
	lang := attr("lang", a.Get("lang", "en"))
	if r.epub {
		out = append(out, fmt.Sprintf(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:%s%s>`, strings.TrimSpace(lang), lang))
	} else {
		out = append(out, fmt.Sprintf(`<html xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns="http://www.w3.org/1999/xhtml"%s>`, lang))
	}
	out = append(out, "<head>")
	out = append(out, fmt.Sprintf(`<meta charset="%s"/>`, esc(a.Get("encoding", "UTF-8"))))
	out = append(out, fmt.Sprintf("<title>%s</title>", esc(r.docTitle())))
	if r.format == "site" {
		out = append(out, `<meta http-equiv="X-UA-Compatible" content="IE=edge"/>`)
		out = append(out, `<meta name="viewport" content="width=device-width, initial-scale=1.0"/>`)
	}
	out = append(out, fmt.Sprintf(`<meta name="generator" content="%s"/>`, esc(version.Generator())))
	out = append(out, fmt.Sprintf(`<meta name="date" content="%s"/>`, r.date().Format(time.RFC3339)))
	for _, name := range []string{"description", "keywords", "author", "copyright"} {
		if a.Has(name) {
			out = append(out, fmt.Sprintf(`<meta name="%s" content="%s"/>`, name, esc(a[name])))
		}
	}
	out = append(out, fmt.Sprintf(`<link rel="stylesheet" href="%s"/>`, esc(r.stylesheet())))
	if a.Has("math") {
		out = append(out, mathJax)
	}
	out = append(out, "</head>")
	out = append(out, fmt.Sprintf(`<body data-type="book"%s>`, attr("id", r.tree.ID)))
	if r.format != "html" {
		out = append(out, r.cover(), r.titlepage())
	}
	out = append(out, r.toc())
	out = append(out, r.blocks(r.tree.Children))
	out = append(out, "</body>", "</html>")
	return lines(out...)
}

func (r *renderer) docTitle() string {
	if r.tree.Title != "" {
		return r.tree.Title
	}
	return r.attrs.Get("untitled-label", "Untitled")
}

func (r *renderer) date() time.Time {
	if v := strings.TrimSpace(r.attrs.Get("revdate", "")); v != "" {
		for _, layout := range revdateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return r.conv.opts.Now()
}

func (r *renderer) stylesheet() string {
	switch r.format {
	case "pdf":
		return filepath.Join(r.themesDir(), "pdf", "pdf.css")
	case "site":
		return "style.css"
	}
	return r.format + ".css"
}

func (r *renderer) themesDir() string {
	return r.attrs.Get("themes-dir", "themes")
}

// CoverPath is where the cover image for format is looked up.
func CoverPath(attrs doctree.Attributes, format string) string {
	image := filepath.Base(attrs.Get(format+"-cover-image", "cover.png"))
	return filepath.Join(attrs.Get("themes-dir", "themes"), format, image)
}

func (r *renderer) cover() string {
	path := CoverPath(r.attrs, r.format)
	if !r.conv.opts.FileExists(path) {
		return ""
	}
	src := filepath.Base(path)
	if r.format == "pdf" {
		src = path
	}
	return lines(
		`<div data-type="cover">`,
		fmt.Sprintf(`<img src="%s" style="max-width:100%%"/>`, esc(src)),
		"</div>",
	)
}

func (r *renderer) titlepage() string {
	a := r.attrs
	out := []string{`<section data-type="titlepage">`}
	out = append(out, fmt.Sprintf("<h1>%s</h1>", esc(r.docTitle())))
	subtitle := r.tree.Subtitle
	if subtitle == "" {
		subtitle = a.Get("subtitle", "")
	}
	if subtitle != "" {
		out = append(out, fmt.Sprintf("<h2>%s</h2>", esc(subtitle)))
	}
	if a.Has("edition") {
		out = append(out, fmt.Sprintf(`<p data-type="edition">%s</p>`, esc(a["edition"])))
	}
	for _, role := range []string{"author", "translator"} {
		if !a.Has(role) {
			continue
		}
		out = append(out, fmt.Sprintf(`<p data-type="%s">`, role), esc(a.Get(role+"-label", a[role])), "</p>")
	}

	hasNumber, hasDate, hasRemark := a.Has("revnumber"), a.Has("revdate"), a.Has("revremark")
	if hasNumber || hasDate || hasRemark {
		out = append(out, `<div class="revinfo">`)
		if hasNumber {
			comma := ""
			if hasDate {
				comma = ","
			}
			out = append(out, fmt.Sprintf(`<span data-type="revnumber">%s %s%s</span>`,
				esc(strings.ToLower(a.Get("version-label", ""))), esc(a["revnumber"]), comma))
		}
		if hasDate {
			out = append(out, fmt.Sprintf(`<span data-type="revdate">%s</span>`, esc(a["revdate"])))
		}
		if hasRemark {
			out = append(out, fmt.Sprintf(`<br/><span data-type="revremark">%s</span>`, esc(a["revremark"])))
		}
		out = append(out, "</div>")
	}
	out = append(out, "</section>")
	return lines(out...)
}

func (r *renderer) toc() string {
	if !r.attrs.Has("toc") {
		return ""
	}
	out := lines(
		fmt.Sprintf(`<nav data-type="toc" class="%s">`, esc(r.attrs.Get("toc-class", "toc"))),
		fmt.Sprintf("<h1>%s</h1>", esc(r.attrs.Get("toc-title", "Table of Contents"))),
		r.outline(r.tree.Sections()),
		"</nav>",
	)
	// The outline consumed appendix letters; the body numbers them again.
	r.appendix = 0
	return out
}

// outline renders one nested list level per section depth, stopping at
// toclevels.
func (r *renderer) outline(sections []*doctree.DocNode) string {
	if len(sections) == 0 {
		return ""
	}
	toclevels := r.attrs.Int("toclevels", 2)
	out := []string{"<ol>"}
	for _, s := range sections {
		out = append(out, fmt.Sprintf(`<li data-type="%s">`, r.classifier.Of(s)))
		out = append(out, fmt.Sprintf(`<a href="#%s">%s%s</a>`, esc(s.ID), r.label(s), captionedTitle(s)))
		if s.Level < toclevels {
			if child := r.outline(s.Sections()); child != "" {
				out = append(out, child)
			}
		}
		out = append(out, "</li>")
	}
	out = append(out, "</ol>")
	return lines(out...)
}

// sectnum is the displayed section number, empty when numbering does
// not apply.
func (r *renderer) sectnum(s *doctree.DocNode) string {
	level := r.effectiveLevel(s)
	if !r.attrs.Has("sectnums") || !s.Numbered || s.Caption != "" || level == 0 ||
		level > r.attrs.Int("sectnumlevels", 3) {
		return ""
	}
	return s.Number + "."
}

// effectiveLevel treats special top-level sections as chapters.
func (r *renderer) effectiveLevel(s *doctree.DocNode) int {
	if s.Level == 0 && r.classifier.Of(s) != "part" {
		return 1
	}
	return s.Level
}

// label is the rendered label span before a section title, or nothing.
// Appendix labels advance the appendix counter. Sections with an explicit
// caption get no label; captionedTitle shows the caption instead.
func (r *renderer) label(s *doctree.DocNode) string {
	num := r.sectnum(s)
	role := r.classifier.Of(s)
	if s.Caption != "" {
		// An explicit caption replaces the label but still takes its letter.
		if role == "appendix" && r.attrs.Has("appendix-caption") {
			r.appendix++
		}
		return ""
	}
	var text string
	switch {
	case num != "" && role == "chapter" && r.attrs.Has("chapter-caption"):
		first, _, _ := strings.Cut(num, ".")
		text = strings.Replace(r.attrs["chapter-caption"], "%NUM%", first, 1)
	case role == "appendix" && r.attrs.Has("appendix-caption"):
		r.appendix++
		text = strings.Replace(r.attrs["appendix-caption"], "%NUM%", doctree.AppendixLetter(r.appendix), 1)
	default:
		text = num
	}
	if text == "" {
		return ""
	}
	return fmt.Sprintf(`<span class="label">%s</span> `, esc(text))
}

func (r *renderer) preamble(n *doctree.DocNode) string {
	epubType := ""
	if r.epub {
		epubType = ` epub:type="preamble"`
	}
	return lines(
		fmt.Sprintf(`<section data-type="preamble"%s>`, epubType),
		fmt.Sprintf("<h1>%s</h1>", esc(r.attrs.Get("preamble-title", "Preamble"))),
		r.blocks(n.Children),
		"</section>",
	)
}

func (r *renderer) section(n *doctree.DocNode) string {
	role := r.classifier.Of(n)
	level := r.effectiveLevel(n)
	h := 1
	if level > 1 {
		h = level - 1
	}
	tag := "section"
	if role == "part" {
		tag = "div"
	}
	return lines(
		fmt.Sprintf(`<%s data-type="%s"%s%s>`, tag, role, idAttr(n), roleAttr(n)),
		fmt.Sprintf("<h%d>%s%s</h%d>", h, r.label(n), captionedTitle(n), h),
		r.blocks(n.Children),
		fmt.Sprintf("</%s>", tag),
	)
}

// autoCaption numbers a captioned image, listing or table when the
// document configures a caption template for its category.
func (r *renderer) autoCaption(n *doctree.DocNode, category string) string {
	template, ok := r.attrs[category+"-caption"]
	if !ok {
		return captionedTitle(n)
	}
	unit := n.TopLevelUnit()
	sub := r.captions.Next(unit, category)
	filled := FillCaption(template, chapterNumber(unit), sub)
	var label string
	if strings.TrimSpace(filled) != "" {
		label = fmt.Sprintf(`<span class="label">%s</span>`, esc(filled))
	}
	space := ""
	if r.attrs.Has("caption-append-space") {
		space = " "
	}
	return label + space + esc(n.Title)
}
