// Package converter renders a document tree to HTMLBook markup.
package converter

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
)

// EPUBFormats are the formats that get epub:type semantics.
var EPUBFormats = map[string]bool{
	"epub":   true,
	"duokan": true,
}

// IsEPUB reports whether format belongs to the epub family.
func IsEPUB(format string) bool { return EPUBFormats[format] }

// Options configures a Converter.
type Options struct {
	Format     string             // Overrides the ebook-format attribute when set
	Attributes doctree.Attributes // Overrides document attributes
	Logger     *slog.Logger

	// FileExists reports whether a theme file is on disk. Defaults to os.Stat.
	FileExists func(path string) bool
	// Now supplies the date meta when revdate is unset or unparseable.
	Now func() time.Time
}

// Converter renders document trees. It holds no per-document state, so
// one Converter may serve any number of conversions.
type Converter struct {
	opts Options
	log  *slog.Logger
}

// Result is the output of one conversion.
type Result struct {
	Markup   string
	Warnings []*failure.Error
}

// New returns a Converter.
func New(opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FileExists == nil {
		opts.FileExists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Converter{opts: opts, log: opts.Logger}
}

// Convert renders the whole document, shell included.
func (c *Converter) Convert(tree *doctree.DocTree) (Result, error) {
	if tree == nil {
		return Result{}, fmt.Errorf("convert: nil document tree")
	}
	r := c.newRenderer(tree)
	markup := r.document()
	return Result{Markup: markup, Warnings: r.warnings}, nil
}

// ConvertNode renders a single node of tree with fresh numbering state.
func (c *Converter) ConvertNode(tree *doctree.DocTree, n *doctree.DocNode) (Result, error) {
	if tree == nil || n == nil {
		return Result{}, fmt.Errorf("convert node: nil input")
	}
	r := c.newRenderer(tree)
	return Result{Markup: r.block(n), Warnings: r.warnings}, nil
}

// Attributes returns the effective attributes for tree: the document's own,
// overlaid with the converter options.
func (c *Converter) Attributes(tree *doctree.DocTree) doctree.Attributes {
	attrs := doctree.Attributes{}
	for k, v := range tree.Attributes {
		attrs[k] = v
	}
	for k, v := range c.opts.Attributes {
		attrs[k] = v
	}
	if c.opts.Format != "" {
		attrs["ebook-format"] = c.opts.Format
	}
	return attrs
}

// renderer carries the state of one conversion. It is never shared.
type renderer struct {
	conv       *Converter
	tree       *doctree.DocTree
	attrs      doctree.Attributes
	format     string
	epub       bool
	classifier Classifier
	captions   *CaptionCounter
	appendix   int
	refs       map[string]string
	warnings   []*failure.Error
	log        *slog.Logger
}

func (c *Converter) newRenderer(tree *doctree.DocTree) *renderer {
	attrs := c.Attributes(tree)
	format := attrs.Get("ebook-format", "html")
	r := &renderer{
		conv:       c,
		tree:       tree,
		attrs:      attrs,
		format:     format,
		epub:       IsEPUB(format),
		classifier: NewClassifier(attrs),
		captions:   NewCaptionCounter(),
		refs:       make(map[string]string),
		log:        c.log.With("format", format),
	}
	tree.Walk(func(n *doctree.DocNode) bool {
		if n.ID != "" && n.Title != "" {
			r.refs[n.ID] = n.Title
		}
		return true
	})
	return r
}

// warn records a structural error; the offending content is omitted by
// the caller.
func (r *renderer) warn(op, format string, args ...any) {
	err := failure.New(failure.Structural, op, format, args...)
	r.warnings = append(r.warnings, err)
	r.log.Warn("omitting content", "op", op, "reason", err.Err.Error())
}

// block dispatches on the node kind.
func (r *renderer) block(n *doctree.DocNode) string {
	switch n.Kind {
	case doctree.KindPreamble:
		return r.preamble(n)
	case doctree.KindSection:
		return r.section(n)
	case doctree.KindParagraph:
		return r.paragraph(n)
	case doctree.KindUList:
		return r.ulist(n)
	case doctree.KindOList:
		return r.olist(n)
	case doctree.KindDList:
		return r.dlist(n)
	case doctree.KindColist:
		return r.colist(n)
	case doctree.KindTable:
		return r.table(n)
	case doctree.KindImage:
		return r.image(n)
	case doctree.KindListing:
		return r.listing(n)
	case doctree.KindLiteral:
		return r.literal(n)
	case doctree.KindAdmonition:
		return r.admonition(n)
	case doctree.KindQuote:
		return r.quote(n)
	case doctree.KindVerse:
		return r.verse(n)
	case doctree.KindSidebar:
		return r.sidebar(n)
	case doctree.KindExample:
		return r.example(n)
	case doctree.KindOpen:
		return r.open(n)
	case doctree.KindMath:
		return r.math(n)
	case doctree.KindAudio:
		return r.audio(n)
	case doctree.KindVideo:
		return r.video(n)
	case doctree.KindPageBreak:
		return r.pageBreak()
	case doctree.KindThematicBreak:
		return "<hr/>"
	case doctree.KindFloatingTitle:
		return r.floatingTitle(n)
	case doctree.KindPass:
		return n.Text
	}
	r.warn("render", "unknown block kind %q", n.Kind)
	return ""
}

// blocks renders nodes in order, one per line.
func (r *renderer) blocks(nodes []*doctree.DocNode) string {
	var parts []string
	for _, n := range nodes {
		if out := r.block(n); out != "" {
			parts = append(parts, out)
		}
	}
	return strings.Join(parts, "\n")
}

// lines joins non-empty fragments with newlines.
func lines(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func esc(s string) string { return html.EscapeString(s) }

// attr renders ` name="value"`, or nothing when value is empty.
func attr(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(` %s="%s"`, name, esc(value))
}

func idAttr(n *doctree.DocNode) string { return attr("id", n.ID) }

func roleAttr(n *doctree.DocNode) string { return attr("class", n.Role) }

// classAttr joins the non-empty classes into a class attribute.
func classAttr(classes ...string) string {
	var kept []string
	for _, c := range classes {
		if c != "" {
			kept = append(kept, c)
		}
	}
	return attr("class", strings.Join(kept, " "))
}

// boolAttr renders a boolean attribute in xml or html syntax.
func (r *renderer) boolAttr(name string) string {
	if r.epub || r.attrs.Get("htmlsyntax", "") == "xml" {
		return fmt.Sprintf(` %s="%s"`, name, name)
	}
	return " " + name
}

// captionedTitle is a block title prefixed by its explicit caption.
func captionedTitle(n *doctree.DocNode) string {
	if n.Caption == "" {
		return esc(n.Title)
	}
	return esc(n.Caption) + " " + esc(n.Title)
}
