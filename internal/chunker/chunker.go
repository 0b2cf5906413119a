// Package chunker splits combined book markup into one file per spine item.
package chunker

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
	"github.com/dgallion1/bookpress/internal/spine"
)

// Config controls chunking behavior.
type Config struct {
	Ext        string // File extension appended to spine item names.
	EPUB       bool   // Mark footnote entries with epub:type.
	CoverTitle string // Title of the cover chunk, which has no heading.
	Workers    int    // Concurrent chunk serializers.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Ext:        ".html",
		CoverTitle: "Cover",
		Workers:    1,
	}
}

// Chunker cuts combined markup along top-level body children.
type Chunker struct {
	cfg Config
	log *slog.Logger
}

// New returns a Chunker. Zero config fields take their defaults.
func New(cfg Config, log *slog.Logger) *Chunker {
	def := DefaultConfig()
	if cfg.Ext == "" {
		cfg.Ext = def.Ext
	}
	if cfg.CoverTitle == "" {
		cfg.CoverTitle = def.CoverTitle
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chunker{cfg: cfg, log: log}
}

// Filename is the output file name for a spine item.
func (c *Chunker) Filename(item string) string {
	return item + c.cfg.Ext
}

var bodyTag = regexp.MustCompile(`<body\b[^>]*\bdata-type="book"[^>]*>`)

const shellClose = "</body>\n</html>"

// SplitShell returns the markup up to and including the book body tag,
// and the closing tags every chunk ends with.
func SplitShell(markup string) (head, tail string, err error) {
	loc := bodyTag.FindStringIndex(markup)
	if loc == nil {
		return "", "", failure.Consistencyf("chunk", `markup has no <body data-type="book"> element`)
	}
	return markup[:loc[1]], shellClose, nil
}

// unit pairs a spine item with the top-level node it names.
type unit struct {
	index int
	name  string
	node  *html.Node
}

// Chunk splits markup into one chunk per spine item. The number of
// top-level nodes after part flattening must equal len(items).
func (c *Chunker) Chunk(markup string, items []string) ([]doctree.Chunk, error) {
	head, tail, err := SplitShell(markup)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse combined markup: %w", err)
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, failure.Consistencyf("chunk", "markup has no body")
	}

	hoisted := flattenParts(body)
	units, err := pair(items, elementChildren(body.Get(0)))
	if err != nil {
		return nil, err
	}
	c.log.Debug("paired spine items", "items", len(units), "parts", len(hoisted))

	if err := c.correctNav(body, items, hoisted); err != nil {
		return nil, err
	}
	c.correctLinks(units)

	for _, u := range units {
		body.Get(0).RemoveChild(u.node)
	}

	chunks := make([]doctree.Chunk, len(units))
	errs := make([]error, len(units))
	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup
	for i, u := range units {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, u unit) {
			defer wg.Done()
			defer func() { <-sem }()
			chunks[i], errs[i] = c.render(u, head, tail)
		}(i, u)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", units[i].name, err)
		}
	}
	return chunks, nil
}

// render serializes one detached top-level node with its footnotes.
func (c *Chunker) render(u unit, head, tail string) (doctree.Chunk, error) {
	sel := goquery.NewDocumentFromNode(u.node).Selection
	title := c.title(u, sel)
	footnotes, dangling := ExtractFootnotes(sel, c.cfg.EPUB)
	for _, id := range dangling {
		c.log.Warn("footnote reference points outside its chunk, link dropped", "item", u.name, "target", id)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, u.node); err != nil {
		return doctree.Chunk{}, fmt.Errorf("render: %w", err)
	}
	c.log.Debug("rendered chunk", "item", u.name, "words", CountWords(sel.Text()))
	parts := []string{head, buf.String()}
	if footnotes != "" {
		parts = append(parts, footnotes)
	}
	parts = append(parts, tail)

	return doctree.Chunk{
		Index:     u.index,
		Name:      u.name,
		Filename:  c.Filename(u.name),
		Title:     title,
		Body:      buf.String(),
		Footnotes: footnotes,
		Content:   strings.Join(parts, "\n"),
	}, nil
}

func (c *Chunker) title(u unit, sel *goquery.Selection) string {
	if u.name == spine.Cover {
		return c.cfg.CoverTitle
	}
	h1 := sel.Find("h1").First()
	if h1.Length() == 0 {
		c.log.Warn("chunk has no heading, using item name as title", "item", u.name)
		return u.name
	}
	return strings.TrimSpace(h1.Text())
}

// flattenParts moves the direct section children of every top-level
// part after the part, keeping their order. It returns how many
// chapters each part gave up, in document order.
func flattenParts(body *goquery.Selection) []int {
	var hoisted []int
	body.ChildrenFiltered(`div[data-type="part"]`).Each(func(_ int, part *goquery.Selection) {
		p := part.Get(0)
		var chapters []*html.Node
		for n := p.FirstChild; n != nil; n = n.NextSibling {
			if n.Type == html.ElementNode && n.Data == "section" {
				chapters = append(chapters, n)
			}
		}
		next := p.NextSibling
		for _, ch := range chapters {
			p.RemoveChild(ch)
			p.Parent.InsertBefore(ch, next)
		}
		hoisted = append(hoisted, len(chapters))
	})
	return hoisted
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// pair zips spine items with top-level nodes. Equal length is a
// precondition; a mismatch is fatal and carries both lists.
func pair(items []string, nodes []*html.Node) ([]unit, error) {
	if len(items) != len(nodes) {
		return nil, failure.Consistencyf("chunk",
			"count of top-level nodes (%d) does not equal count of spine items (%d)", len(nodes), len(items)).
			WithDetails(
				fmt.Sprintf("spine items (%d): %s", len(items), strings.Join(items, ", ")),
				fmt.Sprintf("top-level nodes (%d): %s", len(nodes), describe(nodes)),
			)
	}
	units := make([]unit, len(items))
	for i := range items {
		units[i] = unit{index: i, name: items[i], node: nodes[i]}
	}
	return units, nil
}

// describe lists nodes as tag[data-type]#id for diagnostics.
func describe(nodes []*html.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		s := n.Data
		if dt := attrOf(n, "data-type"); dt != "" {
			s += "[" + dt + "]"
		}
		if id := attrOf(n, "id"); id != "" {
			s += "#" + id
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
