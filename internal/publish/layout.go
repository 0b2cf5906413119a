package publish

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// Page is the data a layout template renders.
type Page struct {
	BookTitle  string
	Title      string
	Lang       string
	Stylesheet string
	Body       template.HTML
	Footnotes  template.HTML
	Index      int // 1-based position, 0 for single page output
	Total      int
	Prev       *Link
	Next       *Link
}

// Link points at a neighbouring page.
type Link struct {
	Title string
	Href  string
}

// LoadLayout parses the template at path. A missing file yields nil and
// no error; callers then write the markup unchanged.
func LoadLayout(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	tmpl, err := template.New(filepath.Base(path)).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return tmpl, nil
}

// RenderPages lays out every chunk with prev/next links. With a nil
// layout the chunks are returned unchanged.
func RenderPages(tmpl *template.Template, base Page, chunks []doctree.Chunk) ([]doctree.Chunk, error) {
	if tmpl == nil {
		return chunks, nil
	}
	out := make([]doctree.Chunk, len(chunks))
	for i, c := range chunks {
		page := base
		page.Title = c.Title
		page.Body = template.HTML(c.Body)
		page.Footnotes = template.HTML(c.Footnotes)
		page.Index = i + 1
		page.Total = len(chunks)
		if i > 0 {
			page.Prev = &Link{Title: chunks[i-1].Title, Href: chunks[i-1].Filename}
		}
		if i+1 < len(chunks) {
			page.Next = &Link{Title: chunks[i+1].Title, Href: chunks[i+1].Filename}
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, page); err != nil {
			return nil, fmt.Errorf("render %s: %w", c.Filename, err)
		}
		c.Content = buf.String()
		out[i] = c
	}
	return out, nil
}

// RenderSingle lays out a whole combined document. The body content of
// markup becomes Page.Body. With a nil layout markup is returned as is.
func RenderSingle(tmpl *template.Template, base Page, markup string) (string, error) {
	if tmpl == nil {
		return markup, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	body, err := doc.Find("body").First().Html()
	if err != nil {
		return "", fmt.Errorf("extract body: %w", err)
	}
	page := base
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("head > title").First().Text())
	}
	page.Body = template.HTML(body)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("render single page: %w", err)
	}
	return buf.String(), nil
}
