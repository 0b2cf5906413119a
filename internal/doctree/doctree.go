package doctree

import (
	"strconv"
	"strings"
)

// Kind identifies what a DocNode represents. The set is closed: renderers
// switch over it and treat anything else as a structural error.
type Kind string

// Block kinds.
const (
	KindPreamble      Kind = "preamble"
	KindSection       Kind = "section"
	KindParagraph     Kind = "paragraph"
	KindUList         Kind = "ulist"
	KindOList         Kind = "olist"
	KindDList         Kind = "dlist"
	KindColist        Kind = "colist"
	KindListItem      Kind = "list_item"
	KindTable         Kind = "table"
	KindImage         Kind = "image"
	KindListing       Kind = "listing"
	KindLiteral       Kind = "literal"
	KindAdmonition    Kind = "admonition"
	KindQuote         Kind = "quote"
	KindVerse         Kind = "verse"
	KindSidebar       Kind = "sidebar"
	KindExample       Kind = "example"
	KindOpen          Kind = "open"
	KindMath          Kind = "math"
	KindAudio         Kind = "audio"
	KindVideo         Kind = "video"
	KindPageBreak     Kind = "page_break"
	KindThematicBreak Kind = "thematic_break"
	KindFloatingTitle Kind = "floating_title"
	KindPass          Kind = "pass"
)

// Inline kinds.
const (
	KindText        Kind = "text"
	KindAnchor      Kind = "anchor"
	KindFootnote    Kind = "footnote"
	KindInlineImage Kind = "inline_image"
	KindQuoted      Kind = "quoted"
	KindBreak       Kind = "break"
	KindButton      Kind = "button"
	KindCallout     Kind = "callout"
	KindKbd         Kind = "kbd"
	KindMenu        Kind = "menu"
	KindIndexTerm   Kind = "indexterm"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title      string     `json:"title" yaml:"title"`
	Subtitle   string     `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []*DocNode `json:"children" yaml:"children"` // Preamble and top-level sections

	// Includes lists one basename per included sub-document, in the order
	// the parser encountered them.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`
}

// DocNode is one block or inline element of the document tree.
type DocNode struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Level    int    `json:"level,omitempty" yaml:"level,omitempty"` // Section depth, 0 = part
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Caption  string `json:"caption,omitempty" yaml:"caption,omitempty"` // Explicit caption, disables auto numbering
	Role     string `json:"role,omitempty" yaml:"role,omitempty"`
	Style    string `json:"style,omitempty" yaml:"style,omitempty"`
	SectName string `json:"sectname,omitempty" yaml:"sectname,omitempty"` // Parser-reported section kind
	Numbered bool   `json:"numbered,omitempty" yaml:"numbered,omitempty"`
	Number   string `json:"number,omitempty" yaml:"number,omitempty"` // Dotted section number, letter for appendices
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`     // Inline subtype (xref, link, emphasis...)
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`

	Attributes Attributes   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Inlines    []*DocNode   `json:"inlines,omitempty" yaml:"inlines,omitempty"`
	Children   []*DocNode   `json:"children,omitempty" yaml:"children,omitempty"`
	Terms      [][]*DocNode `json:"terms,omitempty" yaml:"terms,omitempty"` // Description list terms
	Table      *Table       `json:"table,omitempty" yaml:"table,omitempty"`

	// Source is the basename of the included file the node came from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	parent *DocNode
}

// Table holds the grid of a table node.
type Table struct {
	Columns []Column `json:"columns,omitempty" yaml:"columns,omitempty"`
	Head    []Row    `json:"head,omitempty" yaml:"head,omitempty"`
	Body    []Row    `json:"body,omitempty" yaml:"body,omitempty"`
	Foot    []Row    `json:"foot,omitempty" yaml:"foot,omitempty"`
}

// Column is one table column. Width is a percentage, 0 when unset.
type Column struct {
	Width int `json:"width,omitempty" yaml:"width,omitempty"`
}

// Row is one table row.
type Row []Cell

// Cell is one table cell. Blocks is used by the "asciidoc" style,
// Inlines by every other style.
type Cell struct {
	Style   string     `json:"style,omitempty" yaml:"style,omitempty"`
	Colspan int        `json:"colspan,omitempty" yaml:"colspan,omitempty"`
	Rowspan int        `json:"rowspan,omitempty" yaml:"rowspan,omitempty"`
	HAlign  string     `json:"halign,omitempty" yaml:"halign,omitempty"`
	VAlign  string     `json:"valign,omitempty" yaml:"valign,omitempty"`
	Inlines []*DocNode `json:"inlines,omitempty" yaml:"inlines,omitempty"`
	Blocks  []*DocNode `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Chunk is one output file cut from the combined markup.
type Chunk struct {
	Index     int    // Position in the spine
	Name      string // Spine item name
	Filename  string // Name plus format extension
	Title     string // First heading text, or the cover label
	Body      string // Serialized top-level node
	Footnotes string // Footnote block, empty when the chunk has none
	Content   string // Complete file contents
}

// Attributes is a string-valued attribute map. A key present with an empty
// value counts as set.
type Attributes map[string]string

// Get returns the value for key, or fallback when key is absent.
func (a Attributes) Get(key, fallback string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return fallback
}

// Has reports whether key is set.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Int parses the value for key, returning fallback when absent or invalid.
func (a Attributes) Int(key string, fallback int) int {
	if v, ok := a[key]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Option reports whether name appears in the comma separated "options"
// attribute or is set as "<name>-option".
func (a Attributes) Option(name string) bool {
	if a.Has(name + "-option") {
		return true
	}
	for _, opt := range strings.Split(a["options"], ",") {
		if strings.TrimSpace(opt) == name {
			return true
		}
	}
	return false
}

// Attr is a nil-safe accessor for a node attribute.
func (n *DocNode) Attr(key, fallback string) string {
	if n == nil {
		return fallback
	}
	return n.Attributes.Get(key, fallback)
}

// HasAttr reports whether the node carries the attribute.
func (n *DocNode) HasAttr(key string) bool {
	return n != nil && n.Attributes.Has(key)
}

// Parent returns the enclosing node, nil for top-level nodes. Valid only
// after DocTree.Link.
func (n *DocNode) Parent() *DocNode { return n.parent }

// TopLevelUnit returns the nearest enclosing section at level 0 or 1,
// the node itself included. Nodes outside any such section, such as
// preamble content, return nil.
func (n *DocNode) TopLevelUnit() *DocNode {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Kind == KindSection && cur.Level <= 1 {
			return cur
		}
	}
	return nil
}

// Sections returns the direct section children of n.
func (n *DocNode) Sections() []*DocNode {
	return sections(n.Children)
}

// Sections returns the top-level sections of the document.
func (t *DocTree) Sections() []*DocNode {
	return sections(t.Children)
}

// Preamble returns the preamble block, if any.
func (t *DocTree) Preamble() *DocNode {
	for _, c := range t.Children {
		if c.Kind == KindPreamble {
			return c
		}
	}
	return nil
}

func sections(nodes []*DocNode) []*DocNode {
	var out []*DocNode
	for _, c := range nodes {
		if c.Kind == KindSection {
			out = append(out, c)
		}
	}
	return out
}

// Link sets parent references throughout the tree. Call it after the tree
// is built or modified and before rendering.
func (t *DocTree) Link() {
	for _, c := range t.Children {
		link(c, nil)
	}
}

func link(n, parent *DocNode) {
	n.parent = parent
	for _, c := range n.Children {
		link(c, n)
	}
	for _, c := range n.Inlines {
		link(c, n)
	}
	for _, terms := range n.Terms {
		for _, c := range terms {
			link(c, n)
		}
	}
	if n.Table != nil {
		for _, rows := range [][]Row{n.Table.Head, n.Table.Body, n.Table.Foot} {
			for _, row := range rows {
				for _, cell := range row {
					for _, c := range cell.Inlines {
						link(c, n)
					}
					for _, c := range cell.Blocks {
						link(c, n)
					}
				}
			}
		}
	}
}

// Walk visits every block and inline node in document order (pre-order,
// depth-first). Returning false from fn skips the node's descendants.
func (t *DocTree) Walk(fn func(*DocNode) bool) {
	for _, c := range t.Children {
		walk(c, fn)
	}
}

func walk(n *DocNode, fn func(*DocNode) bool) {
	if !fn(n) {
		return
	}
	for _, terms := range n.Terms {
		for _, c := range terms {
			walk(c, fn)
		}
	}
	for _, c := range n.Inlines {
		walk(c, fn)
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// PlainText returns the concatenated literal text of a node's inlines.
func PlainText(nodes []*DocNode) string {
	var sb strings.Builder
	var collect func([]*DocNode)
	collect = func(nodes []*DocNode) {
		for _, n := range nodes {
			switch n.Kind {
			case KindText:
				sb.WriteString(n.Text)
			case KindFootnote, KindIndexTerm:
				continue
			default:
				if n.Text != "" && len(n.Inlines) == 0 {
					sb.WriteString(n.Text)
				}
			}
			collect(n.Inlines)
		}
	}
	collect(nodes)
	return sb.String()
}
