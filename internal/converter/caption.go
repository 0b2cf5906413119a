package converter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// Caption categories.
const (
	CategoryImage   = "image"
	CategoryListing = "listing"
	CategoryTable   = "table"
)

// CaptionCounter hands out per-category sub-numbers for captioned blocks.
// All counts drop back to zero when numbering moves into a different
// top-level unit.
type CaptionCounter struct {
	anchor  *doctree.DocNode
	started bool
	counts  map[string]int
	resets  int
}

// NewCaptionCounter returns a counter with no unit anchored yet.
func NewCaptionCounter() *CaptionCounter {
	return &CaptionCounter{counts: make(map[string]int)}
}

// Next advances category within unit and returns the new sub-number,
// starting at 1 in every unit.
func (c *CaptionCounter) Next(unit *doctree.DocNode, category string) int {
	if c.started && unit != c.anchor {
		clear(c.counts)
		c.resets++
	}
	c.anchor = unit
	c.started = true
	c.counts[category]++
	return c.counts[category]
}

var numSeparator = regexp.MustCompile(`%NUM%[-.\x{2010}\x{2011}]?`)

// FillCaption substitutes %NUM% and %SUBNUM% in a caption template. An
// empty chapter number drops the placeholder together with the separator
// that follows it, so "Figure %NUM%-%SUBNUM%" becomes "Figure 3".
func FillCaption(template, num string, sub int) string {
	out := template
	if num == "" {
		out = numSeparator.ReplaceAllString(out, "")
	} else {
		out = strings.Replace(out, "%NUM%", num, 1)
	}
	return strings.Replace(out, "%SUBNUM%", strconv.Itoa(sub), 1)
}

// chapterNumber is the first segment of a unit's section number.
func chapterNumber(unit *doctree.DocNode) string {
	if unit == nil || unit.Number == "" {
		return ""
	}
	num, _, _ := strings.Cut(unit.Number, ".")
	return num
}
