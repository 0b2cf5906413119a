package converter

import (
	"strconv"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// Roles a top-level title can be matched against, by level.
var (
	partLevelRoles    = []string{"colophon", "index"}
	chapterLevelRoles = []string{"preface", "appendix", "foreword", "glossary", "dedication"}
)

// chapterLevelKinds are parser section kinds kept as-is at level 1.
var chapterLevelKinds = map[string]bool{
	"preface":         true,
	"appendix":        true,
	"foreword":        true,
	"glossary":        true,
	"dedication":      true,
	"colophon":        true,
	"index":           true,
	"bibliography":    true,
	"acknowledgments": true,
}

// defaultRoleTitles are matched when no "<role>-title" attribute is set.
var defaultRoleTitles = map[string]string{
	"colophon":   "Colophon",
	"index":      "Index",
	"foreword":   "Foreword",
	"glossary":   "Glossary",
	"dedication": "Dedication",
}

// Classifier maps a section to its semantic role (data-type). Titles holds
// the configured title per role, read from "<role>-title" attributes.
type Classifier struct {
	Titles map[string]string
}

// NewClassifier reads configured role titles from document attributes.
func NewClassifier(attrs doctree.Attributes) Classifier {
	titles := make(map[string]string, len(defaultRoleTitles))
	for role, title := range defaultRoleTitles {
		titles[role] = title
	}
	for _, role := range append(append([]string{}, partLevelRoles...), chapterLevelRoles...) {
		if v := strings.TrimSpace(attrs.Get(role+"-title", "")); v != "" {
			titles[role] = v
		}
	}
	return Classifier{Titles: titles}
}

// Classify returns the role for a section at level with the given parser
// kind and title.
func (c Classifier) Classify(level int, kind, title string) string {
	switch level {
	case 0:
		if kind == "colophon" || kind == "index" {
			return kind
		}
		if role := c.matchTitle(title, partLevelRoles); role != "" {
			return role
		}
		return "part"
	case 1:
		if chapterLevelKinds[kind] {
			// A foreword is reported by parsers as a preface.
			if kind == "preface" && c.matchTitle(title, []string{"foreword"}) != "" {
				return "foreword"
			}
			return kind
		}
		if role := c.matchTitle(title, chapterLevelRoles); role != "" {
			return role
		}
		return "chapter"
	}
	return "sect" + strconv.Itoa(level-1)
}

// Of classifies a section node.
func (c Classifier) Of(n *doctree.DocNode) string {
	return c.Classify(n.Level, n.SectName, n.Title)
}

func (c Classifier) matchTitle(title string, roles []string) string {
	title = strings.TrimSpace(title)
	for _, role := range roles {
		if want, ok := c.Titles[role]; ok && strings.EqualFold(want, title) {
			return role
		}
	}
	return ""
}
