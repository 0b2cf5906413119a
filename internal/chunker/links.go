package chunker

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/bookpress/internal/failure"
	"github.com/dgallion1/bookpress/internal/spine"
)

// navWalk consumes content spine items while visiting nav entries.
type navWalk struct {
	c       *Chunker
	content []string
	j       int
}

func (w *navWalk) current() (string, error) {
	if w.j >= len(w.content) {
		return "", failure.Consistencyf("correct nav",
			"navigation has more entries than content spine items (%d)", len(w.content)).
			WithDetails("content spine items: " + strings.Join(w.content, ", "))
	}
	return w.content[w.j], nil
}

// point rewrites every same-file href under sel to the current item.
func (w *navWalk) point(sel *goquery.Selection) error {
	item, err := w.current()
	if err != nil {
		return err
	}
	sel.Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.HasPrefix(href, "#") {
			a.SetAttr("href", w.c.Filename(item)+href)
		}
	})
	return nil
}

// correctNav rewrites the table of contents links from #id to
// {file}#id. Top-level entries consume one content item each; a part
// entry consumes one more per nested chapter entry. hoisted holds the
// chapter count each part gave up during flattening, which the nested
// entries must mirror.
func (c *Chunker) correctNav(body *goquery.Selection, items []string, hoisted []int) error {
	ol := body.ChildrenFiltered(`nav[data-type="toc"]`).First().ChildrenFiltered("ol").First()
	if ol.Length() == 0 {
		return nil
	}
	w := &navWalk{c: c, content: spine.Content(items)}
	part := 0
	var err error
	ol.ChildrenFiltered("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if li.AttrOr("data-type", "") != "part" {
			if err = w.point(li.Find("a")); err != nil {
				return false
			}
			w.j++
			return true
		}

		if part >= len(hoisted) {
			err = failure.Consistencyf("correct nav", "navigation lists more parts than the body (%d)", len(hoisted))
			return false
		}
		want := hoisted[part]
		part++
		if err = w.point(li.ChildrenFiltered("a").First()); err != nil {
			return false
		}
		nested := li.ChildrenFiltered("ol").First().ChildrenFiltered("li")
		switch {
		case nested.Length() == 0:
			// Outline depth stopped at the part; its chapters still own
			// spine items.
			w.j += want
		case nested.Length() != want:
			err = failure.Consistencyf("correct nav",
				"part %q lists %d chapter entries but contains %d chapters",
				strings.TrimSpace(li.ChildrenFiltered("a").First().Text()), nested.Length(), want)
			return false
		default:
			nested.EachWithBreak(func(_ int, lli *goquery.Selection) bool {
				w.j++
				err = w.point(lli.Find("a"))
				return err == nil
			})
			if err != nil {
				return false
			}
		}
		w.j++
		return true
	})
	if err != nil {
		return err
	}
	if w.j != len(w.content) {
		return failure.Consistencyf("correct nav",
			"navigation consumed %d content spine items, expected %d", w.j, len(w.content)).
			WithDetails("content spine items: " + strings.Join(w.content, ", "))
	}
	return nil
}

// correctLinks points same-file references at the chunk holding their
// target. Targets in the same chunk and unknown targets are left alone.
// Nav entries already corrected are cross-checked against the id index.
func (c *Chunker) correctLinks(units []unit) {
	owner := make(map[string]int)
	for i, u := range units {
		indexIDs(u.node, i, owner)
	}
	for i, u := range units {
		sel := goquery.NewDocumentFromNode(u.node).Selection
		if u.name == spine.Nav {
			sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href := a.AttrOr("href", "")
				file, id, ok := strings.Cut(href, "#")
				if !ok || file == "" {
					return
				}
				if k, found := owner[id]; found && c.Filename(units[k].name) != file {
					c.log.Warn("nav entry points at a different chunk than its target",
						"href", href, "target_chunk", c.Filename(units[k].name))
				}
			})
			continue
		}
		sel.Find(`a[href^="#"]`).Not(`[data-type="footnoteref"]`).Each(func(_ int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			if k, found := owner[strings.TrimPrefix(href, "#")]; found && k != i {
				a.SetAttr("href", c.Filename(units[k].name)+href)
			}
		})
	}
}

func indexIDs(n *html.Node, i int, owner map[string]int) {
	if n.Type == html.ElementNode {
		if id := attrOf(n, "id"); id != "" {
			if _, dup := owner[id]; !dup {
				owner[id] = i
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		indexIDs(c, i, owner)
	}
}
