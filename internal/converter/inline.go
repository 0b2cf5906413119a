package converter

import (
	"fmt"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

type quoteTag struct {
	open, close string
	tag         bool
}

var quoteTags = map[string]quoteTag{
	"emphasis":    {"<em>", "</em>", true},
	"strong":      {"<strong>", "</strong>", true},
	"monospaced":  {"<code>", "</code>", true},
	"superscript": {"<sup>", "</sup>", true},
	"subscript":   {"<sub>", "</sub>", true},
	"strike":      {"<del>", "</del>", true},
	"double":      {"&#8220;", "&#8221;", false},
	"single":      {"&#8216;", "&#8217;", false},
	"asciimath":   {`\$`, `\$`, false},
	"latexmath":   {`\(`, `\)`, false},
}

// inlines renders a run of inline nodes.
func (r *renderer) inlines(nodes []*doctree.DocNode) string {
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(r.inline(n))
	}
	return sb.String()
}

// inline dispatches on the inline kind. Block kinds nested in inline
// content are not valid and are dropped.
func (r *renderer) inline(n *doctree.DocNode) string {
	switch n.Kind {
	case doctree.KindText:
		return esc(n.Text)
	case doctree.KindAnchor:
		return r.anchor(n)
	case doctree.KindFootnote:
		return r.footnote(n)
	case doctree.KindInlineImage:
		return r.inlineImage(n)
	case doctree.KindQuoted:
		return r.quoted(n)
	case doctree.KindBreak:
		return r.content(n) + "<br/>"
	case doctree.KindButton:
		return fmt.Sprintf(`<b class="button">%s</b>`, r.content(n))
	case doctree.KindCallout:
		return r.callout(n)
	case doctree.KindKbd:
		return r.kbd(n)
	case doctree.KindMenu:
		return r.menu(n)
	case doctree.KindIndexTerm:
		if n.Type == "visible" {
			return r.content(n)
		}
		return ""
	case doctree.KindPass:
		return n.Text
	}
	r.warn("render inline", "unknown inline kind %q", n.Kind)
	return ""
}

// content is the rendered inline children of n, or its escaped text.
func (r *renderer) content(n *doctree.DocNode) string {
	if len(n.Inlines) > 0 {
		return r.inlines(n.Inlines)
	}
	return esc(n.Text)
}

func (r *renderer) anchor(n *doctree.DocNode) string {
	target := n.Target
	switch n.Type {
	case "xref":
		refid := n.Attr("refid", target)
		text := r.content(n)
		if text == "" {
			if title, ok := r.refs[refid]; ok {
				text = esc(title)
			} else {
				text = "[" + esc(refid) + "]"
			}
		}
		// The combined markup is one file, so a cross-document target
		// resolves by its fragment alone.
		if _, frag, ok := strings.Cut(target, "#"); ok {
			target = frag
		}
		return fmt.Sprintf(`<a href="#%s">%s</a>`, esc(target), text)
	case "ref":
		return fmt.Sprintf(`<a id="%s"></a>`, esc(target))
	case "link":
		return fmt.Sprintf(`<a href="%s"%s%s%s>%s</a>`, esc(target), attr("id", n.Attr("id", "")),
			roleAttr(n), attr("target", n.Attr("window", "")), r.content(n))
	case "bibref":
		return fmt.Sprintf(`<a id="%s"></a>[%s]`, esc(target), esc(target))
	}
	r.warn("anchor", "unknown anchor type %q", n.Type)
	return ""
}

func (r *renderer) footnote(n *doctree.DocNode) string {
	if n.Type == "xref" {
		return fmt.Sprintf(`<a data-type="footnoteref" href="#%s">%s</a>`, esc(n.Target), esc(n.Attr("index", "")))
	}
	return fmt.Sprintf(`<span data-type="footnote"%s>%s</span>`, idAttr(n), r.content(n))
}

func (r *renderer) inlineImage(n *doctree.DocNode) string {
	var img string
	icons := r.attrs.Get("icons", "")
	_, hasIcons := r.attrs["icons"]
	switch {
	case n.Type == "icon" && icons == "font":
		cls := "icon-" + n.Target
		if v := n.Attr("size", ""); v != "" {
			cls += " icon-" + v
		}
		if v := n.Attr("rotate", ""); v != "" {
			cls += " icon-rotate-" + v
		}
		if v := n.Attr("flip", ""); v != "" {
			cls += " icon-flip-" + v
		}
		img = fmt.Sprintf(`<i class="%s"%s></i>`, esc(cls), attr("title", n.Attr("title", "")))
	case n.Type == "icon" && !hasIcons:
		img = "[" + esc(n.Attr("alt", n.Target)) + "]"
	default:
		src := r.imageURI(n.Target)
		if n.Type == "icon" {
			src = iconPath(r.attrs.Get("iconsdir", "images/icons"), n.Target+"."+r.attrs.Get("icontype", "png"))
		}
		var attrs string
		for _, name := range []string{"alt", "width", "height", "title"} {
			attrs += attr(name, n.Attr(name, ""))
		}
		img = fmt.Sprintf(`<img src="%s"%s/>`, esc(src), attrs)
	}
	if link := n.Attr("link", ""); link != "" {
		img = fmt.Sprintf(`<a class="image" href="%s"%s>%s</a>`, esc(link), attr("target", n.Attr("window", "")), img)
	}
	typ := n.Type
	if typ == "" {
		typ = "image"
	}
	classes := typ
	if n.Role != "" {
		classes = "image " + typ + " " + n.Role
	}
	style := ""
	if v := n.Attr("float", ""); v != "" {
		style = attr("style", "float: "+v)
	}
	return fmt.Sprintf(`<span class="%s"%s>%s</span>`, esc(classes), style, img)
}

func iconPath(dir, file string) string {
	if dir == "" {
		return file
	}
	return strings.TrimSuffix(dir, "/") + "/" + file
}

func (r *renderer) quoted(n *doctree.DocNode) string {
	q := quoteTags[n.Type]
	text := r.content(n)
	var out string
	switch {
	case n.Role != "" && q.tag:
		out = fmt.Sprintf(`%s class="%s">%s%s`, strings.TrimSuffix(q.open, ">"), esc(n.Role), text, q.close)
	case n.Role != "":
		out = fmt.Sprintf(`<span class="%s">%s%s%s</span>`, esc(n.Role), q.open, text, q.close)
	default:
		out = q.open + text + q.close
	}
	if n.ID != "" {
		out = fmt.Sprintf(`<a id="%s"></a>%s`, esc(n.ID), out)
	}
	return out
}

func (r *renderer) callout(n *doctree.DocNode) string {
	text := esc(n.Text)
	switch icons, ok := r.attrs["icons"]; {
	case ok && icons == "font":
		return fmt.Sprintf(`<i class="conum" data-value="%s"></i><b>(%s)</b>`, text, text)
	case ok:
		src := iconPath(r.attrs.Get("iconsdir", "images/icons"), "callouts/"+n.Text+"."+r.attrs.Get("icontype", "png"))
		return fmt.Sprintf(`<img src="%s" alt="%s"/>`, esc(src), text)
	}
	return fmt.Sprintf(`<b class="conum">(%s)</b>`, text)
}

// splitList splits a comma separated attribute value.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *renderer) kbd(n *doctree.DocNode) string {
	keys := splitList(n.Attr("keys", n.Text))
	if len(keys) == 1 {
		return fmt.Sprintf("<kbd>%s</kbd>", esc(keys[0]))
	}
	combo := make([]string, len(keys))
	for i, k := range keys {
		combo[i] = fmt.Sprintf("<kbd>%s</kbd>", esc(k))
	}
	return fmt.Sprintf(`<span class="keyseq">%s</span>`, strings.Join(combo, "+"))
}

func (r *renderer) menu(n *doctree.DocNode) string {
	menu := esc(n.Attr("menu", n.Text))
	item := n.Attr("menuitem", "")
	if subs := splitList(n.Attr("submenus", "")); len(subs) > 0 {
		var trail []string
		for _, s := range subs {
			trail = append(trail, fmt.Sprintf(`<span class="submenu">%s</span>&#160;&#9656;`, esc(s)))
		}
		return fmt.Sprintf(`<span class="menuseq"><span class="menu">%s</span>&#160;&#9656; %s <span class="menuitem">%s</span></span>`,
			menu, strings.Join(trail, " "), esc(item))
	}
	if item != "" {
		return fmt.Sprintf(`<span class="menuseq"><span class="menu">%s</span>&#160;&#9656; <span class="menuitem">%s</span></span>`, menu, esc(item))
	}
	return fmt.Sprintf(`<span class="menu">%s</span>`, menu)
}
