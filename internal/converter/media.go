package converter

import (
	"fmt"
	"path"
	"strings"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// imageURI resolves an image target against the imagesdir attribute.
func (r *renderer) imageURI(target string) string {
	dir := r.attrs.Get("imagesdir", "")
	if dir == "" || strings.Contains(target, "://") || strings.HasPrefix(target, "/") || strings.HasPrefix(target, "data:") {
		return target
	}
	return path.Join(dir, target)
}

func (r *renderer) image(n *doctree.DocNode) string {
	var styles []string
	if v := n.Attr("align", ""); v != "" {
		styles = append(styles, "text-align: "+v)
	}
	if v := n.Attr("float", ""); v != "" {
		styles = append(styles, "float: "+v)
	}
	img := fmt.Sprintf(`<img src="%s" alt="%s"%s%s/>`, esc(r.imageURI(n.Target)), esc(n.Attr("alt", "")),
		attr("width", n.Attr("width", "")), attr("height", n.Attr("height", "")))
	if link := n.Attr("link", ""); link != "" {
		img = fmt.Sprintf(`<a href="%s">%s</a>`, esc(link), img)
	}
	caption := ""
	if n.Title != "" {
		caption = fmt.Sprintf("<figcaption>%s</figcaption>", r.autoCaption(n, CategoryImage))
	}
	return fmt.Sprintf("<figure%s%s%s>%s%s</figure>", idAttr(n), classAttr("image", n.Style, n.Role),
		attr("style", strings.Join(styles, ";")), img, caption)
}

func (r *renderer) mediaTitle(n *doctree.DocNode) string {
	if n.Title == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="title">%s</div>`, captionedTitle(n))
}

func (r *renderer) audio(n *doctree.DocNode) string {
	opts := n.Attributes
	var flags string
	if opts.Option("autoplay") {
		flags += r.boolAttr("autoplay")
	}
	if !opts.Option("nocontrols") {
		flags += r.boolAttr("controls")
	}
	if opts.Option("loop") {
		flags += r.boolAttr("loop")
	}
	return lines(
		fmt.Sprintf("<div%s%s>", idAttr(n), classAttr("audioblock", n.Style, n.Role)),
		r.mediaTitle(n),
		`<div class="content">`,
		fmt.Sprintf(`<audio src="%s"%s>`, esc(r.imageURI(n.Target)), flags),
		"Your browser does not support the audio tag.",
		"</audio>",
		"</div>",
		"</div>",
	)
}

func (r *renderer) video(n *doctree.DocNode) string {
	opts := n.Attributes
	size := attr("width", n.Attr("width", "")) + attr("height", n.Attr("height", ""))
	var player string
	switch n.Attr("poster", "") {
	case "vimeo":
		src := "//player.vimeo.com/video/" + n.Target
		if start := n.Attr("start", ""); start != "" {
			src += "#at=" + start
		}
		delim := "?"
		if opts.Option("autoplay") {
			src += delim + "autoplay=1"
			delim = "&"
		}
		if opts.Option("loop") {
			src += delim + "loop=1"
		}
		player = fmt.Sprintf(`<iframe%s src="%s" frameborder="0"%s%s%s></iframe>`, size, esc(src),
			r.boolAttr("webkitAllowFullScreen"), r.boolAttr("mozallowfullscreen"), r.boolAttr("allowFullScreen"))
	case "youtube":
		src := "//www.youtube.com/embed/" + n.Target + "?rel=0"
		for _, p := range []string{"start", "end"} {
			if v := n.Attr(p, ""); v != "" {
				src += "&" + p + "=" + v
			}
		}
		if opts.Option("autoplay") {
			src += "&autoplay=1"
		}
		if opts.Option("loop") {
			src += "&loop=1"
		}
		if opts.Option("nocontrols") {
			src += "&controls=0"
		}
		fullscreen := ""
		if !opts.Option("nofullscreen") {
			fullscreen = r.boolAttr("allowfullscreen")
		}
		player = fmt.Sprintf(`<iframe%s src="%s" frameborder="0"%s></iframe>`, size, esc(src), fullscreen)
	default:
		src := r.imageURI(n.Target)
		start, end := n.Attr("start", ""), n.Attr("end", "")
		if start != "" || end != "" {
			src += "#t=" + start
			if end != "" {
				src += "," + end
			}
		}
		poster := ""
		if p := n.Attr("poster", ""); p != "" {
			poster = attr("poster", r.imageURI(p))
		}
		var flags string
		if opts.Option("autoplay") {
			flags += r.boolAttr("autoplay")
		}
		if !opts.Option("nocontrols") {
			flags += r.boolAttr("controls")
		}
		if opts.Option("loop") {
			flags += r.boolAttr("loop")
		}
		player = lines(
			fmt.Sprintf(`<video src="%s"%s%s%s>`, esc(src), size, poster, flags),
			"Your browser does not support the video tag.",
			"</video>",
		)
	}
	return lines(
		fmt.Sprintf("<div%s%s>", idAttr(n), classAttr("videoblock", n.Style, n.Role)),
		r.mediaTitle(n),
		`<div class="content">`,
		player,
		"</div>",
		"</div>",
	)
}

func (r *renderer) table(n *doctree.DocNode) string {
	t := n.Table
	if t == nil {
		t = &doctree.Table{}
	}
	var styles []string
	if !n.Attributes.Option("autowidth") {
		styles = append(styles, fmt.Sprintf("width: %d%%;", n.Attributes.Int("tablepcwidth", 100)))
	}
	if v := n.Attr("float", ""); v != "" {
		styles = append(styles, "float: "+v+";")
	}
	out := []string{fmt.Sprintf("<table%s%s%s>", idAttr(n),
		classAttr("tableblock", "frame-"+n.Attr("frame", "all"), "grid-"+n.Attr("grid", "all"), n.Role),
		attr("style", strings.Join(styles, " ")))}
	if n.Title != "" {
		out = append(out, fmt.Sprintf(`<caption class="title">%s</caption>`, r.autoCaption(n, CategoryTable)))
	}
	if len(t.Head)+len(t.Body)+len(t.Foot) > 0 {
		out = append(out, "<colgroup>")
		cols := t.Columns
		if len(cols) == 0 {
			cols = make([]doctree.Column, rowWidth(t))
		}
		for _, col := range cols {
			if n.Attributes.Option("autowidth") {
				out = append(out, "<col/>")
				continue
			}
			width := col.Width
			if width == 0 && len(cols) > 0 {
				width = 100 / len(cols)
			}
			out = append(out, fmt.Sprintf(`<col style="width: %d%%;"/>`, width))
		}
		out = append(out, "</colgroup>")
		for _, sec := range []struct {
			tag  string
			rows []doctree.Row
		}{{"thead", t.Head}, {"tfoot", t.Foot}, {"tbody", t.Body}} {
			if len(sec.rows) == 0 {
				continue
			}
			out = append(out, "<"+sec.tag+">")
			for _, row := range sec.rows {
				out = append(out, "<tr>")
				for _, cell := range row {
					out = append(out, r.cell(cell, sec.tag == "thead"))
				}
				out = append(out, "</tr>")
			}
			out = append(out, "</"+sec.tag+">")
		}
	}
	out = append(out, "</table>")
	return lines(out...)
}

func rowWidth(t *doctree.Table) int {
	for _, rows := range [][]doctree.Row{t.Head, t.Body, t.Foot} {
		if len(rows) > 0 {
			width := 0
			for _, c := range rows[0] {
				width += max(c.Colspan, 1)
			}
			return width
		}
	}
	return 0
}

func (r *renderer) cell(c doctree.Cell, head bool) string {
	var content string
	switch {
	case head:
		content = r.inlines(c.Inlines)
	case c.Style == "asciidoc":
		content = fmt.Sprintf("<div>%s</div>", r.blocks(c.Blocks))
	case c.Style == "verse":
		content = fmt.Sprintf(`<div class="verse">%s</div>`, r.inlines(c.Inlines))
	case c.Style == "literal":
		content = fmt.Sprintf(`<div class="literal"><pre>%s</pre></div>`, r.inlines(c.Inlines))
	case len(c.Inlines) > 0:
		content = fmt.Sprintf(`<p class="tableblock">%s</p>`, r.inlines(c.Inlines))
	}
	tag := "td"
	if head || c.Style == "header" {
		tag = "th"
	}
	halign, valign := c.HAlign, c.VAlign
	if halign == "" {
		halign = "left"
	}
	if valign == "" {
		valign = "top"
	}
	span := ""
	if c.Colspan > 1 {
		span += fmt.Sprintf(` colspan="%d"`, c.Colspan)
	}
	if c.Rowspan > 1 {
		span += fmt.Sprintf(` rowspan="%d"`, c.Rowspan)
	}
	bg := ""
	if v := r.attrs.Get("cellbgcolor", ""); v != "" {
		bg = attr("style", "background-color: "+v+";")
	}
	return fmt.Sprintf(`<%s class="tableblock halign-%s valign-%s"%s%s>%s</%s>`, tag, esc(halign), esc(valign), span, bg, content, tag)
}
