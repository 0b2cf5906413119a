package converter

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlight renders source with chroma using css classes, so themes
// control the colours. Lexing failures fall back to an escaped pre block.
func (r *renderer) highlight(source, language, classes string, linenums bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(r.attrs.Get("highlight-style", "github"))
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(linenums),
	)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		r.log.Warn("highlight failed", "language", language, "error", err)
		return fmt.Sprintf("<pre>%s</pre>", esc(source))
	}
	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		r.log.Warn("highlight failed", "language", language, "error", err)
		return fmt.Sprintf("<pre>%s</pre>", esc(source))
	}
	if classes == "" {
		return sb.String()
	}
	return fmt.Sprintf(`<div class="%s">%s</div>`, esc(classes), sb.String())
}
