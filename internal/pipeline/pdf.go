package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/dgallion1/bookpress/internal/failure"
)

// restartClass marks the unit where print page numbering starts over.
const restartClass = "restart_page_number"

// markPageRestart adds restartClass to the first part, or the first
// chapter when the book has no parts.
func markPageRestart(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	body := doc.Find(`body[data-type="book"]`)
	first := body.ChildrenFiltered(`div[data-type="part"]`).First()
	if first.Length() == 0 {
		first = body.ChildrenFiltered(`section[data-type="chapter"]`).First()
	}
	if first.Length() == 0 {
		return markup, nil
	}
	first.AddClass(restartClass)
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render markup: %w", err)
	}
	return out, nil
}

// pdfPages opens a rendered PDF and returns its page count.
func pdfPages(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

func (b *Builder) buildPDF(ctx context.Context, job *Job, tool, markup string) error {
	job.SetStatus(StatusRendering, "rendering")
	marked, err := markPageRestart(markup)
	if err != nil {
		return err
	}

	slug := b.project.Slug()
	src := filepath.Join(b.project.TmpDir("pdf"), slug+".html")
	if err := b.write(job, src, []byte(marked)); err != nil {
		return err
	}

	out := filepath.Join(b.project.BuildDir("pdf"), slug+".pdf")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(out), err)
	}
	b.log.Info("running prince", "input", src, "output", out)
	if output, err := b.runner.Run(ctx, b.project.Root, tool, src, "-o", out); err != nil {
		return failure.Consistencyf("render pdf", "prince failed: %v", err).
			WithDetails(strings.Split(strings.TrimSpace(string(output)), "\n")...)
	}

	pages, err := b.pages(out)
	if err != nil {
		return failure.Consistencyf("render pdf", "verify %s: %v", filepath.Base(out), err)
	}
	if pages == 0 {
		return failure.Consistencyf("render pdf", "%s has no pages", filepath.Base(out))
	}
	job.SetPages(pages)
	job.AddOutput(out)
	b.log.Info("rendered pdf", "file", out, "pages", pages)
	return nil
}
