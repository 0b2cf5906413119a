package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/bookpress/internal/book"
	"github.com/dgallion1/bookpress/internal/config"
	"github.com/dgallion1/bookpress/internal/failure"
	"github.com/dgallion1/bookpress/internal/publish"
)

// fakeRunner records tool calls. Tools not in installed are missing from
// PATH; run, when set, simulates the tool's effect.
type fakeRunner struct {
	installed map[string]bool
	calls     [][]string
	run       func(args []string) error
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if !f.installed[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Run(_ context.Context, _, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run != nil {
		return nil, f.run(args)
	}
	return nil, nil
}

const testManifest = `title: Field Guide
authors: [Ada]
chapters:
  - intro.md
  - usage.md
`

func newTestBuilder(t *testing.T, runner Runner) (*Builder, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"book.yaml":             testManifest,
		"manuscript/intro.md":   "# Introduction\n\nWhy this guide exists.\n",
		"manuscript/usage.md":   "# Usage\n\nRun it.\n\n## Flags\n\nSee [the intro](#_introduction).\n",
		"images/diagram.png":    "png",
		"themes/epub/epub.css":  "body{}",
		"themes/html/html.css":  "body{}",
		"themes/html/notes.txt": "ignored",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p, err := book.Open(root, nil)
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	cfg := config.Defaults()
	cfg.Project = root
	return NewBuilder(p, cfg, runner, nil), root
}

func exists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func TestBuild_HTMLMultiple(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	job, err := b.Build(context.Background(), Options{Format: "html"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalChunks != 2 || snap.Progress.ChunksWritten != 2 {
		t.Errorf("expected 2 chunks written, got %+v", snap.Progress)
	}

	dir := filepath.Join(root, "builds", "html", "multiple")
	exists(t, filepath.Join(dir, "intro.html"))
	exists(t, filepath.Join(dir, "usage.html"))
	exists(t, filepath.Join(dir, "html.css"))
	exists(t, filepath.Join(dir, "images", "diagram.png"))
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("non-asset theme file should not be copied")
	}

	usage, err := os.ReadFile(filepath.Join(dir, "usage.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(usage), `href="intro.html#_introduction"`) {
		t.Errorf("cross-chunk link not rewritten:\n%s", usage)
	}
}

func TestBuild_HTMLLayout(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	layout := `<title>{{.Title}}</title>{{.Body}}{{if .Next}}<a rel="next" href="{{.Next.Href}}">next</a>{{end}}`
	if err := os.WriteFile(filepath.Join(root, "themes", "html", "multiple.html.tmpl"), []byte(layout), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), Options{Format: "html"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	intro, err := os.ReadFile(filepath.Join(root, "builds", "html", "multiple", "intro.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(intro), "<title>Introduction</title>") {
		t.Errorf("layout not applied:\n%s", intro)
	}
	if !strings.Contains(string(intro), `<a rel="next" href="usage.html">next</a>`) {
		t.Errorf("missing next link:\n%s", intro)
	}
}

func TestBuild_HTMLSingle(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	if _, err := b.Build(context.Background(), Options{Format: "html", Single: true}); err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(root, "builds", "html", "single", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "Why this guide exists.") || !strings.Contains(string(out), "Run it.") {
		t.Errorf("single page missing content:\n%s", out)
	}
}

func TestBuild_Site(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	if _, err := b.Build(context.Background(), Options{Format: "site"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	exists(t, filepath.Join(root, "builds", "site", "single", "index.html"))
}

func TestBuild_EPUB(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	job, err := b.Build(context.Background(), Options{Format: "epub"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dir := filepath.Join(root, "tmp", "epub")
	exists(t, filepath.Join(dir, "field_guide.html"))
	exists(t, filepath.Join(dir, "intro.xhtml"))
	exists(t, filepath.Join(dir, "usage.xhtml"))
	exists(t, filepath.Join(dir, "epub.css"))

	data, err := os.ReadFile(filepath.Join(dir, publish.PackageFile))
	if err != nil {
		t.Fatal(err)
	}
	var pkg publish.Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		t.Fatalf("decode package: %v", err)
	}
	if pkg.Title != "Field Guide" || pkg.Format != "epub" || pkg.Language != "en" {
		t.Errorf("unexpected package metadata %+v", pkg)
	}
	n := len(pkg.Spine)
	if n < 2 || pkg.Spine[n-2].Name != "intro" || pkg.Spine[n-1].Name != "usage" {
		t.Fatalf("spine should end with the chapters in order, got %+v", pkg.Spine)
	}
	if pkg.Spine[n-1].Title != "Usage" {
		t.Errorf("expected chapter title Usage, got %q", pkg.Spine[n-1].Title)
	}
	found := false
	for _, a := range pkg.Assets {
		if a == "images/diagram.png" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected images/diagram.png in assets %v", pkg.Assets)
	}
	if job.Snapshot().ContentHash == "" {
		t.Error("expected content hash to be recorded")
	}
}

func TestBuild_EPUBCoverPageTitle(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	manifest := testManifest + "attributes:\n  cover-page-title: Front Cover\n"
	if err := os.WriteFile(filepath.Join(root, book.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "themes", "epub", "cover.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := book.Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.project = p

	if _, err := b.Build(context.Background(), Options{Format: "epub"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "tmp", "epub", publish.PackageFile))
	if err != nil {
		t.Fatal(err)
	}
	var pkg publish.Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		t.Fatalf("decode package: %v", err)
	}
	if len(pkg.Spine) == 0 || pkg.Spine[0].Name != "cover" {
		t.Fatalf("expected the cover first in the spine, got %+v", pkg.Spine)
	}
	if pkg.Spine[0].Title != "Front Cover" {
		t.Errorf("expected cover title %q, got %q", "Front Cover", pkg.Spine[0].Title)
	}
	if pkg.Cover != "cover.xhtml" {
		t.Errorf("expected cover file cover.xhtml, got %q", pkg.Cover)
	}
}

func TestBuild_SkipUnchanged(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeRunner{})
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := b.Build(ctx, Options{Format: "site"}); err != nil {
		t.Fatal(err)
	}
	job, err := b.Build(ctx, Options{Format: "site", SkipUnchanged: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := job.Snapshot().Status; got != StatusUnchanged {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestBuild_PDF(t *testing.T) {
	runner := &fakeRunner{installed: map[string]bool{"prince": true}}
	runner.run = func(args []string) error {
		// prince <input> -o <output>
		return os.WriteFile(args[2], []byte("%PDF"), 0o644)
	}
	b, root := newTestBuilder(t, runner)
	b.pages = func(string) (int, error) { return 12, nil }

	job, err := b.Build(context.Background(), Options{Format: "pdf"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0][0] != "/usr/bin/prince" {
		t.Fatalf("expected one prince call, got %v", runner.calls)
	}
	if job.Snapshot().Progress.Pages != 12 {
		t.Errorf("expected 12 pages, got %d", job.Snapshot().Progress.Pages)
	}
	src, err := os.ReadFile(filepath.Join(root, "tmp", "pdf", "field_guide.html"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(src), restartClass) != 1 {
		t.Errorf("expected exactly one page restart marker:\n%s", src)
	}
	exists(t, filepath.Join(root, "builds", "pdf", "field_guide.pdf"))
}

func TestBuild_PDFWithoutPages(t *testing.T) {
	runner := &fakeRunner{installed: map[string]bool{"prince": true}}
	b, _ := newTestBuilder(t, runner)
	b.pages = func(string) (int, error) { return 0, nil }

	job, err := b.Build(context.Background(), Options{Format: "pdf"})
	if failure.KindOf(err) != failure.Consistency {
		t.Fatalf("expected consistency error, got %v", err)
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed job, got %q", job.Snapshot().Status)
	}
}

func TestBuild_MissingTool(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{})
	for _, format := range []string{"pdf", "mobi"} {
		_, err := b.Build(context.Background(), Options{Format: format})
		if failure.KindOf(err) != failure.Environment {
			t.Errorf("%s: expected environment error, got %v", format, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "tmp", "pdf")); err == nil {
		t.Error("no work should happen before the tool check")
	}
}

func TestCheckTools(t *testing.T) {
	b, root := newTestBuilder(t, &fakeRunner{installed: map[string]bool{"kindlegen": true}})

	err := b.CheckTools([]string{"epub", "pdf"})
	if failure.KindOf(err) != failure.Environment {
		t.Fatalf("expected environment error, got %v", err)
	}
	if !strings.Contains(err.Error(), "prince") {
		t.Errorf("error should name the missing tool: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "tmp", "epub")); err == nil {
		t.Error("no format should be built before every tool is checked")
	}

	if err := b.CheckTools([]string{"epub", "mobi", "html"}); err != nil {
		t.Errorf("installed tools: %v", err)
	}
	if err := b.CheckTools([]string{"html", "docbook"}); failure.KindOf(err) != failure.Consistency {
		t.Errorf("expected consistency error for unknown format, got %v", err)
	}
}

func TestBuild_MobiNeedsEPUB(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeRunner{installed: map[string]bool{"kindlegen": true}})
	_, err := b.Build(context.Background(), Options{Format: "mobi"})
	if failure.KindOf(err) != failure.Consistency {
		t.Fatalf("expected consistency error, got %v", err)
	}
}

func TestBuild_Mobi(t *testing.T) {
	runner := &fakeRunner{installed: map[string]bool{"kindlegen": true}}
	b, root := newTestBuilder(t, runner)
	epubDir := filepath.Join(root, "builds", "epub")
	if err := os.MkdirAll(epubDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(epubDir, "field_guide.epub"), []byte("zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner.run = func(args []string) error {
		return os.WriteFile(filepath.Join(epubDir, "field_guide.mobi"), []byte("mobi"), 0o644)
	}

	job, err := b.Build(context.Background(), Options{Format: "mobi"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	exists(t, filepath.Join(root, "builds", "mobi", "field_guide.mobi"))
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
}

func TestBuild_UnknownFormat(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeRunner{})
	job, err := b.Build(context.Background(), Options{Format: "docbook"})
	if job != nil || failure.KindOf(err) != failure.Consistency {
		t.Fatalf("expected consistency error and no job, got %v, %v", job, err)
	}
}

func TestMarkPageRestart(t *testing.T) {
	markup := `<html><body data-type="book"><section data-type="chapter" id="a"><h1>A</h1></section>` +
		`<div data-type="part" id="p"><h1>P</h1></div></body></html>`
	out, err := markPageRestart(markup)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<div data-type="part" id="p" class="restart_page_number">`) {
		t.Errorf("part should be marked:\n%s", out)
	}
	if strings.Count(out, restartClass) != 1 {
		t.Errorf("expected one marker:\n%s", out)
	}

	plain := `<html><body data-type="book"><p>x</p></body></html>`
	out, err = markPageRestart(plain)
	if err != nil {
		t.Fatal(err)
	}
	if out != plain {
		t.Errorf("markup without units should be unchanged, got %s", out)
	}
}
