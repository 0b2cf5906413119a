// Package pipeline drives a build: assemble the manuscript, convert it to
// HTMLBook markup, then chunk, lay out and render it per output format.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/bookpress/internal/book"
	"github.com/dgallion1/bookpress/internal/chunker"
	"github.com/dgallion1/bookpress/internal/config"
	"github.com/dgallion1/bookpress/internal/converter"
	"github.com/dgallion1/bookpress/internal/doctree"
	"github.com/dgallion1/bookpress/internal/failure"
	"github.com/dgallion1/bookpress/internal/publish"
	"github.com/dgallion1/bookpress/internal/spine"
)

// Options selects what one build produces.
type Options struct {
	Format string
	Sample bool // Keep only sections marked sample
	Single bool // html: one page instead of chunks

	// SkipUnchanged ends the build early when the converted markup
	// matches the last completed build of the same format.
	SkipUnchanged bool
}

// Builder runs builds for one project.
type Builder struct {
	project *book.Project
	mu      sync.RWMutex
	cfg     config.Config
	runner  Runner
	jobs    *JobStore
	log     *slog.Logger

	pages func(path string) (int, error)
	now   func() time.Time
}

// NewBuilder returns a Builder. A nil runner runs tools as processes.
func NewBuilder(p *book.Project, cfg config.Config, runner Runner, log *slog.Logger) *Builder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		project: p,
		cfg:     cfg,
		runner:  runner,
		jobs:    NewJobStore(time.Hour),
		log:     log,
		pages:   pdfPages,
		now:     time.Now,
	}
}

// SetConfig replaces the tool settings used by later builds.
func (b *Builder) SetConfig(cfg config.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

func (b *Builder) config() config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Jobs returns the build history.
func (b *Builder) Jobs() *JobStore { return b.jobs }

// Build runs one build. The returned job is non-nil whenever the build
// got past option checks, failed or not.
func (b *Builder) Build(ctx context.Context, opts Options) (*Job, error) {
	if err := checkFormat(opts.Format); err != nil {
		return nil, err
	}
	job := NewJob(opts.Format)
	job.Sample = opts.Sample
	job.Single = opts.Single
	job.Title = b.project.Manifest.Title
	b.jobs.Put(job)

	log := b.log.With("job_id", job.ID, "format", opts.Format)
	if err := b.run(ctx, log, job, opts); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, job.Snapshot().Phase)
		log.Error("build failed", "error", err)
		return job, err
	}
	snap := job.Snapshot()
	log.Info("build finished", "status", snap.Status, "outputs", len(snap.Outputs), "warnings", len(snap.Progress.Warnings), "elapsed", snap.Elapsed)
	return job, nil
}

func (b *Builder) run(ctx context.Context, log *slog.Logger, job *Job, opts Options) error {
	// Renderers are checked before any work is done.
	tool, err := b.checkTool(opts.Format)
	if err != nil {
		return err
	}
	if opts.Format == "mobi" {
		return b.buildMobi(ctx, job, tool)
	}

	job.SetStatus(StatusAssembling, "assembling")
	tree, err := b.project.Assemble(opts.Sample)
	if err != nil {
		return err
	}
	log.Info("assembled manuscript", "chapters", len(tree.Includes))
	if err := ctx.Err(); err != nil {
		return err
	}

	job.SetStatus(StatusConverting, "converting")
	conv := converter.New(converter.Options{
		Format:     opts.Format,
		Attributes: doctree.Attributes(b.config().Attributes),
		Logger:     log,
		Now:        b.now,
	})
	res, err := conv.Convert(tree)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		job.AddWarning(w.Error())
		log.Warn("content dropped", "error", w)
	}

	hash := ContentHashHex([]byte(res.Markup))
	if opts.SkipUnchanged && b.jobs.LastHash(opts.Format) == hash {
		job.SetContentHash(hash)
		job.SetStatus(StatusUnchanged, "done")
		log.Info("markup unchanged, skipping")
		return nil
	}

	attrs := conv.Attributes(tree)
	switch {
	case opts.Format == "pdf":
		err = b.buildPDF(ctx, job, tool, res.Markup)
	case converter.IsEPUB(opts.Format):
		err = b.buildEPUB(job, tree, attrs, res.Markup)
	case opts.Format == "html" && !opts.Single:
		err = b.buildMultiple(job, tree, attrs, res.Markup)
	default:
		err = b.buildSingle(job, opts.Format, res.Markup)
	}
	if err != nil {
		return err
	}
	job.SetContentHash(hash)
	job.SetStatus(StatusCompleted, "done")
	return nil
}

// chunk splits markup along the spine resolved from tree.
func (b *Builder) chunk(job *Job, tree *doctree.DocTree, attrs doctree.Attributes, format, markup string) ([]doctree.Chunk, error) {
	job.SetStatus(StatusChunking, "chunking")
	presence, err := spine.Inspect(markup)
	if err != nil {
		return nil, err
	}
	items, err := spine.Resolve(tree.Includes, presence)
	if err != nil {
		return nil, err
	}

	ext := ".html"
	if converter.IsEPUB(format) {
		ext = ".xhtml"
	}
	c := chunker.New(chunker.Config{
		Ext:        attrs.Get("outfilesuffix", ext),
		EPUB:       converter.IsEPUB(format),
		CoverTitle: attrs.Get("cover-page-title", "Cover"),
		Workers:    b.config().Workers,
	}, b.log)
	chunks, err := c.Chunk(markup, items)
	if err != nil {
		return nil, err
	}
	job.SetTotalChunks(len(chunks))
	b.log.Info("chunked markup", "format", format, "chunks", len(chunks))
	return chunks, nil
}

// writeChunks writes chunks in spine order and records each file.
func (b *Builder) writeChunks(job *Job, dir string, chunks []doctree.Chunk) error {
	job.SetStatus(StatusWriting, "writing")
	if err := publish.WriteChunks(dir, chunks, b.log); err != nil {
		return err
	}
	for _, c := range chunks {
		job.IncrChunksWritten(1)
		job.AddOutput(filepath.Join(dir, c.Filename))
	}
	return nil
}

func (b *Builder) buildEPUB(job *Job, tree *doctree.DocTree, attrs doctree.Attributes, markup string) error {
	format := job.Format
	dir := b.project.TmpDir(format)
	if err := b.write(job, filepath.Join(dir, b.project.Slug()+".html"), []byte(markup)); err != nil {
		return err
	}
	chunks, err := b.chunk(job, tree, attrs, format, markup)
	if err != nil {
		return err
	}
	if err := b.writeChunks(job, dir, chunks); err != nil {
		return err
	}

	assets, err := b.copyAssets(format, dir)
	if err != nil {
		return err
	}
	m := b.project.Manifest
	pkg := publish.NewPackage(publish.Metadata{
		Identifier:  m.Identifier,
		Title:       m.Title,
		Subtitle:    m.Subtitle,
		Language:    b.project.Lang(),
		Authors:     m.Authors,
		Publisher:   m.Publisher,
		Description: m.Description,
	}, format, chunks, assets, b.now())
	data, err := pkg.Marshal()
	if err != nil {
		return err
	}
	return b.write(job, filepath.Join(dir, publish.PackageFile), data)
}

func (b *Builder) buildMultiple(job *Job, tree *doctree.DocTree, attrs doctree.Attributes, markup string) error {
	chunks, err := b.chunk(job, tree, attrs, "html", markup)
	if err != nil {
		return err
	}
	job.SetStatus(StatusRendering, "laying out")
	tmpl, err := publish.LoadLayout(filepath.Join(b.project.ThemesDir("html"), "multiple.html.tmpl"))
	if err != nil {
		return err
	}
	pages, err := publish.RenderPages(tmpl, b.page("html"), chunks)
	if err != nil {
		return err
	}
	dir := filepath.Join(b.project.BuildDir("html"), "multiple")
	if err := b.writeChunks(job, dir, pages); err != nil {
		return err
	}
	_, err = b.copyAssets("html", dir)
	return err
}

func (b *Builder) buildSingle(job *Job, format, markup string) error {
	job.SetStatus(StatusRendering, "laying out")
	tmpl, err := publish.LoadLayout(filepath.Join(b.project.ThemesDir(format), "single.html.tmpl"))
	if err != nil {
		return err
	}
	out, err := publish.RenderSingle(tmpl, b.page(format), markup)
	if err != nil {
		return err
	}
	dir := filepath.Join(b.project.BuildDir(format), "single")
	if err := b.write(job, filepath.Join(dir, "index.html"), []byte(out)); err != nil {
		return err
	}
	_, err = b.copyAssets(format, dir)
	return err
}

func (b *Builder) buildMobi(ctx context.Context, job *Job, tool string) error {
	slug := b.project.Slug()
	epub := filepath.Join(b.project.BuildDir("epub"), slug+".epub")
	if _, err := os.Stat(epub); errors.Is(err, fs.ErrNotExist) {
		return failure.Consistencyf("build mobi", "%s not found", epub).
			WithDetails("build the epub format and package it before building mobi")
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", epub, err)
	}

	job.SetStatus(StatusRendering, "rendering")
	b.log.Info("running kindlegen", "input", epub)
	output, err := b.runner.Run(ctx, filepath.Dir(epub), tool, epub, "-o", slug+".mobi")
	produced := filepath.Join(filepath.Dir(epub), slug+".mobi")
	if _, statErr := os.Stat(produced); statErr != nil {
		if err == nil {
			err = statErr
		}
		return failure.Consistencyf("render mobi", "kindlegen failed: %v", err).
			WithDetails(string(output))
	}
	if err != nil {
		// kindlegen exits non-zero on warnings but still writes the book.
		job.AddWarning(err.Error())
	}

	out := filepath.Join(b.project.BuildDir("mobi"), slug+".mobi")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(out), err)
	}
	if err := os.Rename(produced, out); err != nil {
		return fmt.Errorf("move %s: %w", produced, err)
	}
	job.AddOutput(out)
	job.SetStatus(StatusCompleted, "done")
	return nil
}

// copyAssets copies the format's theme assets and the project images
// into dir and returns their paths relative to dir.
func (b *Builder) copyAssets(format, dir string) ([]string, error) {
	themes := b.project.ThemesDir(format)
	theme, err := publish.Glob(themes, publish.ThemeAssetPattern)
	if err != nil {
		return nil, err
	}
	if err := publish.CopyFiles(themes, dir, theme); err != nil {
		return nil, err
	}

	images, err := publish.Glob(b.project.ImagesDir(), publish.ImagePattern)
	if err != nil {
		return nil, err
	}
	imgDir := filepath.Join(dir, "images")
	if err := publish.CopyFiles(b.project.ImagesDir(), imgDir, images); err != nil {
		return nil, err
	}

	assets := append([]string(nil), theme...)
	for _, img := range images {
		assets = append(assets, filepath.ToSlash(filepath.Join("images", img)))
	}
	b.log.Debug("copied assets", "format", format, "theme", len(theme), "images", len(images))
	return assets, nil
}

func (b *Builder) page(format string) publish.Page {
	return publish.Page{
		BookTitle:  b.project.Manifest.Title,
		Lang:       b.project.Lang(),
		Stylesheet: format + ".css",
	}
}

func (b *Builder) write(job *Job, path string, data []byte) error {
	if err := publish.WriteFile(path, data); err != nil {
		return err
	}
	job.AddOutput(path)
	return nil
}
