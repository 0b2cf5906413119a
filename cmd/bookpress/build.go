package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookpress/internal/book"
	"github.com/dgallion1/bookpress/internal/config"
	"github.com/dgallion1/bookpress/internal/pipeline"
)

var (
	buildFormats []string
	buildSample  bool
	buildSingle  bool
	buildWatch   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the book in one or more formats",
	Example: `  bookpress build --format pdf
  bookpress build -f epub -f html --sample
  bookpress build -f html --single --watch`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringSliceVarP(&buildFormats, "format", "f", []string{"pdf"},
		fmt.Sprintf("output formats %v", book.Formats))
	buildCmd.Flags().BoolVar(&buildSample, "sample", false, "only include sections marked sample")
	buildCmd.Flags().BoolVar(&buildSingle, "single", false, "html: write one page instead of one per chapter")
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "rebuild when sources change")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	project, err := book.Open(cfg.Project, log)
	if err != nil {
		return err
	}
	builder := pipeline.NewBuilder(project, cfg, nil, log)

	var builds []pipeline.Options
	for _, format := range buildFormats {
		builds = append(builds, pipeline.Options{Format: format, Sample: buildSample, Single: buildSingle})
	}

	if err := builder.CheckTools(buildFormats); err != nil {
		return err
	}

	ctx := cmd.Context()
	for _, opts := range builds {
		job, err := builder.Build(ctx, opts)
		if err != nil {
			return err
		}
		for _, out := range job.Snapshot().Outputs {
			log.Debug("output", "file", out)
		}
	}
	if !buildWatch {
		return nil
	}

	if v.ConfigFileUsed() != "" {
		config.Watch(v, func(c config.Config) {
			log.Info("config reloaded", "file", v.ConfigFileUsed())
			builder.SetConfig(c)
		})
	}
	w := pipeline.NewWatcher(builder, builds, cfg.WatchDelay, log)
	if err := w.Start(ctx); err != nil {
		return err
	}
	log.Info("watching for changes", "project", project.Root, "delay", cfg.WatchDelay)
	<-ctx.Done()
	log.Info("shutting down...")
	w.Stop()
	return nil
}
