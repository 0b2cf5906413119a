package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/bookpress/internal/config"
	"github.com/dgallion1/bookpress/internal/version"
)

var (
	cfgFile string
	debug   bool
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "bookpress",
	Short: "Build books from a manuscript into PDF, EPUB, Kindle and HTML",
	Long: `Bookpress turns a manuscript of Markdown, HTML, DOCX and other sources
into HTMLBook markup and publishes it.

Formats:
  - pdf      rendered with prince
  - epub     chunked XHTML plus a package manifest
  - duokan   epub variant
  - mobi     converted from the packaged epub with kindlegen
  - html     one page per chapter, or a single page with --single
  - site     a single page for the web`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.New(cfgFile)
		if err != nil {
			return err
		}
		for _, name := range []string{"project", "debug", "log_format", "workers"} {
			if err := v.BindPFlag(name, cmd.Root().PersistentFlags().Lookup(flagName(name))); err != nil {
				return err
			}
		}
		debug = v.GetBool("debug")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./bookpress.yaml or ~/.config/bookpress/bookpress.yaml)",
	)
	rootCmd.PersistentFlags().StringP("project", "p", ".", "book project directory")
	rootCmd.PersistentFlags().Bool("debug", false, "verbose logging and diagnostic details")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().Int("workers", 4, "concurrent chunk serializers")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}

// flagName maps a config key to its command line flag.
func flagName(key string) string {
	if key == "log_format" {
		return "log-format"
	}
	return key
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
