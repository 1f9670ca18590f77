package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"whatsnewgen/internal/app"
	"whatsnewgen/internal/config"
	"whatsnewgen/internal/logging"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "whatsnewgen",
		Short:         "Release-note curation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newExtractPDFCommand())
	rootCmd.AddCommand(newValidateLinksCommand())

	return rootCmd
}

// loadApp reads .env, config, and builds the application.
func loadApp() (*app.Application, config.Config) {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	return app.New(cfg, logger), cfg
}

func newGenerateCommand() *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scan sources, merge curated lists, and write snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _ := loadApp()
			return application.Generate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Releases, "release", nil, "Release versions to include (repeatable)")
	cmd.Flags().StringVar(&opts.PDFPath, "pdf", "", "Path to a tabular release-input PDF")
	cmd.Flags().StringVar(&opts.HighlightsPath, "highlights", "", "Path to the highlighted-features markdown")
	cmd.Flags().StringVar(&opts.SelectionsPath, "selections", "", "Path to the selected-features markdown")
	cmd.Flags().StringVar(&opts.OutputDir, "out", "out", "Output directory for snapshots")
	cmd.Flags().BoolVar(&opts.SkipMedia, "skip-media", false, "Skip tracker enrichment and media downloads")

	return cmd
}

func newExtractPDFCommand() *cobra.Command {
	var releases []string
	var outPath string

	cmd := &cobra.Command{
		Use:   "extract-pdf <file>",
		Short: "Dump the feature grid of a release-input PDF as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _ := loadApp()
			md, err := application.ExtractPDF(cmd.Context(), args[0], releases)
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			return os.WriteFile(outPath, []byte(md), 0o644)
		},
	}

	cmd.Flags().StringSliceVar(&releases, "release", nil, "Release versions to include (default: first found)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write markdown to a file instead of stdout")

	return cmd
}
