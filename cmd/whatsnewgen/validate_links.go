package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"whatsnewgen/internal/links"
	"whatsnewgen/internal/logging"
)

func newValidateLinksCommand() *cobra.Command {
	var outPath string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "validate-links <file>",
		Short: "Probe anchors in an HTML file and strip inaccessible ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg := loadApp()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			validator := links.NewValidator(cfg.Links,
				logging.New(cfg.Logging.Level).With("component", "links"))
			cleaned, results := validator.CleanHTML(cmd.Context(), string(data))

			if outPath == "" {
				outPath = strings.TrimSuffix(args[0], ".html") + "-validated.html"
			}
			if err := os.WriteFile(outPath, []byte(cleaned), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			if reportPath != "" {
				report, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				if err := os.WriteFile(reportPath, report, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}

			removed := 0
			for _, r := range results {
				if !r.Accessible {
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d links, removed %d\n", len(results), removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Cleaned output path (default <input>-validated.html)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON probe report")

	return cmd
}
