package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/services"
	"github.com/custodia-labs/faqbot/internal/normalisers"
)

func preprocessCmd(a *app) *cobra.Command {
	var src, dst string

	preprocess := &cobra.Command{
		Use:   "preprocess",
		Short: "Convert raw files into markdown documents ready for ingestion",
		Long: "Empties the destination directory, then converts every visible file in the\n" +
			"source directory to <name>.md. Files that cannot be converted are reported\n" +
			"and skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if src == "" {
				src = a.cfg.Paths.SourceDir
			}
			if dst == "" {
				dst = a.cfg.Paths.DataDir
			}

			svc := services.NewPreprocessService(normalisers.DefaultRegistry(), a.logger)
			report, err := svc.Convert(cmd.Context(), src, dst)
			if errors.Is(err, domain.ErrNoDocuments) {
				a.logger.Warn("nothing to preprocess", "src", src, "error", err)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d files into %s (%d skipped, %d failed)\n",
				report.Processed, dst, report.Skipped, len(report.Failed))
			for _, name := range report.Failed {
				fmt.Fprintf(out, "  failed: %s\n", name)
			}
			return nil
		},
	}
	preprocess.Flags().StringVar(&src, "src", "", "directory of raw files (default paths.source_dir)")
	preprocess.Flags().StringVar(&dst, "dst", "", "output directory, emptied first (default paths.data_dir)")
	return preprocess
}
