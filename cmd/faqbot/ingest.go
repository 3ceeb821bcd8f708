package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/metrics"
	"github.com/custodia-labs/faqbot/internal/runtime"
)

func ingestCmd(a *app) *cobra.Command {
	var dir, location string

	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and persist the preprocessed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Paths.DataDir
			}
			if location == "" {
				location = a.cfg.Paths.IndexLocation
			}
			ctx := cmd.Context()

			st, err := openStorage(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			state := runtime.NewState()
			defer state.Close()

			embedder, err := a.embeddingService(ctx, state)
			if err != nil {
				return err
			}
			svc, err := a.newIngestionService(st, embedder, metrics.New())
			if err != nil {
				return err
			}

			report, err := svc.BuildIndex(ctx, dir, location)
			if errors.Is(err, domain.ErrNoDocuments) {
				a.logger.Warn("nothing to ingest, index left unchanged", "dir", dir, "error", err)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents (%d chunks, %d dims, %s) into %s in %.2fs\n",
				report.Documents, report.Chunks, report.Dimensions, report.Model, report.Location, report.Seconds)
			return nil
		},
	}
	ingest.Flags().StringVarP(&dir, "dir", "d", "", "directory of documents (default paths.data_dir)")
	ingest.Flags().StringVar(&location, "index", "", "index location (default paths.index_location)")
	return ingest
}
