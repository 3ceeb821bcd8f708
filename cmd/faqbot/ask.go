package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/runtime"
)

func askCmd(a *app) *cobra.Command {
	var asJSON bool

	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the persisted index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("%w: question must not be empty", domain.ErrInvalidQuery)
			}
			ctx := cmd.Context()

			st, err := openStorage(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			state := runtime.NewState()
			defer state.Close()
			if err := a.initPipeline(ctx, state, st, nil); err != nil {
				return err
			}

			answer, err := state.Answer(ctx, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"answer":           answer.Text,
					"source_documents": answer.SourceDocuments(),
				})
			}

			fmt.Fprintln(out, answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, sc := range answer.Sources {
					fmt.Fprintf(out, "  [%s] score=%.3f\n", sc.Chunk.ID, sc.Score)
				}
			}
			return nil
		},
	}
	ask.Flags().BoolVar(&asJSON, "json", false, "print the answer as the API would return it")
	return ask
}
