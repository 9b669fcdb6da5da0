package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rostrum/internal/ipc"
	"rostrum/internal/registry"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("search query is empty")
			}
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var hits []ipc.SearchHit
				if client != nil {
					resp, err := client.TranscriptSearch(query, limit)
					if err != nil {
						return err
					}
					hits = resp.Hits
				} else {
					results, err := store.SearchTranscripts(cmd.Context(), query, limit)
					if err != nil {
						return err
					}
					for _, hit := range results {
						recorded := ""
						if !hit.RecordedAt.IsZero() {
							recorded = hit.RecordedAt.UTC().Format(time.RFC3339)
						}
						hits = append(hits, ipc.SearchHit{
							TranscriptID: hit.TranscriptID,
							VideoID:      hit.VideoID,
							Title:        hit.Title,
							Committee:    hit.Committee,
							RecordedAt:   recorded,
							Provider:     hit.Provider,
							Snippet:      hit.Snippet,
						})
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, hits)
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "No transcripts matched")
					return nil
				}
				for i, hit := range hits {
					if i > 0 {
						fmt.Fprintln(out)
					}
					header := hit.Title
					if hit.Committee != "" {
						header = fmt.Sprintf("%s (%s)", header, hit.Committee)
					}
					fmt.Fprintln(out, header)
					fmt.Fprintf(out, "  Video:      %s\n", hit.VideoID)
					fmt.Fprintf(out, "  Transcript: %s\n", hit.TranscriptID)
					if hit.RecordedAt != "" {
						fmt.Fprintf(out, "  Recorded:   %s\n", formatDisplayTime(hit.RecordedAt))
					}
					if snippet := strings.TrimSpace(hit.Snippet); snippet != "" {
						fmt.Fprintf(out, "  ...%s...\n", snippet)
					}
				}
				fmt.Fprintf(out, "\n%d matching transcripts\n", len(hits))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of matches to return")
	return cmd
}
