package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"rostrum/internal/ipc"
	"rostrum/internal/registry"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-stage queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				stats := make(map[string]int)
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					stats = status.StageStats
				} else {
					stageStats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					for stage, count := range stageStats {
						stats[string(stage)] = count
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				rows := buildStageStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Stage", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStages []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registry videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var views []videoView
				if client != nil {
					resp, err := client.QueueList(listStages)
					if err != nil {
						return err
					}
					views = viewsFromSummaries(resp.Videos)
				} else {
					var stages []registry.Stage
					for _, raw := range listStages {
						if parsed, ok := registry.ParseStage(raw); ok {
							stages = append(stages, parsed)
						}
					}
					videos, err := store.List(cmd.Context(), stages...)
					if err != nil {
						return err
					}
					views = viewsFromVideos(videos)
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Source", "Stage", "Attempts", "Recorded"},
					buildQueueListRows(views),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStages, "stage", "s", nil, "Filter by pipeline stage (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var view videoView
				if client != nil {
					resp, err := client.QueueDescribe(id)
					if err != nil {
						return err
					}
					view = viewFromSummary(resp.Video)
				} else {
					video, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if video == nil {
						return fmt.Errorf("video %s not found", id)
					}
					view = viewFromVideo(video)
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, view)
				}
				printVideoDetail(cmd, view)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed videos (all failed videos when no ids given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				if trimmed := strings.TrimSpace(arg); trimmed != "" {
					ids = append(ids, trimmed)
				}
			}
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var updated int64
				var err error
				if client != nil {
					var resp *ipc.QueueRetryResponse
					resp, err = client.QueueRetry(ids)
					if err == nil {
						updated = resp.Updated
					}
				} else {
					updated, err = store.RetryFailed(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d videos\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check registry database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var resp *ipc.DatabaseHealthResponse
				if client != nil {
					var err error
					resp, err = client.DatabaseHealth()
					if err != nil {
						return err
					}
				} else {
					health, err := store.CheckHealth(cmd.Context())
					if err != nil && health.Error == "" {
						return err
					}
					resp = &ipc.DatabaseHealthResponse{
						DBPath:           health.DBPath,
						DatabaseExists:   health.DatabaseExists,
						DatabaseReadable: health.DatabaseReadable,
						SchemaVersion:    health.SchemaVersion,
						TableExists:      health.TableExists,
						ColumnsPresent:   health.ColumnsPresent,
						MissingColumns:   health.MissingColumns,
						IntegrityCheck:   health.IntegrityCheck,
						TotalVideos:      health.TotalVideos,
						Error:            health.Error,
					}
				}
				if resp == nil {
					return errors.New("missing database health response")
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", resp.SchemaVersion)
				fmt.Fprintf(out, "videos table present: %s\n", yesNo(resp.TableExists))
				if len(resp.ColumnsPresent) > 0 {
					cols := append([]string(nil), resp.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(resp.MissingColumns) > 0 {
					missing := append([]string(nil), resp.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total videos: %d\n", resp.TotalVideos)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}

func printVideoDetail(cmd *cobra.Command, view videoView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", view.ID)
	fmt.Fprintf(out, "Source:       %s\n", view.Source)
	fmt.Fprintf(out, "Title:        %s\n", view.Title)
	if view.Committee != "" {
		fmt.Fprintf(out, "Committee:    %s\n", view.Committee)
	}
	fmt.Fprintf(out, "Stage:        %s\n", formatStageLabel(view.Stage))
	fmt.Fprintf(out, "Attempts:     %d\n", view.AttemptCount)
	if view.RecordedAt != "" {
		fmt.Fprintf(out, "Recorded:     %s\n", formatDisplayTime(view.RecordedAt))
	}
	if view.PageURL != "" {
		fmt.Fprintf(out, "Page URL:     %s\n", view.PageURL)
	}
	if view.StreamURL != "" {
		fmt.Fprintf(out, "Stream URL:   %s\n", view.StreamURL)
	}
	if view.MediaPath != "" {
		fmt.Fprintf(out, "Media path:   %s\n", view.MediaPath)
	}
	if view.TranscriptID != "" {
		fmt.Fprintf(out, "Transcript:   %s\n", view.TranscriptID)
	}
	if view.LeaseOwner != "" {
		fmt.Fprintf(out, "Lease owner:  %s\n", view.LeaseOwner)
	}
	if view.FailedStage != "" {
		fmt.Fprintf(out, "Failed stage: %s\n", view.FailedStage)
	}
	if view.LastError != "" {
		fmt.Fprintf(out, "Last error:   %s\n", view.LastError)
	}
	fmt.Fprintf(out, "Created:      %s\n", formatDisplayTime(view.CreatedAt))
	fmt.Fprintf(out, "Updated:      %s\n", formatDisplayTime(view.UpdatedAt))
}
