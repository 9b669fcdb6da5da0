package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rostrum/internal/daemonctl"
	"rostrum/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.Running {
				fmt.Fprintln(stdout, renderStatusLine("Rostrum", statusOK, "Running", colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Rostrum", statusWarn, "Not running (run `rostrum daemon start`)", colorize))
			}
			if statusResp.LastError != "" {
				fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, statusResp.LastError, colorize))
			}
			if cfg != nil {
				if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
					fmt.Fprintln(stdout, renderStatusLine("Notifications", statusOK, "Configured", colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Notifications", statusWarn, "Not configured", colorize))
				}
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				if dep.Available {
					message := "Ready"
					if dep.Command != "" {
						message = fmt.Sprintf("Ready (command: %s)", dep.Command)
					}
					fmt.Fprintln(stdout, renderStatusLine(dep.Name, statusOK, message, colorize))
					continue
				}
				detail := strings.TrimSpace(dep.Detail)
				if detail == "" {
					detail = "not available"
				}
				kind := statusError
				if dep.Optional {
					kind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine(dep.Name, kind, detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Work Directories", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cfg) {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			if len(statusResp.StepHealth) > 0 {
				for _, line := range renderSectionHeader("Pipeline Steps", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, health := range statusResp.StepHealth {
					if health.Ready {
						fmt.Fprintln(stdout, renderStatusLine(health.Name, statusOK, "Ready", colorize))
					} else {
						fmt.Fprintln(stdout, renderStatusLine(health.Name, statusWarn, health.Detail, colorize))
					}
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildStageStatusRows(statusResp.StageStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Stage", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}
}
