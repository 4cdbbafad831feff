package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"quill/internal/startup"
)

func newUpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run the startup sequence, then serve HTTP or drain jobs",
		Long: strings.TrimSpace(`
Runs the full deployment sequence: apply migrations, ensure the admin user,
import the WordPress export on first boot, repair corrupted upload URLs, and
extract featured images. Afterwards it launches the HTTP server, or the job
worker when worker mode is configured.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := startup.NewRunner(cfg, st, logger).Run(runCtx)
			if err != nil {
				return err
			}
			printStartupReport(cmd, report)

			if cfg.Worker.Mode {
				return runWorker(runCtx, cfg, st, logger)
			}
			return runServer(runCtx, cfg, st, logger)
		},
	}
}

func printStartupReport(cmd *cobra.Command, report *startup.Report) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"Admin created", yesNo(report.AdminCreated)},
		{"Export imported", yesNo(report.Imported)},
		{"URLs repaired", fmt.Sprintf("%d", report.URLsRepaired)},
		{"Featured assigned", fmt.Sprintf("%d", report.FeaturedAssigned)},
		{"Downloads pending", fmt.Sprintf("%d", report.RemotePending)},
	}
	fmt.Fprintln(out, renderTable([]string{"Step", "Result"}, rows,
		[]columnAlignment{alignLeft, alignRight}))

	if report.ImportStats != nil {
		fmt.Fprintln(out, renderTable(
			[]string{"Import", "Count"},
			[][]string{
				{"Tags created", fmt.Sprintf("%d", report.ImportStats.TagsCreated)},
				{"Posts created", fmt.Sprintf("%d", report.ImportStats.PostsCreated)},
				{"Posts updated", fmt.Sprintf("%d", report.ImportStats.PostsUpdated)},
				{"Comments created", fmt.Sprintf("%d", report.ImportStats.CommentsCreated)},
			},
			[]columnAlignment{alignLeft, alignRight}))
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
