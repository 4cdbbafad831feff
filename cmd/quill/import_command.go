package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/render"
	"quill/internal/startup"
	"quill/internal/wordpress"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [export.xml]",
		Short: "Import a WordPress WXR export",
		Long: "Imports authors, tags, posts, and comments from a WordPress export. " +
			"Safe to run repeatedly: records are matched by their WordPress IDs.",
		Args: cobra.MaximumNArgs(1),
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

			path := cfg.Import.ExportPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no export path given and none configured")
			}

			admin, _, err := startup.EnsureAdmin(cmd.Context(), st, cfg)
			if err != nil {
				return err
			}

			importer := wordpress.NewImporter(st, render.New(), logger)
			stats, err := importer.ImportFile(cmd.Context(), path, admin)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Import", "Count"},
				[][]string{
					{"Tags created", fmt.Sprintf("%d", stats.TagsCreated)},
					{"Posts created", fmt.Sprintf("%d", stats.PostsCreated)},
					{"Posts updated", fmt.Sprintf("%d", stats.PostsUpdated)},
					{"Comments created", fmt.Sprintf("%d", stats.CommentsCreated)},
				},
				[]columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
