package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quill/internal/featured"
	"quill/internal/imagefetch"
	"quill/internal/render"
	"quill/internal/urlrepair"
)

func newRepairURLsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-urls",
		Short: "Collapse corrupted WordPress upload URLs in post content",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Import.WordPressHost == "" {
				return fmt.Errorf("import.wordpress_host is not configured")
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

			repairer := urlrepair.New(cfg.Import.WordPressHost)
			renderer := render.New()
			posts, err := st.ListPosts(cmd.Context())
			if err != nil {
				return err
			}

			repaired := 0
			for _, post := range posts {
				collapsed := repairer.Collapse(post.ContentMD)
				if collapsed == post.ContentMD {
					continue
				}
				html, err := renderer.HTML(collapsed)
				if err != nil {
					return fmt.Errorf("render post %q: %w", post.Slug, err)
				}
				post.ContentMD = collapsed
				post.ContentHTML = html
				if err := st.UpdatePost(cmd.Context(), post); err != nil {
					return err
				}
				repaired++
			}
			logger.Info("url repair pass finished")
			fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d of %d posts\n", repaired, len(posts))
			return nil
		},
	}
}

func newDownloadImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download-images",
		Short: "Download remote WordPress images and rewrite content to local copies",
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

			fetcher := imagefetch.New(st, cfg.Paths.UploadsDir,
				time.Duration(cfg.Worker.DownloadTimeout)*time.Second, logger)
			migrator := imagefetch.NewMigrator(st, fetcher, render.New(),
				urlrepair.New(cfg.Import.WordPressHost), logger)

			updated, err := migrator.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Localized images in %d posts\n", updated)
			return nil
		},
	}
}

func newExtractImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-images",
		Short: "Assign featured images from the first image in each post",
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

			fetcher := imagefetch.New(st, cfg.Paths.UploadsDir,
				time.Duration(cfg.Worker.DownloadTimeout)*time.Second, logger)
			extractor := featured.NewExtractor(st, fetcher,
				urlrepair.New(cfg.Import.WordPressHost), logger)

			assigned, err := extractor.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned featured images to %d posts\n", assigned)
			return nil
		},
	}
}

func newPinImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pin-images slug=url [slug=url...]",
		Short: "Prepend a cover image to posts that have no image in their content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			pins := make(map[string]string, len(args))
			for _, arg := range args {
				slug, url, found := strings.Cut(arg, "=")
				if !found || slug == "" || url == "" {
					return fmt.Errorf("invalid pin %q, expected slug=url", arg)
				}
				pins[slug] = url
			}

			pinner := featured.NewPinner(st, render.New(), logger)
			result, err := pinner.Pin(cmd.Context(), pins)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pinned %d, skipped %d, not found %d\n",
				result.Updated, result.Skipped, len(result.NotFound))
			for _, slug := range result.NotFound {
				fmt.Fprintf(cmd.OutOrStdout(), "  missing post: %s\n", slug)
			}
			return nil
		},
	}
}
