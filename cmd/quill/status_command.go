package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quill/internal/store"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show content and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cmdCtx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()

			total, err := st.CountPosts(ctx)
			if err != nil {
				return fmt.Errorf("count posts: %w", err)
			}
			published, err := st.CountPublished(ctx)
			if err != nil {
				return fmt.Errorf("count published posts: %w", err)
			}
			tags, err := st.TagsWithPublishedCounts(ctx, 0)
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			images, err := st.ListImages(ctx)
			if err != nil {
				return fmt.Errorf("list images: %w", err)
			}

			contentRows := [][]string{
				{"Posts", strconv.Itoa(total)},
				{"Published", strconv.Itoa(published)},
				{"Tags", strconv.Itoa(len(tags))},
				{"Images", strconv.Itoa(len(images))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Content", "Count"},
				contentRows,
				[]columnAlignment{alignLeft, alignRight},
			))

			stats, err := st.JobStats(ctx)
			if err != nil {
				return fmt.Errorf("job stats: %w", err)
			}
			jobRows := make([][]string, 0, 4)
			for _, status := range []store.JobStatus{store.JobPending, store.JobRunning, store.JobCompleted, store.JobFailed} {
				jobRows = append(jobRows, []string{string(status), strconv.Itoa(stats[status])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Jobs", "Count"},
				jobRows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
