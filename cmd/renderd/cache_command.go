package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the frame cache",
	}
	cacheCmd.PersistentFlags().StringVar(&dir, "cache-dir", "", "Frame cache directory")

	cacheCmd.AddCommand(newCacheStatsCommand(ctx, &dir))
	cacheCmd.AddCommand(newCacheClearCommand(ctx, &dir))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext, dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show frame cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			fc, err := ctx.openCache(settings, *dir)
			if err != nil {
				return err
			}

			stats := fc.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", stats.Path)
			fmt.Fprintf(out, "Frames:  %d\n", stats.Entries)
			fmt.Fprintf(out, "Size:    %s / %s\n", humanBytes(stats.SizeBytes), humanBytes(stats.MaxBytes))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext, dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			fc, err := ctx.openCache(settings, *dir)
			if err != nil {
				return err
			}

			removed := fc.Stats().Entries
			if err := fc.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d frames\n", removed)
			return nil
		},
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
