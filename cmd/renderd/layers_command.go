package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"imagery-timeline/internal/gibs"
)

func newLayersCommand(ctx *commandContext) *cobra.Command {
	var timeOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List layers advertised by the WMS endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			layers, err := ctx.newGIBSClient(settings, nil, nil).FetchCapabilities(reqCtx)
			if err != nil {
				return err
			}
			if timeOnly {
				layers = filterTimeLayers(layers)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(layers)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTIME\tTITLE")
			for _, l := range layers {
				timeCol := "-"
				if l.HasTime {
					timeCol = l.DefaultTime
					if timeCol == "" {
						timeCol = "yes"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Name, timeCol, l.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&timeOnly, "time", false, "Only list layers with a time dimension")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func filterTimeLayers(layers []gibs.LayerInfo) []gibs.LayerInfo {
	var out []gibs.LayerInfo
	for _, l := range layers {
		if l.HasTime {
			out = append(out, l)
		}
	}
	return out
}
