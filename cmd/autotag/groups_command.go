package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/autotag/internal/engine/grouping"
)

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Show how pipelines share feature extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			groups := grouping.Build(cfg.Pipelines)
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No enabled pipelines.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGroups(groups))
			return nil
		},
	}
}

func renderGroups(groups grouping.Groups) string {
	headers := []string{"#", "Data folder", "Feature model", "Sample rate", "Pipelines"}
	rows := make([][]string, 0, len(groups))
	for i, g := range groups {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			g.Key.DataFolder,
			g.Key.EmbeddingModelPath,
			strconv.Itoa(g.Key.SampleRate),
			strings.Join(g.Names(), ", "),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft})
}
