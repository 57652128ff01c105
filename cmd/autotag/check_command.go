package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hejijunhao/autotag/internal/audio"
	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/engine/analyzer"
	"github.com/hejijunhao/autotag/internal/engine/metadata"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without running any model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows, problems := checkPipelines(afero.NewOsFs(), cfg.Pipelines)
			headers := []string{"Pipeline", "Files", "Classes", "Status"}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
			if problems > 0 {
				return fmt.Errorf("%d pipeline(s) would be excluded", problems)
			}
			return nil
		},
	}
}

// checkPipelines verifies what a run would prepare for each pipeline: filter
// parameters, class metadata and the data folder.
func checkPipelines(fsys afero.Fs, pipelines []config.Pipeline) ([][]string, int) {
	loader := metadata.NewLoader(fsys)
	rows := make([][]string, 0, len(pipelines))
	problems := 0
	for _, p := range pipelines {
		files, classes := "-", "-"
		status := "ok"

		if names, err := audio.Discover(fsys, p.DataFolder); err != nil {
			status = err.Error()
		} else {
			files = strconv.Itoa(len(names))
		}
		if c, err := loader.LoadClasses(p.MetadataPath); err != nil {
			status = err.Error()
		} else {
			classes = strconv.Itoa(len(c))
		}
		if _, err := analyzer.New(p.Threshold, p.MinFrequency, p.MinScore, p.MaxLabels); err != nil {
			status = err.Error()
		}
		if status != "ok" {
			problems++
		}
		rows = append(rows, []string{p.Name, files, classes, status})
	}
	return rows, problems
}
