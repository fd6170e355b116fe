package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Create the storage home, config file, and database",
	Long: `Run the startup sequence explicitly: create the storage home, write the
annotated default config.yaml when missing, open the database (applying any
pending migrations), and resolve the active pipeline.

Every other command runs the same sequence implicitly; init exists to set up
a fresh home and show where everything lives.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := app
		data := a.Config.Data()

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"home":     a.Home,
				"config":   config.ConfigPath(a.Home),
				"db":       a.Store.Path(),
				"pipeline": data,
				"warnings": a.Warnings,
			})
			return
		}
		success("Initialized storage home: %s", a.Home)
		fmt.Printf("  Config:   %s\n", config.ConfigPath(a.Home))
		fmt.Printf("  Database: %s\n", a.Store.Path())
		fmt.Printf("  Feature pipeline: %s\n", joinArrow(data.Pipelines.Feature))
		fmt.Printf("  Task pipeline:    %s\n", joinArrow(data.Pipelines.Task))
		for _, w := range a.Warnings {
			WarnError("%s", w)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
