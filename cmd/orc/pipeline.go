package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:     "pipeline",
	GroupID: "setup",
	Short:   "Inspect the active status pipeline",
}

var pipelineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active pipelines and their lock state",
	Run: func(cmd *cobra.Command, args []string) {
		data := app.Config.Data()
		_, locked, err := getStore().PipelineLock(getRootContext())
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"pipeline": data, "locked": locked})
			return
		}
		source := "config file (locks on first workflow write)"
		if locked {
			source = "locked in database"
		}
		fmt.Printf("Pipeline configuration %s (%s)\n", data.Version, source)
		fmt.Printf("  Feature: %s\n", joinArrow(data.Pipelines.Feature))
		fmt.Printf("  Task:    %s\n", joinArrow(data.Pipelines.Task))
		fmt.Println("  Exit:    WILL_NOT_IMPLEMENT (always available, terminal)")
	},
}

// joinArrow renders a pipeline's states as an ordered chain.
func joinArrow(states []string) string {
	return strings.Join(states, " → ")
}

func init() {
	pipelineCmd.AddCommand(pipelineShowCmd)
	rootCmd.AddCommand(pipelineCmd)
}
