package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/graph"
)

var lookupCmd = &cobra.Command{
	Use:     "lookup",
	GroupID: "knowledge",
	Short:   "Find the atoms whose patterns match the given file paths",
	Long: `Match concrete file paths against a project's atom path patterns.

Each input path is tested against every atom's glob patterns (doublestar
syntax, ** crosses directories). The result groups matched paths per atom and
lists paths no atom covered.`,
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")
		paths, _ := cmd.Flags().GetStringSlice("paths")

		result, err := graph.FindAtomsByPaths(getRootContext(), getStore(), projectID, paths)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		if len(result.Matches) == 0 {
			fmt.Println("No atoms matched.")
		}
		for _, m := range result.Matches {
			fmt.Printf("%s\n", m.Atom.ID)
			for _, p := range m.MatchedPaths {
				fmt.Printf("  %s\n", p)
			}
		}
		if len(result.UnmatchedPaths) > 0 {
			fmt.Println("Unmatched:")
			for _, p := range result.UnmatchedPaths {
				fmt.Printf("  %s\n", p)
			}
		}
	},
}

func init() {
	lookupCmd.Flags().StringP("project", "p", "", "Project whose atoms to search (required)")
	lookupCmd.Flags().StringSlice("paths", nil, "Concrete file paths to match (comma-separated, required)")
	_ = lookupCmd.MarkFlagRequired("project")
	_ = lookupCmd.MarkFlagRequired("paths")

	rootCmd.AddCommand(lookupCmd)
}
