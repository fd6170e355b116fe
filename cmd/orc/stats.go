package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "setup",
	Short:   "Show row counts and per-status breakdowns",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := getStore().Stats(getRootContext())
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}
		w := newTable()
		fmt.Fprintf(w, "Projects\t%d\n", stats.Projects)
		fmt.Fprintf(w, "Features\t%d\n", stats.Features)
		fmt.Fprintf(w, "Tasks\t%d\n", stats.Tasks)
		fmt.Fprintf(w, "Sections\t%d\n", stats.Sections)
		fmt.Fprintf(w, "Templates\t%d\n", stats.Templates)
		fmt.Fprintf(w, "Atoms\t%d\n", stats.Atoms)
		fmt.Fprintf(w, "Molecules\t%d\n", stats.Molecules)
		fmt.Fprintf(w, "Changelog\t%d\n", stats.Changelog)
		w.Flush()
		printStatusBlock("Feature status:", stats.FeatureStatus)
		printStatusBlock("Task status:", stats.TaskStatus)
	},
}

func printStatusBlock(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)

	fmt.Println()
	fmt.Println(title)
	w := newTable()
	for _, s := range states {
		fmt.Fprintf(w, "  %s\t%d\n", s, counts[s])
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
