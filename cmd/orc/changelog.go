package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var changelogCmd = &cobra.Command{
	Use:     "changelog",
	GroupID: "knowledge",
	Short:   "Append-only provenance log under atoms and molecules",
}

var changelogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a changelog entry",
	Run: func(cmd *cobra.Command, args []string) {
		parent, _ := cmd.Flags().GetString("parent")
		parentID, _ := cmd.Flags().GetString("id")
		taskID, _ := cmd.Flags().GetString("task")
		summary, _ := cmd.Flags().GetString("summary")

		entry, err := getStore().AppendChangelog(getRootContext(), types.NewChangelog{
			ParentType: parseChangelogParent(parent),
			ParentID:   parentID,
			TaskID:     taskID,
			Summary:    summary,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(entry)
			return
		}
		success("Added changelog entry: %s", entry.ID)
		fmt.Printf("  Parent: %s %s\n", entry.ParentType, entry.ParentID)
		fmt.Printf("  Task:   %s\n", entry.TaskID)
	},
}

var changelogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a parent's changelog, oldest first",
	Run: func(cmd *cobra.Command, args []string) {
		parent, _ := cmd.Flags().GetString("parent")
		parentID, _ := cmd.Flags().GetString("id")

		entries, err := getStore().ListChangelog(getRootContext(), parseChangelogParent(parent), parentID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No changelog entries found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "TIME\tTASK\tSUMMARY")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", shortTime(e.CreatedAt), e.TaskID, truncate(e.Summary, 70))
		}
		w.Flush()
	},
}

// parseChangelogParent maps a user-supplied parent kind, fatal on unknowns.
func parseChangelogParent(s string) types.ChangelogParent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "atom":
		return types.ChangelogParentAtom
	case "molecule":
		return types.ChangelogParentMolecule
	}
	FatalErrorRespectJSON("unknown changelog parent %q (expected atom or molecule)", s)
	return ""
}

func init() {
	for _, cmd := range []*cobra.Command{changelogAddCmd, changelogListCmd} {
		cmd.Flags().String("parent", "", "Parent kind: atom or molecule (required)")
		cmd.Flags().String("id", "", "Parent ID (required)")
		_ = cmd.MarkFlagRequired("parent")
		_ = cmd.MarkFlagRequired("id")
	}
	changelogAddCmd.Flags().StringP("task", "t", "", "Task that performed the change (required)")
	changelogAddCmd.Flags().String("summary", "", "What changed (required)")
	_ = changelogAddCmd.MarkFlagRequired("task")
	_ = changelogAddCmd.MarkFlagRequired("summary")

	changelogCmd.AddCommand(changelogAddCmd, changelogListCmd)
	rootCmd.AddCommand(changelogCmd)
}
