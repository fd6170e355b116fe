package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var tagCmd = &cobra.Command{
	Use:     "tag",
	GroupID: "work",
	Short:   "Inspect and rename tags across all entities",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List distinct tags with usage counts",
	Run: func(cmd *cobra.Command, args []string) {
		var entity types.EntityType
		if v, _ := cmd.Flags().GetString("entity"); v != "" {
			entity = parseEntityType(v)
		}

		tags, err := getStore().ListTags(getRootContext(), entity)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(tags)
			return
		}
		if len(tags) == 0 {
			fmt.Println("No tags found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "TAG\tCOUNT")
		for _, t := range tags {
			fmt.Fprintf(w, "%s\t%d\n", t.Tag, t.Count)
		}
		w.Flush()
	},
}

var tagUsageCmd = &cobra.Command{
	Use:   "usage [tag]",
	Short: "List every entity carrying a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		refs, err := getStore().TagUsage(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(refs)
			return
		}
		if len(refs) == 0 {
			fmt.Printf("Tag %q is not in use.\n", types.NormalizeTag(args[0]))
			return
		}
		w := newTable()
		fmt.Fprintln(w, "TYPE\tID")
		for _, r := range refs {
			fmt.Fprintf(w, "%s\t%s\n", strings.ToLower(string(r.Type)), r.ID)
		}
		w.Flush()
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename [old] [new]",
	Short: "Rename a tag everywhere it appears",
	Long: `Rename a tag across all entities. Rows already carrying the new tag drop
the old one instead of duplicating (reported as merged). Use --dry-run to
preview the affected rows without writing.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		result, err := getStore().RenameTag(getRootContext(), args[0], args[1], dryRun)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		if result.DryRun {
			fmt.Printf("Would rename tag %q to %q on %d row(s):\n", result.Old, result.New, len(result.Affected))
			for _, r := range result.Affected {
				fmt.Printf("  %s\n", r.Sprint())
			}
			return
		}
		success("Renamed tag %q to %q: %d renamed, %d merged", result.Old, result.New, result.Renamed, result.Merged)
	},
}

func init() {
	tagListCmd.Flags().String("entity", "", "Limit to one owner kind: project, feature, task, or template")

	tagRenameCmd.Flags().Bool("dry-run", false, "Preview without writing")

	tagCmd.AddCommand(tagListCmd, tagUsageCmd, tagRenameCmd)
	rootCmd.AddCommand(tagCmd)
}
