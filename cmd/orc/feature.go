package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var featureCmd = &cobra.Command{
	Use:     "feature",
	GroupID: "work",
	Short:   "Manage features (units of work under a project)",
}

var featureCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new feature in the pipeline's first state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")
		summary, _ := cmd.Flags().GetString("summary")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		feature, err := getStore().CreateFeature(getRootContext(), types.NewFeature{
			ProjectID:   projectID,
			Name:        args[0],
			Summary:     summary,
			Description: description,
			Priority:    types.Priority(priority),
			Tags:        tags,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(feature)
			return
		}
		success("Created feature: %s", feature.ID)
		fmt.Printf("  Name:     %s\n", feature.Name)
		fmt.Printf("  Project:  %s\n", feature.ProjectID)
		fmt.Printf("  Status:   %s\n", feature.Status)
		fmt.Printf("  Priority: %s\n", feature.Priority)
	},
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List features, optionally filtered",
	Run: func(cmd *cobra.Command, args []string) {
		query, _ := cmd.Flags().GetString("query")
		projectID, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		tags, _ := cmd.Flags().GetString("tags")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		features, err := getStore().SearchFeatures(getRootContext(), types.SearchOptions{
			Query:     query,
			ProjectID: projectID,
			Status:    status,
			Priority:  priority,
			Tags:      tags,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(features)
			return
		}
		if len(features) == 0 {
			fmt.Println("No features found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPRIORITY\tPROJECT\tBLOCKED BY\tVERSION")
		for _, f := range features {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				f.ID, truncate(f.Name, 40), f.Status, f.Priority, orDash(f.ProjectID), joinOrDash(f.BlockedBy), f.Version)
		}
		w.Flush()
	},
}

var featureShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one feature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		feature, err := getStore().GetFeature(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(feature)
			return
		}
		fmt.Printf("%s  %s\n", feature.ID, feature.Name)
		fmt.Printf("  Project:     %s\n", orDash(feature.ProjectID))
		fmt.Printf("  Status:      %s\n", feature.Status)
		fmt.Printf("  Priority:    %s\n", feature.Priority)
		fmt.Printf("  Summary:     %s\n", feature.Summary)
		if feature.Description != "" {
			fmt.Printf("  Description: %s\n", feature.Description)
		}
		if len(feature.BlockedBy) > 0 {
			fmt.Printf("  Blocked by:  %s\n", joinOrDash(feature.BlockedBy))
		}
		if feature.BlockedReason != "" {
			fmt.Printf("  Reason:      %s\n", feature.BlockedReason)
		}
		if len(feature.RelatedTo) > 0 {
			fmt.Printf("  Related to:  %s\n", joinOrDash(feature.RelatedTo))
		}
		if len(feature.Tags) > 0 {
			fmt.Printf("  Tags:        %s\n", joinOrDash(feature.Tags))
		}
		fmt.Printf("  Version:     %d\n", feature.Version)
		fmt.Printf("  Created:     %s\n", shortTime(feature.CreatedAt))
		fmt.Printf("  Modified:    %s\n", shortTime(feature.ModifiedAt))
	},
}

var featureUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update feature fields (status changes must satisfy the pipeline)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			updates["name"] = v
		}
		if cmd.Flags().Changed("summary") {
			v, _ := cmd.Flags().GetString("summary")
			updates["summary"] = v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			updates["description"] = v
		}
		if cmd.Flags().Changed("status") {
			v, _ := cmd.Flags().GetString("status")
			updates["status"] = v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetString("priority")
			updates["priority"] = v
		}
		if cmd.Flags().Changed("related") {
			v, _ := cmd.Flags().GetStringSlice("related")
			updates["related_to"] = v
		}
		if cmd.Flags().Changed("tags") {
			v, _ := cmd.Flags().GetStringSlice("tags")
			updates["tags"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		feature, err := getStore().UpdateFeature(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(feature)
			return
		}
		success("Updated feature: %s (version %d)", feature.ID, feature.Version)
	},
}

var featureDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a feature (refuses when tasks exist unless --cascade)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cascade, _ := cmd.Flags().GetBool("cascade")

		if err := getStore().DeleteFeature(getRootContext(), args[0], cascade); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted feature: %s", args[0])
	},
}

func init() {
	featureCreateCmd.Flags().StringP("project", "p", "", "Owning project ID (required)")
	featureCreateCmd.Flags().String("summary", "", "One-line summary (required)")
	featureCreateCmd.Flags().StringP("description", "d", "", "Longer description")
	featureCreateCmd.Flags().String("priority", "", "HIGH, MEDIUM, or LOW (default MEDIUM)")
	featureCreateCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated)")
	_ = featureCreateCmd.MarkFlagRequired("project")
	_ = featureCreateCmd.MarkFlagRequired("summary")

	featureListCmd.Flags().StringP("query", "q", "", "Substring match over name, summary, and description")
	featureListCmd.Flags().StringP("project", "p", "", "Filter by owning project")
	featureListCmd.Flags().String("status", "", "Status filter: comma-separated, prefix ! to exclude (e.g. ACTIVE,!CLOSED)")
	featureListCmd.Flags().String("priority", "", "Priority filter, same syntax as --status")
	featureListCmd.Flags().String("tags", "", "Match any of these tags (comma-separated)")
	featureListCmd.Flags().Int("limit", 0, "Maximum rows (0 = no limit)")
	featureListCmd.Flags().Int("offset", 0, "Rows to skip")

	featureUpdateCmd.Flags().String("name", "", "New name")
	featureUpdateCmd.Flags().String("summary", "", "New summary")
	featureUpdateCmd.Flags().StringP("description", "d", "", "New description")
	featureUpdateCmd.Flags().String("status", "", "New status (validated against the active pipeline)")
	featureUpdateCmd.Flags().String("priority", "", "New priority")
	featureUpdateCmd.Flags().StringSlice("related", nil, "Replacement related-entity list")
	featureUpdateCmd.Flags().StringSlice("tags", nil, "Replacement tag list")
	registerVersionFlag(featureUpdateCmd)

	featureDeleteCmd.Flags().Bool("cascade", false, "Delete contained tasks and their sections")

	featureCmd.AddCommand(featureCreateCmd, featureListCmd, featureShowCmd, featureUpdateCmd, featureDeleteCmd)
	rootCmd.AddCommand(featureCmd)
}
