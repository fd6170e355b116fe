package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "work",
	Short:   "Manage tasks (units of work under a feature)",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task in the pipeline's first state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		featureID, _ := cmd.Flags().GetString("feature")
		summary, _ := cmd.Flags().GetString("summary")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		complexity, _ := cmd.Flags().GetInt("complexity")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		task, err := getStore().CreateTask(getRootContext(), types.NewTask{
			FeatureID:   featureID,
			Title:       args[0],
			Summary:     summary,
			Description: description,
			Priority:    types.Priority(priority),
			Complexity:  complexity,
			Tags:        tags,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		success("Created task: %s", task.ID)
		fmt.Printf("  Title:      %s\n", task.Title)
		if task.FeatureID != "" {
			fmt.Printf("  Feature:    %s\n", task.FeatureID)
			fmt.Printf("  Project:    %s\n", task.ProjectID)
		}
		fmt.Printf("  Status:     %s\n", task.Status)
		fmt.Printf("  Priority:   %s\n", task.Priority)
		fmt.Printf("  Complexity: %d\n", task.Complexity)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	Run: func(cmd *cobra.Command, args []string) {
		query, _ := cmd.Flags().GetString("query")
		projectID, _ := cmd.Flags().GetString("project")
		featureID, _ := cmd.Flags().GetString("feature")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		tags, _ := cmd.Flags().GetString("tags")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		tasks, err := getStore().SearchTasks(getRootContext(), types.SearchOptions{
			Query:     query,
			ProjectID: projectID,
			FeatureID: featureID,
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
			outputJSON(tasks)
			return
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tCX\tFEATURE\tBLOCKED BY\tVERSION")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%d\n",
				t.ID, truncate(t.Title, 40), t.Status, t.Priority, t.Complexity,
				orDash(t.FeatureID), joinOrDash(t.Blockers()), t.Version)
		}
		w.Flush()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		task, err := getStore().GetTask(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		fmt.Printf("%s  %s\n", task.ID, task.Title)
		fmt.Printf("  Feature:     %s\n", orDash(task.FeatureID))
		fmt.Printf("  Project:     %s\n", orDash(task.ProjectID))
		fmt.Printf("  Status:      %s\n", task.Status)
		fmt.Printf("  Priority:    %s\n", task.Priority)
		fmt.Printf("  Complexity:  %d\n", task.Complexity)
		fmt.Printf("  Summary:     %s\n", task.Summary)
		if task.Description != "" {
			fmt.Printf("  Description: %s\n", task.Description)
		}
		if blockers := task.Blockers(); len(blockers) > 0 {
			fmt.Printf("  Blocked by:  %s\n", joinOrDash(blockers))
		}
		if task.BlockedReason != "" {
			fmt.Printf("  Reason:      %s\n", task.BlockedReason)
		}
		if len(task.RelatedTo) > 0 {
			fmt.Printf("  Related to:  %s\n", joinOrDash(task.RelatedTo))
		}
		if len(task.Tags) > 0 {
			fmt.Printf("  Tags:        %s\n", joinOrDash(task.Tags))
		}
		fmt.Printf("  Version:     %d\n", task.Version)
		fmt.Printf("  Created:     %s\n", shortTime(task.CreatedAt))
		fmt.Printf("  Modified:    %s\n", shortTime(task.ModifiedAt))
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update task fields (status changes must satisfy the pipeline)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			updates["title"] = v
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
		if cmd.Flags().Changed("complexity") {
			v, _ := cmd.Flags().GetInt("complexity")
			updates["complexity"] = v
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

		task, err := getStore().UpdateTask(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(task)
			return
		}
		success("Updated task: %s (version %d)", task.ID, task.Version)
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a task and its sections",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := getStore().DeleteTask(getRootContext(), args[0]); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted task: %s", args[0])
	},
}

func init() {
	taskCreateCmd.Flags().StringP("feature", "f", "", "Owning feature ID (empty creates an orphan task)")
	taskCreateCmd.Flags().String("summary", "", "One-line summary (required)")
	taskCreateCmd.Flags().StringP("description", "d", "", "Longer description")
	taskCreateCmd.Flags().String("priority", "", "HIGH, MEDIUM, or LOW (default MEDIUM)")
	taskCreateCmd.Flags().IntP("complexity", "c", 1, "Complexity estimate 1-10")
	taskCreateCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated)")
	_ = taskCreateCmd.MarkFlagRequired("summary")

	taskListCmd.Flags().StringP("query", "q", "", "Substring match over title, summary, and description")
	taskListCmd.Flags().StringP("project", "p", "", "Filter by owning project")
	taskListCmd.Flags().StringP("feature", "f", "", "Filter by owning feature")
	taskListCmd.Flags().String("status", "", "Status filter: comma-separated, prefix ! to exclude (e.g. ACTIVE,!CLOSED)")
	taskListCmd.Flags().String("priority", "", "Priority filter, same syntax as --status")
	taskListCmd.Flags().String("tags", "", "Match any of these tags (comma-separated)")
	taskListCmd.Flags().Int("limit", 0, "Maximum rows (0 = no limit)")
	taskListCmd.Flags().Int("offset", 0, "Rows to skip")

	taskUpdateCmd.Flags().String("title", "", "New title")
	taskUpdateCmd.Flags().String("summary", "", "New summary")
	taskUpdateCmd.Flags().StringP("description", "d", "", "New description")
	taskUpdateCmd.Flags().String("status", "", "New status (validated against the active pipeline)")
	taskUpdateCmd.Flags().String("priority", "", "New priority")
	taskUpdateCmd.Flags().IntP("complexity", "c", 0, "New complexity 1-10")
	taskUpdateCmd.Flags().StringSlice("related", nil, "Replacement related-entity list")
	taskUpdateCmd.Flags().StringSlice("tags", nil, "Replacement tag list")
	registerVersionFlag(taskUpdateCmd)

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskUpdateCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
