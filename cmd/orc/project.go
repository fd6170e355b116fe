package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "work",
	Short:   "Manage projects (top-level boards)",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summary, _ := cmd.Flags().GetString("summary")
		description, _ := cmd.Flags().GetString("description")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		project, err := getStore().CreateProject(getRootContext(), types.NewProject{
			Name:        args[0],
			Summary:     summary,
			Description: description,
			Tags:        tags,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(project)
			return
		}
		success("Created project: %s", project.ID)
		fmt.Printf("  Name:    %s\n", project.Name)
		fmt.Printf("  Summary: %s\n", project.Summary)
		if len(project.Tags) > 0 {
			fmt.Printf("  Tags:    %s\n", joinOrDash(project.Tags))
		}
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, optionally filtered",
	Run: func(cmd *cobra.Command, args []string) {
		query, _ := cmd.Flags().GetString("query")
		tags, _ := cmd.Flags().GetString("tags")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		projects, err := getStore().SearchProjects(getRootContext(), types.SearchOptions{
			Query:  query,
			Tags:   tags,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(projects)
			return
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tNAME\tSUMMARY\tTAGS\tVERSION\tMODIFIED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				p.ID, p.Name, truncate(p.Summary, 40), joinOrDash(p.Tags), p.Version, shortTime(p.ModifiedAt))
		}
		w.Flush()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		project, err := getStore().GetProject(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(project)
			return
		}
		fmt.Printf("%s  %s\n", project.ID, project.Name)
		fmt.Printf("  Summary:     %s\n", project.Summary)
		if project.Description != "" {
			fmt.Printf("  Description: %s\n", project.Description)
		}
		if len(project.Tags) > 0 {
			fmt.Printf("  Tags:        %s\n", joinOrDash(project.Tags))
		}
		fmt.Printf("  Version:     %d\n", project.Version)
		fmt.Printf("  Created:     %s\n", shortTime(project.CreatedAt))
		fmt.Printf("  Modified:    %s\n", shortTime(project.ModifiedAt))
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update project fields",
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
		if cmd.Flags().Changed("tags") {
			v, _ := cmd.Flags().GetStringSlice("tags")
			updates["tags"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		project, err := getStore().UpdateProject(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(project)
			return
		}
		success("Updated project: %s (version %d)", project.ID, project.Version)
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a project (refuses when features exist unless --cascade)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cascade, _ := cmd.Flags().GetBool("cascade")

		if err := getStore().DeleteProject(getRootContext(), args[0], cascade); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted project: %s", args[0])
	},
}

func init() {
	projectCreateCmd.Flags().String("summary", "", "One-line summary (required)")
	projectCreateCmd.Flags().StringP("description", "d", "", "Longer description")
	projectCreateCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated, lowercased on write)")
	_ = projectCreateCmd.MarkFlagRequired("summary")

	projectListCmd.Flags().StringP("query", "q", "", "Substring match over name, summary, and description")
	projectListCmd.Flags().String("tags", "", "Require all of these tags (comma-separated)")
	projectListCmd.Flags().Int("limit", 0, "Maximum rows (0 = no limit)")
	projectListCmd.Flags().Int("offset", 0, "Rows to skip")

	projectUpdateCmd.Flags().String("name", "", "New name")
	projectUpdateCmd.Flags().String("summary", "", "New summary")
	projectUpdateCmd.Flags().StringP("description", "d", "", "New description")
	projectUpdateCmd.Flags().StringSlice("tags", nil, "Replacement tag list")
	registerVersionFlag(projectUpdateCmd)

	projectDeleteCmd.Flags().Bool("cascade", false, "Delete contained features, tasks, and their sections")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectUpdateCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
