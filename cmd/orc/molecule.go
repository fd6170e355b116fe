package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var moleculeCmd = &cobra.Command{
	Use:     "molecule",
	GroupID: "knowledge",
	Short:   "Manage molecules (named groups of atoms)",
}

var moleculeCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a molecule in a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")
		knowledge, _ := cmd.Flags().GetString("knowledge")
		related, _ := cmd.Flags().GetStringSlice("related")
		taskID, _ := cmd.Flags().GetString("task")

		molecule, err := getStore().CreateMolecule(getRootContext(), types.NewMolecule{
			ProjectID:        projectID,
			Name:             args[0],
			Knowledge:        knowledge,
			RelatedMolecules: related,
			CreatedByTaskID:  taskID,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(molecule)
			return
		}
		success("Created molecule: %s", molecule.ID)
		fmt.Printf("  Name:    %s\n", molecule.Name)
		fmt.Printf("  Project: %s\n", molecule.ProjectID)
	},
}

var moleculeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's molecules in creation order",
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")

		molecules, err := getStore().ListMolecules(getRootContext(), projectID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(molecules)
			return
		}
		if len(molecules) == 0 {
			fmt.Println("No molecules found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tNAME\tRELATED\tVERSION\tMODIFIED")
		for _, m := range molecules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				m.ID, truncate(m.Name, 40), joinOrDash(m.RelatedMolecules), m.Version, shortTime(m.ModifiedAt))
		}
		w.Flush()
	},
}

var moleculeShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one molecule including its knowledge and member atoms",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := getRootContext()
		molecule, err := getStore().GetMolecule(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		atoms, err := getStore().ListAtoms(ctx, molecule.ProjectID)
		if err != nil {
			fatal(err)
		}
		var members []*types.Atom
		for _, a := range atoms {
			if a.MoleculeID == molecule.ID {
				members = append(members, a)
			}
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"molecule": molecule, "atoms": members})
			return
		}
		fmt.Printf("%s  %s\n", molecule.ID, molecule.Name)
		fmt.Printf("  Project: %s\n", molecule.ProjectID)
		if len(molecule.RelatedMolecules) > 0 {
			fmt.Printf("  Related: %s\n", joinOrDash(molecule.RelatedMolecules))
		}
		if molecule.CreatedByTaskID != "" {
			fmt.Printf("  Created by task:      %s\n", molecule.CreatedByTaskID)
		}
		if molecule.LastUpdatedByTaskID != "" {
			fmt.Printf("  Last updated by task: %s\n", molecule.LastUpdatedByTaskID)
		}
		fmt.Printf("  Version: %d\n", molecule.Version)
		if len(members) > 0 {
			fmt.Println("  Atoms:")
			for _, a := range members {
				fmt.Printf("    %s  %s\n", a.ID, truncate(joinOrDash(a.Paths), 60))
			}
		}
		if molecule.Knowledge != "" {
			fmt.Printf("\n%s\n", molecule.Knowledge)
		}
	},
}

var moleculeUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a molecule's name or related links",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			updates["name"] = v
		}
		if cmd.Flags().Changed("related") {
			v, _ := cmd.Flags().GetStringSlice("related")
			updates["related_molecules"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		molecule, err := getStore().UpdateMolecule(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(molecule)
			return
		}
		success("Updated molecule: %s (version %d)", molecule.ID, molecule.Version)
	},
}

var moleculeKnowledgeCmd = &cobra.Command{
	Use:   "knowledge [id]",
	Short: "Overwrite or append a molecule's knowledge",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")
		text, _ := cmd.Flags().GetString("text")
		taskID, _ := cmd.Flags().GetString("task")
		appendMode, _ := cmd.Flags().GetBool("append")

		mode := types.KnowledgeOverwrite
		if appendMode {
			mode = types.KnowledgeAppend
		}

		molecule, err := getStore().UpdateMoleculeKnowledge(getRootContext(), args[0], text, mode, taskID, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(molecule)
			return
		}
		success("Updated molecule knowledge: %s (version %d)", molecule.ID, molecule.Version)
	},
}

var moleculeDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a molecule (detaches atoms unless --cascade)",
	Long: `Delete a molecule and its changelog. Member atoms are detached and live
on; with --cascade they are deleted along with their own changelogs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cascade, _ := cmd.Flags().GetBool("cascade")

		if err := getStore().DeleteMolecule(getRootContext(), args[0], cascade); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted molecule: %s", args[0])
	},
}

func init() {
	moleculeCreateCmd.Flags().StringP("project", "p", "", "Owning project ID (required)")
	moleculeCreateCmd.Flags().String("knowledge", "", "Initial knowledge text")
	moleculeCreateCmd.Flags().StringSlice("related", nil, "Related molecule IDs")
	moleculeCreateCmd.Flags().StringP("task", "t", "", "Creating task ID for provenance")
	_ = moleculeCreateCmd.MarkFlagRequired("project")

	moleculeListCmd.Flags().StringP("project", "p", "", "Project to list (required)")
	_ = moleculeListCmd.MarkFlagRequired("project")

	moleculeUpdateCmd.Flags().String("name", "", "New name")
	moleculeUpdateCmd.Flags().StringSlice("related", nil, "Replacement related molecule list")
	registerVersionFlag(moleculeUpdateCmd)

	moleculeKnowledgeCmd.Flags().String("text", "", "Knowledge text (required)")
	moleculeKnowledgeCmd.Flags().StringP("task", "t", "", "Task recorded as the updater (required)")
	moleculeKnowledgeCmd.Flags().Bool("append", false, "Append instead of overwrite")
	_ = moleculeKnowledgeCmd.MarkFlagRequired("text")
	_ = moleculeKnowledgeCmd.MarkFlagRequired("task")
	registerVersionFlag(moleculeKnowledgeCmd)

	moleculeDeleteCmd.Flags().Bool("cascade", false, "Also delete member atoms")

	moleculeCmd.AddCommand(moleculeCreateCmd, moleculeListCmd, moleculeShowCmd,
		moleculeUpdateCmd, moleculeKnowledgeCmd, moleculeDeleteCmd)
	rootCmd.AddCommand(moleculeCmd)
}
