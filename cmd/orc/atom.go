package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var atomCmd = &cobra.Command{
	Use:     "atom",
	GroupID: "knowledge",
	Short:   "Manage knowledge atoms keyed by path patterns",
}

var atomCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an atom in a project",
	Long: `Create a knowledge atom. Paths are relative glob patterns (doublestar
syntax, forward slashes); an atom carries up to 20 of them.`,
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")
		paths, _ := cmd.Flags().GetStringSlice("paths")
		knowledge, _ := cmd.Flags().GetString("knowledge")
		moleculeID, _ := cmd.Flags().GetString("molecule")
		related, _ := cmd.Flags().GetStringSlice("related")
		taskID, _ := cmd.Flags().GetString("task")

		atom, err := getStore().CreateAtom(getRootContext(), types.NewAtom{
			ProjectID:       projectID,
			MoleculeID:      moleculeID,
			Paths:           paths,
			Knowledge:       knowledge,
			RelatedAtoms:    related,
			CreatedByTaskID: taskID,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(atom)
			return
		}
		success("Created atom: %s", atom.ID)
		fmt.Printf("  Project: %s\n", atom.ProjectID)
		fmt.Printf("  Paths:   %s\n", joinOrDash(atom.Paths))
		if atom.MoleculeID != "" {
			fmt.Printf("  Molecule: %s\n", atom.MoleculeID)
		}
	},
}

var atomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's atoms in creation order",
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")

		atoms, err := getStore().ListAtoms(getRootContext(), projectID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(atoms)
			return
		}
		if len(atoms) == 0 {
			fmt.Println("No atoms found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tPATHS\tMOLECULE\tVERSION\tMODIFIED")
		for _, a := range atoms {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				a.ID, truncate(joinOrDash(a.Paths), 50), orDash(a.MoleculeID), a.Version, shortTime(a.ModifiedAt))
		}
		w.Flush()
	},
}

var atomShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one atom including its knowledge",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		atom, err := getStore().GetAtom(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(atom)
			return
		}
		fmt.Printf("%s\n", atom.ID)
		fmt.Printf("  Project:  %s\n", atom.ProjectID)
		fmt.Printf("  Molecule: %s\n", orDash(atom.MoleculeID))
		fmt.Printf("  Paths:\n")
		for _, p := range atom.Paths {
			fmt.Printf("    %s\n", p)
		}
		if len(atom.RelatedAtoms) > 0 {
			fmt.Printf("  Related:  %s\n", joinOrDash(atom.RelatedAtoms))
		}
		if atom.CreatedByTaskID != "" {
			fmt.Printf("  Created by task:      %s\n", atom.CreatedByTaskID)
		}
		if atom.LastUpdatedByTaskID != "" {
			fmt.Printf("  Last updated by task: %s\n", atom.LastUpdatedByTaskID)
		}
		fmt.Printf("  Version:  %d\n", atom.Version)
		if atom.Knowledge != "" {
			fmt.Printf("\n%s\n", atom.Knowledge)
		}
	},
}

var atomUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update an atom's paths, molecule, or related links",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("paths") {
			v, _ := cmd.Flags().GetStringSlice("paths")
			updates["paths"] = v
		}
		if cmd.Flags().Changed("molecule") {
			v, _ := cmd.Flags().GetString("molecule")
			updates["molecule_id"] = v
		}
		if cmd.Flags().Changed("related") {
			v, _ := cmd.Flags().GetStringSlice("related")
			updates["related_atoms"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		atom, err := getStore().UpdateAtom(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(atom)
			return
		}
		success("Updated atom: %s (version %d)", atom.ID, atom.Version)
	},
}

var atomKnowledgeCmd = &cobra.Command{
	Use:   "knowledge [id]",
	Short: "Overwrite or append an atom's knowledge",
	Long: `Write an atom's knowledge blob. The task recorded with --task becomes the
atom's last updater. Append mode keeps the existing text and adds the new
block behind a provenance separator.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")
		text, _ := cmd.Flags().GetString("text")
		taskID, _ := cmd.Flags().GetString("task")
		appendMode, _ := cmd.Flags().GetBool("append")

		mode := types.KnowledgeOverwrite
		if appendMode {
			mode = types.KnowledgeAppend
		}

		atom, err := getStore().UpdateAtomKnowledge(getRootContext(), args[0], text, mode, taskID, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(atom)
			return
		}
		success("Updated atom knowledge: %s (version %d)", atom.ID, atom.Version)
	},
}

var atomDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an atom, its changelog, and references to it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := getStore().DeleteAtom(getRootContext(), args[0]); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted atom: %s", args[0])
	},
}

func init() {
	atomCreateCmd.Flags().StringP("project", "p", "", "Owning project ID (required)")
	atomCreateCmd.Flags().StringSlice("paths", nil, "Path glob patterns (comma-separated, required)")
	atomCreateCmd.Flags().String("knowledge", "", "Initial knowledge text")
	atomCreateCmd.Flags().StringP("molecule", "m", "", "Molecule to join")
	atomCreateCmd.Flags().StringSlice("related", nil, "Related atom IDs")
	atomCreateCmd.Flags().StringP("task", "t", "", "Creating task ID for provenance")
	_ = atomCreateCmd.MarkFlagRequired("project")
	_ = atomCreateCmd.MarkFlagRequired("paths")

	atomListCmd.Flags().StringP("project", "p", "", "Project to list (required)")
	_ = atomListCmd.MarkFlagRequired("project")

	atomUpdateCmd.Flags().StringSlice("paths", nil, "Replacement path pattern list")
	atomUpdateCmd.Flags().StringP("molecule", "m", "", "New molecule (empty string detaches)")
	atomUpdateCmd.Flags().StringSlice("related", nil, "Replacement related atom list")
	registerVersionFlag(atomUpdateCmd)

	atomKnowledgeCmd.Flags().String("text", "", "Knowledge text (required)")
	atomKnowledgeCmd.Flags().StringP("task", "t", "", "Task recorded as the updater (required)")
	atomKnowledgeCmd.Flags().Bool("append", false, "Append instead of overwrite")
	_ = atomKnowledgeCmd.MarkFlagRequired("text")
	_ = atomKnowledgeCmd.MarkFlagRequired("task")
	registerVersionFlag(atomKnowledgeCmd)

	atomCmd.AddCommand(atomCreateCmd, atomListCmd, atomShowCmd, atomUpdateCmd, atomKnowledgeCmd, atomDeleteCmd)
	rootCmd.AddCommand(atomCmd)
}
