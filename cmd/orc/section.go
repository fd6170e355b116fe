package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var sectionCmd = &cobra.Command{
	Use:     "section",
	GroupID: "work",
	Short:   "Manage ordered narrative sections on any entity",
}

var sectionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a section to an entity",
	Run: func(cmd *cobra.Command, args []string) {
		entity, entityID := entityFlags(cmd)
		title, _ := cmd.Flags().GetString("title")
		usage, _ := cmd.Flags().GetString("usage")
		content, _ := cmd.Flags().GetString("content")
		format, _ := cmd.Flags().GetString("format")
		tag, _ := cmd.Flags().GetString("tag")

		var ordinal *int
		if cmd.Flags().Changed("ordinal") {
			v, _ := cmd.Flags().GetInt("ordinal")
			ordinal = &v
		}

		section, err := getStore().AddSection(getRootContext(), types.NewSection{
			EntityType: entity,
			EntityID:   entityID,
			Title:      title,
			Usage:      usage,
			Content:    content,
			Format:     types.ContentFormat(format),
			Ordinal:    ordinal,
			Tag:        tag,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(section)
			return
		}
		success("Added section: %s", section.ID)
		fmt.Printf("  Title:   %s\n", section.Title)
		fmt.Printf("  Owner:   %s %s\n", section.EntityType, section.EntityID)
		fmt.Printf("  Ordinal: %d\n", section.Ordinal)
	},
}

var sectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an entity's sections in ordinal order",
	Run: func(cmd *cobra.Command, args []string) {
		entity, entityID := entityFlags(cmd)

		sections, err := getStore().ListSections(getRootContext(), entity, entityID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(sections)
			return
		}
		if len(sections) == 0 {
			fmt.Println("No sections found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ORDINAL\tID\tTITLE\tFORMAT\tTAG\tVERSION")
		for _, s := range sections {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
				s.Ordinal, s.ID, truncate(s.Title, 40), s.Format, orDash(s.Tag), s.Version)
		}
		w.Flush()
	},
}

var sectionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one section including its content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		section, err := getStore().GetSection(getRootContext(), args[0])
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(section)
			return
		}
		fmt.Printf("%s  %s\n", section.ID, section.Title)
		fmt.Printf("  Owner:   %s %s\n", section.EntityType, section.EntityID)
		fmt.Printf("  Ordinal: %d\n", section.Ordinal)
		fmt.Printf("  Format:  %s\n", section.Format)
		if section.Usage != "" {
			fmt.Printf("  Usage:   %s\n", section.Usage)
		}
		if section.Tag != "" {
			fmt.Printf("  Tag:     %s\n", section.Tag)
		}
		fmt.Printf("  Version: %d\n", section.Version)
		if section.Content != "" {
			fmt.Printf("\n%s\n", section.Content)
		}
	},
}

var sectionUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update section metadata",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			updates["title"] = v
		}
		if cmd.Flags().Changed("usage") {
			v, _ := cmd.Flags().GetString("usage")
			updates["usage"] = v
		}
		if cmd.Flags().Changed("content") {
			v, _ := cmd.Flags().GetString("content")
			updates["content"] = v
		}
		if cmd.Flags().Changed("format") {
			v, _ := cmd.Flags().GetString("format")
			updates["content_format"] = v
		}
		if cmd.Flags().Changed("tag") {
			v, _ := cmd.Flags().GetString("tag")
			updates["tag"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		section, err := getStore().UpdateSection(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(section)
			return
		}
		success("Updated section: %s (version %d)", section.ID, section.Version)
	},
}

var sectionUpdateTextCmd = &cobra.Command{
	Use:   "update-text [id]",
	Short: "Replace a section's content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")
		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")

		if file != "" {
			if content != "" {
				FatalErrorRespectJSON("cannot pass both --content and --file")
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				FatalErrorRespectJSON("read %s: %v", file, err)
			}
			content = string(raw)
		}

		section, err := getStore().UpdateSectionText(getRootContext(), args[0], content, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(section)
			return
		}
		success("Updated section text: %s (version %d)", section.ID, section.Version)
	},
}

var sectionReorderCmd = &cobra.Command{
	Use:   "reorder [section-id...]",
	Short: "Reorder an entity's sections to the given ID sequence",
	Long: `Reorder an entity's sections. The positional IDs must be a permutation of
the owner's current sections; ordinals are reassigned densely from 0.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entity, entityID := entityFlags(cmd)

		sections, err := getStore().ReorderSections(getRootContext(), entity, entityID, args)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(sections)
			return
		}
		success("Reordered %d section(s)", len(sections))
		for _, s := range sections {
			fmt.Printf("  %d  %s  %s\n", s.Ordinal, s.ID, s.Title)
		}
	},
}

var sectionDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete one or more sections",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleted, err := getStore().BulkDeleteSections(getRootContext(), args)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]int{"deleted": deleted})
			return
		}
		success("Deleted %d section(s)", deleted)
	},
}

func init() {
	registerEntityFlags(sectionAddCmd, "Owning entity type: project, feature, task, or template")
	sectionAddCmd.Flags().String("title", "", "Section title (required)")
	sectionAddCmd.Flags().String("usage", "", "Guidance on what belongs in the section")
	sectionAddCmd.Flags().String("content", "", "Section body")
	sectionAddCmd.Flags().String("format", "", "PLAIN_TEXT, MARKDOWN, JSON, or CODE (default MARKDOWN)")
	sectionAddCmd.Flags().String("tag", "", "Machine-readable section tag")
	sectionAddCmd.Flags().Int("ordinal", 0, "Insert position (default: append)")
	_ = sectionAddCmd.MarkFlagRequired("title")

	registerEntityFlags(sectionListCmd, "Owning entity type: project, feature, task, or template")

	sectionUpdateCmd.Flags().String("title", "", "New title")
	sectionUpdateCmd.Flags().String("usage", "", "New usage note")
	sectionUpdateCmd.Flags().String("content", "", "New content")
	sectionUpdateCmd.Flags().String("format", "", "New content format")
	sectionUpdateCmd.Flags().String("tag", "", "New section tag")
	registerVersionFlag(sectionUpdateCmd)

	sectionUpdateTextCmd.Flags().String("content", "", "New content")
	sectionUpdateTextCmd.Flags().StringP("file", "f", "", "Read new content from a file")
	registerVersionFlag(sectionUpdateTextCmd)

	registerEntityFlags(sectionReorderCmd, "Owning entity type: project, feature, task, or template")

	sectionCmd.AddCommand(sectionAddCmd, sectionListCmd, sectionShowCmd, sectionUpdateCmd,
		sectionUpdateTextCmd, sectionReorderCmd, sectionDeleteCmd)
	rootCmd.AddCommand(sectionCmd)
}
