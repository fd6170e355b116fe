package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	GroupID: "work",
	Short:   "Manage section templates and apply them to entities",
}

var templateCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new template",
	Long: `Create a template. Add sections to it with 'orc section add --entity
template', then stamp them onto entities with 'orc template apply'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		protected, _ := cmd.Flags().GetBool("protected")

		template, err := getStore().CreateTemplate(getRootContext(), types.NewTemplate{
			Name:        args[0],
			Description: description,
			IsProtected: protected,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(template)
			return
		}
		success("Created template: %s", template.ID)
		fmt.Printf("  Name: %s\n", template.Name)
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all templates",
	Run: func(cmd *cobra.Command, args []string) {
		templates, err := getStore().ListTemplates(getRootContext())
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(templates)
			return
		}
		if len(templates) == 0 {
			fmt.Println("No templates found.")
			return
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tNAME\tENABLED\tBUILT-IN\tPROTECTED\tVERSION")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\t%d\n",
				t.ID, t.Name, t.IsEnabled, t.IsBuiltIn, t.IsProtected, t.Version)
		}
		w.Flush()
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one template and its section blueprint",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := getRootContext()
		template, err := getStore().GetTemplate(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		sections, err := getStore().ListSections(ctx, types.EntityTemplate, template.ID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"template": template, "sections": sections})
			return
		}
		fmt.Printf("%s  %s\n", template.ID, template.Name)
		if template.Description != "" {
			fmt.Printf("  Description: %s\n", template.Description)
		}
		fmt.Printf("  Enabled:     %t\n", template.IsEnabled)
		fmt.Printf("  Built-in:    %t\n", template.IsBuiltIn)
		fmt.Printf("  Protected:   %t\n", template.IsProtected)
		fmt.Printf("  Version:     %d\n", template.Version)
		if len(sections) > 0 {
			fmt.Println("  Sections:")
			for _, s := range sections {
				fmt.Printf("    %d  %s (%s)\n", s.Ordinal, s.Title, s.Format)
			}
		}
	},
}

var templateUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update template fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, _ := cmd.Flags().GetInt("version")

		updates := map[string]interface{}{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			updates["name"] = v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			updates["description"] = v
		}
		if len(updates) == 0 {
			FatalErrorRespectJSON("nothing to update: pass at least one field flag")
		}

		template, err := getStore().UpdateTemplate(getRootContext(), args[0], updates, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(template)
			return
		}
		success("Updated template: %s (version %d)", template.ID, template.Version)
	},
}

var templateEnableCmd = &cobra.Command{
	Use:   "enable [id]",
	Short: "Enable a template for apply",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setTemplateEnabled(cmd, args[0], true) },
}

var templateDisableCmd = &cobra.Command{
	Use:   "disable [id]",
	Short: "Disable a template (apply refuses disabled templates)",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setTemplateEnabled(cmd, args[0], false) },
}

func setTemplateEnabled(cmd *cobra.Command, id string, enabled bool) {
	version, _ := cmd.Flags().GetInt("version")

	template, err := getStore().SetTemplateEnabled(getRootContext(), id, enabled, version)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		outputJSON(template)
		return
	}
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	success("%s template: %s (version %d)", verb, template.ID, template.Version)
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply [template-id]",
	Short: "Clone a template's sections onto an entity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entity, entityID := entityFlags(cmd)

		sections, err := getStore().ApplyTemplate(getRootContext(), args[0], entity, entityID)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(sections)
			return
		}
		success("Applied template %s: %d section(s) added", args[0], len(sections))
		for _, s := range sections {
			fmt.Printf("  %d  %s  %s\n", s.Ordinal, s.ID, s.Title)
		}
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a template and its blueprint sections",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := getStore().DeleteTemplate(getRootContext(), args[0]); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"deleted": args[0]})
			return
		}
		success("Deleted template: %s", args[0])
	},
}

func init() {
	templateCreateCmd.Flags().StringP("description", "d", "", "What the template is for")
	templateCreateCmd.Flags().Bool("protected", false, "Refuse deletion and section edits")

	templateUpdateCmd.Flags().String("name", "", "New name")
	templateUpdateCmd.Flags().StringP("description", "d", "", "New description")
	registerVersionFlag(templateUpdateCmd)

	registerVersionFlag(templateEnableCmd)
	registerVersionFlag(templateDisableCmd)

	registerEntityFlags(templateApplyCmd, "Target entity type: project, feature, or task")

	templateCmd.AddCommand(templateCreateCmd, templateListCmd, templateShowCmd, templateUpdateCmd,
		templateEnableCmd, templateDisableCmd, templateApplyCmd, templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
