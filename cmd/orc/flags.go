package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// parseEntityType maps a user-supplied entity name to its EntityType.
// Accepts any case; fatal on unknown names.
func parseEntityType(s string) types.EntityType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PROJECT":
		return types.EntityProject
	case "FEATURE":
		return types.EntityFeature
	case "TASK":
		return types.EntityTask
	case "TEMPLATE":
		return types.EntityTemplate
	}
	FatalErrorRespectJSON("unknown entity type %q (expected project, feature, task, or template)", s)
	return ""
}

// parseWorkflowEntity maps a user-supplied entity name to one of the two
// kinds that carry pipeline status.
func parseWorkflowEntity(s string) types.EntityType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FEATURE":
		return types.EntityFeature
	case "TASK":
		return types.EntityTask
	}
	FatalErrorRespectJSON("unknown entity type %q (expected feature or task)", s)
	return ""
}

// registerVersionFlag adds the required --version flag carried by every
// mutation command.
func registerVersionFlag(cmd *cobra.Command) {
	cmd.Flags().Int("version", 0, "Expected entity version (optimistic concurrency)")
	_ = cmd.MarkFlagRequired("version")
}

// registerEntityFlags adds the --entity/--id pair used by section, template,
// and changelog commands that address an owner rather than a row.
func registerEntityFlags(cmd *cobra.Command, entityUsage string) {
	cmd.Flags().String("entity", "", entityUsage)
	cmd.Flags().String("id", "", "Owning entity ID")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("id")
}

// entityFlags reads the --entity/--id pair.
func entityFlags(cmd *cobra.Command) (types.EntityType, string) {
	entity, _ := cmd.Flags().GetString("entity")
	id, _ := cmd.Flags().GetString("id")
	return parseEntityType(entity), id
}
