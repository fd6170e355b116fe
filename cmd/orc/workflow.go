package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/workflow"
)

var advanceCmd = &cobra.Command{
	Use:     "advance [feature|task] [id]",
	GroupID: "flow",
	Short:   "Move an entity to the next pipeline state",
	Long: `Move an entity one step forward in the active pipeline.

Blocked entities refuse to advance. Advancing a task to ACTIVE auto-activates
its NEW parent feature; closing the last open task rolls the parent feature up
to CLOSED. Reaching CLOSED releases dependents blocked on the entity.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entity := parseWorkflowEntity(args[0])
		version, _ := cmd.Flags().GetInt("version")

		result, err := getEngine().Advance(getRootContext(), entity, args[1], version)
		if err != nil {
			fatal(err)
		}
		printWorkflowResult(entity, args[1], result)
	},
}

var revertCmd = &cobra.Command{
	Use:     "revert [feature|task] [id]",
	GroupID: "flow",
	Short:   "Move an entity to the previous pipeline state",
	Long: `Move an entity one step backward in the active pipeline.

Reverting ignores blockers and never cascades. The first pipeline state has
nothing before it and refuses to revert.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entity := parseWorkflowEntity(args[0])
		version, _ := cmd.Flags().GetInt("version")

		result, err := getEngine().Revert(getRootContext(), entity, args[1], version)
		if err != nil {
			fatal(err)
		}
		printWorkflowResult(entity, args[1], result)
	},
}

var terminateCmd = &cobra.Command{
	Use:     "terminate [feature|task] [id]",
	GroupID: "flow",
	Short:   "Abandon an entity (WILL_NOT_IMPLEMENT)",
	Long: `Mark an entity WILL_NOT_IMPLEMENT from any non-terminal state, bypassing
blockers. Dependents blocked on the entity stay blocked and are listed in the
result. Terminating the last open task cascades to the parent feature.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entity := parseWorkflowEntity(args[0])
		version, _ := cmd.Flags().GetInt("version")

		result, err := getEngine().Terminate(getRootContext(), entity, args[1], version)
		if err != nil {
			fatal(err)
		}
		printWorkflowResult(entity, args[1], result)
	},
}

var blockCmd = &cobra.Command{
	Use:     "block [feature|task] [id]",
	GroupID: "flow",
	Short:   "Block an entity on peers or on a NO_OP reason",
	Long: `Add blockers to an entity. Blockers are peer feature/task IDs, or the
sentinel NO_OP paired with --reason for free-form blocks. Cycles, self-blocks,
and terminal blockers are refused. Re-adding an existing blocker is a no-op
and does not bump the version.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entity := parseWorkflowEntity(args[0])
		version, _ := cmd.Flags().GetInt("version")
		blockers, _ := cmd.Flags().GetStringSlice("on")
		reason, _ := cmd.Flags().GetString("reason")

		result, err := getEngine().Block(getRootContext(), entity, args[1], blockers, reason, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		success("Blocked %s %s on %s", strings.ToLower(string(entity)), args[1], strings.Join(blockers, ", "))
		printBlockerState(result)
	},
}

var unblockCmd = &cobra.Command{
	Use:     "unblock [feature|task] [id]",
	GroupID: "flow",
	Short:   "Remove blockers from an entity",
	Long: `Remove blockers from an entity. Absent blockers are ignored; the blocked
reason is cleared once NO_OP is gone. Removing nothing is a no-op and does
not bump the version.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entity := parseWorkflowEntity(args[0])
		version, _ := cmd.Flags().GetInt("version")
		blockers, _ := cmd.Flags().GetStringSlice("on")

		result, err := getEngine().Unblock(getRootContext(), entity, args[1], blockers, version)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		success("Unblocked %s %s from %s", strings.ToLower(string(entity)), args[1], strings.Join(blockers, ", "))
		printBlockerState(result)
	},
}

// printWorkflowResult renders a transition outcome with any cascade effects.
func printWorkflowResult(entity types.EntityType, id string, result *workflow.Result) {
	if jsonOutput {
		outputJSON(result)
		return
	}
	success("%s %s: %s → %s", strings.ToLower(string(entity)), id, result.Transition.From, result.Transition.To)
	if result.FeatureTransition != "" {
		fmt.Printf("  %s\n", result.FeatureTransition)
	}
	if len(result.UnblockedEntities) > 0 {
		fmt.Printf("  Unblocked: %s\n", strings.Join(result.UnblockedEntities, ", "))
	}
	if len(result.AffectedDependents) > 0 {
		fmt.Printf("  Dependents left blocked: %s\n", strings.Join(result.AffectedDependents, ", "))
	}
}

// printBlockerState renders the post-mutation blocker list and version.
func printBlockerState(result *workflow.Result) {
	switch {
	case result.Feature != nil:
		fmt.Printf("  Blocked by: %s\n", joinOrDash(result.Feature.BlockedBy))
		if result.Feature.BlockedReason != "" {
			fmt.Printf("  Reason:     %s\n", result.Feature.BlockedReason)
		}
		fmt.Printf("  Version:    %d\n", result.Feature.Version)
	case result.Task != nil:
		fmt.Printf("  Blocked by: %s\n", joinOrDash(result.Task.Blockers()))
		if result.Task.BlockedReason != "" {
			fmt.Printf("  Reason:     %s\n", result.Task.BlockedReason)
		}
		fmt.Printf("  Version:    %d\n", result.Task.Version)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{advanceCmd, revertCmd, terminateCmd, blockCmd, unblockCmd} {
		registerVersionFlag(cmd)
	}
	blockCmd.Flags().StringSlice("on", nil, "Blocker IDs, or NO_OP for a reason-only block (comma-separated)")
	blockCmd.Flags().String("reason", "", "Free-form reason (required with NO_OP, rejected otherwise)")
	_ = blockCmd.MarkFlagRequired("on")
	unblockCmd.Flags().StringSlice("on", nil, "Blocker IDs to remove (comma-separated)")
	_ = unblockCmd.MarkFlagRequired("on")

	rootCmd.AddCommand(advanceCmd, revertCmd, terminateCmd, blockCmd, unblockCmd)
}
