package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alioshr/task-orchestrator-sub000/internal/bootstrap"
	"github.com/alioshr/task-orchestrator-sub000/internal/config"
	"github.com/alioshr/task-orchestrator-sub000/internal/debug"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/workflow"
)

var (
	homeFlag    string
	jsonOutput  bool
	verboseFlag bool

	app *bootstrap.App

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cfg *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "orc",
	Short: "orc - Persistent orchestrator for hierarchical engineering work",
	Long: `Projects, features, and tasks move through a configurable status pipeline,
with a per-project knowledge graph of atoms and molecules keyed by file-path
glob patterns. All state lives in a single SQLite database under the storage
home.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("orc version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyViperOverrides(cmd)
		debug.SetVerbose(verboseFlag)

		if isNoBootCommand(cmd) {
			return
		}
		openApp()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
			app = nil
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Storage home (default: $"+config.EnvHome+" or ~/.task-orchestrator)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "work", Title: "Working With Projects, Features & Tasks:"})
	rootCmd.AddGroup(&cobra.Group{ID: "flow", Title: "Workflow:"})
	rootCmd.AddGroup(&cobra.Group{ID: "knowledge", Title: "Knowledge Graph:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Inspection:"})

	initConfig()
}

// initConfig builds the viper instance backing flag defaults. Environment
// variables use the ORC_ prefix (ORC_JSON, ORC_HOME); the storage home also
// honors the dedicated variable read by the config package.
func initConfig() {
	v := viper.New()
	v.SetEnvPrefix("ORC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("home", config.EnvHome, "ORC_HOME")
	cfg = v
}

// applyViperOverrides merges viper values (env vars) into flags that weren't
// explicitly set on the command line. Priority: flags > env > defaults.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = cfg.GetBool("json")
	}
	if !cmd.Flags().Changed("home") && homeFlag == "" {
		homeFlag = cfg.GetString("home")
	}
	if !cmd.Flags().Changed("verbose") && !verboseFlag {
		verboseFlag = cfg.GetBool("verbose")
	}
}

// setupSignalContext creates a context that cancels on SIGINT/SIGTERM so
// long-running statements abort cleanly.
func setupSignalContext() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCtx = ctx
	rootCancel = cancel
}

// noBootCommandsList names commands that never touch the database, checked
// before bootstrap so help and completions work without a storage home.
var noBootCommandsList = []string{
	"__complete",
	"__completeNoDesc",
	"completion",
	"help",
	"version",
}

// isNoBootCommand returns true when the command (or its parent) runs without
// a store, when the root command is invoked bare, or when --version is set.
func isNoBootCommand(cmd *cobra.Command) bool {
	if cmd.Parent() != nil && slices.Contains(noBootCommandsList, cmd.Parent().Name()) {
		return true
	}
	if slices.Contains(noBootCommandsList, cmd.Name()) {
		return true
	}
	if cmd.Parent() == nil && cmd.Name() == cmd.Use {
		return true
	}
	if v, _ := cmd.Flags().GetBool("version"); v {
		return true
	}
	return false
}

// openApp runs the bootstrap sequence and stashes the live handle. Fatal on
// any failure: every command past this point assumes a working store and an
// activated pipeline.
func openApp() {
	a, err := bootstrap.BootAt(getRootContext(), homeFlag)
	if err != nil {
		fatal(err)
	}
	app = a
}

func getRootContext() context.Context {
	if rootCtx != nil {
		return rootCtx
	}
	return context.Background()
}

func getStore() storage.Store {
	if app == nil || app.Store == nil {
		FatalErrorWithHint("storage is not initialized", "run 'orc init' or pass --home")
	}
	return app.Store
}

func getEngine() *workflow.Engine {
	return workflow.NewEngine(getStore())
}
