package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj) // Best effort: if JSON encoding fails, error is already printed to stderr
	os.Exit(1)
}

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
// Use this when you can provide an actionable suggestion to fix the error.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// FatalErrorRespectJSON writes a fatal error honoring --json: a structured
// object on stderr when JSON output is on, the plain Error: line otherwise.
func FatalErrorRespectJSON(format string, args ...interface{}) {
	if jsonOutput {
		outputJSONError(fmt.Errorf(format, args...), "")
	}
	FatalError(format, args...)
}

// WarnError writes a warning message to stderr and returns.
// Use this for optional operations that enhance functionality but aren't required.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// fatal reports a storage or engine failure in the active output mode and
// exits. Coded errors carry their code into the JSON envelope.
func fatal(err error) {
	if jsonOutput {
		outputJSONError(err, string(types.CodeOf(err)))
	}
	FatalError("%v", err)
}

// newTable returns a tabwriter for aligned column output on stdout.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
}

// success prints a green checkmark line to stdout.
func success(format string, args ...interface{}) {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s "+format+"\n", append([]interface{}{green("✓")}, args...)...)
}

// joinOrDash renders a string list for table cells, "-" when empty.
func joinOrDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ",")
}

// orDash renders a possibly empty cell value.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// shortTime renders timestamps for table cells in local time.
func shortTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens long cell text, keeping tables readable.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
