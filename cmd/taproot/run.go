package main

import (
	"path/filepath"
	"strings"

	"github.com/jward/taproot/internal/script"
	"github.com/jward/taproot/scripts"
	"github.com/spf13/cobra"
)

var flagScriptsDir string

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a Risor report script against the index",
	Long: "Executes a Risor script with the dependency map exposed through builtins\n" +
		"(files, file, graph, dependents, cycles, packages, diagnostics). A bare name\n" +
		"runs an embedded report (summary, cycles, hotspots, unresolved); anything\n" +
		"with a path separator or extension is loaded from disk.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from a disk directory instead of the embedded set")
}

func runRun(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("run", err)
	}

	name := args[0]
	var rt *script.Runtime
	var path string
	switch {
	case flagScriptsDir != "":
		rt = script.NewRuntime(m, flagScriptsDir)
		path = name
		if isBareReportName(name) {
			path = script.ReportScriptPath(name)
		}
	case isBareReportName(name):
		rt = script.NewRuntime(m, "", script.WithRuntimeFS(scripts.FS))
		path = script.ReportScriptPath(name)
	default:
		// A disk script; imports resolve against its own directory.
		rt = script.NewRuntime(m, filepath.Dir(name))
		path = filepath.Base(name)
	}

	if err := rt.RunScript(cmd.Context(), path, nil); err != nil {
		return outputError("run", err)
	}
	return nil
}

// isBareReportName reports whether the argument names an embedded report
// rather than a script file on disk.
func isBareReportName(name string) bool {
	return !strings.ContainsAny(name, `/\`) && filepath.Ext(name) == ""
}
