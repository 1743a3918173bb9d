package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tMODULE\tDEPS\tPARSE\tHASH")
	for _, f := range files {
		parse := "ok"
		if !f.ParseOK {
			parse = "FAILED"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			f.Path, f.ModuleName, f.DependencyCount, parse, shortHash(f.ContentHash))
	}
	tw.Flush()
}

// formatDepsText formats a CLIDeps result as plain path lines.
func formatDepsText(w io.Writer, deps CLIDeps) {
	for _, dep := range deps.Dependencies {
		fmt.Fprintln(w, dep)
	}
}

// formatClosuresText formats closure results: one header per root, then the
// member files in sorted order with their hashes.
func formatClosuresText(w io.Writer, closures []CLIClosure) {
	for i, c := range closures {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %d file(s)\n", c.Root, c.FileCount)

		paths := make([]string, 0, len(c.Files))
		for path := range c.Files {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, path := range paths {
			fmt.Fprintf(tw, "  %s\t%s\n", path, shortHash(c.Files[path]))
		}
		tw.Flush()
	}
}

// formatPackageGraphText formats a CLIPackageGraph as two aligned tables.
func formatPackageGraphText(w io.Writer, g CLIPackageGraph) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tFILES")
	for _, p := range g.Packages {
		name := p.Name
		if name == "" {
			name = "(root)"
		}
		fmt.Fprintf(tw, "%s\t%d\n", name, p.FileCount)
	}
	tw.Flush()

	if len(g.Edges) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tTO\tIMPORTS")
		for _, e := range g.Edges {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", orRoot(e.From), orRoot(e.To), e.ImportCount)
		}
		tw.Flush()
	}
}

// formatCyclesText formats cycles as arrow walks, one per line.
func formatCyclesText(w io.Writer, cycles []CLICycle) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No import cycles.")
		return
	}
	for i, c := range cycles {
		fmt.Fprintf(w, "Cycle %d: %s\n", i+1, strings.Join(c.Modules, " -> "))
	}
}

// formatDiagnosticsText appends the build diagnostics after a result table.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	fmt.Fprintf(w, "\n%d diagnostic(s):\n", len(diags))
	for _, d := range diags {
		if d.Import != "" {
			fmt.Fprintf(w, "  %s: %s: %s\n", d.Path, d.Import, d.Detail)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", d.Path, d.Detail)
		}
	}
}

// shortHash abbreviates a content hash for table output; JSON keeps the full
// digest.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// orRoot renders the unnamed root package readably.
func orRoot(name string) string {
	if name == "" {
		return "(root)"
	}
	return name
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLIFile:
		formatFilesText(w, v)
	case CLIDeps:
		formatDepsText(w, v)
	case []CLIClosure:
		formatClosuresText(w, v)
	case CLIClosure:
		formatClosuresText(w, []CLIClosure{v})
	case CLIPackageGraph:
		formatPackageGraphText(w, v)
	case []CLICycle:
		formatCyclesText(w, v)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if len(result.Diagnostics) > 0 {
		formatDiagnosticsText(w, result.Diagnostics)
	}

	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
