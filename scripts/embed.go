// Package scripts embeds the Risor report scripts so the CLI binary is
// self-contained. The run command can still load scripts from disk during
// development via --scripts-dir.
package scripts

import "embed"

//go:embed report/*.risor
var FS embed.FS
