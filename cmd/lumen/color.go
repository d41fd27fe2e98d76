package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/xyproto/env/v2"
)

// applyColorMode resolves the --color flag against the environment.
// NO_COLOR always wins; LUMEN_COLOR supplies the default when the flag
// stays on auto.
func applyColorMode() {
	mode, _ := rootCmd.PersistentFlags().GetString("color")
	if mode == "auto" {
		mode = env.Str("LUMEN_COLOR", "auto")
	}
	if env.Has("NO_COLOR") {
		color.NoColor = true
		return
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
