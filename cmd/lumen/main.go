package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lumen/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen IR to WebAssembly compiler backend",
	Long:  `Lumen lowers typed IR artifacts into WebAssembly modules`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show phase timing information")

	cobra.OnInitialize(applyColorMode)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
