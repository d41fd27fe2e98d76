package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lumen/internal/backend/wasm"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.wasm>",
	Short: "List the sections of a WebAssembly module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		infos, err := wasm.DecodeSections(data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d bytes, %d sections\n", args[0], len(data), len(infos))
		for _, s := range infos {
			fmt.Fprintf(out, "  %s %-10s %6d bytes at 0x%06X\n",
				color.CyanString("%2d", s.ID), wasm.SectionName(s.ID), s.Size, s.Offset)
		}
		return nil
	},
}
