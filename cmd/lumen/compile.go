package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lumen/internal/backend/wasm"
	"lumen/internal/buildpipeline"
)

var (
	compileOutput      string
	compileHotThresh   float64
	compileParallelism int
)

func init() {
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output path (default: input with .wasm)")
	compileCmd.Flags().Float64Var(&compileHotThresh, "hot-threshold", 0, "hot block frequency threshold (0 = default)")
	compileCmd.Flags().IntVarP(&compileParallelism, "jobs", "j", 0, "parallel function analysis (0 = default)")
}

var compileCmd = &cobra.Command{
	Use:   "compile <input.lir>",
	Short: "Compile an IR artifact to a WebAssembly module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		quiet, _ := cmd.Flags().GetBool("quiet")
		showTimings, _ := cmd.Flags().GetBool("timings")

		cfg := wasm.DefaultConfig()
		manifest, found, err := loadProjectManifest(filepath.Dir(input))
		if err != nil {
			return err
		}
		if found {
			manifest.applyOverrides(&cfg)
		}
		if compileHotThresh > 0 {
			cfg.HotBlockThreshold = compileHotThresh
		}
		if compileParallelism > 0 {
			cfg.Parallelism = compileParallelism
		}

		output := compileOutput
		if output == "" && found && manifest.Config.Output.Path != "" {
			output = filepath.Join(manifest.Root, manifest.Config.Output.Path)
		}
		if output == "" {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + ".wasm"
		}

		res, err := buildpipeline.Compile(cmd.Context(), buildpipeline.Options{
			Input:  input,
			Output: output,
			Config: cfg,
		})
		if err != nil {
			return err
		}

		if !quiet {
			name := res.Module
			if name == "" {
				name = input
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (%d bytes)\n",
				color.GreenString("compiled"), name, output, len(res.Bytes))
		}
		if showTimings {
			timer := res.Timings
			for _, p := range timer.Phases {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %7.2f ms %s\n", p.Name, p.DurationMS, p.Note)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %7.2f ms\n", "total", timer.TotalMS)
		}
		return nil
	},
}
