package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"riptide/internal/analyze"
	"riptide/internal/bc"
	"riptide/internal/driver"
	"riptide/internal/index"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] unit.rbc",
	Short: "Print a readable listing of a bytecode unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("types", false, "analyze the unit and print inferred return types")
}

func runDump(cmd *cobra.Command, args []string) error {
	unit, err := driver.LoadUnit(args[0])
	if err != nil {
		return err
	}

	bc.Print(os.Stdout, unit)

	withTypes, _ := cmd.Flags().GetBool("types")
	if !withTypes {
		return nil
	}

	ix := index.New(true, unit)
	pa, err := analyze.Program(cmd.Context(), ix, unit, analyze.Options{}, nil)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	head := color.New(color.Bold)
	typeColor := color.New(color.FgCyan)
	if !useColor(cmd, os.Stdout) {
		head.DisableColor()
		typeColor.DisableColor()
	}

	names := make([]string, 0, len(pa.Funcs))
	for name := range pa.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	head.Println("\ninferred return types")
	for _, name := range names {
		res := pa.Funcs[name]
		fmt.Printf("  %-32s %s", name, typeColor.Sprint(res.ReturnType.String()))
		if res.RetParam != bc.NoLocalID {
			fmt.Printf("  (returns param $%d)", res.RetParam)
		}
		fmt.Println()
	}
	return nil
}
