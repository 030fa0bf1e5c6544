package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"riptide/internal/analyze"
	"riptide/internal/driver"
	"riptide/internal/index"
	"riptide/internal/observ"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] unit.rbc",
	Short: "Run whole-program type analysis on a bytecode unit",
	Long:  `Analyze runs the abstract interpreter over every function of a unit until types converge`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("jobs", 0, "functions analyzed in parallel (0 = all cores)")
	analyzeCmd.Flags().Bool("progress", false, "show interactive progress")
	analyzeCmd.Flags().Bool("no-cache", false, "skip the artifact cache")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	configPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	opts, err := driver.LoadOptions(configPath)
	if err != nil {
		return err
	}
	if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
		opts.Jobs = jobs
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		opts.Cache = false
	}

	timer := observ.NewTimer()

	loadPhase := timer.Begin("load")
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	unit, err := driver.LoadUnit(path)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	timer.End(loadPhase, fmt.Sprintf("%d functions", len(unit.AllFuncs())))

	var cache *driver.Cache
	digest := driver.DigestBytes(raw)
	if opts.Cache {
		cache, err = driver.OpenCache("riptide")
		if err == nil {
			if payload, hit, _ := cache.Get(digest); hit {
				printCached(cmd, payload)
				return nil
			}
		}
	}

	indexPhase := timer.Begin("index")
	ix := index.New(true, unit)
	timer.End(indexPhase, "")

	analyzePhase := timer.Begin("analyze")
	aopts := analyze.Options{Jobs: opts.Jobs, MaxPasses: opts.MaxPasses}

	var pa *analyze.ProgramAnalysis
	showProgress, _ := cmd.Flags().GetBool("progress")
	if showProgress && isTerminal(os.Stdout) {
		pa, err = runAnalyzeWithUI(cmd.Context(), path, unit, ix, aopts)
	} else {
		pa, err = analyze.Program(cmd.Context(), ix, unit, aopts, nil)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	timer.End(analyzePhase, fmt.Sprintf("%d passes", pa.Passes))

	if cache != nil {
		// Best effort: a failed cache write never fails the run.
		_ = cache.Put(digest, driver.NewCachePayload(pa))
	}

	printSummary(cmd, pa)

	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		fmt.Fprint(os.Stderr, timer.Summary())
	}
	return nil
}

func printSummary(cmd *cobra.Command, pa *analyze.ProgramAnalysis) {
	head := color.New(color.Bold)
	if !useColor(cmd, os.Stdout) {
		head.DisableColor()
	}
	head.Printf("analysis converged after %d pass(es)\n", pa.Passes)
	fmt.Printf("  functions:           %d\n", len(pa.Funcs))
	fmt.Printf("  folded calls:        %d\n", pa.FoldedCalls)
	fmt.Printf("  strength reductions: %d\n", pa.StrengthReductions)
}

func printCached(cmd *cobra.Command, payload *driver.CachePayload) {
	head := color.New(color.Bold)
	if !useColor(cmd, os.Stdout) {
		head.DisableColor()
	}
	head.Printf("analysis cached (%d pass(es))\n", payload.Passes)
	fmt.Printf("  functions:           %d\n", len(payload.ReturnTypes))
	fmt.Printf("  folded calls:        %d\n", payload.FoldedCalls)
	fmt.Printf("  strength reductions: %d\n", payload.StrengthReductions)
}
