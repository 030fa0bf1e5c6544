package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"riptide/internal/analyze"
	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/ui"
)

// runAnalyzeWithUI drives the analysis under a Bubble Tea progress
// view. The analysis runs on its own goroutine and reports through a
// channel sink; the UI quits when the channel closes.
func runAnalyzeWithUI(ctx context.Context, title string, unit *bc.Unit, ix *index.Index, opts analyze.Options) (*analyze.ProgramAnalysis, error) {
	names := make([]string, 0, len(unit.Funcs))
	for _, f := range unit.Funcs {
		names = append(names, f.Name)
	}
	for _, c := range unit.Classes {
		for _, m := range c.Methods {
			names = append(names, c.Name+"::"+m.Name)
		}
	}

	events := make(chan analyze.Event, 64)
	type result struct {
		pa  *analyze.ProgramAnalysis
		err error
	}
	resCh := make(chan result, 1)

	go func() {
		pa, err := analyze.Program(ctx, ix, unit, opts, analyze.ChannelSink{Ch: events})
		close(events)
		resCh <- result{pa, err}
	}()

	prog := tea.NewProgram(ui.NewProgressModel(title, names, events))
	if _, err := prog.Run(); err != nil {
		return nil, fmt.Errorf("progress ui failed: %w", err)
	}

	res := <-resCh
	return res.pa, res.err
}
