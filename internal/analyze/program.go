package analyze

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/interp"
)

// Options bounds the whole-program analysis.
type Options struct {
	// Jobs is the number of functions analyzed concurrently;
	// GOMAXPROCS when zero.
	Jobs int
	// MaxPasses caps the number of whole-program refinement rounds;
	// the analysis also stops as soon as no summary improves.
	MaxPasses int
}

// DefaultMaxPasses bounds total work when summaries keep improving by
// tiny steps; in practice return types stabilize in two or three
// rounds.
const DefaultMaxPasses = 5

// Event reports progress to an optional sink.
type Event struct {
	Pass int
	Func string
}

// EventSink consumes progress events. Implementations must be safe for
// concurrent use.
type EventSink interface {
	Send(Event)
}

// ChannelSink forwards events to a channel, dropping them when the
// receiver lags.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) Send(ev Event) {
	select {
	case s.Ch <- ev:
	default:
	}
}

// ProgramAnalysis is the converged result over every function of a
// unit.
type ProgramAnalysis struct {
	Funcs  map[string]*FuncAnalysis
	Passes int

	FoldedCalls        int
	StrengthReductions int
}

// Program analyzes every function of the unit to a whole-program
// fixpoint: functions run in parallel within a pass, return summaries
// are refined between passes, and passes repeat until nothing
// improves.
func Program(ctx context.Context, ix *index.Index, unit *bc.Unit, opts Options, sink EventSink) (*ProgramAnalysis, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	ctxs := contexts(unit)
	pa := &ProgramAnalysis{Funcs: make(map[string]*FuncAnalysis, len(ctxs))}

	for pass := 1; pass <= maxPasses; pass++ {
		pa.Passes = pass
		results := make([]*FuncAnalysis, len(ctxs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, max(len(ctxs), 1)))
		for i, fctx := range ctxs {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = Func(ix, fctx)
				if sink != nil {
					sink.Send(Event{Pass: pass, Func: qualifiedName(fctx)})
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// Refinement happens strictly between passes: the index stays
		// immutable while workers read it.
		improved := false
		for i, res := range results {
			name := qualifiedName(ctxs[i])
			pa.Funcs[name] = res
			fi, ok := lookup(ix, ctxs[i])
			if !ok {
				continue
			}
			if ix.RefineReturn(fi, res.ReturnType) {
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	names := make([]string, 0, len(pa.Funcs))
	for name := range pa.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := pa.Funcs[name]
		pa.FoldedCalls += res.Collect.FoldedCalls
		pa.StrengthReductions += res.Collect.StrengthReductions
	}
	return pa, nil
}

// contexts enumerates every function of the unit with its enclosing
// class, in declaration order.
func contexts(unit *bc.Unit) []interp.Context {
	var out []interp.Context
	for _, f := range unit.Funcs {
		out = append(out, interp.Context{Unit: unit, Func: f})
	}
	for _, c := range unit.Classes {
		for _, m := range c.Methods {
			out = append(out, interp.Context{Unit: unit, Func: m, Class: c})
		}
	}
	return out
}

func qualifiedName(ctx interp.Context) string {
	if ctx.Class != nil {
		return ctx.Class.Name + "::" + ctx.Func.Name
	}
	return ctx.Func.Name
}

func lookup(ix *index.Index, ctx interp.Context) (*index.FuncInfo, bool) {
	if ctx.Class != nil {
		ci, ok := ix.ResolveClass(ctx.Class.Name)
		if !ok {
			return nil, false
		}
		fi, ok := ci.Methods[ctx.Func.Name]
		return fi, ok
	}
	return ix.ResolveFunc(ctx.Func.Name)
}
