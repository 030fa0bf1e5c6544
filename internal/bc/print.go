package bc

import (
	"fmt"
	"io"
	"strings"
)

// Print writes a readable listing of the unit.
func Print(w io.Writer, u *Unit) {
	if u == nil {
		return
	}
	fmt.Fprintf(w, "unit %s\n", u.Name)
	for _, f := range u.Funcs {
		printFunc(w, f, "")
	}
	for _, c := range u.Classes {
		fmt.Fprintf(w, "\nclass %s", c.Name)
		if c.Parent != "" {
			fmt.Fprintf(w, " extends %s", c.Parent)
		}
		fmt.Fprintln(w)
		for _, m := range c.Methods {
			printFunc(w, m, "  ")
		}
	}
}

func printFunc(w io.Writer, f *Func, indent string) {
	if f == nil {
		return
	}
	fmt.Fprintf(w, "\n%sfunc %s(params=%d, locals=%d) entry=b%d\n",
		indent, f.Name, f.NumParams, f.NumLocals, f.Entry)
	if len(f.Statics) > 0 {
		parts := make([]string, len(f.Statics))
		for i, s := range f.Statics {
			parts[i] = fmt.Sprintf("$%d", s)
		}
		fmt.Fprintf(w, "%s  statics: %s\n", indent, strings.Join(parts, ", "))
	}
	for i := range f.Blocks {
		blk := &f.Blocks[i]
		fmt.Fprintf(w, "%s  b%d:", indent, blk.ID)
		var edges []string
		if blk.Fallthrough != NoBlockID {
			edges = append(edges, fmt.Sprintf("fallthrough=b%d", blk.Fallthrough))
		}
		for _, t := range blk.Throw {
			edges = append(edges, fmt.Sprintf("throw=b%d", t))
		}
		if len(edges) > 0 {
			fmt.Fprintf(w, "  (%s)", strings.Join(edges, ", "))
		}
		fmt.Fprintln(w)
		for _, op := range blk.Code {
			fmt.Fprintf(w, "%s    %s\n", indent, op)
		}
	}
}
