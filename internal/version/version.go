// Package version carries the riptide build identity. Release builds
// override the variables via -ldflags; the defaults identify a dev
// tree.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the CLI.
	Version = "0.2.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders the semantic version with each component
// highlighted. Versions that are not dotted triples render as-is.
func Colored() string {
	parts := strings.SplitN(Version, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	return majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
}

// Banner is the multi-line report the version subcommand prints:
// version, optional build metadata, and the Go runtime it was built
// with.
func Banner() string {
	var b strings.Builder
	fmt.Fprintf(&b, "riptide %s\n", Colored())
	if GitCommit != "" {
		fmt.Fprintf(&b, "  commit: %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "  built:  %s\n", BuildDate)
	}
	fmt.Fprintf(&b, "  go:     %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return b.String()
}
