package driver

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// Options is the optimizer configuration, loadable from riptide.toml.
type Options struct {
	// Jobs is the number of functions analyzed in parallel; 0 means
	// GOMAXPROCS.
	Jobs int `toml:"jobs"`

	// MaxPasses caps whole-program refinement rounds.
	MaxPasses int `toml:"max_passes"`

	// Cache enables the on-disk artifact cache.
	Cache bool `toml:"cache"`
}

// DefaultOptions returns the configuration used when no file is given.
func DefaultOptions() Options {
	return Options{Cache: true}
}

// LoadOptions reads options from a TOML file. A missing file yields
// the defaults; a malformed one is an error.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	meta, err := toml.DecodeFile(path, &opts)
	if errors.Is(err, fs.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return opts, fmt.Errorf("%s: unknown option %q", path, undec[0].String())
	}
	if opts.Jobs < 0 {
		return opts, fmt.Errorf("%s: jobs must be non-negative", path)
	}
	if opts.MaxPasses < 0 {
		return opts, fmt.Errorf("%s: max_passes must be non-negative", path)
	}
	return opts, nil
}
