package cli

// This file contains argument processing utilities for separating
// positional arguments from the pass-through test arguments.

import (
	"slices"
)

// splitPassthrough separates the positional arguments of a command from the
// arguments following "--". args is what the flag parser left over, raw the
// full command line. The flag parser swallows a "--" that directly follows
// the flags but keeps one that follows a positional argument, so the
// separator is located in raw.
func splitPassthrough(args, raw []string) (positional, extra []string) {
	idx := slices.Index(raw, "--")
	if idx < 0 {
		return args, nil
	}

	extra = raw[idx+1:]
	n := len(args) - len(extra)
	if n < 0 {
		n = 0
	}
	positional = args[:n]
	if len(positional) > 0 && positional[len(positional)-1] == "--" {
		positional = positional[:len(positional)-1]
	}
	return positional, extra
}
