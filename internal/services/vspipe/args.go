package vspipe

import (
	"sort"
	"strconv"
)

// Options describes one vspipe invocation.
type Options struct {
	Script string
	// Params are passed to the script as "-a key=value" in key order.
	Params map[string]string
	// FrameLimit renders frames [0, FrameLimit); zero renders everything.
	FrameLimit int64
}

// Args renders the vspipe argument list. Output goes to stdout.
func Args(opts Options) []string {
	args := []string{"-c", "y4m", "-p"}
	keys := make([]string, 0, len(opts.Params))
	for key := range opts.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-a", key+"="+opts.Params[key])
	}
	if opts.FrameLimit > 0 {
		args = append(args, "-s", "0", "-e", strconv.FormatInt(opts.FrameLimit-1, 10))
	}
	return append(args, opts.Script, "-")
}
