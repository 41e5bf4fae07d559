// tracemake records the start and stop of every recipe a parallel build
// runs and renders the result as a Chrome trace.
//
// Usage:
//
//	make -j8 SHELL='tracemake shell'
//	tracemake aggregate -o trace.json
//
// Environment variables:
//
//	TRACE_FILE       trace log path (default: .make.trace)
//	TRACEMAKE_SHELL  shell used to run recipes (default: /bin/sh)
package main

import "github.com/ppiankov/tracemake/internal/cli"

func main() {
	cli.Execute()
}
