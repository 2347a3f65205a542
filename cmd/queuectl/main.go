// Command queuectl is the operational CLI wrapper around the queue
// engine: run one reservation cycle, run a batch, inspect and manage
// dead-letter rows, print stats, and apply the storage migrations.
//
// queuectl ships with an empty task resolver: it has no knowledge of any
// particular deployment's handler functions, so `process`/`batch` will
// dead-letter every job as ErrUnknownTask unless a host process registers
// handlers first. In practice a deployment builds its own thin main
// package that imports this module, registers its resolver.Registry
// entries, and wires its own queue.JobExecutor with that resolver;
// newRootCmd takes no resolver and always builds an empty one. queuectl's
// binary form exists so the admin surface (failed/stats/migrate) works
// out of the box against any configured SQL driver.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}
