// Command flowforge is the CLI entry point for the congestion-control
// training loop (spec.md §6 "CLI surface ... subcommands gen-configs,
// train, evaluate, trace"). Grounded on the teacher's main.go (log.SetFlags(0),
// log.Fatal-on-error shape) generalized from one hardcoded simulation run
// into a dispatcher over four subcommands, since heistp-scim itself never
// had a CLI surface to speak of — it recompiles to change anything.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "gen-configs":
		err = runGenConfigs(os.Args[2:])
	case "train":
		err = runTrain(ctx, os.Args[2:])
	case "evaluate":
		err = runEvaluate(ctx, os.Args[2:])
	case "trace":
		err = runTrace(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "flowforge: unrecognized subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: flowforge <subcommand> [flags]

subcommands:
  gen-configs   write default JSON config documents to a directory
  train         run the ruletree, neural, or delaymultiplier trainer
  evaluate      score a trained policy against the evaluation harness
  trace         run one network under a trained (or default) policy and emit a JSON event trace`)
}
