// Command partio-index builds a line index over one or more files from
// the command line (spec §6 "CLI surface (indicative, out-of-core)").
//
// Usage:
//
//	partio-index <max_workers> <paths...>
//	partio-index benchmark <paths...>
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/vlog"

	"github.com/grailbio/partio/background"
	"github.com/grailbio/partio/engine"
	"github.com/grailbio/partio/indexer"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		vlog.Fatalf("usage: partio-index <max_workers> <paths...> | partio-index benchmark <paths...>")
	}

	var maxWorkers int
	var paths []string
	if args[0] == "benchmark" {
		paths = args[1:]
	} else {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			vlog.Fatalf("invalid max_workers %q: %v", args[0], err)
		}
		maxWorkers = n
		paths = args[1:]
	}
	if len(paths) == 0 {
		vlog.Fatalf("no input paths given")
	}

	cfg := engine.DefaultConfig()
	cfg.MaxWorkers = maxWorkers
	cfg.JoinMode = engine.DiscSequential

	ctx := vcontext.Background()
	jobs := make([]*background.Job, len(paths))
	for i, p := range paths {
		jobs[i] = background.New(engine.NewFileJob(p, cfg, indexer.NewStrategy(cfg.PartitionSize)))
	}
	grp := background.NewGroup(jobs...)

	start := time.Now()
	grp.StartAll(ctx)
	if err := grp.WaitAll(ctx); err != nil {
		vlog.Fatalf("wait failed: %v", err)
	}
	elapsed := time.Since(start)

	exitCode := 0
	for i, j := range jobs {
		if err := j.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", paths[i], err)
			exitCode = 1
			continue
		}
		ix := indexer.IndexFromJob(j.Engine())
		if ix == nil {
			continue
		}
		fmt.Printf("%s: %d lines\n", paths[i], ix.LineCount())
	}
	vlog.Infof("index over %d file(s) took %s", len(paths), elapsed)
	os.Exit(exitCode)
}
