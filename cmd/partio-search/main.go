// Command partio-search runs the Regex Searcher over one or more files
// from the command line (spec §6 "CLI surface (indicative, out-of-core)").
//
// Usage:
//
//	partio-search <max_workers> <pattern> <paths...>
//	partio-search benchmark <paths...>
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
	"github.com/grailbio/partio/search"
)

const benchmarkPattern = `[A-Za-z]+ing\b`

func main() {
	shutdown := grail.Init()
	defer shutdown()
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		vlog.Fatalf("usage: partio-search <max_workers> <pattern> <paths...> | partio-search benchmark <paths...>")
	}

	var maxWorkers int
	var pattern string
	var paths []string

	if args[0] == "benchmark" {
		pattern = benchmarkPattern
		paths = args[1:]
	} else {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			vlog.Fatalf("invalid max_workers %q: %v", args[0], err)
		}
		maxWorkers = n
		pattern = args[1]
		paths = args[2:]
	}
	if len(paths) == 0 {
		vlog.Fatalf("no input paths given")
	}

	cfg := engine.DefaultConfig()
	cfg.MaxWorkers = maxWorkers
	cfg.Overlap = 512
	cfg.JoinMode = engine.DiscNone

	factory, err := search.NewStrategy([]string{pattern}, 0, cfg)
	if err != nil {
		vlog.Fatalf("invalid pattern %q: %v", pattern, err)
	}

	ctx := vcontext.Background()
	jobs := make([]*background.Job, len(paths))
	for i, p := range paths {
		jobs[i] = background.New(engine.NewFileJob(p, cfg, factory))
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
		st := search.StrategyFromJob(j.Engine())
		if st == nil {
			continue
		}
		matches := st.Matches(0)
		fmt.Printf("%s: %d matches\n", paths[i], len(matches))
	}
	vlog.Infof("search over %d file(s) took %s", len(paths), elapsed)
	os.Exit(exitCode)
}
