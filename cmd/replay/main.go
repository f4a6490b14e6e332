package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/projector-align/internal/replay"
	"go.uber.org/zap"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	dir := flag.String("dir", "", "run every *.json fixture in a directory")
	verbose := flag.Bool("v", false, "print every tick")
	flag.Parse()

	if (*fixturePath == "") == (*dir == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		fmt.Fprintln(os.Stderr, "       replay --dir path/to/fixtures [-v]")
		os.Exit(2)
	}

	paths := []string{*fixturePath}
	if *dir != "" {
		var err error
		paths, err = filepath.Glob(filepath.Join(*dir, "*.json"))
		if err != nil || len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "no fixtures in %s\n", *dir)
			os.Exit(2)
		}
	}

	exitCode := 0
	for _, p := range paths {
		if code := runFixture(p, *verbose); code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

// #endregion main

// #region run

func runFixture(path string, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results, sum, err := replay.Run(context.Background(), f, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return 2
	}

	fmt.Printf("== %s\n", filepath.Base(path))
	if f.Description != "" {
		fmt.Printf("   %s\n", f.Description)
	}
	if verbose {
		printTicks(results)
	}
	fmt.Printf("Summary: %d ticks, %d keep, %d rollback, %d scan, %d escalations, outcome %s, final %s\n",
		sum.TotalTicks, sum.Keeps, sum.Rollbacks, sum.Scans, sum.Escalations, sum.FinalOutcome, sum.FinalApplied)

	failures := replay.Check(sum, f.Expected)
	for _, msg := range failures {
		fmt.Printf("   FAIL: %s\n", msg)
	}
	if len(failures) > 0 {
		return 1
	}
	fmt.Println("   OK")
	return 0
}

// #endregion run

// #region output

func printTicks(results []replay.TickResult) {
	fmt.Printf("%-5s| %-10s| %-10s| %6s| %8s| %s\n", "Tick", "Outcome", "Decision", "Step", "Fitness", "Applied")
	fmt.Printf("%-5s+%-11s+%-11s+%7s+%9s+%s\n",
		"-----", "-----------", "-----------", "-------", "---------", "--------------------")
	for _, r := range results {
		applied := "-"
		if r.Applies {
			applied = r.Applied.String()
		}
		fmt.Printf("%-5d| %-10s| %-10s| %6d| %8.4f| %s\n",
			r.Tick, r.Outcome, r.Decision, r.Step, r.Fitness, applied)
	}
}

// #endregion output
