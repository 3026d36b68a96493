package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/daviddao/northpole/pkg/model"
	"github.com/daviddao/northpole/pkg/store"
)

func (a *app) cmdLog(args []string) int {
	flags := flag.NewFlagSet("log", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	dbPath := flags.String("db", envOr("NORTHPOLE_DB", defaultDB), "history database")
	runID := flags.Int64("run", 0, "run ID (0 means the latest run)")
	since := flags.Int64("since", 0, "print actions with counter >= this")
	limit := flags.Int("limit", 0, "max actions to print (0 prints all)")
	check := flags.Bool("verify", false, "verify the stored log instead of printing it")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	s, err := a.openStore(*dbPath)
	if err != nil {
		a.errorf("log", "%v", err)
		return exitErr
	}
	defer s.Close()

	ctx := context.Background()
	var run *model.Run
	if *runID == 0 {
		run, err = s.LatestRun(ctx)
	} else {
		run, err = s.GetRun(ctx, *runID)
	}
	if errors.Is(err, store.ErrNoRuns) {
		fmt.Fprintln(a.stdout, "no runs")
		return exitOK
	}
	if err != nil {
		a.errorf("log", "run %d: %v", *runID, err)
		return exitErr
	}

	if *check {
		actions, err := s.ListActions(ctx, run.ID, 0, 0)
		if err != nil {
			a.errorf("log", "%v", err)
			return exitErr
		}
		return a.report(actions, run.Params, *jsonOut)
	}

	actions, err := s.ListActions(ctx, run.ID, *since, *limit)
	if err != nil {
		a.errorf("log", "%v", err)
		return exitErr
	}
	if *jsonOut {
		a.printJSON(map[string]interface{}{"run": run, "actions": actions, "count": len(actions)})
		return exitOK
	}
	for _, act := range actions {
		fmt.Fprintln(a.stdout, act.String())
	}
	return exitOK
}
