package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/daviddao/northpole/pkg/store"
)

func (a *app) cmdRuns(args []string) int {
	flags := flag.NewFlagSet("runs", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	dbPath := flags.String("db", envOr("NORTHPOLE_DB", defaultDB), "history database")
	limit := flags.Int("limit", 20, "max runs to list")
	del := flags.Int64("delete", 0, "delete this run and its actions")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	s, err := a.openStore(*dbPath)
	if err != nil {
		a.errorf("runs", "%v", err)
		return exitErr
	}
	defer s.Close()

	if *del != 0 {
		return a.deleteRun(s, *del, *jsonOut)
	}

	runs, err := s.ListRuns(context.Background(), *limit)
	if err != nil {
		a.errorf("runs", "%v", err)
		return exitErr
	}

	if *jsonOut {
		a.printJSON(map[string]interface{}{"runs": runs, "count": len(runs)})
		return exitOK
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs")
		return exitOK
	}
	for _, r := range runs {
		fmt.Fprintf(a.stdout, "#%-4d %-6s NE=%-3d NR=%-2d TE=%-4d TR=%-4d actions=%-6d took=%s started=%s\n",
			r.ID, r.Status, r.Params.Elves, r.Params.Reindeer, r.Params.ElfWork, r.Params.ReindeerVacation,
			r.Actions, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if r.Error != "" {
			fmt.Fprintf(a.stdout, "      error: %s\n", r.Error)
		}
	}
	return exitOK
}

// deleteRun removes one run from the history and reports how many actions
// went with it.
func (a *app) deleteRun(s store.StoreInterface, id int64, jsonOut bool) int {
	ctx := context.Background()
	if _, err := s.GetRun(ctx, id); err != nil {
		a.errorf("runs", "run %d: %v", id, err)
		return exitErr
	}
	n, err := s.CountActions(ctx, id)
	if err != nil {
		a.errorf("runs", "%v", err)
		return exitErr
	}
	if err := s.DeleteRun(ctx, id); err != nil {
		a.errorf("runs", "delete run %d: %v", id, err)
		return exitErr
	}
	if jsonOut {
		a.printJSON(map[string]interface{}{"deleted": id, "actions": n})
		return exitOK
	}
	fmt.Fprintf(a.stdout, "deleted run #%d (%d actions)\n", id, n)
	return exitOK
}
