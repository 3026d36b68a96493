package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/daviddao/northpole/pkg/model"
	"github.com/daviddao/northpole/pkg/verify"
)

func (a *app) cmdVerify(args []string) int {
	flags := flag.NewFlagSet("verify", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	elves := flags.Int("elves", 0, "number of elves in the run (0 infers from the log)")
	reindeer := flags.Int("reindeer", 0, "number of reindeer in the run (0 infers from the log)")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	path := envOr("NORTHPOLE_OUT", defaultOut)
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			a.errorf("verify", "%v", err)
			return exitErr
		}
		defer f.Close()
		r = f
	}

	actions, err := verify.ReadLog(r)
	if err != nil {
		a.errorf("verify", "%s: %v", path, err)
		return exitInvalid
	}
	return a.report(actions, paramsFor(actions, *elves, *reindeer), *jsonOut)
}

// paramsFor fills pool sizes the caller did not give from the log itself.
func paramsFor(actions []model.Action, elves, reindeer int) model.Params {
	p := verify.InferParams(actions)
	if elves > 0 {
		p.Elves = elves
	}
	if reindeer > 0 {
		p.Reindeer = reindeer
	}
	return p
}

// report checks actions and prints the result. It returns the exit code.
func (a *app) report(actions []model.Action, p model.Params, jsonOut bool) int {
	rep := a.check(actions, p)
	if jsonOut {
		a.printJSON(map[string]interface{}{"params": p, "report": rep})
	} else {
		for _, v := range rep.Violations {
			fmt.Fprintf(a.stdout, "  %s\n", v)
		}
		status := "ok"
		if !rep.OK {
			status = fmt.Sprintf("FAILED (%d violations)", len(rep.Violations))
		}
		fmt.Fprintf(a.stdout, "%s: %d actions, %d elves, %d reindeer, %d help cycles\n",
			status, rep.Actions, p.Elves, p.Reindeer, rep.HelpCycles)
	}
	if !rep.OK {
		return exitInvalid
	}
	return exitOK
}
