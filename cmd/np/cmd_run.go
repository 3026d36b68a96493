package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daviddao/northpole/pkg/journal"
	"github.com/daviddao/northpole/pkg/model"
	"github.com/daviddao/northpole/pkg/store"
	"github.com/daviddao/northpole/pkg/verify"
	"github.com/daviddao/northpole/pkg/workshop"
)

func (a *app) cmdRun(args []string) int {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	out := flags.String("out", envOr("NORTHPOLE_OUT", defaultOut), "action log path, - for stdout")
	dbPath := flags.String("db", envOr("NORTHPOLE_DB", ""), "record the run in this SQLite database")
	seed := flags.Int64("seed", 0, "random seed (0 picks one from the clock)")
	check := flags.Bool("verify", false, "verify the action log before exiting")
	debug := flags.Bool("debug", envOr("NORTHPOLE_DEBUG", "") != "", "debug diagnostics on stderr")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}
	a.setDebug(*debug)

	// Parameters are checked before anything is created.
	params, err := model.ParseParams(flags.Args())
	if err != nil {
		a.errorf("run", "%v", err)
		return exitErr
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var history store.StoreInterface
	if *dbPath != "" {
		history, err = a.openStore(*dbPath)
		if err != nil {
			a.errorf("run", "%v", err)
			return exitErr
		}
		defer history.Close()
	}

	file, err := a.createLog(*out)
	if err != nil {
		a.errorf("run", "%v", err)
		return exitErr
	}

	rec := &journal.Recorder{}
	w, err := workshop.New(workshop.Config{
		Params:  params,
		Journal: journal.Tee(file, rec),
		Logger:  a.log.WithField("seed", *seed),
		Seed:    *seed,
	})
	if err != nil {
		file.Close()
		a.errorf("run", "%v", err)
		return exitErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &model.Run{Params: params, Seed: *seed, Status: model.RunOK, StartedAt: time.Now()}
	runErr := w.Run(ctx)
	run.FinishedAt = time.Now()

	code := exitOK
	if runErr != nil {
		a.fail(run, runErr)
		code = exitErr
	}
	if err := file.Close(); err != nil {
		err = fmt.Errorf("close action log: %w", err)
		if runErr == nil {
			a.fail(run, err)
		} else {
			a.errorf("run", "%v", err)
		}
		code = exitErr
	}

	actions := rec.Actions()
	var report *verify.Report
	if *check && run.Status == model.RunOK {
		r := a.check(actions, params)
		report = &r
		if !r.OK {
			run.Status = model.RunInvalid
			run.Error = fmt.Sprintf("%d verification violations, first: %s", len(r.Violations), r.Violations[0])
		}
	}

	if history != nil {
		if _, err := history.SaveRun(context.Background(), run, actions); err != nil {
			a.errorf("run", "%v", err)
			code = exitErr
		} else {
			a.log.WithField("run", run.ID).WithField("status", run.Status).Debug("run recorded")
		}
	}

	if report != nil && !report.OK {
		for _, v := range report.Violations {
			a.errorf("run", "verify: %s", v)
		}
		if code == exitOK {
			code = exitInvalid
		}
	}
	return code
}

// fail marks run as failed and reports err.
func (a *app) fail(run *model.Run, err error) {
	run.Status = model.RunFailed
	run.Error = err.Error()
	a.errorf("run", "%v", err)
}
