package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"

	"github.com/daviddao/northpole/pkg/journal"
	"github.com/daviddao/northpole/pkg/model"
	"github.com/daviddao/northpole/pkg/store"
	"github.com/daviddao/northpole/pkg/verify"
)

const (
	defaultOut = "northpole.out"
	defaultDB  = "northpole.db"
)

// logFile is the action log a run writes to.
type logFile interface {
	journal.Journal
	Close() error
}

// app holds what every subcommand shares.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger

	// openStore opens the history database; replaced in tests.
	openStore func(path string) (store.StoreInterface, error)
	// createLog creates the action log of a run; replaced in tests.
	createLog func(path string) (logFile, error)
	// check verifies an action log.
	check func(actions []model.Action, p model.Params) verify.Report
}

func newApp(stdout, stderr io.Writer) *app {
	l := logrus.New()
	l.SetOutput(stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	return &app{
		stdout: stdout,
		stderr: stderr,
		log:    l,
		openStore: func(path string) (store.StoreInterface, error) {
			s, err := store.New(path)
			if err != nil {
				return nil, fmt.Errorf("cannot open database %q: %w", path, err)
			}
			return s, nil
		},
		createLog: func(path string) (logFile, error) {
			f, err := journal.Create(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		check: verify.Check,
	}
}

// setDebug switches diagnostics to debug level.
func (a *app) setDebug(on bool) {
	if on {
		a.log.SetLevel(logrus.DebugLevel)
	}
}

// errorf reports a command failure as "np: <cmd>: <msg>".
func (a *app) errorf(cmd, format string, args ...interface{}) {
	fmt.Fprintf(a.stderr, "np: "+cmd+": "+format+"\n", args...)
}

// printJSON writes v to stdout as one line of JSON.
func (a *app) printJSON(v interface{}) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		a.errorf("json", "%v", err)
		return
	}
	a.stdout.Write(append(b, '\n'))
}
