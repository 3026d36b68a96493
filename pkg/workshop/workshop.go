// Package workshop runs the Santa Claus rendezvous protocol.
//
// A Workshop owns the shared state (action counter, waiting elves, returned
// reindeer, the closed latch) and the seven semaphores the actors synchronize
// on. Run starts one Santa, NE elves and NR reindeer as goroutines and waits
// for all of them. It returns once Christmas has started and every actor has
// exited, or as soon as one actor fails.
//
// Rules every actor follows:
//
//   - Shared state is only read or written while holding mu.
//   - Nothing blocks while mu is held. Posting a semaphore never blocks, so
//     posts may happen inside a critical section; waits never do.
//   - Each logged action takes the next counter value under the same lock
//     as the state change it describes.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/northpole/pkg/clock"
	"github.com/daviddao/northpole/pkg/journal"
	"github.com/daviddao/northpole/pkg/model"
	"github.com/daviddao/northpole/pkg/sema"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("workshop: already run")

// Config configures a Workshop.
type Config struct {
	Params  model.Params
	Journal journal.Journal    // required
	Logger  logrus.FieldLogger // diagnostics; nil discards them
	Seed    int64              // base seed for every actor's random delays
}

// UnitError reports which actor made the run fail.
type UnitError struct {
	Unit     string // "santa", "elf 4", "reindeer 2"
	Abnormal bool   // the unit panicked instead of returning
	Err      error
}

func (e *UnitError) Error() string {
	if e.Abnormal {
		return fmt.Sprintf("%s exited abnormally: %v", e.Unit, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// state is the block every actor shares. All fields are guarded by
// Workshop.mu.
type state struct {
	counter    *clock.Counter
	elves      int  // elves queued for help, 0..RequiredElves
	reindeer   int  // returned reindeer in phase 1, hitched reindeer in phase 2
	closed     bool // one-shot: set by Santa on the reindeer quorum
	helpCycles int
}

// Workshop is a single run of the protocol.
type Workshop struct {
	params  model.Params
	journal journal.Journal
	log     logrus.FieldLogger
	seed    int64

	mu sync.Mutex
	st state

	wakeSanta   *sema.Semaphore // worker -> Santa: a quorum formed
	ackService  *sema.Semaphore // last helped elf -> Santa: service done
	elfSlot     *sema.Semaphore // one elf at a time in the join step
	helpReady   *sema.Semaphore // Santa -> elves: come get help
	hitchCall   *sema.Semaphore // Santa -> reindeer: come get hitched
	sleighReady *sema.Semaphore // last hitched reindeer -> Santa

	started atomic.Bool
}

// New validates cfg and creates the shared state and semaphores.
func New(cfg Config) (*Workshop, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Journal == nil {
		return nil, errors.New("workshop: nil journal")
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	w := &Workshop{
		params:  cfg.Params,
		journal: cfg.Journal,
		log:     cfg.Logger,
		seed:    cfg.Seed,
		st:      state{counter: clock.New()},
	}
	sems := []struct {
		dst     **sema.Semaphore
		name    string
		initial int64
	}{
		{&w.wakeSanta, "wake_santa", 0},
		{&w.ackService, "ack_service", 0},
		{&w.elfSlot, "elf_slot", 1},
		{&w.helpReady, "help_ready", 0},
		{&w.hitchCall, "hitch_call", 0},
		{&w.sleighReady, "sleigh_ready", 0},
	}
	for _, s := range sems {
		sem, err := sema.New(s.name, s.initial)
		if err != nil {
			return nil, fmt.Errorf("create primitives: %w", err)
		}
		*s.dst = sem
		w.log.WithField("sem", sem.Name()).WithField("initial", s.initial).Debug("primitive created")
	}
	return w, nil
}

// Run starts every actor and waits for all of them to exit. The first actor
// error cancels the others' pending waits and is returned.
func (w *Workshop) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	w.log.WithFields(logrus.Fields{
		"elves":    w.params.Elves,
		"reindeer": w.params.Reindeer,
		"seed":     w.seed,
	}).Debug("workshop starting")

	g, ctx := errgroup.WithContext(ctx)
	w.spawn(g, ctx, "santa", w.santa)
	for id := 1; id <= w.params.Elves; id++ {
		rng := w.rng(id)
		w.spawn(g, ctx, fmt.Sprintf("elf %d", id), func(ctx context.Context) error {
			return w.elf(ctx, id, rng)
		})
	}
	for id := 1; id <= w.params.Reindeer; id++ {
		rng := w.rng(w.params.Elves + id)
		w.spawn(g, ctx, fmt.Sprintf("reindeer %d", id), func(ctx context.Context) error {
			return w.reindeer(ctx, id, rng)
		})
	}

	err := g.Wait()
	if err != nil {
		w.log.WithError(err).Error("workshop run failed")
		return err
	}
	w.log.WithField("actions", w.Stats().Actions).Debug("workshop finished")
	return nil
}

// spawn runs fn as a supervised unit. A panic is reported as an abnormal
// exit rather than crashing the process.
func (w *Workshop) spawn(g *errgroup.Group, ctx context.Context, unit string, fn func(context.Context) error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &UnitError{Unit: unit, Abnormal: true, Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		if err := fn(ctx); err != nil {
			return &UnitError{Unit: unit, Err: err}
		}
		return nil
	})
}

func (w *Workshop) rng(unit int) *rand.Rand {
	return rand.New(rand.NewSource(w.seed + int64(unit)))
}

// locked runs fn with mu held. The deferred unlock keeps a panicking actor
// from leaving the others stuck on mu.
func (w *Workshop) locked(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn()
}

// logLocked appends an action labelled with the next counter value.
// Callers must hold mu.
func (w *Workshop) logLocked(role model.Role, id int, p model.Phrase) error {
	a := model.Action{Seq: w.st.counter.Peek(), Role: role, ActorID: id, Phrase: p}
	if err := w.journal.Append(a); err != nil {
		return err
	}
	w.st.counter.Tick()
	return nil
}

// record logs a single action in its own critical section.
func (w *Workshop) record(role model.Role, id int, p model.Phrase) error {
	return w.locked(func() error { return w.logLocked(role, id, p) })
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randomDelay returns a whole number of milliseconds drawn uniformly from
// [lo, hi].
func randomDelay(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	loMs, hiMs := lo.Milliseconds(), hi.Milliseconds()
	if hiMs <= loMs {
		return time.Duration(loMs) * time.Millisecond
	}
	return time.Duration(loMs+rng.Int63n(hiMs-loMs+1)) * time.Millisecond
}

// Stats is a snapshot of the shared state.
type Stats struct {
	Actions      int64 `json:"actions"`
	HelpCycles   int   `json:"help_cycles"`
	Closed       bool  `json:"closed"`
	ElvesWaiting int   `json:"elves_waiting"`
	ReindeerHome int   `json:"reindeer_home"`
}

// Stats returns the current shared state.
func (w *Workshop) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Actions:      w.st.counter.Issued(),
		HelpCycles:   w.st.helpCycles,
		Closed:       w.st.closed,
		ElvesWaiting: w.st.elves,
		ReindeerHome: w.st.reindeer,
	}
}
