package workshop

import (
	"context"

	"github.com/daviddao/northpole/pkg/model"
)

type quorum int

const (
	noQuorum quorum = iota
	reindeerQuorum
	elfQuorum
)

// santa sleeps until a quorum wakes him. The reindeer quorum is checked
// first and always wins: it closes the workshop and ends the run.
func (w *Workshop) santa(ctx context.Context) error {
	log := w.log.WithField("role", "santa")
	for {
		if err := w.record(model.RoleSanta, 0, model.PhraseSleep); err != nil {
			return err
		}
		if err := w.wakeSanta.Wait(ctx); err != nil {
			return err
		}

		var q quorum
		err := w.locked(func() error {
			switch {
			case w.st.reindeer == w.params.Reindeer:
				w.st.reindeer = 0
				if err := w.logLocked(model.RoleSanta, 0, model.PhraseClosing); err != nil {
					return err
				}
				w.st.closed = true
				q = reindeerQuorum
			case w.st.elves == model.RequiredElves:
				if err := w.logLocked(model.RoleSanta, 0, model.PhraseHelping); err != nil {
					return err
				}
				w.st.helpCycles++
				q = elfQuorum
			}
			return nil
		})
		if err != nil {
			return err
		}

		switch q {
		case reindeerQuorum:
			log.Debug("reindeer quorum, closing workshop")
			return w.startChristmas(ctx)
		case elfQuorum:
			log.Debug("elf quorum, helping")
			if err := w.helpReady.PostN(model.RequiredElves); err != nil {
				return err
			}
			if err := w.ackService.Wait(ctx); err != nil {
				return err
			}
		default:
			log.Warn("woke without a quorum")
		}
	}
}

// startChristmas releases everyone still waiting on the workshop, hitches
// every reindeer and waits for the sleigh.
func (w *Workshop) startChristmas(ctx context.Context) error {
	// One permit each is enough: every elf leaving for holidays posts both
	// again, which releases the next one.
	if err := w.helpReady.Post(); err != nil {
		return err
	}
	if err := w.elfSlot.Post(); err != nil {
		return err
	}
	if err := w.hitchCall.PostN(w.params.Reindeer); err != nil {
		return err
	}
	if err := w.sleighReady.Wait(ctx); err != nil {
		return err
	}
	return w.record(model.RoleSanta, 0, model.PhraseChristmas)
}
