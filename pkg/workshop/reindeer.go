package workshop

import (
	"context"
	"math/rand"
	"time"

	"github.com/daviddao/northpole/pkg/model"
)

// reindeer comes back from vacation, then waits to be hitched. The shared
// reindeer count is reused for both phases; Santa resets it in between.
func (w *Workshop) reindeer(ctx context.Context, id int, rng *rand.Rand) error {
	if err := w.record(model.RoleReindeer, id, model.PhraseStarted); err != nil {
		return err
	}

	// Integer halving of the millisecond bound: 5 gives [2, 5].
	half := time.Duration(w.params.ReindeerVacation/2) * time.Millisecond
	if err := sleep(ctx, randomDelay(rng, half, w.params.VacationDuration())); err != nil {
		return err
	}
	err := w.locked(func() error {
		if err := w.logLocked(model.RoleReindeer, id, model.PhraseReturn); err != nil {
			return err
		}
		w.st.reindeer++
		if w.st.reindeer == w.params.Reindeer {
			return w.wakeSanta.Post()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := w.hitchCall.Wait(ctx); err != nil {
		return err
	}
	return w.locked(func() error {
		if err := w.logLocked(model.RoleReindeer, id, model.PhraseHitched); err != nil {
			return err
		}
		w.st.reindeer++
		if w.st.reindeer == w.params.Reindeer {
			return w.sleighReady.Post()
		}
		return nil
	})
}
