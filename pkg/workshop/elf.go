package workshop

import (
	"context"
	"math/rand"

	"github.com/daviddao/northpole/pkg/model"
)

// elf works, queues for help in groups of RequiredElves and gets helped,
// until it finds the workshop closed at one of its two checkpoints.
func (w *Workshop) elf(ctx context.Context, id int, rng *rand.Rand) error {
	log := w.log.WithField("role", "elf").WithField("id", id)
	if err := w.record(model.RoleElf, id, model.PhraseStarted); err != nil {
		return err
	}

	for {
		if err := sleep(ctx, randomDelay(rng, 0, w.params.ElfWorkDuration())); err != nil {
			return err
		}
		if err := w.elfSlot.Wait(ctx); err != nil {
			return err
		}
		closed, err := w.joinQueue(id)
		if err != nil {
			return err
		}
		if closed {
			break
		}

		log.Debug("waiting for help")
		if err := w.helpReady.Wait(ctx); err != nil {
			return err
		}
		closed, err = w.takeHelp(id)
		if err != nil {
			return err
		}
		if closed {
			break
		}
	}

	if err := w.record(model.RoleElf, id, model.PhraseHoliday); err != nil {
		return err
	}
	// Pass the shutdown on to whoever is still waiting.
	if err := w.elfSlot.Post(); err != nil {
		return err
	}
	return w.helpReady.Post()
}

// joinQueue is the first checkpoint. The caller holds the elf slot; it is
// handed to the next elf unless this one completes the quorum, in which case
// it stays taken until the group has been helped.
func (w *Workshop) joinQueue(id int) (closed bool, err error) {
	err = w.locked(func() error {
		if err := w.logLocked(model.RoleElf, id, model.PhraseNeedHelp); err != nil {
			return err
		}
		if w.st.closed {
			closed = true
			return nil
		}
		w.st.elves++
		if w.st.elves == model.RequiredElves {
			return w.wakeSanta.Post()
		}
		return w.elfSlot.Post()
	})
	return closed, err
}

// takeHelp is the second checkpoint. The last elf of the group tells Santa
// the service is done and reopens the slot.
func (w *Workshop) takeHelp(id int) (closed bool, err error) {
	err = w.locked(func() error {
		if w.st.closed {
			closed = true
			return nil
		}
		if err := w.logLocked(model.RoleElf, id, model.PhraseGetHelp); err != nil {
			return err
		}
		w.st.elves--
		if w.st.elves == 0 {
			if err := w.ackService.Post(); err != nil {
				return err
			}
			return w.elfSlot.Post()
		}
		return nil
	})
	return closed, err
}
