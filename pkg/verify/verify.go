// Package verify checks an action log against the ordering rules of the
// workshop protocol.
//
// A log is valid when its counter values run 1, 2, 3, ... without gaps and
// the quorum rendezvous can be read back from it:
//
//   - every "helping elves" finds exactly RequiredElves elves queued by
//     "need help" and is followed by exactly RequiredElves "get help" lines
//     before Santa's next action;
//   - an elf gets help only after asking for it, and asks again only once
//     it has been helped;
//   - "closing workshop" appears once, after every reindeer returned home and
//     before any reindeer is hitched;
//   - every reindeer is hitched before "Christmas started";
//   - no elf gets help once the workshop is closed;
//   - every actor that started also finished.
package verify

import (
	"bufio"
	"fmt"
	"io"

	"github.com/daviddao/northpole/pkg/model"
)

// Violation is one broken rule.
type Violation struct {
	Seq    int64  `json:"seq,omitempty"` // offending action, 0 for whole-log rules
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	if v.Seq == 0 {
		return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
	}
	return fmt.Sprintf("%s at %d: %s", v.Rule, v.Seq, v.Detail)
}

// Report is the result of checking one log.
type Report struct {
	OK         bool        `json:"ok"`
	Actions    int         `json:"actions"`
	HelpCycles int         `json:"help_cycles"`
	GotHelp    int         `json:"got_help"`
	Closed     bool        `json:"closed"`
	Christmas  bool        `json:"christmas"`
	Violations []Violation `json:"violations,omitempty"`
}

// Rule names.
const (
	RuleSequence  = "sequence"
	RulePhrase    = "phrase"
	RuleActor     = "actor"
	RuleHelpCycle = "help-cycle"
	RuleClosing   = "closing"
	RuleReindeer  = "reindeer"
	RuleChristmas = "christmas"
	RuleComplete  = "complete"
)

type actorTrack struct {
	started, finished bool
	returned          bool
	waiting           bool // elf queued by "need help", not yet helped
}

type checker struct {
	p   model.Params
	rep Report

	inCycle    bool // between "helping elves" and Santa's next action
	cycleHelps int
	cycleSeq   int64

	queued   int // elves waiting for help
	returned int
	hitched  int

	elves    map[int]*actorTrack
	reindeer map[int]*actorTrack
}

func (c *checker) fail(seq int64, rule, format string, args ...interface{}) {
	c.rep.Violations = append(c.rep.Violations, Violation{Seq: seq, Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// Check verifies actions, which must be in log order, for a run with
// parameters p.
func Check(actions []model.Action, p model.Params) Report {
	c := &checker{
		p:        p,
		elves:    make(map[int]*actorTrack),
		reindeer: make(map[int]*actorTrack),
	}
	c.rep.Actions = len(actions)
	for i, a := range actions {
		if want := int64(i + 1); a.Seq != want {
			c.fail(a.Seq, RuleSequence, "counter value %d at line %d, want %d", a.Seq, i+1, want)
		}
		if !model.Allowed(a.Role, a.Phrase) {
			c.fail(a.Seq, RulePhrase, "%s may not log %q", a.Actor(), a.Phrase)
			continue
		}
		c.step(a)
	}
	c.finish()
	c.rep.OK = len(c.rep.Violations) == 0
	return c.rep
}

func (c *checker) track(a model.Action) *actorTrack {
	m, limit := c.elves, c.p.Elves
	if a.Role == model.RoleReindeer {
		m, limit = c.reindeer, c.p.Reindeer
	}
	if a.ActorID < 1 || a.ActorID > limit {
		c.fail(a.Seq, RuleActor, "%s is outside 1..%d", a.Actor(), limit)
	}
	t := m[a.ActorID]
	if t == nil {
		t = &actorTrack{}
		m[a.ActorID] = t
	}
	if a.Phrase == model.PhraseStarted {
		if t.started {
			c.fail(a.Seq, RuleActor, "%s started twice", a.Actor())
		}
		t.started = true
	} else if !t.started {
		c.fail(a.Seq, RuleActor, "%s acted before it started", a.Actor())
	}
	if t.finished {
		c.fail(a.Seq, RuleActor, "%s acted after it finished", a.Actor())
	}
	return t
}

func (c *checker) step(a model.Action) {
	switch a.Role {
	case model.RoleSanta:
		c.santa(a)
	case model.RoleElf:
		c.elf(a)
	case model.RoleReindeer:
		c.reindeerStep(a)
	}
}

func (c *checker) endCycle() {
	if c.inCycle && c.cycleHelps != model.RequiredElves {
		c.fail(c.cycleSeq, RuleHelpCycle, "%d elves got help in this cycle, want %d", c.cycleHelps, model.RequiredElves)
	}
	c.inCycle = false
}

func (c *checker) santa(a model.Action) {
	if c.rep.Christmas {
		c.fail(a.Seq, RuleChristmas, "Santa acted after Christmas started")
	}
	c.endCycle()
	switch a.Phrase {
	case model.PhraseHelping:
		if c.rep.Closed {
			c.fail(a.Seq, RuleHelpCycle, "helping elves after the workshop closed")
		}
		if c.queued != model.RequiredElves {
			c.fail(a.Seq, RuleHelpCycle, "helping elves with %d elves queued, want %d", c.queued, model.RequiredElves)
		}
		c.rep.HelpCycles++
		c.inCycle, c.cycleHelps, c.cycleSeq = true, 0, a.Seq
	case model.PhraseClosing:
		if c.rep.Closed {
			c.fail(a.Seq, RuleClosing, "workshop closed twice")
		}
		if c.returned != c.p.Reindeer {
			c.fail(a.Seq, RuleClosing, "closed after %d reindeer returned, want %d", c.returned, c.p.Reindeer)
		}
		c.rep.Closed = true
	case model.PhraseChristmas:
		if !c.rep.Closed {
			c.fail(a.Seq, RuleChristmas, "Christmas started before the workshop closed")
		}
		if c.hitched != c.p.Reindeer {
			c.fail(a.Seq, RuleChristmas, "Christmas started with %d reindeer hitched, want %d", c.hitched, c.p.Reindeer)
		}
		c.rep.Christmas = true
	case model.PhraseSleep:
		if c.rep.Closed {
			c.fail(a.Seq, RuleClosing, "Santa went to sleep after closing the workshop")
		}
	}
}

func (c *checker) elf(a model.Action) {
	t := c.track(a)
	switch a.Phrase {
	case model.PhraseNeedHelp:
		if t.waiting {
			c.fail(a.Seq, RuleHelpCycle, "%s asked for help while already queued", a.Actor())
		}
		// After closing the request is turned away and the elf leaves.
		if !c.rep.Closed && !t.waiting {
			t.waiting = true
			c.queued++
		}
	case model.PhraseGetHelp:
		c.rep.GotHelp++
		if c.rep.Closed {
			c.fail(a.Seq, RuleHelpCycle, "%s got help after the workshop closed", a.Actor())
		}
		if !t.waiting {
			c.fail(a.Seq, RuleHelpCycle, "%s got help without asking for it", a.Actor())
		} else {
			t.waiting = false
			c.queued--
		}
		if !c.inCycle {
			c.fail(a.Seq, RuleHelpCycle, "%s got help while Santa was not helping", a.Actor())
			return
		}
		c.cycleHelps++
		if c.cycleHelps > model.RequiredElves {
			c.fail(a.Seq, RuleHelpCycle, "more than %d elves helped in one cycle", model.RequiredElves)
		}
	case model.PhraseHoliday:
		if !c.rep.Closed {
			c.fail(a.Seq, RuleClosing, "%s took holidays before the workshop closed", a.Actor())
		}
		if t.waiting {
			t.waiting = false
			c.queued--
		}
		t.finished = true
	}
}

func (c *checker) reindeerStep(a model.Action) {
	t := c.track(a)
	switch a.Phrase {
	case model.PhraseReturn:
		if t.returned {
			c.fail(a.Seq, RuleReindeer, "%s returned twice", a.Actor())
		}
		if c.rep.Closed {
			c.fail(a.Seq, RuleReindeer, "%s returned after the workshop closed", a.Actor())
		}
		t.returned = true
		c.returned++
	case model.PhraseHitched:
		if !c.rep.Closed {
			c.fail(a.Seq, RuleReindeer, "%s hitched before the workshop closed", a.Actor())
		}
		if !t.returned {
			c.fail(a.Seq, RuleReindeer, "%s hitched without returning home", a.Actor())
		}
		if c.rep.Christmas {
			c.fail(a.Seq, RuleReindeer, "%s hitched after Christmas started", a.Actor())
		}
		t.finished = true
		c.hitched++
	}
}

func (c *checker) finish() {
	c.endCycle()
	if c.rep.GotHelp%model.RequiredElves != 0 {
		c.fail(0, RuleHelpCycle, "%d elves got help in total, not a multiple of %d", c.rep.GotHelp, model.RequiredElves)
	}
	if !c.rep.Christmas {
		c.fail(0, RuleComplete, "Christmas never started")
	}
	for id := 1; id <= c.p.Elves; id++ {
		if t := c.elves[id]; t == nil || !t.finished {
			c.fail(0, RuleComplete, "Elf %d never took holidays", id)
		}
	}
	for id := 1; id <= c.p.Reindeer; id++ {
		if t := c.reindeer[id]; t == nil || !t.finished {
			c.fail(0, RuleComplete, "RD %d was never hitched", id)
		}
	}
}

// InferParams derives pool sizes from the highest actor ids in the log.
// Delays cannot be recovered and are left zero.
func InferParams(actions []model.Action) model.Params {
	var p model.Params
	for _, a := range actions {
		switch a.Role {
		case model.RoleElf:
			p.Elves = max(p.Elves, a.ActorID)
		case model.RoleReindeer:
			p.Reindeer = max(p.Reindeer, a.ActorID)
		}
	}
	return p
}

// ReadLog parses a log written by journal.Writer. Blank lines are skipped.
func ReadLog(r io.Reader) ([]model.Action, error) {
	var actions []model.Action
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		a, err := model.ParseAction(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		actions = append(actions, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return actions, nil
}
