package verify

import (
	"strings"
	"testing"

	"github.com/daviddao/northpole/pkg/model"
)

// logBuilder numbers actions as they are appended.
type logBuilder struct {
	actions []model.Action
}

func (b *logBuilder) add(role model.Role, id int, p model.Phrase) *logBuilder {
	b.actions = append(b.actions, model.Action{
		Seq: int64(len(b.actions) + 1), Role: role, ActorID: id, Phrase: p,
	})
	return b
}

func (b *logBuilder) santa(p model.Phrase) *logBuilder       { return b.add(model.RoleSanta, 0, p) }
func (b *logBuilder) elf(id int, p model.Phrase) *logBuilder { return b.add(model.RoleElf, id, p) }
func (b *logBuilder) rd(id int, p model.Phrase) *logBuilder  { return b.add(model.RoleReindeer, id, p) }

// validRun is a complete run with 3 elves, 2 reindeer and one help cycle.
func validRun() *logBuilder {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseStarted)
	}
	b.rd(1, model.PhraseStarted).rd(2, model.PhraseStarted)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseNeedHelp)
	}
	b.santa(model.PhraseHelping)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseGetHelp)
	}
	b.santa(model.PhraseSleep)
	b.elf(2, model.PhraseNeedHelp)
	b.rd(2, model.PhraseReturn).rd(1, model.PhraseReturn)
	b.santa(model.PhraseClosing)
	b.elf(2, model.PhraseHoliday)
	b.rd(1, model.PhraseHitched).rd(2, model.PhraseHitched)
	b.santa(model.PhraseChristmas)
	b.elf(1, model.PhraseNeedHelp).elf(1, model.PhraseHoliday)
	b.elf(3, model.PhraseNeedHelp).elf(3, model.PhraseHoliday)
	return b
}

var params = model.Params{Elves: 3, Reindeer: 2}

func hasRule(r Report, rule string) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func TestCheck_ValidRun(t *testing.T) {
	r := Check(validRun().actions, params)
	if !r.OK {
		t.Fatalf("expected valid log, got violations: %v", r.Violations)
	}
	if r.HelpCycles != 1 || r.GotHelp != 3 {
		t.Fatalf("cycles/helps = %d/%d, want 1/3", r.HelpCycles, r.GotHelp)
	}
	if !r.Closed || !r.Christmas {
		t.Fatal("expected closed workshop and Christmas")
	}
}

func TestCheck_SequenceGap(t *testing.T) {
	actions := validRun().actions
	actions[4].Seq = 99
	r := Check(actions, params)
	if r.OK || !hasRule(r, RuleSequence) {
		t.Fatalf("expected sequence violation, got %v", r.Violations)
	}
}

func TestCheck_DuplicateSequence(t *testing.T) {
	actions := validRun().actions
	actions[5].Seq = actions[4].Seq
	if r := Check(actions, params); !hasRule(r, RuleSequence) {
		t.Fatalf("expected sequence violation, got %v", r.Violations)
	}
}

func TestCheck_UnknownPhrase(t *testing.T) {
	b := validRun()
	b.actions[0].Phrase = "dreaming"
	if r := Check(b.actions, params); !hasRule(r, RulePhrase) {
		t.Fatalf("expected phrase violation, got %v", r.Violations)
	}
}

func TestCheck_ShortHelpCycle(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.elf(1, model.PhraseStarted).elf(1, model.PhraseNeedHelp)
	b.santa(model.PhraseHelping)
	b.elf(1, model.PhraseGetHelp)
	b.santa(model.PhraseSleep)
	r := Check(b.actions, model.Params{Elves: 1, Reindeer: 1})
	if !hasRule(r, RuleHelpCycle) {
		t.Fatalf("expected help-cycle violation, got %v", r.Violations)
	}
}

func TestCheck_HelpOutsideCycle(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.elf(1, model.PhraseStarted).elf(1, model.PhraseGetHelp)
	if r := Check(b.actions, model.Params{Elves: 1, Reindeer: 1}); !hasRule(r, RuleHelpCycle) {
		t.Fatalf("expected help-cycle violation, got %v", r.Violations)
	}
}

func TestCheck_HelpWithoutNeedHelp(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseStarted)
	}
	b.rd(1, model.PhraseStarted)
	b.santa(model.PhraseHelping)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseGetHelp)
	}
	b.santa(model.PhraseSleep)
	b.rd(1, model.PhraseReturn)
	b.santa(model.PhraseClosing)
	b.rd(1, model.PhraseHitched)
	b.santa(model.PhraseChristmas)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseHoliday)
	}

	r := Check(b.actions, model.Params{Elves: 3, Reindeer: 1})
	if r.OK {
		t.Fatal("expected elves helped without asking to be rejected")
	}
	var unasked int
	for _, v := range r.Violations {
		if v.Rule == RuleHelpCycle && strings.Contains(v.Detail, "without asking") {
			unasked++
		}
	}
	if unasked != 3 {
		t.Fatalf("got %d unasked-help violations, want 3: %v", unasked, r.Violations)
	}
}

func TestCheck_HelpingWithoutQuorum(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	for id := 1; id <= 3; id++ {
		b.elf(id, model.PhraseStarted)
	}
	b.elf(1, model.PhraseNeedHelp).elf(2, model.PhraseNeedHelp)
	b.santa(model.PhraseHelping)
	r := Check(b.actions, model.Params{Elves: 3, Reindeer: 1})
	found := false
	for _, v := range r.Violations {
		if v.Rule == RuleHelpCycle && strings.Contains(v.Detail, "2 elves queued") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a queue-size violation, got %v", r.Violations)
	}
}

func TestCheck_NeedHelpTwice(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.elf(1, model.PhraseStarted).elf(1, model.PhraseNeedHelp).elf(1, model.PhraseNeedHelp)
	r := Check(b.actions, model.Params{Elves: 1, Reindeer: 1})
	found := false
	for _, v := range r.Violations {
		if v.Rule == RuleHelpCycle && strings.Contains(v.Detail, "already queued") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a repeated-request violation, got %v", r.Violations)
	}
}

func TestCheck_QueuedElfLeavesAtClosing(t *testing.T) {
	// Elf 2 is queued when the workshop closes and leaves without help.
	r := Check(validRun().actions, params)
	if !r.OK {
		t.Fatalf("queued elf taking holidays rejected: %v", r.Violations)
	}
}

func TestCheck_ClosingBeforeAllReindeer(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.rd(1, model.PhraseStarted).rd(2, model.PhraseStarted)
	b.rd(1, model.PhraseReturn)
	b.santa(model.PhraseClosing)
	r := Check(b.actions, model.Params{Elves: 1, Reindeer: 2})
	if !hasRule(r, RuleClosing) {
		t.Fatalf("expected closing violation, got %v", r.Violations)
	}
}

func TestCheck_ClosingTwice(t *testing.T) {
	b := validRun()
	// Splice a second closing right after the first.
	var out []model.Action
	for _, a := range b.actions {
		out = append(out, a)
		if a.Phrase == model.PhraseClosing {
			out = append(out, a)
		}
	}
	for i := range out {
		out[i].Seq = int64(i + 1)
	}
	if r := Check(out, params); !hasRule(r, RuleClosing) {
		t.Fatalf("expected closing violation, got %v", r.Violations)
	}
}

func TestCheck_HitchedBeforeClosing(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.rd(1, model.PhraseStarted).rd(1, model.PhraseReturn).rd(1, model.PhraseHitched)
	if r := Check(b.actions, model.Params{Elves: 1, Reindeer: 1}); !hasRule(r, RuleReindeer) {
		t.Fatalf("expected reindeer violation, got %v", r.Violations)
	}
}

func TestCheck_ChristmasTooEarly(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.rd(1, model.PhraseStarted).rd(2, model.PhraseStarted)
	b.rd(1, model.PhraseReturn).rd(2, model.PhraseReturn)
	b.santa(model.PhraseClosing)
	b.rd(1, model.PhraseHitched)
	b.santa(model.PhraseChristmas)
	b.rd(2, model.PhraseHitched)
	r := Check(b.actions, model.Params{Elves: 1, Reindeer: 2})
	if !hasRule(r, RuleChristmas) || !hasRule(r, RuleReindeer) {
		t.Fatalf("expected christmas and reindeer violations, got %v", r.Violations)
	}
}

func TestCheck_HelpAfterClosing(t *testing.T) {
	b := &logBuilder{}
	b.santa(model.PhraseSleep)
	b.rd(1, model.PhraseStarted).rd(1, model.PhraseReturn)
	b.santa(model.PhraseClosing)
	b.elf(1, model.PhraseStarted).elf(1, model.PhraseGetHelp)
	if r := Check(b.actions, model.Params{Elves: 1, Reindeer: 1}); !hasRule(r, RuleHelpCycle) {
		t.Fatalf("expected help-cycle violation, got %v", r.Violations)
	}
}

func TestCheck_Incomplete(t *testing.T) {
	b := validRun()
	b.actions = b.actions[:len(b.actions)-1] // Elf 3 never takes holidays
	r := Check(b.actions, params)
	if !hasRule(r, RuleComplete) {
		t.Fatalf("expected complete violation, got %v", r.Violations)
	}
}

func TestCheck_ActorOutOfRange(t *testing.T) {
	r := Check(validRun().actions, model.Params{Elves: 2, Reindeer: 2})
	if !hasRule(r, RuleActor) {
		t.Fatalf("expected actor violation, got %v", r.Violations)
	}
}

func TestInferParams(t *testing.T) {
	p := InferParams(validRun().actions)
	if p.Elves != 3 || p.Reindeer != 2 {
		t.Fatalf("InferParams = %+v, want 3 elves / 2 reindeer", p)
	}
}

func TestReadLog(t *testing.T) {
	var sb strings.Builder
	for _, a := range validRun().actions {
		sb.WriteString(a.String() + "\n")
	}
	sb.WriteString("\n")
	actions, err := ReadLog(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if r := Check(actions, params); !r.OK {
		t.Fatalf("re-read log is invalid: %v", r.Violations)
	}
}

func TestReadLog_BadLine(t *testing.T) {
	_, err := ReadLog(strings.NewReader("1: Santa: going to sleep\ngarbage\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected error naming line 2, got %v", err)
	}
}
