// Package model defines the core domain types for northpole.
//
// Northpole simulates the Santa Claus problem: one coordinator (Santa), a pool
// of elves and a pool of reindeer meet on two quorum conditions:
//
//   - Elf quorum: exactly RequiredElves elves need help at the same time.
//     Santa helps all of them, then goes back to sleep.
//
//   - Reindeer quorum: every reindeer is back from vacation. Santa closes the
//     workshop for good, hitches every reindeer and Christmas starts.
//
// Every action any actor takes is labelled with a value from a single global
// action counter, so the log proves one total order over the whole run.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RequiredElves is the size of an elf quorum.
const RequiredElves = 3

// Parameter bounds. All intervals are inclusive.
const (
	MinElves    = 1
	MaxElves    = 999
	MinReindeer = 1
	MaxReindeer = 19
	MinElfWork  = 0
	MaxElfWork  = 1000 // ms
	MinVacation = 0
	MaxVacation = 1000 // ms
)

// Role identifies which kind of actor produced an action.
type Role string

const (
	RoleSanta    Role = "Santa"
	RoleElf      Role = "Elf"
	RoleReindeer Role = "RD"
)

// Phrase is the event part of a log line. The set below is closed: no other
// phrase may appear in a valid log.
type Phrase string

const (
	// Santa
	PhraseSleep     Phrase = "going to sleep"
	PhraseHelping   Phrase = "helping elves"
	PhraseClosing   Phrase = "closing workshop"
	PhraseChristmas Phrase = "Christmas started"

	// Elves and reindeer
	PhraseStarted Phrase = "started"

	// Elves
	PhraseNeedHelp Phrase = "need help"
	PhraseGetHelp  Phrase = "get help"
	PhraseHoliday  Phrase = "taking holidays"

	// Reindeer
	PhraseReturn  Phrase = "return home"
	PhraseHitched Phrase = "get hitched"
)

var rolePhrases = map[Role]map[Phrase]bool{
	RoleSanta: {
		PhraseSleep: true, PhraseHelping: true, PhraseClosing: true, PhraseChristmas: true,
	},
	RoleElf: {
		PhraseStarted: true, PhraseNeedHelp: true, PhraseGetHelp: true, PhraseHoliday: true,
	},
	RoleReindeer: {
		PhraseStarted: true, PhraseReturn: true, PhraseHitched: true,
	},
}

// Allowed reports whether phrase p is one the given role may log.
func Allowed(r Role, p Phrase) bool {
	return rolePhrases[r][p]
}

// Action is a single line of the action log.
type Action struct {
	Seq     int64  `json:"seq"`
	Role    Role   `json:"role"`
	ActorID int    `json:"actor_id,omitempty"` // 0 for Santa
	Phrase  Phrase `json:"phrase"`
}

// Actor returns the role label as printed in the log ("Santa", "Elf 4", "RD 2").
func (a Action) Actor() string {
	if a.Role == RoleSanta {
		return string(RoleSanta)
	}
	return fmt.Sprintf("%s %d", a.Role, a.ActorID)
}

// String formats the action as a log line without the trailing newline.
func (a Action) String() string {
	return fmt.Sprintf("%d: %s: %s", a.Seq, a.Actor(), a.Phrase)
}

// ParseAction reads a line produced by Action.String. Surrounding whitespace,
// including the newline, is ignored.
func ParseAction(line string) (Action, error) {
	parts := strings.SplitN(strings.TrimSpace(line), ": ", 3)
	if len(parts) != 3 {
		return Action{}, fmt.Errorf("malformed action line %q", line)
	}
	seq, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("bad sequence number in %q: %w", line, err)
	}
	a := Action{Seq: seq, Phrase: Phrase(parts[2])}

	label := strings.Fields(parts[1])
	switch {
	case len(label) == 1 && label[0] == string(RoleSanta):
		a.Role = RoleSanta
	case len(label) == 2 && (label[0] == string(RoleElf) || label[0] == string(RoleReindeer)):
		a.Role = Role(label[0])
		id, err := strconv.Atoi(label[1])
		if err != nil || id < 1 {
			return Action{}, fmt.Errorf("bad actor id in %q", line)
		}
		a.ActorID = id
	default:
		return Action{}, fmt.Errorf("unknown actor %q", parts[1])
	}
	return a, nil
}

// Params are the four startup parameters of a run.
type Params struct {
	Elves            int `json:"elves"`
	Reindeer         int `json:"reindeer"`
	ElfWork          int `json:"elf_work_ms"`          // max elf work time
	ReindeerVacation int `json:"reindeer_vacation_ms"` // max reindeer vacation time
}

// ElfWorkDuration returns ElfWork as a time.Duration.
func (p Params) ElfWorkDuration() time.Duration {
	return time.Duration(p.ElfWork) * time.Millisecond
}

// VacationDuration returns ReindeerVacation as a time.Duration.
func (p Params) VacationDuration() time.Duration {
	return time.Duration(p.ReindeerVacation) * time.Millisecond
}

// ConfigError reports a bad startup parameter. It is always detected before
// any shared resource is created.
type ConfigError struct {
	Param string // empty for argument count errors
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return e.Msg
	}
	return e.Param + ": " + e.Msg
}

// ParseParams converts exactly four positional arguments (NE NR TE TR) into
// validated Params.
func ParseParams(args []string) (Params, error) {
	if len(args) != 4 {
		return Params{}, &ConfigError{Msg: fmt.Sprintf("invalid argument count: got %d, want 4 (NE NR TE TR)", len(args))}
	}
	names := [4]string{"NE", "NR", "TE", "TR"}
	var vals [4]int
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Params{}, &ConfigError{Param: names[i], Msg: fmt.Sprintf("%q is not an integer", s)}
		}
		vals[i] = v
	}
	p := Params{Elves: vals[0], Reindeer: vals[1], ElfWork: vals[2], ReindeerVacation: vals[3]}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks every parameter against its interval.
func (p Params) Validate() error {
	switch {
	case p.Elves < MinElves || p.Elves > MaxElves:
		return &ConfigError{Param: "NE", Msg: fmt.Sprintf("number of elves has to be from the interval <%d,%d>", MinElves, MaxElves)}
	case p.Reindeer < MinReindeer || p.Reindeer > MaxReindeer:
		return &ConfigError{Param: "NR", Msg: fmt.Sprintf("number of reindeer has to be from the interval <%d,%d>", MinReindeer, MaxReindeer)}
	case p.ElfWork < MinElfWork || p.ElfWork > MaxElfWork:
		return &ConfigError{Param: "TE", Msg: fmt.Sprintf("max elf work time has to be from the interval <%d,%d>", MinElfWork, MaxElfWork)}
	case p.ReindeerVacation < MinVacation || p.ReindeerVacation > MaxVacation:
		return &ConfigError{Param: "TR", Msg: fmt.Sprintf("max reindeer vacation time has to be from the interval <%d,%d>", MinVacation, MaxVacation)}
	}
	return nil
}

// RunStatus is the outcome of a recorded run.
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
	RunInvalid RunStatus = "invalid" // finished, but the log failed verification
)

// Run is one recorded execution of the workshop.
type Run struct {
	ID         int64     `json:"id"`
	Params     Params    `json:"params"`
	Seed       int64     `json:"seed"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Actions    int64     `json:"actions"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
