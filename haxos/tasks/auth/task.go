// Package auth is the interactive login sample: a username/password
// state machine over terminal input, checked against /etc/users.
//
// The base variant gives the user exactly one attempt. The -lockout
// variant keeps prompting, but three consecutive failures lock the
// account permanently: a locked account rejects even the correct
// password.
package auth

import (
	"hax/internal/userdb"
	"hax/haxos/kernel"
)

type stage uint8

const (
	stageUsername stage = iota
	stagePassword
)

// effect is what one transition asks the driver to do.
type effect struct {
	lines  []string
	prompt string
	exit   bool
}

type Task struct {
	ctx   *kernel.Context
	users []userdb.Record
	lock  *userdb.Lockout

	st   stage
	user string
	line []byte
}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	t.ctx = ctx
	for _, a := range ctx.Args() {
		if a == "-lockout" {
			t.lock = userdb.NewLockout()
		}
	}

	b, ok := ctx.ReadFile(userdb.UsersPath)
	if !ok {
		ctx.Terminal().WriteLn("auth: no user database")
		ctx.Exit()
		return nil
	}
	users, err := userdb.ParseUsersFile(b)
	if err != nil {
		ctx.Terminal().WriteLn("auth: " + err.Error())
		ctx.Exit()
		return nil
	}
	t.users = users

	t.st = stageUsername
	ctx.Terminal().Write("login: ")
	return nil
}

// Stop has nothing to release: the line buffer dies with the task, and
// touching it here could overlap an in-flight HandleInput.
func (t *Task) Stop() {}

// HandleInput buffers raw bytes into lines and feeds complete lines to
// the state machine. Empty input is the user-cancel event.
func (t *Task) HandleInput(b []byte) {
	if len(b) == 0 {
		t.ctx.Terminal().WriteLn("")
		t.ctx.Exit()
		return
	}
	for _, c := range b {
		switch c {
		case '\r':
		case '\n':
			line := string(t.line)
			t.line = t.line[:0]
			t.step(line)
		default:
			t.line = append(t.line, c)
		}
	}
}

func (t *Task) step(line string) {
	next, eff := t.transition(t.st, line)
	t.st = next
	for _, l := range eff.lines {
		t.ctx.Terminal().WriteLn(l)
	}
	if eff.prompt != "" {
		t.ctx.Terminal().Write(eff.prompt)
	}
	if eff.exit {
		t.ctx.Exit()
	}
}

// transition is the pure state machine: (stage, input line) to
// (stage, effect). All terminal writes and termination go through the
// returned effect.
func (t *Task) transition(s stage, line string) (stage, effect) {
	switch s {
	case stageUsername:
		if line == "" {
			return stageUsername, effect{prompt: "login: "}
		}
		t.user = line
		return stagePassword, effect{prompt: "password: "}

	case stagePassword:
		if t.lock != nil && t.lock.Locked(t.user) {
			return stageUsername, effect{lines: []string{"account is locked"}, prompt: "login: "}
		}

		rec, found := userdb.Find(t.users, t.user)
		ok := found && rec.VerifyPassword([]byte(line))
		if t.lock != nil {
			t.lock.Note(t.user, ok)
		}

		if ok {
			return stageUsername, effect{lines: []string{"Welcome, " + t.user + "."}, exit: true}
		}
		if t.lock != nil {
			return stageUsername, effect{lines: []string{"Authentication failed."}, prompt: "login: "}
		}
		// Base variant: one attempt, no retry.
		return stageUsername, effect{lines: []string{"Authentication failed."}, exit: true}
	}
	return stageUsername, effect{prompt: "login: "}
}
