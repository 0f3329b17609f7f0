// Package greet is the smallest possible task: validate arguments,
// print a greeting, terminate.
package greet

import (
	"fmt"
	"strings"

	"hax/haxos/kernel"
)

type Task struct{}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		// Malformed arguments are user-visible, not fatal.
		ctx.Terminal().WriteLn("usage: greet <name>...")
		return nil
	}
	ctx.Terminal().WriteLn(fmt.Sprintf("Hello, %s!", strings.Join(args, " ")))
	return nil
}

func (t *Task) Stop() {}
