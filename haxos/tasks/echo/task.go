// Package echo is the responder sample: every datagram arriving on the
// bound port is sent straight back to its source. It is the standard
// peer for sync-channel round-trip exercises.
package echo

import (
	"fmt"
	"strconv"

	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
)

const DefaultPort = 7

type Task struct {
	ch *net.AsyncChannel
}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	port := DefaultPort
	if args := ctx.Args(); len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 1 || p > 65535 {
			ctx.Terminal().WriteLn("usage: echo [port]")
			ctx.Exit()
			return nil
		}
		port = p
	}

	ch, err := ctx.OpenAsync(uint16(port))
	if err != nil {
		ctx.Terminal().WriteLn("echo: " + err.Error())
		ctx.Exit()
		return nil
	}
	t.ch = ch

	if err := ch.Subscribe(func(d proto.Datagram) {
		_ = ch.Publish(d.Reply(d.Payload))
	}); err != nil {
		return err
	}
	ctx.Terminal().WriteLn(fmt.Sprintf("echo: listening on port %d", port))
	return nil
}

func (t *Task) Stop() {}
