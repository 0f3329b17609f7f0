// Package ping is the blocking-query sample: send one datagram over a
// sync channel and report the response, or its absence. Absence is a
// normal outcome, not an error.
package ping

import (
	"fmt"
	"strconv"
	"time"

	"hax/haxos/kernel"
	"hax/haxos/proto"
)

const defaultTimeout = time.Second

type Task struct{}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		ctx.Terminal().WriteLn("usage: ping <addr> <port> [text]")
		return nil
	}
	addr, ok := proto.ParseAddr(args[0])
	if !ok {
		ctx.Terminal().WriteLn("ping: bad address " + args[0])
		return nil
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		ctx.Terminal().WriteLn("ping: bad port " + args[1])
		return nil
	}
	text := "ping"
	if len(args) > 2 {
		text = args[2]
	}

	ch, err := ctx.OpenSync()
	if err != nil {
		return err
	}

	// Blocks this task only; the rest of the machine keeps running.
	start := time.Now()
	resp, ok, err := ch.Query(proto.Datagram{
		DstAddr: addr,
		DstPort: uint16(port),
		Payload: []byte(text),
	}, defaultTimeout)
	if err != nil {
		return err
	}
	if !ok {
		ctx.Terminal().WriteLn(fmt.Sprintf("ping: no response from %s:%d", addr, port))
		return nil
	}
	ctx.Terminal().WriteLn(fmt.Sprintf("ping: %s:%d answered %q in %v",
		resp.SrcAddr, resp.SrcPort, resp.Payload, time.Since(start).Round(time.Millisecond)))
	return nil
}

func (t *Task) Stop() {}
