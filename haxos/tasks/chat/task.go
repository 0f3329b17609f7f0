// Package chat is the relay server sample. It owns one async channel
// and tracks peers by (address, port) key: the kernel has no session
// object, so session open and close are conventions over datagrams.
//
// Any datagram from an unknown key opens the session. A null (empty
// payload) datagram from a known key closes it; a later datagram from
// the same key is a fresh join. Everything else is relayed to the
// other peers tagged with the sender's key.
package chat

import (
	"fmt"
	"strconv"

	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
)

const DefaultPort = 6666

type Task struct {
	ctx   *kernel.Context
	ch    *net.AsyncChannel
	peers map[proto.PeerKey]struct{}
}

func New() *Task { return &Task{} }

func (t *Task) Start(ctx *kernel.Context) error {
	t.ctx = ctx
	t.peers = make(map[proto.PeerKey]struct{})

	port := DefaultPort
	if args := ctx.Args(); len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 1 || p > 65535 {
			ctx.Terminal().WriteLn("usage: chat [port]")
			ctx.Exit()
			return nil
		}
		port = p
	}

	ch, err := ctx.OpenAsync(uint16(port))
	if err != nil {
		ctx.Terminal().WriteLn("chat: " + err.Error())
		ctx.Exit()
		return nil
	}
	t.ch = ch

	// Callbacks run under the task's handler lock; peers needs no
	// locking of its own.
	if err := ch.Subscribe(t.onRecv); err != nil {
		return err
	}
	ctx.Terminal().WriteLn(fmt.Sprintf("chat: relaying on port %d", port))
	return nil
}

func (t *Task) Stop() {}

func (t *Task) onRecv(d proto.Datagram) {
	key := d.Source()
	_, known := t.peers[key]

	switch {
	case !known:
		// Session open; the opening payload itself is not relayed.
		t.peers[key] = struct{}{}
		t.broadcast(fmt.Sprintf("[%s] has joined", key), noExclude)
		t.ctx.Terminal().WriteLn(fmt.Sprintf("chat: %s joined", key))

	case d.IsNull():
		delete(t.peers, key)
		t.broadcast(fmt.Sprintf("[%s] has left", key), noExclude)
		t.ctx.Terminal().WriteLn(fmt.Sprintf("chat: %s left", key))

	default:
		t.broadcast(fmt.Sprintf("[%s] : %s", key, d.Payload), key)
	}
}

var noExclude = proto.PeerKey{}

func (t *Task) broadcast(msg string, exclude proto.PeerKey) {
	for p := range t.peers {
		if p == exclude {
			continue
		}
		_ = t.ch.Publish(proto.Datagram{
			DstAddr: p.Addr,
			DstPort: p.Port,
			Payload: []byte(msg),
		})
	}
}
