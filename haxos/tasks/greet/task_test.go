package greet

import (
	"bytes"
	"testing"

	"hax/haxos/fs"
	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
)

func launch(t *testing.T, args []string) string {
	t.Helper()
	a, _ := proto.ParseAddr("10.0.0.1")
	k := kernel.New(net.NewStack(a, nil), fs.New(), nil)

	var out bytes.Buffer
	id, err := k.Launch(func() kernel.Task { return New() }, kernel.Config{
		Name:   "greet",
		Args:   args,
		Output: &out,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if k.Running(id) {
		t.Fatalf("non-resident greet still running")
	}
	return out.String()
}

func TestGreet(t *testing.T) {
	if got := launch(t, []string{"Hax"}); got != "Hello, Hax!\n" {
		t.Fatalf("output=%q", got)
	}
	if got := launch(t, []string{"Hax", "User"}); got != "Hello, Hax User!\n" {
		t.Fatalf("output=%q", got)
	}
}

func TestGreetUsage(t *testing.T) {
	if got := launch(t, nil); got != "usage: greet <name>...\n" {
		t.Fatalf("output=%q", got)
	}
}
