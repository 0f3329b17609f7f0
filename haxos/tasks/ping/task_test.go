package ping

import (
	"bytes"
	"strings"
	"testing"

	"hax/haxos/fs"
	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
	"hax/haxos/tasks/echo"
)

func TestPingAnswered(t *testing.T) {
	machine, _ := proto.ParseAddr("10.0.0.1")
	st := net.NewStack(machine, nil)
	k := kernel.New(st, fs.New(), nil)

	if _, err := k.Launch(func() kernel.Task { return echo.New() }, kernel.Config{
		Name:     "echo",
		Resident: true,
	}); err != nil {
		t.Fatalf("launch echo: %v", err)
	}

	var out bytes.Buffer
	if _, err := k.Launch(func() kernel.Task { return New() }, kernel.Config{
		Name:   "ping",
		Args:   []string{"10.0.0.1", "7", "hello"},
		Output: &out,
	}); err != nil {
		t.Fatalf("launch ping: %v", err)
	}
	if !strings.Contains(out.String(), `answered "hello"`) {
		t.Fatalf("output=%q", out.String())
	}
}

func TestPingNoResponse(t *testing.T) {
	machine, _ := proto.ParseAddr("10.0.0.1")
	k := kernel.New(net.NewStack(machine, nil), fs.New(), nil)

	var out bytes.Buffer
	if _, err := k.Launch(func() kernel.Task { return New() }, kernel.Config{
		Name:   "ping",
		Args:   []string{"10.0.0.1", "9999"},
		Output: &out,
	}); err != nil {
		t.Fatalf("launch ping: %v", err)
	}
	if !strings.Contains(out.String(), "no response from 10.0.0.1:9999") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestPingUsage(t *testing.T) {
	machine, _ := proto.ParseAddr("10.0.0.1")
	k := kernel.New(net.NewStack(machine, nil), fs.New(), nil)

	var out bytes.Buffer
	if _, err := k.Launch(func() kernel.Task { return New() }, kernel.Config{
		Name:   "ping",
		Args:   []string{"zzz"},
		Output: &out,
	}); err != nil {
		t.Fatalf("launch ping: %v", err)
	}
	if !strings.Contains(out.String(), "usage: ping") {
		t.Fatalf("output=%q", out.String())
	}
}
