package echo

import (
	"testing"
	"time"

	"hax/haxos/fs"
	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
)

func TestEchoRoundTrip(t *testing.T) {
	machineA, _ := proto.ParseAddr("10.0.0.1")
	machineB, _ := proto.ParseAddr("10.0.0.2")

	sw := net.NewSwitch(nil)
	serverStack := net.NewStack(machineA, nil)
	clientStack := net.NewStack(machineB, nil)
	sw.Attach(serverStack)
	sw.Attach(clientStack)

	k := kernel.New(serverStack, fs.New(), nil)
	id, err := k.Launch(func() kernel.Task { return New() }, kernel.Config{
		Name:     "echo",
		Resident: true,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	q, err := clientStack.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	resp, ok, err := q.Query(proto.Datagram{DstAddr: machineA, DstPort: DefaultPort, Payload: []byte("hello")}, 2*time.Second)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ok || string(resp.Payload) != "hello" {
		t.Fatalf("resp=%q ok=%v", resp.Payload, ok)
	}

	// Once the task stops, the port goes quiet and queries time out.
	k.StopTask(id)
	_, ok, err = q.Query(proto.Datagram{DstAddr: machineA, DstPort: DefaultPort, Payload: []byte("again")}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ok {
		t.Fatalf("stopped echo task still answering")
	}
}
