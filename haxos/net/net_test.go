package net

import (
	"sync"
	"testing"
	"time"

	"hax/haxos/proto"
)

const testTimeout = 2 * time.Second

func addr(t *testing.T, s string) proto.Addr {
	t.Helper()
	a, ok := proto.ParseAddr(s)
	if !ok {
		t.Fatalf("bad addr %q", s)
	}
	return a
}

func recvWithTimeout[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for datagram")
		panic("unreachable")
	}
}

func TestPortUniqueness(t *testing.T) {
	s := NewStack(addr(t, "10.0.0.1"), nil)

	a, err := s.OpenAsync(6666)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	if _, err := s.OpenAsync(6666); err != ErrPortInUse {
		t.Fatalf("second bind err=%v, want ErrPortInUse", err)
	}

	a.Close()
	b, err := s.OpenAsync(6666)
	if err != nil {
		t.Fatalf("rebind after close: %v", err)
	}
	b.Close()

	if n := s.OpenPorts(); n != 0 {
		t.Fatalf("open ports=%d, want 0", n)
	}
}

func TestEphemeralPortsDistinct(t *testing.T) {
	s := NewStack(addr(t, "10.0.0.1"), nil)

	c1, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	c2, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	if c1.LocalPort() == c2.LocalPort() {
		t.Fatalf("ephemeral ports collide: %d", c1.LocalPort())
	}
	if c1.LocalPort() < EphemeralBase || c2.LocalPort() < EphemeralBase {
		t.Fatalf("ephemeral ports below base: %d %d", c1.LocalPort(), c2.LocalPort())
	}
	c1.Close()
	c2.Close()
}

func TestQueryEchoRoundTrip(t *testing.T) {
	machineA := addr(t, "10.0.0.1")
	machineB := addr(t, "10.0.0.2")

	sw := NewSwitch(nil)
	sa := NewStack(machineA, nil)
	sb := NewStack(machineB, nil)
	sw.Attach(sa)
	sw.Attach(sb)

	echo, err := sb.OpenAsync(7)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer echo.Close()
	if err := echo.Subscribe(func(d proto.Datagram) {
		_ = echo.Publish(d.Reply(d.Payload))
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	q, err := sa.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	resp, ok, err := q.Query(proto.Datagram{DstAddr: machineB, DstPort: 7, Payload: []byte("ping")}, testTimeout)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ok {
		t.Fatalf("query timed out")
	}
	if string(resp.Payload) != "ping" {
		t.Fatalf("payload=%q", resp.Payload)
	}
	if resp.SrcAddr != machineB || resp.SrcPort != 7 {
		t.Fatalf("response source %s:%d", resp.SrcAddr, resp.SrcPort)
	}
}

func TestQueryTimeoutWhenNobodyListens(t *testing.T) {
	s := NewStack(addr(t, "10.0.0.1"), nil)
	q, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	const timeout = 50 * time.Millisecond
	start := time.Now()
	_, ok, err := q.Query(proto.Datagram{DstAddr: s.Addr(), DstPort: 9999}, timeout)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ok {
		t.Fatalf("got a response from an unbound port")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("query returned after %v, before the %v timeout", elapsed, timeout)
	}
}

func TestQuerySingleInFlight(t *testing.T) {
	s := NewStack(addr(t, "10.0.0.1"), nil)
	q, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, _, _ = q.Query(proto.Datagram{DstAddr: s.Addr(), DstPort: 9999}, 500*time.Millisecond)
		close(done)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	if _, _, err := q.Query(proto.Datagram{DstAddr: s.Addr(), DstPort: 9998}, time.Millisecond); err != ErrQueryBusy {
		t.Fatalf("pipelined query err=%v, want ErrQueryBusy", err)
	}
	recvWithTimeout(t, done)
}

func TestQueryIgnoresStrangers(t *testing.T) {
	machine := addr(t, "10.0.0.1")
	s := NewStack(machine, nil)

	q, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	stranger, err := s.OpenAsync(5000)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer stranger.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = stranger.Publish(proto.Datagram{DstAddr: machine, DstPort: q.LocalPort(), Payload: []byte("noise")})
	}()

	_, ok, err := q.Query(proto.Datagram{DstAddr: machine, DstPort: 9999}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ok {
		t.Fatalf("datagram from the wrong endpoint accepted as response")
	}
}

func TestAsyncArrivalOrder(t *testing.T) {
	machine := addr(t, "10.0.0.1")
	s := NewStack(machine, nil)

	ch, err := s.OpenAsync(6666)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer ch.Close()

	const n = 20
	got := make(chan byte, n)
	if err := ch.Subscribe(func(d proto.Datagram) {
		got <- d.Payload[0]
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := ch.Subscribe(func(proto.Datagram) {}); err != ErrSubscribed {
		t.Fatalf("second Subscribe err=%v, want ErrSubscribed", err)
	}

	src, err := s.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer src.Close()
	for i := 0; i < n; i++ {
		if err := src.Publish(proto.Datagram{DstAddr: machine, DstPort: 6666, Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	for i := 0; i < n; i++ {
		if b := recvWithTimeout(t, got); b != byte(i) {
			t.Fatalf("datagram %d arrived as %d", i, b)
		}
	}
}

func TestAsyncDispatchLockSerializes(t *testing.T) {
	machine := addr(t, "10.0.0.1")
	s := NewStack(machine, nil)

	ch, err := s.OpenAsync(6666)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer ch.Close()

	var gate sync.Mutex
	ch.SetDispatchLock(&gate)

	inHandler := make(chan struct{})
	release := make(chan struct{})
	if err := ch.Subscribe(func(proto.Datagram) {
		inHandler <- struct{}{}
		<-release
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	src, _ := s.OpenSync()
	defer src.Close()
	_ = src.Publish(proto.Datagram{DstAddr: machine, DstPort: 6666, Payload: []byte("x")})

	recvWithTimeout(t, inHandler)
	if gate.TryLock() {
		gate.Unlock()
		t.Fatalf("dispatch lock not held during callback")
	}
	close(release)
}

func TestCloseIdempotentAndNilSafe(t *testing.T) {
	s := NewStack(addr(t, "10.0.0.1"), nil)

	a, err := s.OpenAsync(6666)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	a.Close()
	a.Close()
	if err := a.Publish(proto.Datagram{}); err != ErrClosed {
		t.Fatalf("Publish on closed err=%v, want ErrClosed", err)
	}

	var nilAsync *AsyncChannel
	nilAsync.Close()
	var nilSync *SyncChannel
	nilSync.Close()
	if _, _, err := nilSync.Query(proto.Datagram{}, time.Millisecond); err != ErrClosed {
		t.Fatalf("nil query err=%v, want ErrClosed", err)
	}

	// Inbound traffic to the released port is dropped, not delivered.
	s.Deliver(proto.Datagram{DstAddr: s.Addr(), DstPort: 6666, Payload: []byte("x")})
}

func TestLinkCarriesFramesBetweenSwitches(t *testing.T) {
	swA := NewSwitch(nil)
	swB := NewSwitch(nil)

	machineA := addr(t, "10.0.0.1")
	machineB := addr(t, "10.0.1.1")
	sa := NewStack(machineA, nil)
	sb := NewStack(machineB, nil)
	swA.Attach(sa)
	swB.Attach(sb)

	prefix := func(s string) proto.Prefix {
		p, ok := proto.ParsePrefix(s)
		if !ok {
			t.Fatalf("bad prefix %q", s)
		}
		return p
	}

	// Cross-wire the two switches: each side's outbound frames feed
	// the other side's inbound path, wire-encoded both ways.
	var linkA, linkB *Link
	linkA = swA.AddLink(prefix("10.0.1.0/24"), func(frame []byte) error {
		linkB.HandleFrame(frame)
		return nil
	})
	linkB = swB.AddLink(prefix("10.0.0.0/24"), func(frame []byte) error {
		linkA.HandleFrame(frame)
		return nil
	})

	echo, err := sb.OpenAsync(7)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer echo.Close()
	_ = echo.Subscribe(func(d proto.Datagram) {
		_ = echo.Publish(d.Reply(d.Payload))
	})

	q, err := sa.OpenSync()
	if err != nil {
		t.Fatalf("OpenSync: %v", err)
	}
	defer q.Close()

	resp, ok, err := q.Query(proto.Datagram{DstAddr: machineB, DstPort: 7, Payload: []byte("over the wire")}, testTimeout)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ok {
		t.Fatalf("query over link timed out")
	}
	if string(resp.Payload) != "over the wire" || resp.SrcAddr != machineB {
		t.Fatalf("response %v payload=%q", resp, resp.Payload)
	}

	// A mangled frame is dropped, not forwarded.
	linkB.HandleFrame([]byte{0x01, 0x02})
}

func TestSwitchLongestPrefix(t *testing.T) {
	sw := NewSwitch(nil)

	machine := addr(t, "10.0.0.1")
	st := NewStack(machine, nil)
	sw.Attach(st)

	wide := make(chan proto.Datagram, 1)
	prefix, ok := proto.ParsePrefix("10.0.0.0/8")
	if !ok {
		t.Fatalf("ParsePrefix failed")
	}
	sw.AddRoute(prefix, func(d proto.Datagram) { wide <- d })

	local, err := st.OpenAsync(7)
	if err != nil {
		t.Fatalf("OpenAsync: %v", err)
	}
	defer local.Close()
	delivered := make(chan proto.Datagram, 1)
	_ = local.Subscribe(func(d proto.Datagram) { delivered <- d })

	// Host route (/32) beats the /8.
	sw.Forward(proto.Datagram{DstAddr: machine, DstPort: 7, Payload: []byte("host")})
	if d := recvWithTimeout(t, delivered); string(d.Payload) != "host" {
		t.Fatalf("host-routed payload=%q", d.Payload)
	}

	// Everything else in 10/8 goes to the wide route.
	sw.Forward(proto.Datagram{DstAddr: addr(t, "10.0.0.99"), DstPort: 7, Payload: []byte("wide")})
	if d := recvWithTimeout(t, wide); string(d.Payload) != "wide" {
		t.Fatalf("wide-routed payload=%q", d.Payload)
	}

	// Off-range destinations are dropped.
	sw.Forward(proto.Datagram{DstAddr: addr(t, "192.168.1.1"), DstPort: 7})
	select {
	case d := <-wide:
		t.Fatalf("unroutable datagram forwarded: %v", d)
	case <-time.After(20 * time.Millisecond):
	}
}
