// Package kernel is the process-wide coordinator: it owns the task
// table, drives the task lifecycle, and hands tasks their terminal,
// network, and file capabilities through an explicit Context.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"hax/haxos/fs"
	"hax/haxos/net"
	"hax/haxos/term"
)

var (
	ErrNilTask  = errors.New("kernel: factory returned nil task")
	ErrShutdown = errors.New("kernel: shut down")
)

// TaskID is the opaque handle for a launched task.
type TaskID uuid.UUID

func (id TaskID) String() string { return uuid.UUID(id).String() }

// Task is the unit of execution the kernel schedules.
//
// Start is invoked exactly once; it registers whatever terminal or
// channel subscriptions the task needs and returns. Stop is invoked
// exactly once before the task leaves the table, even when Start
// failed, so cleanup can never be skipped. Stop runs outside the
// task's handler lock and may overlap one in-flight handler; keep it
// restricted to state safe under that overlap.
type Task interface {
	Start(*Context) error
	Stop()
}

// InputHandler is optionally implemented by tasks that consume
// terminal input. The kernel subscribes it to the task's terminal
// after a successful Start and cancels the subscription on stop.
type InputHandler interface {
	HandleInput([]byte)
}

// Phase is a task's lifecycle state.
type Phase uint8

const (
	PhaseCreated Phase = iota
	PhaseRunning
	PhaseStopping
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config describes one launch request.
type Config struct {
	Name string
	Args []string
	Dir  string

	// Resident keeps the task alive after Start returns; non-resident
	// tasks are stopped and removed as soon as Start completes.
	Resident bool

	// Output is the display sink for the task's terminal. Nil discards.
	Output io.Writer
}

type closer interface{ Close() }

type taskState struct {
	id   TaskID
	task Task
	cfg  Config
	term *term.Terminal
	log  *slog.Logger

	// runMu serializes every handler invocation for this task:
	// terminal dispatch and channel callbacks both run under it, so a
	// task's handlers never observe each other mid-mutation. Stop is
	// NOT in the serialized set — taking runMu there would deadlock
	// Exit from inside a handler — so Stop may overlap one in-flight
	// handler and must only touch state that tolerates that (a stop
	// flag behind sync/atomic, or nothing at all).
	runMu sync.Mutex

	mu      sync.Mutex
	phase   Phase
	closers []closer
	subs    []term.Subscription
}

func (st *taskState) addCloser(c closer) {
	st.mu.Lock()
	st.closers = append(st.closers, c)
	st.mu.Unlock()
}

// Kernel coordinates tasks on one machine.
type Kernel struct {
	log   *slog.Logger
	store *fs.FS
	stack *net.Stack

	mu    sync.Mutex
	tasks map[TaskID]*taskState
	down  bool
}

// New creates a kernel over the machine's network stack and file store.
func New(stack *net.Stack, store *fs.FS, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		log:   log,
		store: store,
		stack: stack,
		tasks: make(map[TaskID]*taskState),
	}
}

// Launch creates the task, injects its Context, and invokes Start.
//
// On Start error or panic the kernel still invokes Stop before
// discarding the task, so a failed start never leaks subscriptions. A
// non-resident task whose Start returns cleanly (and has not stopped
// itself) is stopped and removed immediately.
func (k *Kernel) Launch(factory func() Task, cfg Config) (TaskID, error) {
	t := factory()
	if t == nil {
		return TaskID{}, ErrNilTask
	}
	if cfg.Dir == "" {
		cfg.Dir = "/"
	}

	id := TaskID(uuid.New())
	name := cfg.Name
	if name == "" {
		name = "task"
	}
	st := &taskState{
		id:   id,
		task: t,
		cfg:  cfg,
		term: term.New(cfg.Output),
		log:  k.log.With("task", name),
	}
	st.term.SetDispatchLock(&st.runMu)

	k.mu.Lock()
	if k.down {
		k.mu.Unlock()
		return TaskID{}, ErrShutdown
	}
	k.tasks[id] = st
	k.mu.Unlock()

	ctx := &Context{k: k, st: st}
	err := startTask(st, ctx)
	if err != nil {
		st.log.Warn("start failed", "error", err)
		k.StopTask(id)
		return TaskID{}, err
	}

	st.mu.Lock()
	alive := st.phase == PhaseCreated
	if alive {
		st.phase = PhaseRunning
	}
	st.mu.Unlock()

	if alive {
		if h, ok := t.(InputHandler); ok {
			sub := st.term.Subscribe(h.HandleInput)
			st.mu.Lock()
			st.subs = append(st.subs, sub)
			st.mu.Unlock()
		}
		if !cfg.Resident {
			k.StopTask(id)
			return id, nil
		}
		st.log.Info("task running")
	}
	return id, nil
}

// startTask runs Start under the task's run lock, converting a panic
// into an error so the stop path still runs.
func startTask(st *taskState, ctx *Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("task panic: %v", v)
		}
	}()
	st.runMu.Lock()
	defer st.runMu.Unlock()
	return st.task.Start(ctx)
}

// StopTask invokes the task's Stop, releases everything it holds, and
// removes it from the table. It is idempotent: stopping an unknown or
// already-stopping task is a no-op, reported by the return value.
func (k *Kernel) StopTask(id TaskID) bool {
	k.mu.Lock()
	st := k.tasks[id]
	k.mu.Unlock()
	if st == nil {
		return false
	}

	st.mu.Lock()
	if st.phase == PhaseStopping || st.phase == PhaseTerminated {
		st.mu.Unlock()
		return false
	}
	st.phase = PhaseStopping
	closers := st.closers
	subs := st.subs
	st.closers = nil
	st.subs = nil
	st.mu.Unlock()

	stopTask(st)

	// Stop ran; now reclaim what the task held so nothing dangles.
	for _, sub := range subs {
		sub.Cancel()
	}
	st.term.Reset()
	for _, c := range closers {
		c.Close()
	}

	st.mu.Lock()
	st.phase = PhaseTerminated
	st.mu.Unlock()

	k.mu.Lock()
	delete(k.tasks, id)
	k.mu.Unlock()

	st.log.Info("task stopped")
	return true
}

func stopTask(st *taskState) {
	defer func() {
		if v := recover(); v != nil {
			st.log.Warn("panic in stop", "error", v)
		}
	}()
	st.task.Stop()
}

// Input feeds raw terminal input to a task. Unknown tasks drop it.
func (k *Kernel) Input(id TaskID, b []byte) {
	k.mu.Lock()
	st := k.tasks[id]
	k.mu.Unlock()
	if st == nil {
		return
	}
	st.term.Input(b)
}

// TaskInfo is one row of the task table.
type TaskInfo struct {
	ID       TaskID
	Name     string
	Phase    Phase
	Resident bool
}

// Tasks snapshots the task table.
func (k *Kernel) Tasks() []TaskInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]TaskInfo, 0, len(k.tasks))
	for _, st := range k.tasks {
		st.mu.Lock()
		out = append(out, TaskInfo{ID: st.id, Name: st.cfg.Name, Phase: st.phase, Resident: st.cfg.Resident})
		st.mu.Unlock()
	}
	return out
}

// Running reports whether the task is still in the table.
func (k *Kernel) Running(id TaskID) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tasks[id] != nil
}

// Shutdown stops every task and refuses further launches.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	k.down = true
	ids := make([]TaskID, 0, len(k.tasks))
	for id := range k.tasks {
		ids = append(ids, id)
	}
	k.mu.Unlock()

	for _, id := range ids {
		k.StopTask(id)
	}
}
