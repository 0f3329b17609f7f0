package kernel

import (
	"log/slog"

	"hax/haxos/fs"
	"hax/haxos/net"
	"hax/haxos/term"
)

// Context is the capability set handed to a task at Start: terminal,
// arguments, working directory, files, and network, all explicit
// parameters rather than ambient state.
type Context struct {
	k  *Kernel
	st *taskState
}

// ID returns the task's own handle.
func (c *Context) ID() TaskID { return c.st.id }

// Args returns the command-line argument list, in order.
func (c *Context) Args() []string { return c.st.cfg.Args }

// Dir returns the task's working directory.
func (c *Context) Dir() string { return c.st.cfg.Dir }

// Terminal returns the task's terminal.
func (c *Context) Terminal() *term.Terminal { return c.st.term }

// Log returns the task's logger.
func (c *Context) Log() *slog.Logger { return c.st.log }

// AbsPath resolves p against base (the working directory when base is
// empty).
func (c *Context) AbsPath(p, base string) string {
	if base == "" {
		base = c.st.cfg.Dir
	}
	return fs.Abs(p, base)
}

// ReadFile returns the content at p, resolved against the working
// directory. Absence is an expected outcome, not an error.
func (c *Context) ReadFile(p string) ([]byte, bool) {
	if c.k.store == nil {
		return nil, false
	}
	return c.k.store.Read(c.AbsPath(p, ""))
}

// WriteFile stores content at p, resolved against the working directory.
func (c *Context) WriteFile(p string, content []byte) error {
	if c.k.store == nil {
		return fs.ErrBadPath
	}
	return c.k.store.Write(c.AbsPath(p, ""), content)
}

// OpenSync opens a sync channel on a kernel-assigned ephemeral port.
// The channel is closed automatically when the task terminates.
func (c *Context) OpenSync() (*net.SyncChannel, error) {
	ch, err := c.k.stack.OpenSync()
	if err != nil {
		return nil, err
	}
	c.st.addCloser(ch)
	return ch, nil
}

// OpenAsync binds an async channel to port. Its receive callback runs
// under the task's handler lock, and the channel is closed
// automatically when the task terminates.
func (c *Context) OpenAsync(port uint16) (*net.AsyncChannel, error) {
	ch, err := c.k.stack.OpenAsync(port)
	if err != nil {
		return nil, err
	}
	ch.SetDispatchLock(&c.st.runMu)
	c.st.addCloser(ch)
	return ch, nil
}

// Subscribe registers an extra terminal handler whose subscription is
// canceled automatically when the task terminates.
func (c *Context) Subscribe(fn term.Handler) term.Subscription {
	sub := c.st.term.Subscribe(fn)
	c.st.mu.Lock()
	c.st.subs = append(c.st.subs, sub)
	c.st.mu.Unlock()
	return sub
}

// Launch starts another task; used by supervisor-style tasks.
func (c *Context) Launch(factory func() Task, cfg Config) (TaskID, error) {
	return c.k.Launch(factory, cfg)
}

// StopTask stops another task by handle.
func (c *Context) StopTask(id TaskID) bool {
	return c.k.StopTask(id)
}

// Exit self-terminates the task. Safe to call from Start or from any
// handler; the second and later calls are no-ops.
func (c *Context) Exit() {
	c.k.StopTask(c.st.id)
}

// Addr returns the machine address of the kernel's network stack.
func (c *Context) Addr() string {
	if c.k.stack == nil {
		return ""
	}
	return c.k.stack.Addr().String()
}
