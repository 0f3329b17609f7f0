package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"hax/haxos/kernel"
)

// ErrConsoleClosed reports a console that reached end of input.
var ErrConsoleClosed = errors.New("host: console closed")

// Console is the operator side of the machine: it parses commands and
// feeds keystrokes to the focused task's terminal.
//
// While a task is focused, plain lines go to its terminal as input;
// lines starting with ':' are console commands. On a TTY, Ctrl-C maps
// to the terminal cancel event (what ESC means inside the simulator).
type Console struct {
	m   *Machine
	in  io.Reader
	out io.Writer

	focused   bool
	focus     kernel.TaskID
	focusName string
}

// NewConsole builds a console reading from in. A nil in means stdin,
// with line editing when stdin is a TTY.
func NewConsole(m *Machine, in io.Reader, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{m: m, in: in, out: out}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) prompt() string {
	if c.focused {
		return c.focusName + "> "
	}
	return c.m.Config.Name + "> "
}

// Run serves the console until end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	if c.in == nil {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			return c.runLiner(ctx)
		}
		c.in = os.Stdin
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return ErrConsoleClosed
			}
			if c.handle(line) {
				return ErrConsoleClosed
			}
		}
	}
}

// runLiner is the TTY path: history, editing, Ctrl-C as cancel event.
func (c *Console) runLiner(ctx context.Context) error {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)

	for ctx.Err() == nil {
		s, err := l.Prompt(c.prompt())
		switch err {
		case nil:
		case liner.ErrPromptAborted:
			if c.focused {
				// Ctrl-C while focused is the user-cancel event.
				c.m.Kernel.Input(c.focus, nil)
				c.syncFocus()
				continue
			}
			return ErrConsoleClosed
		case io.EOF:
			return ErrConsoleClosed
		default:
			return err
		}
		if strings.TrimSpace(s) != "" {
			l.AppendHistory(s)
		}
		if c.handle(s) {
			return ErrConsoleClosed
		}
	}
	return ctx.Err()
}

// handle processes one console line; true means quit.
func (c *Console) handle(line string) bool {
	if c.focused && !strings.HasPrefix(line, ":") {
		c.m.Kernel.Input(c.focus, []byte(line+"\n"))
		c.syncFocus()
		return false
	}

	args, err := shlex.Split(strings.TrimPrefix(line, ":"))
	if err != nil {
		c.printf("console: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "help":
		c.printf("commands: ps, spawn <task> [args...], stop <task>, focus <task>, esc, unfocus, quit\n")
		c.printf("tasks: %s\n", strings.Join(TaskNames(), ", "))

	case "ps":
		for _, info := range c.m.Kernel.Tasks() {
			c.printf("%s  %-10s %s\n", info.ID, info.Name, info.Phase)
		}

	case "spawn":
		if len(args) < 2 {
			c.printf("usage: spawn <task> [args...]\n")
			return false
		}
		id, err := c.m.Spawn(args[1], args[2:], "/")
		if err != nil {
			c.printf("spawn: %v\n", err)
			return false
		}
		if c.m.Kernel.Running(id) {
			c.focused = true
			c.focus = id
			c.focusName = args[1]
		}

	case "stop":
		if len(args) != 2 {
			c.printf("usage: stop <task>\n")
			return false
		}
		if !c.stopByName(args[1]) {
			c.printf("stop: no task %q\n", args[1])
		}
		c.syncFocus()

	case "focus":
		if len(args) != 2 {
			c.printf("usage: focus <task>\n")
			return false
		}
		if !c.focusByName(args[1]) {
			c.printf("focus: no task %q\n", args[1])
		}

	case "esc":
		if c.focused {
			c.m.Kernel.Input(c.focus, nil)
			c.syncFocus()
		}

	case "unfocus":
		c.focused = false
		c.focusName = ""

	case "quit", "exit":
		return true

	default:
		c.printf("console: unknown command %q (try help)\n", args[0])
	}
	return false
}

func (c *Console) stopByName(name string) bool {
	for _, info := range c.m.Kernel.Tasks() {
		if info.Name == name {
			return c.m.Kernel.StopTask(info.ID)
		}
	}
	return false
}

func (c *Console) focusByName(name string) bool {
	for _, info := range c.m.Kernel.Tasks() {
		if info.Name == name {
			c.focused = true
			c.focus = info.ID
			c.focusName = name
			return true
		}
	}
	return false
}

// syncFocus drops focus once the focused task has terminated.
func (c *Console) syncFocus() {
	if c.focused && !c.m.Kernel.Running(c.focus) {
		c.focused = false
		c.focusName = ""
	}
}
