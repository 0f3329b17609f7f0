// Package host boots a HaxOS machine from a config file and attaches
// the operator console: kernel, network stack, switch, and seeded
// file store, wired together the way the data-center runtime would.
package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"hax/haxos/fs"
	"hax/haxos/kernel"
	"hax/haxos/net"
	"hax/haxos/proto"
)

// Machine is one booted simulator instance.
type Machine struct {
	Config Config
	Kernel *kernel.Kernel
	Stack  *net.Stack
	Switch *net.Switch
	Store  *fs.FS

	log *slog.Logger
	out io.Writer
}

// NewMachine wires stack, switch, store, and kernel for cfg.
// Task terminal output goes to out (defaults to stdout).
func NewMachine(cfg Config, log *slog.Logger, out io.Writer) (*Machine, error) {
	if log == nil {
		log = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}

	addr, ok := proto.ParseAddr(cfg.Addr)
	if !ok {
		return nil, fmt.Errorf("host: bad addr %q", cfg.Addr)
	}

	stack := net.NewStack(addr, log)
	sw := net.NewSwitch(log)
	sw.Attach(stack)

	store := fs.New()
	if cfg.SeedDir != "" {
		if err := store.SeedDir(cfg.SeedDir); err != nil {
			return nil, fmt.Errorf("host: seed %s: %w", cfg.SeedDir, err)
		}
	}

	return &Machine{
		Config: cfg,
		Kernel: kernel.New(stack, store, log),
		Stack:  stack,
		Switch: sw,
		Store:  store,
		log:    log,
		out:    out,
	}, nil
}

// Spawn launches a registered task by name.
func (m *Machine) Spawn(name string, args []string, dir string) (kernel.TaskID, error) {
	entry, ok := Lookup(name)
	if !ok {
		return kernel.TaskID{}, fmt.Errorf("host: unknown task %q", name)
	}
	return m.Kernel.Launch(entry.Factory, kernel.Config{
		Name:     name,
		Args:     args,
		Dir:      dir,
		Resident: entry.Resident,
		Output:   m.out,
	})
}

// Autostart launches every task listed in the config.
func (m *Machine) Autostart() error {
	for _, tc := range m.Config.Autostart {
		if _, err := m.Spawn(tc.Task, tc.Args, tc.Dir); err != nil {
			return fmt.Errorf("host: autostart %s: %w", tc.Task, err)
		}
		m.log.Info("autostarted", "task", tc.Task)
	}
	return nil
}

// Run autostarts the configured tasks and serves the console until ctx
// is canceled or the console reaches end of input.
func (m *Machine) Run(ctx context.Context, console *Console) error {
	if err := m.Autostart(); err != nil {
		return err
	}
	defer m.Kernel.Shutdown()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Returns a non-nil sentinel on end of input so the group
		// unblocks the ctx watcher below.
		return console.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait()
	if err == context.Canceled || err == ErrConsoleClosed {
		return nil
	}
	return err
}
