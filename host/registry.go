package host

import (
	"sort"

	"hax/haxos/kernel"
	"hax/haxos/tasks/auth"
	"hax/haxos/tasks/chat"
	"hax/haxos/tasks/crack"
	"hax/haxos/tasks/echo"
	"hax/haxos/tasks/greet"
	"hax/haxos/tasks/ping"
)

// TaskEntry describes a launchable task type.
type TaskEntry struct {
	Factory  func() kernel.Task
	Resident bool
	Usage    string
}

var builtins = map[string]TaskEntry{
	"greet": {Factory: func() kernel.Task { return greet.New() }, Usage: "greet <name>..."},
	"ping":  {Factory: func() kernel.Task { return ping.New() }, Usage: "ping <addr> <port> [text]"},
	"auth":  {Factory: func() kernel.Task { return auth.New() }, Resident: true, Usage: "auth [-lockout]"},
	"crack": {Factory: func() kernel.Task { return crack.New() }, Resident: true, Usage: "crack [-w wordlist] <md5hex>"},
	"chat":  {Factory: func() kernel.Task { return chat.New() }, Resident: true, Usage: "chat [port]"},
	"echo":  {Factory: func() kernel.Task { return echo.New() }, Resident: true, Usage: "echo [port]"},
}

// Lookup finds a task entry by name.
func Lookup(name string) (TaskEntry, bool) {
	e, ok := builtins[name]
	return e, ok
}

// TaskNames lists the registered task names, sorted.
func TaskNames() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
