package buildinfo

import "runtime/debug"

// Version is stamped at release time via -ldflags. A plain `go build`
// leaves it at "dev" and Short falls back to the embedded build info.
var Version = "dev"

// Short returns a compact identifier for logs and the version command:
// the stamped version, else the module version, else the VCS revision.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return "dev"
}
