package host

import (
	"testing"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: lab-1
addr: 10.0.0.9
log_level: debug
autostart:
  - task: chat
    args: ["6666"]
  - task: echo
    dir: /srv
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "lab-1" || cfg.Addr != "10.0.0.9" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.Autostart) != 2 || cfg.Autostart[0].Task != "chat" || cfg.Autostart[1].Dir != "/srv" {
		t.Fatalf("autostart=%+v", cfg.Autostart)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "hax" || cfg.Addr != "10.0.0.1" {
		t.Fatalf("defaults=%+v", cfg)
	}
}

func TestParseConfigRejects(t *testing.T) {
	if _, err := ParseConfig([]byte("addr: 300.0.0.1\n")); err == nil {
		t.Fatalf("bad addr accepted")
	}
	if _, err := ParseConfig([]byte("autostart:\n  - task: nosuch\n")); err == nil {
		t.Fatalf("unknown autostart task accepted")
	}
	if _, err := ParseConfig([]byte(":")); err == nil {
		t.Fatalf("bad yaml accepted")
	}
}

func TestLookupRegistry(t *testing.T) {
	for _, name := range TaskNames() {
		e, ok := Lookup(name)
		if !ok || e.Factory == nil {
			t.Fatalf("registry entry %q broken", name)
		}
		if e.Factory() == nil {
			t.Fatalf("factory %q returned nil", name)
		}
	}
	if _, ok := Lookup("nosuch"); ok {
		t.Fatalf("found unregistered task")
	}
}
