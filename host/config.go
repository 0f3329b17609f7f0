package host

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hax/haxos/proto"
)

// Config is the machine boot file the host binary loads.
type Config struct {
	Name    string `yaml:"name"`
	Addr    string `yaml:"addr"`
	SeedDir string `yaml:"seed_dir"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Autostart []TaskConfig `yaml:"autostart"`
}

// TaskConfig is one autostarted task.
type TaskConfig struct {
	Task string   `yaml:"task"`
	Args []string `yaml:"args"`
	Dir  string   `yaml:"dir"`
}

// LoadConfig reads and validates a yaml machine config.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(b)
}

// ParseConfig parses and validates yaml config bytes.
func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "hax"
	}
	if cfg.Addr == "" {
		cfg.Addr = "10.0.0.1"
	}
	if _, ok := proto.ParseAddr(cfg.Addr); !ok {
		return Config{}, fmt.Errorf("config: bad addr %q", cfg.Addr)
	}
	for i, tc := range cfg.Autostart {
		if _, ok := Lookup(tc.Task); !ok {
			return Config{}, fmt.Errorf("config: autostart[%d]: unknown task %q", i, tc.Task)
		}
	}
	return cfg, nil
}
