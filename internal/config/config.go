// Package config handles all configuration logic for auto-desk.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/BurntSushi/xdg"
	"github.com/calacuda/auto-desk/internal/hooks"
	"gopkg.in/yaml.v3"
)

const (
	cfgDirName  = "auto-desk"
	cfgFileName = "config.toml"
	envOverride = "AUTO_DESK_CONFIG"

	DefaultListenSocket = "/tmp/auto-desk.sock"
	DefaultPortsSocket  = "/tmp/auto-desk.ports"
)

var ErrNoConfig = errors.New("no config file found")

// searched in order when no override is given
var cfgFileNames = []string{cfgFileName, "config.yaml", "config.yml"}

type Config struct {
	path   string
	Server Server `toml:"server" yaml:"server"`
	Hooks  Hooks  `toml:"hooks" yaml:"hooks"`
}

type Server struct {
	ListenSocket string `toml:"listen_socket" yaml:"listen_socket"`
}

type Hooks struct {
	// Listen enables the event sources and the dispatch loop.
	Listen      bool         `toml:"listen" yaml:"listen"`
	IgnoreWeb   bool         `toml:"ignore_web" yaml:"ignore_web"`
	ExecIgnore  []string     `toml:"exec_ignore" yaml:"exec_ignore"`
	PortsSocket string       `toml:"ports_socket" yaml:"ports_socket"`
	Hooks       []hooks.Hook `toml:"hooks" yaml:"hooks"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			ListenSocket: DefaultListenSocket,
		},
		Hooks: Hooks{
			Listen:      true,
			IgnoreWeb:   true,
			ExecIgnore:  []string{},
			PortsSocket: DefaultPortsSocket,
			Hooks:       []hooks.Hook{},
		},
	}
}

// Path resolves the config file: an explicit path wins, then
// $AUTO_DESK_CONFIG, then the first existing file in the XDG config dirs,
// then the default location under the user config dir.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(envOverride); p != "" {
		return p, nil
	}

	paths := xdg.Paths{XDGSuffix: cfgDirName}
	for _, name := range cfgFileNames {
		if p, err := paths.ConfigFile(name); err == nil {
			return p, nil
		}
	}

	uc, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting user config directory path: %w", err)
	}
	return filepath.Join(uc, cfgDirName, cfgFileName), nil
}

// Init loads the config at path, writing a default one first if none exists.
func Init(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		slog.Info("no config file found; creating default", "path", path)
		cfg := Default()
		cfg.path = path
		if err := cfg.Write(); err != nil {
			return nil, fmt.Errorf("creating default config file: %w", err)
		}
	}
	return Load(path)
}

// Load reads path as TOML or YAML depending on its extension.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfig, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling yaml: %w", err)
		}
	} else {
		if _, err := toml.Decode(string(file), cfg); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	}

	cfg.path = path
	cfg.fill()
	return cfg, nil
}

func (c *Config) Path() string {
	return c.path
}

// fill restores defaults for values a config file left empty.
func (c *Config) fill() {
	if c.Server.ListenSocket == "" {
		c.Server.ListenSocket = DefaultListenSocket
	}
	if c.Hooks.PortsSocket == "" {
		c.Hooks.PortsSocket = DefaultPortsSocket
	}
}

// Validate reports hooks with an unknown event kind or an empty command.
func (c *Config) Validate() error {
	var errs []error
	for i, h := range c.Hooks.Hooks {
		if !h.Event.IsValid() {
			errs = append(errs, fmt.Errorf("hook %d: %w: %q", i, hooks.ErrUnknownEvent, h.Event))
		}
		if strings.TrimSpace(h.Exec) == "" {
			errs = append(errs, fmt.Errorf("hook %d: %w: empty exec", i, hooks.ErrMalformedHook))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) Write() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checking and/or creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(c.path) {
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling yaml: %w", err)
		}
	} else {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encoding toml: %w", err)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

// NewHooks returns the hooks in next whose (event, exec) pair does not
// appear in prev, in file order.
func NewHooks(prev, next *Config) []hooks.Hook {
	seen := make(map[hooks.Hook]struct{})
	if prev != nil {
		for _, h := range prev.Hooks.Hooks {
			seen[h] = struct{}{}
		}
	}

	var out []hooks.Hook
	for _, h := range next.Hooks.Hooks {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	default:
		return false
	}
}
