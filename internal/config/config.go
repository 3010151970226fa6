// Package config loads codeweave.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"codeweave/internal/blacklist"
	"codeweave/internal/signature"
)

// FileName is the configuration file searched for by Find.
const FileName = "codeweave.toml"

// Defaults for the codelib identity.
const (
	DefaultCodeLibLocation = "/system/framework/codelib.apk!classes.dex"
	DefaultCodeLibClass    = "Lcodeweave/codelib/CodeLib;"
	DefaultCodeLibInstance = "INSTANCE"
)

// Config is the decoded configuration file.
type Config struct {
	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `toml:"-"`

	CodeLib    CodeLib           `toml:"codelib"`
	Blacklist  blacklist.Entries `toml:"blacklist"`
	Trace      Trace             `toml:"trace"`
	Driver     Driver            `toml:"driver"`
	Injections []Injection       `toml:"injection"`
}

// CodeLib identifies the runtime library calls are injected into.
type CodeLib struct {
	Location string `toml:"location"`
	Class    string `toml:"class"`
	Instance string `toml:"instance"`
	// Handles is "shared" (one instance load per method) or "per-block".
	Handles string `toml:"handles"`
}

// Trace mirrors the --trace* flags.
type Trace struct {
	Output    string `toml:"output"`
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Format    string `toml:"format"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

// HeartbeatInterval parses Heartbeat; empty means disabled.
func (t Trace) HeartbeatInterval() (time.Duration, error) {
	if strings.TrimSpace(t.Heartbeat) == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Heartbeat)
}

// Driver configures the batch instrumentation run.
type Driver struct {
	Jobs    int      `toml:"jobs"`
	Modules []string `toml:"modules"`
	// NoDefaultBlacklist drops blacklist.Defaults from the filter.
	NoDefaultBlacklist bool `toml:"no_default_blacklist"`
}

// Injection is one [[injection]] table.
type Injection struct {
	Name string `toml:"name"`
	// Target is a qualified method name; a trailing '*' makes it a prefix.
	Target string `toml:"target"`
	// Method is the qualified signature of the codelib method to call.
	Method string `toml:"method"`
	// Args are "kind:value" literals or "param:N" references.
	Args []string `toml:"args"`
	// Point is "entry" or "return".
	Point string `toml:"point"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		CodeLib: CodeLib{
			Location: DefaultCodeLibLocation,
			Class:    DefaultCodeLibClass,
			Instance: DefaultCodeLibInstance,
			Handles:  "shared",
		},
		Trace: Trace{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			RingSize: 4096,
		},
		Driver: Driver{Modules: []string{"census"}},
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the configuration found from startDir, or Default when
// there is none.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path over Default and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	var errs []error
	if meta.IsDefined("codelib") {
		if !meta.IsDefined("codelib", "location") || strings.TrimSpace(cfg.CodeLib.Location) == "" {
			errs = append(errs, errors.New("missing [codelib].location"))
		}
	}
	if meta.IsDefined("driver", "jobs") && cfg.Driver.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[driver].jobs must be >= 0, got %d", cfg.Driver.Jobs))
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that do not depend on how the config was decoded.
func (c *Config) Validate() error {
	var errs []error
	// 1. Codelib identity must be usable for symbol resolution.
	if c.CodeLib.Class != "" && signature.KindOf(c.CodeLib.Class) != signature.KindObject {
		errs = append(errs, fmt.Errorf("[codelib].class %q is not an object descriptor", c.CodeLib.Class))
	}
	switch c.CodeLib.Handles {
	case "", "shared", "per-block":
	default:
		errs = append(errs, fmt.Errorf("[codelib].handles must be \"shared\" or \"per-block\", got %q", c.CodeLib.Handles))
	}
	// 2. Heartbeat parses.
	if _, err := c.Trace.HeartbeatInterval(); err != nil {
		errs = append(errs, fmt.Errorf("[trace].heartbeat: %w", err))
	}
	// 3. Injections name a target and a well-formed codelib method.
	seen := make(map[string]bool, len(c.Injections))
	for i, inj := range c.Injections {
		where := fmt.Sprintf("[[injection]] #%d", i+1)
		if inj.Name != "" {
			where = fmt.Sprintf("[[injection]] %q", inj.Name)
			if seen[inj.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[inj.Name] = true
		}
		if strings.TrimSpace(inj.Target) == "" {
			errs = append(errs, fmt.Errorf("%s: missing target", where))
		}
		if _, err := signature.Parse(inj.Method); err != nil {
			errs = append(errs, fmt.Errorf("%s: method: %w", where, err))
		}
		switch inj.Point {
		case "", "entry", "return":
		default:
			errs = append(errs, fmt.Errorf("%s: point must be \"entry\" or \"return\", got %q", where, inj.Point))
		}
	}
	return errors.Join(errs...)
}

// Filter builds the method blacklist: the defaults unless disabled, plus the
// configured entries.
func (c *Config) Filter() *blacklist.Filter {
	extra := c.Blacklist
	// the codelib class itself is always excluded
	if c.CodeLib.Class != "" {
		extra.Prefixes = append(append([]string(nil), extra.Prefixes...), c.CodeLib.Class+"->")
	}
	if c.Driver.NoDefaultBlacklist {
		return blacklist.New(extra)
	}
	return blacklist.New(blacklist.Defaults, extra)
}
