// Package manifest handles mia.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "mia.toml"

// Manifest represents a mia.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Run     RunConfig    `toml:"run"`
	Cache   CacheConfig  `toml:"cache"`
	Server  ServerConfig `toml:"server"`

	// Dir is the directory containing the mia.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// RunConfig configures the virtual machine.
type RunConfig struct {
	Trace     bool `toml:"trace"`
	MaxFrames int  `toml:"max-frames"`
}

// CacheConfig configures the compiled image cache.
type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	Path    string   `toml:"path"`
	MaxAge  Duration `toml:"max-age"`
}

// ServerConfig configures the evaluation server.
type ServerConfig struct {
	Addr       string   `toml:"addr"`
	SessionTTL Duration `toml:"session-ttl"`
}

// Duration is a time.Duration written as a string such as "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no mia.toml exists.
func Default() *Manifest {
	return &Manifest{
		Project: Project{Entry: "main"},
		Run:     RunConfig{MaxFrames: 1024},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(".mia", "cache.db"),
			MaxAge:  Duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Addr:       ":4567",
			SessionTTL: Duration{30 * time.Minute},
		},
	}
}

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func manifestSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("manifest schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Manifest"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks decoded TOML data against the manifest schema.
func Validate(raw map[string]interface{}) error {
	ctx, def, err := manifestSchema()
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// Parse decodes and validates manifest data. Absent keys keep their
// defaults.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load parses a mia.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a mia.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CachePath returns the cache database path, resolved against the manifest
// directory when relative.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) || m.Dir == "" {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
