package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/ensdb/internal/bloom"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds the flash image and the metadata store.
	DataDir string        `json:"dataDir" yaml:"dataDir"`
	Flash   Flash         `json:"flash" yaml:"flash"`
	Log     RecordLog     `json:"log" yaml:"log"`
	Bloom   Bloom         `json:"bloom" yaml:"bloom"`
	Server  Server        `json:"server" yaml:"server"`
	Logging logpkg.Config `json:"logging" yaml:"logging"`
}

// Flash describes the emulated flash partition.
type Flash struct {
	// Path of the partition image. Relative paths resolve against DataDir.
	Path        string `json:"path" yaml:"path"`
	SectorSize  int    `json:"sectorSize" yaml:"sectorSize"`
	SectorCount int    `json:"sectorCount" yaml:"sectorCount"`
	WriteBlock  int    `json:"writeBlock" yaml:"writeBlock"`
}

// RecordLog tunes the record log.
type RecordLog struct {
	// Capacity in records; zero uses the whole partition.
	Capacity int `json:"capacity" yaml:"capacity"`
	// EntrySize overrides the slot payload size; zero derives it from the
	// write block.
	EntrySize int `json:"entrySize" yaml:"entrySize"`
}

// Bloom selects the matching filter strategy.
type Bloom struct {
	Strategy string `json:"strategy" yaml:"strategy"`
}

// Server holds listener addresses.
type Server struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
}

// Default returns built-in defaults: a 64 KiB partition of 4 KiB sectors,
// which holds 2048 records.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir(),
		Flash: Flash{
			Path:        "records.flash",
			SectorSize:  4096,
			SectorCount: 16,
			WriteBlock:  1,
		},
		Bloom: Bloom{Strategy: "chunk"},
		Server: Server{
			HTTPAddr: "127.0.0.1:8080",
			GRPCAddr: "127.0.0.1:50051",
		},
		Logging: logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML for .yaml/.yml paths and as JSON otherwise.
func Save(path string, cfg Config) error {
	var (
		b   []byte
		err error
	)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	default:
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return os.WriteFile(path, b, 0o644)
}

// FlashPath returns the partition image path resolved against DataDir.
func (c Config) FlashPath() string {
	if filepath.IsAbs(c.Flash.Path) || c.DataDir == "" {
		return c.Flash.Path
	}
	return filepath.Join(c.DataDir, c.Flash.Path)
}

// MetaDir returns the metadata store directory.
func (c Config) MetaDir() string {
	return filepath.Join(c.DataDir, "meta")
}

// Validate checks the values the storage layer cannot correct itself.
func (c Config) Validate() error {
	f := c.Flash
	if f.SectorSize <= 0 || f.SectorCount <= 0 {
		return fmt.Errorf("config: flash geometry %dx%d must be positive", f.SectorCount, f.SectorSize)
	}
	if f.WriteBlock < 0 || (f.WriteBlock > 0 && f.SectorSize%f.WriteBlock != 0) {
		return fmt.Errorf("config: write block %d does not divide sector size %d", f.WriteBlock, f.SectorSize)
	}
	if c.Log.Capacity < 0 || c.Log.EntrySize < 0 {
		return fmt.Errorf("config: negative log capacity or entry size")
	}
	// The log capacity must divide the 24-bit sequence ring. Slot sizes are
	// powers of two, so the geometry decides it.
	if !powerOfTwo(f.SectorSize) {
		return fmt.Errorf("config: sector size %d is not a power of two", f.SectorSize)
	}
	if c.Log.Capacity == 0 && !powerOfTwo(f.SectorCount) {
		return fmt.Errorf("config: sector count %d is not a power of two; set log.capacity", f.SectorCount)
	}
	if c.Log.Capacity > 0 && !powerOfTwo(c.Log.Capacity) {
		return fmt.Errorf("config: log capacity %d is not a power of two", c.Log.Capacity)
	}
	if _, err := bloom.ParseStrategy(c.Bloom.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logpkg.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func powerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }
