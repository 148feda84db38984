// Package config holds the simulator configuration: memory and cache
// geometry, the cycle limit, the clock and the log level.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/timing/cache"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Environment variables read by ApplyEnv.
const (
	EnvMemorySize = "RVSIM_MEMORY_SIZE"
	EnvCacheSize  = "RVSIM_CACHE_SIZE"
	EnvBlockSize  = "RVSIM_BLOCK_SIZE"
	EnvMaxCycles  = "RVSIM_MAX_CYCLES"
	EnvClockMHz   = "RVSIM_CLOCK_MHZ"
	EnvLogLevel   = "RVSIM_LOG_LEVEL"
)

// Config holds the parameters of one simulation.
type Config struct {
	// MemorySize is the size of main memory in bytes. Default: 1 MiB.
	MemorySize uint32 `json:"memory_size"`

	// CacheSize is the cache capacity in bytes. Default: 4096.
	CacheSize int `json:"cache_size"`

	// BlockSize is the cache line size in bytes. Default: 16.
	BlockSize int `json:"block_size"`

	// MaxCycles bounds a run; 0 means no limit. Default: 10,000,000.
	MaxCycles uint64 `json:"max_cycles"`

	// ClockMHz is the core clock used by the event-driven driver.
	// Default: 1000.
	ClockMHz float64 `json:"clock_mhz"`

	// LogLevel is a logrus level name. Default: "info".
	LogLevel string `json:"log_level"`
}

// Default returns a Config with the default values.
func Default() *Config {
	return &Config{
		MemorySize: 1 << 20,
		CacheSize:  4096,
		BlockSize:  16,
		MaxCycles:  10_000_000,
		ClockMHz:   1000,
		LogLevel:   "info",
	}
}

// Load reads a Config from a JSON file. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the values describe a buildable core.
func (c *Config) Validate() error {
	if err := c.CacheConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.MemorySize == 0 || c.MemorySize%uint32(c.BlockSize) != 0 {
		return fmt.Errorf("%w: memory_size %d must be a non-zero multiple of block_size %d",
			ErrInvalid, c.MemorySize, c.BlockSize)
	}
	if c.ClockMHz <= 0 {
		return fmt.Errorf("%w: clock_mhz must be > 0", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CacheConfig returns the cache geometry.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Size:      c.CacheSize,
		BlockSize: c.BlockSize,
	}
}

// Freq returns the core clock.
func (c *Config) Freq() sim.Freq {
	return sim.Freq(c.ClockMHz) * sim.MHz
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// ApplyEnv loads the given .env files into the process environment and
// then overrides fields from the RVSIM_* variables. Variables already set in
// the environment win over the files. Files that do not exist are skipped.
func (c *Config) ApplyEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	if v, ok := lookup(EnvMemorySize); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return envError(EnvMemorySize, err)
		}
		c.MemorySize = uint32(n)
	}

	if v, ok := lookup(EnvCacheSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvCacheSize, err)
		}
		c.CacheSize = n
	}

	if v, ok := lookup(EnvBlockSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvBlockSize, err)
		}
		c.BlockSize = n
	}

	if v, ok := lookup(EnvMaxCycles); ok {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return envError(EnvMaxCycles, err)
		}
		c.MaxCycles = n
	}

	if v, ok := lookup(EnvClockMHz); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError(EnvClockMHz, err)
		}
		c.ClockMHz = f
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envError(key string, err error) error {
	return fmt.Errorf("failed to parse %s: %w", key, err)
}
