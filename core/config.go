package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables of the evaluation engine
type Config struct {
	Trace   TraceConfig   `toml:"trace"`
	Pattern PatternConfig `toml:"pattern"`
	Worker  WorkerConfig  `toml:"worker"`
	Codec   CodecConfig   `toml:"codec"`
}

// TraceConfig configures the global tracer
type TraceConfig struct {
	Level      string   `toml:"level"`
	Components []string `toml:"components"`
}

// PatternConfig configures the shared compiled-pattern cache
type PatternConfig struct {
	CacheSize      int `toml:"cache_size"`       // 0 means unbounded
	MaxRegexLength int `toml:"max_regex_length"` // 0 means unlimited
}

// WorkerConfig configures the parallel evaluation pool
type WorkerConfig struct {
	PoolSize  int `toml:"pool_size"`
	BatchSize int `toml:"batch_size"`
}

// CodecConfig configures vector encoding for shipping between workers
type CodecConfig struct {
	Compression string `toml:"compression"` // none, snappy, zstd or gzip
	Level       int    `toml:"level"`
}

const (
	DefaultPatternCacheSize = 4096
	DefaultMaxRegexLength   = 64 * 1024
	DefaultPoolSize         = 8
	DefaultBatchSize        = 4096
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Trace: TraceConfig{Level: "OFF"},
		Pattern: PatternConfig{
			CacheSize:      DefaultPatternCacheSize,
			MaxRegexLength: DefaultMaxRegexLength,
		},
		Worker: WorkerConfig{
			PoolSize:  DefaultPoolSize,
			BatchSize: DefaultBatchSize,
		},
		Codec: CodecConfig{Compression: "snappy"},
	}
}

// LoadConfig reads a TOML file on top of the defaults and applies environment overrides
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			GetTracer().Warn(TraceComponentConfig, "Ignoring unknown config keys", TraceContext(
				"file", path,
				"keys", fmt.Sprint(undecoded),
			))
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from SQLEVAL_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("SQLEVAL_TRACE_LEVEL"); v != "" {
		c.Trace.Level = v
	}
	if v := os.Getenv("SQLEVAL_TRACE_COMPONENTS"); v != "" {
		c.Trace.Components = strings.Split(v, ",")
	}
	if n, ok := envInt("SQLEVAL_PATTERN_CACHE_SIZE"); ok {
		c.Pattern.CacheSize = n
	}
	if n, ok := envInt("SQLEVAL_WORKER_POOL_SIZE"); ok {
		c.Worker.PoolSize = n
	}
	if n, ok := envInt("SQLEVAL_WORKER_BATCH_SIZE"); ok {
		c.Worker.BatchSize = n
	}
	if v := os.Getenv("SQLEVAL_CODEC_COMPRESSION"); v != "" {
		c.Codec.Compression = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for values the engine cannot use
func (c *Config) Validate() error {
	if _, ok := ParseTraceLevel(c.Trace.Level); !ok {
		return fmt.Errorf("invalid trace level %q", c.Trace.Level)
	}
	if c.Pattern.CacheSize < 0 {
		return fmt.Errorf("pattern.cache_size must not be negative, got %d", c.Pattern.CacheSize)
	}
	if c.Pattern.MaxRegexLength < 0 {
		return fmt.Errorf("pattern.max_regex_length must not be negative, got %d", c.Pattern.MaxRegexLength)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive, got %d", c.Worker.PoolSize)
	}
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive, got %d", c.Worker.BatchSize)
	}
	switch strings.ToLower(c.Codec.Compression) {
	case "", "none", "snappy", "zstd", "gzip":
	default:
		return fmt.Errorf("unknown codec compression %q", c.Codec.Compression)
	}
	return nil
}
