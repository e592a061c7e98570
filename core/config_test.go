package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqleval.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearConfigEnv(t *testing.T) {
	for _, name := range []string{
		"SQLEVAL_TRACE_LEVEL", "SQLEVAL_TRACE_COMPONENTS", "SQLEVAL_PATTERN_CACHE_SIZE",
		"SQLEVAL_WORKER_POOL_SIZE", "SQLEVAL_WORKER_BATCH_SIZE", "SQLEVAL_CODEC_COMPRESSION",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "snappy", cfg.Codec.Compression)
	assert.Equal(t, DefaultBatchSize, cfg.Worker.BatchSize)
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `
[trace]
level = "debug"
components = ["EXPRESSION", "pattern"]

[pattern]
cache_size = 16

[worker]
pool_size = 2

[codec]
compression = "zstd"
level = 3

[unknown]
key = 1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Trace.Level)
	assert.Equal(t, []string{"EXPRESSION", "pattern"}, cfg.Trace.Components)
	assert.Equal(t, 16, cfg.Pattern.CacheSize)
	assert.Equal(t, DefaultMaxRegexLength, cfg.Pattern.MaxRegexLength)
	assert.Equal(t, 2, cfg.Worker.PoolSize)
	assert.Equal(t, DefaultBatchSize, cfg.Worker.BatchSize)
	assert.Equal(t, "zstd", cfg.Codec.Compression)
	assert.Equal(t, 3, cfg.Codec.Level)
}

func TestConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "[worker]\npool_size = 2\n")
	t.Setenv("SQLEVAL_WORKER_POOL_SIZE", "5")
	t.Setenv("SQLEVAL_WORKER_BATCH_SIZE", "not a number")
	t.Setenv("SQLEVAL_CODEC_COMPRESSION", "gzip")
	t.Setenv("SQLEVAL_TRACE_COMPONENTS", "worker,codec")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Worker.PoolSize)
	assert.Equal(t, DefaultBatchSize, cfg.Worker.BatchSize)
	assert.Equal(t, "gzip", cfg.Codec.Compression)
	assert.Equal(t, []string{"worker", "codec"}, cfg.Trace.Components)
}

func TestConfigValidation(t *testing.T) {
	clearConfigEnv(t)
	for name, body := range map[string]string{
		"trace level": "[trace]\nlevel = \"loud\"\n",
		"cache size":  "[pattern]\ncache_size = -1\n",
		"pool size":   "[worker]\npool_size = 0\n",
		"batch size":  "[worker]\nbatch_size = -4\n",
		"compression": "[codec]\ncompression = \"lz4\"\n",
		"regex limit": "[pattern]\nmax_regex_length = -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}

	_, err := LoadConfig(writeConfig(t, "not = [valid"))
	require.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
