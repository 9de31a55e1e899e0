package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv(EnvResolverURL, "")
	t.Setenv(EnvMethod, "")
	t.Setenv(EnvResolverTimeout, "")
	t.Setenv(EnvCacheTTL, "")

	cfg := New(Config{})
	assert.Equal(t, DefaultResolverURL, cfg.ResolverURL)
	assert.Equal(t, DefaultMethod, cfg.Method)
	assert.Equal(t, DefaultResolverTimeout, cfg.ResolverTimeout)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultChallengeTTL, cfg.ChallengeTTL)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestEnvironment(t *testing.T) {
	t.Setenv(EnvResolverURL, "https://resolver.example")
	t.Setenv(EnvMethod, "web")
	t.Setenv(EnvResolverTimeout, "3s")
	t.Setenv(EnvCacheTTL, "not-a-duration")

	cfg := New(Config{})
	assert.Equal(t, "https://resolver.example", cfg.ResolverURL)
	assert.Equal(t, "web", cfg.Method)
	assert.Equal(t, 3*time.Second, cfg.ResolverTimeout)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)

	explicit := New(Config{ResolverURL: "https://other.example", CacheTTL: time.Second})
	assert.Equal(t, "https://other.example", explicit.ResolverURL)
	assert.Equal(t, time.Second, explicit.CacheTTL)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvResolverURL, "")
	dir := t.TempDir()

	path := filepath.Join(dir, "verifier.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listenAddr": ":9000",
		"challengeTtl": "30s",
		"cacheTtl": "1m",
		"logLevel": "debug"
	}`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultResolverURL, cfg.ResolverURL)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"challengeTtl": "soon"}`), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0o600))
	_, err = LoadFile(broken)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
