package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Default values
const (
	DefaultResolverURL     = "http://localhost:8080/1.0/identifiers"
	DefaultMethod          = "elastos"
	DefaultResolverTimeout = 10 * time.Second
	DefaultCacheTTL        = 5 * time.Minute
	DefaultListenAddr      = ":8090"
	DefaultChallengeTTL    = 2 * time.Minute
	DefaultLogLevel        = "info"
)

// Environment variable names
const (
	EnvResolverURL     = "DID_RESOLVER_URL"
	EnvMethod          = "DID_METHOD"
	EnvResolverTimeout = "DID_RESOLVER_TIMEOUT"
	EnvCacheTTL        = "DID_CACHE_TTL"
)

// ResolverURL returns the resolver base URL from environment variable or default value
func ResolverURL() string {
	if u := os.Getenv(EnvResolverURL); u != "" {
		return u
	}
	return DefaultResolverURL
}

// Method returns the DID method from environment variable or default value
func Method() string {
	if m := os.Getenv(EnvMethod); m != "" {
		return m
	}
	return DefaultMethod
}

// ResolverTimeout returns the resolution timeout from environment variable or default value
func ResolverTimeout() time.Duration {
	return durationEnv(EnvResolverTimeout, DefaultResolverTimeout)
}

// CacheTTL returns the resolver cache TTL from environment variable or default value
func CacheTTL() time.Duration {
	return durationEnv(EnvCacheTTL, DefaultCacheTTL)
}

func durationEnv(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.WithFields(log.Fields{"env": name, "value": v}).Warn("ignoring invalid duration")
		return def
	}
	return d
}

// Config holds the configuration of the verifier service and its resolver.
type Config struct {
	ResolverURL     string
	Method          string
	ResolverTimeout time.Duration
	CacheTTL        time.Duration
	ListenAddr      string
	ChallengeTTL    time.Duration
	LogLevel        string
}

// New creates a new Config instance with the provided values.
// If a value is empty/zero, the environment or the default value is used.
// Pass an empty Config{} to use all defaults.
func New(cfg Config) *Config {
	result := &Config{
		ResolverURL:     ResolverURL(),
		Method:          Method(),
		ResolverTimeout: ResolverTimeout(),
		CacheTTL:        CacheTTL(),
		ListenAddr:      DefaultListenAddr,
		ChallengeTTL:    DefaultChallengeTTL,
		LogLevel:        DefaultLogLevel,
	}

	if cfg.ResolverURL != "" {
		result.ResolverURL = cfg.ResolverURL
	}
	if cfg.Method != "" {
		result.Method = cfg.Method
	}
	if cfg.ResolverTimeout > 0 {
		result.ResolverTimeout = cfg.ResolverTimeout
	}
	if cfg.CacheTTL > 0 {
		result.CacheTTL = cfg.CacheTTL
	}
	if cfg.ListenAddr != "" {
		result.ListenAddr = cfg.ListenAddr
	}
	if cfg.ChallengeTTL > 0 {
		result.ChallengeTTL = cfg.ChallengeTTL
	}
	if cfg.LogLevel != "" {
		result.LogLevel = cfg.LogLevel
	}

	return result
}

type fileConfig struct {
	ResolverURL     string `json:"resolverUrl"`
	Method          string `json:"method"`
	ResolverTimeout string `json:"resolverTimeout"`
	CacheTTL        string `json:"cacheTtl"`
	ListenAddr      string `json:"listenAddr"`
	ChallengeTTL    string `json:"challengeTtl"`
	LogLevel        string `json:"logLevel"`
}

// LoadFile reads a JSON config file. Durations use time.ParseDuration syntax
// ("30s", "5m"). Missing values fall back as in New.
func LoadFile(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		log.WithFields(log.Fields{
			"path":  path,
			"error": err,
		}).Error("read config file failed")
		return nil, err
	}

	var fc fileConfig
	if err := json.Unmarshal(contents, &fc); err != nil {
		log.WithFields(log.Fields{
			"path":  path,
			"error": err,
		}).Error("parse config file failed")
		return nil, err
	}

	cfg := Config{
		ResolverURL: fc.ResolverURL,
		Method:      fc.Method,
		ListenAddr:  fc.ListenAddr,
		LogLevel:    fc.LogLevel,
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"resolverTimeout", fc.ResolverTimeout, &cfg.ResolverTimeout},
		{"cacheTtl", fc.CacheTTL, &cfg.CacheTTL},
		{"challengeTtl", fc.ChallengeTTL, &cfg.ChallengeTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s in %s: %w", d.name, path, err)
		}
		*d.dst = parsed
	}

	return New(cfg), nil
}
