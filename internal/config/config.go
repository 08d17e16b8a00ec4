package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7410"
	DefaultEnv            = "DEV"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultDataDirName    = ".gcs-data"
	DefaultRegistrySource = "file"
	DefaultBlobBackend    = "local"
	DefaultMinIOBucket    = "gcs"
	DefaultCacheTTL       = 5 * time.Minute
	DefaultSweepInterval  = time.Hour
	DefaultSweepMinAge    = 15 * time.Minute

	DefaultUploadMaxBytes    int64 = 100 * 1024 * 1024
	DefaultUploadConcurrency       = 4

	configFileName           = ".gcs.toml"
	configDirEnvKey          = "GCS_CONFIG_DIR"
	trustProjectConfigEnvKey = "GCS_TRUST_PROJECT_CONFIG"
)

// Duration is a time.Duration written as "90s" or "5m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// RegistryConfig selects where environments are looked up.
type RegistryConfig struct {
	Source string `toml:"source"`
	Path   string `toml:"path"`
}

// CacheConfig configures the shared environment lookup cache. An empty
// RedisAddr disables it.
type CacheConfig struct {
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// BlobsConfig selects the content backend of sqlite clusters.
type BlobsConfig struct {
	Backend        string `toml:"backend"`
	Root           string `toml:"root"`
	MinIOEndpoint  string `toml:"minio_endpoint"`
	MinIOAccessKey string `toml:"minio_access_key"`
	MinIOSecretKey string `toml:"minio_secret_key"`
	MinIOBucket    string `toml:"minio_bucket"`
	MinIOSecure    bool   `toml:"minio_secure"`
}

// UploadsConfig bounds inbound uploads.
type UploadsConfig struct {
	MaxBytes    int64 `toml:"max_bytes"`
	Concurrency int   `toml:"concurrency"`
}

// SweepConfig schedules orphan blob collection. A zero interval disables it.
type SweepConfig struct {
	Interval Duration `toml:"interval"`
	MinAge   Duration `toml:"min_age"`
}

// AuthConfig configures principal resolution.
type AuthConfig struct {
	TrustHeaders bool   `toml:"trust_headers"`
	UsersFile    string `toml:"users_file"`
}

// Config defines runtime configuration for gcs.
type Config struct {
	ServiceFile              string         `toml:"service_file"`
	APIURL                   string         `toml:"api_url"`
	Env                      string         `toml:"env"`
	DataDir                  string         `toml:"data_dir"`
	LogLevel                 string         `toml:"log_level"`
	LogFormat                string         `toml:"log_format"`
	Registry                 RegistryConfig `toml:"registry"`
	Cache                    CacheConfig    `toml:"cache"`
	Blobs                    BlobsConfig    `toml:"blobs"`
	Uploads                  UploadsConfig  `toml:"uploads"`
	Sweep                    SweepConfig    `toml:"sweep"`
	Auth                     AuthConfig     `toml:"auth"`
	TrustedProjectConfigPath string         `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:    DefaultAPIURL,
		Env:       DefaultEnv,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Registry:  RegistryConfig{Source: DefaultRegistrySource},
		Cache:     CacheConfig{TTL: Duration{DefaultCacheTTL}},
		Blobs:     BlobsConfig{Backend: DefaultBlobBackend, MinIOBucket: DefaultMinIOBucket},
		Uploads:   UploadsConfig{MaxBytes: DefaultUploadMaxBytes, Concurrency: DefaultUploadConcurrency},
		Sweep:     SweepConfig{Interval: Duration{DefaultSweepInterval}, MinAge: Duration{DefaultSweepMinAge}},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"service_file",
	"api_url",
	"env",
	"data_dir",
	"log_level",
	"log_format",
	"registry.source",
	"registry.path",
	"cache.redis_addr",
	"cache.redis_password",
	"cache.redis_db",
	"cache.ttl",
	"blobs.backend",
	"blobs.root",
	"blobs.minio_endpoint",
	"blobs.minio_access_key",
	"blobs.minio_secret_key",
	"blobs.minio_bucket",
	"blobs.minio_secure",
	"uploads.max_bytes",
	"uploads.concurrency",
	"sweep.interval",
	"sweep.min_age",
	"auth.trust_headers",
	"auth.users_file",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "service_file":
		return c.ServiceFile, nil
	case "api_url":
		return c.APIURL, nil
	case "env":
		return c.Env, nil
	case "data_dir":
		return c.DataDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "registry.source":
		return c.Registry.Source, nil
	case "registry.path":
		return c.Registry.Path, nil
	case "cache.redis_addr":
		return c.Cache.RedisAddr, nil
	case "cache.redis_password":
		if c.Cache.RedisPassword == "" {
			return "", nil
		}
		return "********", nil
	case "cache.redis_db":
		return strconv.Itoa(c.Cache.RedisDB), nil
	case "cache.ttl":
		return c.Cache.TTL.String(), nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.minio_endpoint":
		return c.Blobs.MinIOEndpoint, nil
	case "blobs.minio_access_key":
		return c.Blobs.MinIOAccessKey, nil
	case "blobs.minio_secret_key":
		if c.Blobs.MinIOSecretKey == "" {
			return "", nil
		}
		return "********", nil
	case "blobs.minio_bucket":
		return c.Blobs.MinIOBucket, nil
	case "blobs.minio_secure":
		return strconv.FormatBool(c.Blobs.MinIOSecure), nil
	case "uploads.max_bytes":
		return strconv.FormatInt(c.Uploads.MaxBytes, 10), nil
	case "uploads.concurrency":
		return strconv.Itoa(c.Uploads.Concurrency), nil
	case "sweep.interval":
		return c.Sweep.Interval.String(), nil
	case "sweep.min_age":
		return c.Sweep.MinAge.String(), nil
	case "auth.trust_headers":
		return strconv.FormatBool(c.Auth.TrustHeaders), nil
	case "auth.users_file":
		return c.Auth.UsersFile, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back
// atomically.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	applyEnv(&cfg)

	if cfg.DataDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DataDir = filepath.Join(cwd, DefaultDataDirName)
		}
	}
	if cfg.Blobs.Root == "" && cfg.DataDir != "" {
		cfg.Blobs.Root = filepath.Join(cfg.DataDir, "blobs")
	}
	cfg.normalizeDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"GCS_SERVICE_FILE", &cfg.ServiceFile},
		{"GCS_API_URL", &cfg.APIURL},
		{"GCS_ENV", &cfg.Env},
		{"GCS_DATA_DIR", &cfg.DataDir},
		{"GCS_LOG_LEVEL", &cfg.LogLevel},
		{"GCS_LOG_FORMAT", &cfg.LogFormat},
		{"GCS_REGISTRY", &cfg.Registry.Path},
		{"GCS_REDIS_ADDR", &cfg.Cache.RedisAddr},
		{"GCS_REDIS_PASSWORD", &cfg.Cache.RedisPassword},
		{"GCS_MINIO_ACCESS_KEY", &cfg.Blobs.MinIOAccessKey},
		{"GCS_MINIO_SECRET_KEY", &cfg.Blobs.MinIOSecretKey},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.key)); value != "" {
			*o.dst = value
		}
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Registry.Source {
	case "file", "bolt":
	default:
		return fmt.Errorf("registry.source must be file or bolt, got %q", c.Registry.Source)
	}
	switch c.Blobs.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("blobs.backend must be local or minio, got %q", c.Blobs.Backend)
	}
	if c.Blobs.Backend == "minio" && c.Blobs.MinIOEndpoint == "" {
		return fmt.Errorf("blobs.minio_endpoint is required for the minio backend")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.concurrency":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "cache.redis_db":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be zero or a positive integer", key)
		}
		return parsed, nil
	case "cache.ttl", "sweep.interval", "sweep.min_age":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a duration such as 5m", key)
		}
		return parsed.String(), nil
	case "blobs.minio_secure", "auth.trust_headers":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "registry.source":
		if value != "file" && value != "bolt" {
			return nil, fmt.Errorf("%s must be file or bolt", key)
		}
		return value, nil
	case "blobs.backend":
		if value != "local" && value != "minio" {
			return nil, fmt.Errorf("%s must be local or minio", key)
		}
		return value, nil
	case "log_format":
		if value != "text" && value != "json" {
			return nil, fmt.Errorf("%s must be text or json", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = DefaultUploadMaxBytes
	}
	if c.Uploads.Concurrency <= 0 {
		c.Uploads.Concurrency = DefaultUploadConcurrency
	}
	if c.Cache.TTL.Duration <= 0 {
		c.Cache.TTL = Duration{DefaultCacheTTL}
	}
	if c.Blobs.MinIOBucket == "" {
		c.Blobs.MinIOBucket = DefaultMinIOBucket
	}
	c.Env = strings.ToUpper(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}
