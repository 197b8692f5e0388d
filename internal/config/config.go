package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL        = "http://127.0.0.1:8000"
	DefaultLogLevel      = "info"
	DefaultOutputDirName = "output"
	DefaultScratchSubdir = "audio_converter"
	ConfigFileName       = ".audioconv.toml"

	DefaultEnginePath            = "ffmpeg"
	DefaultEngineTimeout         = 2 * time.Minute
	DefaultEngineStderrTailBytes = 2048
	DefaultUploadMaxBytes        = ByteSize(100 << 20)
	DefaultUploadMultipartMemory = ByteSize(8 << 20)
	DefaultServerMaxPending      = 64

	configDirEnvKey          = "AUDIOCONV_CONFIG_DIR"
	trustProjectConfigEnvKey = "AUDIOCONV_TRUST_PROJECT_CONFIG"

	apiURLEnvKey        = "AUDIOCONV_API_URL"
	outputDirEnvKey     = "AUDIOCONV_OUTPUT_DIR"
	scratchDirEnvKey    = "AUDIOCONV_SCRATCH_DIR"
	publicBaseURLEnvKey = "AUDIOCONV_PUBLIC_BASE_URL"
	enginePathEnvKey    = "AUDIOCONV_ENGINE"
	engineTimeoutEnvKey = "AUDIOCONV_ENGINE_TIMEOUT"
	maxConcurrentEnvKey = "AUDIOCONV_MAX_CONCURRENT"
	maxUploadEnvKey     = "AUDIOCONV_MAX_UPLOAD"
)

// EngineConfig controls how the transcoding engine is invoked.
type EngineConfig struct {
	Path            string        `toml:"path"`
	Timeout         time.Duration `toml:"timeout"`
	MaxConcurrent   int           `toml:"max_concurrent"`
	QueueTimeout    time.Duration `toml:"queue_timeout"`
	StderrTailBytes int           `toml:"stderr_tail_bytes"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes        ByteSize `toml:"max_bytes"`
	MultipartMemory ByteSize `toml:"multipart_memory"`
}

// ServerConfig holds HTTP admission settings.
type ServerConfig struct {
	MaxPending int `toml:"max_pending"`
}

// Config defines runtime configuration for audioconv.
type Config struct {
	APIURL                   string       `toml:"api_url"`
	LogLevel                 string       `toml:"log_level"`
	OutputDir                string       `toml:"output_dir"`
	ScratchDir               string       `toml:"scratch_dir"`
	PublicBaseURL            string       `toml:"public_base_url"`
	Engine                   EngineConfig `toml:"engine"`
	Upload                   UploadConfig `toml:"upload"`
	Server                   ServerConfig `toml:"server"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		LogLevel:   DefaultLogLevel,
		OutputDir:  "",
		ScratchDir: filepath.Join(os.TempDir(), DefaultScratchSubdir),
		Engine: EngineConfig{
			Path:            DefaultEnginePath,
			Timeout:         DefaultEngineTimeout,
			MaxConcurrent:   runtime.NumCPU(),
			QueueTimeout:    0,
			StderrTailBytes: DefaultEngineStderrTailBytes,
		},
		Upload: UploadConfig{
			MaxBytes:        DefaultUploadMaxBytes,
			MultipartMemory: DefaultUploadMultipartMemory,
		},
		Server: ServerConfig{
			MaxPending: DefaultServerMaxPending,
		},
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
	return filepath.Join(dir, ConfigFileName), true
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
	"api_url",
	"log_level",
	"output_dir",
	"scratch_dir",
	"public_base_url",
	"engine.path",
	"engine.timeout",
	"engine.max_concurrent",
	"engine.queue_timeout",
	"engine.stderr_tail_bytes",
	"upload.max_bytes",
	"upload.multipart_memory",
	"server.max_pending",
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
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "output_dir":
		return c.OutputDir, nil
	case "scratch_dir":
		return c.ScratchDir, nil
	case "public_base_url":
		return c.PublicBaseURL, nil
	case "engine.path":
		return c.Engine.Path, nil
	case "engine.timeout":
		return c.Engine.Timeout.String(), nil
	case "engine.max_concurrent":
		return strconv.Itoa(c.Engine.MaxConcurrent), nil
	case "engine.queue_timeout":
		return c.Engine.QueueTimeout.String(), nil
	case "engine.stderr_tail_bytes":
		return strconv.Itoa(c.Engine.StderrTailBytes), nil
	case "upload.max_bytes":
		return c.Upload.MaxBytes.String(), nil
	case "upload.multipart_memory":
		return c.Upload.MultipartMemory.String(), nil
	case "server.max_pending":
		return strconv.Itoa(c.Server.MaxPending), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Values returns every allowed key with its current value.
func (c *Config) Values() map[string]string {
	out := make(map[string]string, len(allowedKeys))
	for _, key := range allowedKeys {
		value, err := c.Get(key)
		if err != nil {
			continue
		}
		out[key] = value
	}
	return out
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
	return filepath.Join(home, ConfigFileName), nil
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
	return filepath.Join(cwd, ConfigFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
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

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
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
			if err := loadFile(filepath.Join(home, ConfigFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, ConfigFileName)
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

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.OutputDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.OutputDir = filepath.Join(cwd, DefaultOutputDirName)
		}
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(outputDirEnvKey)); v != "" {
		c.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(scratchDirEnvKey)); v != "" {
		c.ScratchDir = v
	}
	if v := strings.TrimSpace(os.Getenv(publicBaseURLEnvKey)); v != "" {
		c.PublicBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(enginePathEnvKey)); v != "" {
		c.Engine.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(engineTimeoutEnvKey)); v != "" {
		parsed, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", engineTimeoutEnvKey, err)
		}
		c.Engine.Timeout = parsed
	}
	if v := strings.TrimSpace(os.Getenv(maxConcurrentEnvKey)); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("%s must be a positive integer", maxConcurrentEnvKey)
		}
		c.Engine.MaxConcurrent = parsed
	}
	if v := strings.TrimSpace(os.Getenv(maxUploadEnvKey)); v != "" {
		parsed, err := ParseByteSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", maxUploadEnvKey, err)
		}
		c.Upload.MaxBytes = parsed
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "engine.max_concurrent", "engine.stderr_tail_bytes", "server.max_pending":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return int64(parsed), nil
	case "engine.timeout":
		if _, err := parsePositiveDuration(value); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return value, nil
	case "engine.queue_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s must be a non-negative duration", key)
		}
		return value, nil
	case "upload.max_bytes", "upload.multipart_memory":
		if _, err := ParseByteSize(value); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return value, nil
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			return value, nil
		}
		if _, err := strconv.Atoi(value); err == nil {
			return value, nil
		}
		return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
	default:
		return value, nil
	}
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
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
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		c.ScratchDir = filepath.Join(os.TempDir(), DefaultScratchSubdir)
	}
	if strings.TrimSpace(c.Engine.Path) == "" {
		c.Engine.Path = DefaultEnginePath
	}
	if c.Engine.Timeout <= 0 {
		c.Engine.Timeout = DefaultEngineTimeout
	}
	if c.Engine.MaxConcurrent <= 0 {
		c.Engine.MaxConcurrent = runtime.NumCPU()
	}
	if c.Engine.QueueTimeout < 0 {
		c.Engine.QueueTimeout = 0
	}
	if c.Engine.StderrTailBytes <= 0 {
		c.Engine.StderrTailBytes = DefaultEngineStderrTailBytes
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = DefaultUploadMaxBytes
	}
	if c.Upload.MultipartMemory <= 0 {
		c.Upload.MultipartMemory = DefaultUploadMultipartMemory
	}
	if c.Server.MaxPending <= 0 {
		c.Server.MaxPending = DefaultServerMaxPending
	}
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}
