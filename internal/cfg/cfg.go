package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"laptop-price-predictor/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	AppEnv           string
	Host             string
	Port             int
	ModelPath        string
	DataPath         string
	StoreDriver      string
	StoreDir         string
	CollectionName   string
	CacheTTL         time.Duration
	Workers          int
	PersistQueueSize int
	RateLimitRPS     float64
	RateLimitBurst   int
	HistoryMaxLimit  int
	EagerModelLoad   bool
	InferenceTimeout time.Duration
	ShutdownTimeout  time.Duration
	LogLevel         string
	LogFile          string
}

type ConfigFile struct {
	App struct {
		Env             string `yaml:"env"`
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"app"`

	Model struct {
		ModelPath        string `yaml:"modelPath"`
		DataPath         string `yaml:"dataPath"`
		EagerLoad        *bool  `yaml:"eagerLoad"`
		Workers          int    `yaml:"workers"`
		InferenceTimeout string `yaml:"inferenceTimeout"`
	} `yaml:"model"`

	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`

	Storage struct {
		Driver     string `yaml:"driver"`
		Dir        string `yaml:"dir"`
		Collection string `yaml:"collection"`
		QueueSize  int    `yaml:"queueSize"`
	} `yaml:"storage"`

	API struct {
		RateLimitRPS    float64 `yaml:"rateLimitRPS"`
		RateLimitBurst  int     `yaml:"rateLimitBurst"`
		HistoryMaxLimit int     `yaml:"historyMaxLimit"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads settings from the YAML file named by CONFIG_FILE when set, otherwise
// from the environment. A .env file in the working directory is applied first.
func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cacheTTL := parseDurationOr(config.Cache.TTL, common.DefaultCacheTTLSeconds*time.Second)
	inferenceTimeout := parseDurationOr(config.Model.InferenceTimeout, 10*time.Second)
	shutdownTimeout := parseDurationOr(config.App.ShutdownTimeout, 10*time.Second)

	eager := true
	if config.Model.EagerLoad != nil {
		eager = *config.Model.EagerLoad
	}

	settings := Settings{
		AppEnv:           getEnvOrDefault(common.EnvAppEnv, stringOr(config.App.Env, common.DefaultAppEnv)),
		Host:             getEnvOrDefault(common.EnvAppHost, stringOr(config.App.Host, common.DefaultAppHost)),
		Port:             getIntFromEnvOrConfig(common.EnvAppPort, config.App.Port, common.DefaultAppPort),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, stringOr(config.Model.ModelPath, common.DefaultModelPath)),
		DataPath:         getEnvOrDefault(common.EnvDataPath, stringOr(config.Model.DataPath, common.DefaultDataPath)),
		StoreDriver:      getEnvOrDefault(common.EnvStoreDriver, stringOr(config.Storage.Driver, common.DefaultStoreDriver)),
		StoreDir:         getEnvOrDefault(common.EnvStoreDir, stringOr(config.Storage.Dir, common.DefaultStoreDir)),
		CollectionName:   getEnvOrDefault(common.EnvCollectionName, stringOr(config.Storage.Collection, common.DefaultCollectionName)),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		Workers:          getIntFromEnvOrConfig(common.EnvWorkers, config.Model.Workers, common.DefaultWorkers),
		PersistQueueSize: getIntFromEnvOrConfig(common.EnvPersistQueueSize, config.Storage.QueueSize, common.DefaultPersistQueueSize),
		RateLimitRPS:     getFloatFromEnvOrConfig(common.EnvRateLimitRPS, config.API.RateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:   getIntFromEnvOrConfig(common.EnvRateLimitBurst, config.API.RateLimitBurst, common.DefaultRateLimitBurst),
		HistoryMaxLimit:  getIntFromEnvOrConfig(common.EnvHistoryMaxLimit, config.API.HistoryMaxLimit, common.DefaultHistoryMaxLimit),
		EagerModelLoad:   getBoolOrDefault(common.EnvEagerModelLoad, eager),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, inferenceTimeout),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, shutdownTimeout),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, stringOr(config.Logging.Level, common.DefaultLogLevel)),
		LogFile:          getEnvOrDefault(common.EnvLogFile, config.Logging.File),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		AppEnv:           getEnvOrDefault(common.EnvAppEnv, common.DefaultAppEnv),
		Host:             getEnvOrDefault(common.EnvAppHost, common.DefaultAppHost),
		Port:             getIntOrDefault(common.EnvAppPort, common.DefaultAppPort),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		DataPath:         getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		StoreDriver:      getEnvOrDefault(common.EnvStoreDriver, common.DefaultStoreDriver),
		StoreDir:         getEnvOrDefault(common.EnvStoreDir, common.DefaultStoreDir),
		CollectionName:   getEnvOrDefault(common.EnvCollectionName, common.DefaultCollectionName),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, common.DefaultCacheTTLSeconds*time.Second),
		Workers:          getIntOrDefault(common.EnvWorkers, common.DefaultWorkers),
		PersistQueueSize: getIntOrDefault(common.EnvPersistQueueSize, common.DefaultPersistQueueSize),
		RateLimitRPS:     getFloatOrDefault(common.EnvRateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:   getIntOrDefault(common.EnvRateLimitBurst, common.DefaultRateLimitBurst),
		HistoryMaxLimit:  getIntOrDefault(common.EnvHistoryMaxLimit, common.DefaultHistoryMaxLimit),
		EagerModelLoad:   getBoolOrDefault(common.EnvEagerModelLoad, true),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, 10*time.Second),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, 10*time.Second),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFile:          os.Getenv(common.EnvLogFile), // optional
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr returns the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment reports whether the service runs in development mode.
func (s *Settings) IsDevelopment() bool {
	return strings.EqualFold(s.AppEnv, common.DefaultAppEnv)
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func parseDurationOr(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// bare integers are seconds, matching the original CACHE_TTL semantics
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}

	switch settings.StoreDriver {
	case common.StoreDriverBolt, common.StoreDriverSQLite:
	default:
		return fmt.Errorf("store driver must be %q or %q, got %q",
			common.StoreDriverBolt, common.StoreDriverSQLite, settings.StoreDriver)
	}
	if settings.StoreDir == "" {
		return fmt.Errorf("store directory cannot be empty")
	}
	if settings.CollectionName == "" {
		return fmt.Errorf("collection name cannot be empty")
	}

	if settings.CacheTTL <= 0 || settings.CacheTTL > 24*time.Hour {
		return fmt.Errorf("cache TTL must be between 0 and 24h, got %v", settings.CacheTTL)
	}
	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > 5*time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 5m, got %v", settings.InferenceTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	if settings.Workers <= 0 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}
	if settings.PersistQueueSize <= 0 || settings.PersistQueueSize > common.MaxPersistQueueSize {
		return fmt.Errorf("persist queue size must be between 1 and %d, got %d", common.MaxPersistQueueSize, settings.PersistQueueSize)
	}
	if settings.HistoryMaxLimit <= 0 || settings.HistoryMaxLimit > common.MaxHistoryLimit {
		return fmt.Errorf("history max limit must be between 1 and %d, got %d", common.MaxHistoryLimit, settings.HistoryMaxLimit)
	}

	// zero RPS disables rate limiting
	if settings.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit RPS cannot be negative, got %f", settings.RateLimitRPS)
	}
	if settings.RateLimitRPS > 0 && settings.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive when rate limiting is enabled, got %d", settings.RateLimitBurst)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
