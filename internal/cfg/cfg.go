package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"smoking-predictor/internal/common"
)

type Settings struct {
	ModelPath             string
	LazyLoad              bool
	TopK                  int
	SignificanceFilter    bool
	SignificanceThreshold float64
	GlobalTopK            int
	ListenPort            int
	MetricsPort           int
	DataPath              string
	UsagePath             string
	RateLimitRPS          float64
	RateLimitBurst        int
	RequestTimeout        time.Duration
	LogLevel              string
	LogFormat             string
	DriftWindow           int
	DriftAlertThreshold   float64
	DriftBaselinePath     string
}

type ConfigFile struct {
	Model struct {
		Path     string `yaml:"path"`
		LazyLoad *bool  `yaml:"lazyLoad"`
	} `yaml:"model"`

	Explain struct {
		TopK                  int      `yaml:"topK"`
		SignificanceFilter    *bool    `yaml:"significanceFilter"`
		SignificanceThreshold *float64 `yaml:"significanceThreshold"`
		GlobalTopK            int      `yaml:"globalTopK"`
	} `yaml:"explain"`

	Server struct {
		ListenPort     int     `yaml:"listenPort"`
		RequestTimeout string  `yaml:"requestTimeout"`
		RateLimitRPS   float64 `yaml:"rateLimitRPS"`
		RateLimitBurst int     `yaml:"rateLimitBurst"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		UsagePath   string `yaml:"usagePath"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
		LogFormat   string `yaml:"logFormat"`
	} `yaml:"system"`

	Drift struct {
		Window         *int    `yaml:"window"`
		AlertThreshold float64 `yaml:"alertThreshold"`
		BaselinePath   string  `yaml:"baselinePath"`
	} `yaml:"drift"`
}

// Load reads .env (if present), then CONFIG_FILE (if set), then environment
// overrides, and validates the result.
func Load() (Settings, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		ModelPath:             common.DefaultModelPath,
		LazyLoad:              false,
		TopK:                  common.DefaultTopK,
		SignificanceFilter:    true,
		SignificanceThreshold: common.DefaultSignificanceThreshold,
		GlobalTopK:            common.DefaultTopK,
		ListenPort:            common.DefaultListenPort,
		MetricsPort:           common.DefaultMetricsPort,
		RateLimitRPS:          common.DefaultRateLimitRPS,
		RateLimitBurst:        common.DefaultRateLimitBurst,
		RequestTimeout:        common.DefaultRequestTimeout,
		LogLevel:              "info",
		LogFormat:             "json",
		DriftWindow:           common.DefaultDriftWindow,
		DriftAlertThreshold:   common.DefaultDriftAlertThreshold,
	}
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

	def := Defaults()

	requestTimeout := def.RequestTimeout
	if config.Server.RequestTimeout != "" {
		d, err := time.ParseDuration(config.Server.RequestTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid server.requestTimeout %q: %w", config.Server.RequestTimeout, err)
		}
		requestTimeout = d
	}

	settings := Settings{
		ModelPath:             getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, def.ModelPath)),
		LazyLoad:              getBoolOrDefault(common.EnvLazyLoad, orBool(config.Model.LazyLoad, def.LazyLoad)),
		TopK:                  getIntOrDefault(common.EnvTopK, orInt(config.Explain.TopK, def.TopK)),
		SignificanceFilter:    getBoolOrDefault(common.EnvSignificanceFilter, orBool(config.Explain.SignificanceFilter, def.SignificanceFilter)),
		SignificanceThreshold: getFloatOrDefault(common.EnvSignificanceThreshold, orFloat(config.Explain.SignificanceThreshold, def.SignificanceThreshold)),
		GlobalTopK:            getIntOrDefault(common.EnvGlobalTopK, orInt(config.Explain.GlobalTopK, def.GlobalTopK)),
		ListenPort:            getIntOrDefault(common.EnvListenPort, orInt(config.Server.ListenPort, def.ListenPort)),
		MetricsPort:           getIntOrDefault(common.EnvMetricsPort, orInt(config.System.MetricsPort, def.MetricsPort)),
		DataPath:              getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		UsagePath:             getEnvOrDefault(common.EnvUsagePath, config.System.UsagePath),
		RateLimitRPS:          getFloatOrDefault(common.EnvRateLimitRPS, orFloat(nonZero(config.Server.RateLimitRPS), def.RateLimitRPS)),
		RateLimitBurst:        getIntOrDefault(common.EnvRateLimitBurst, orInt(config.Server.RateLimitBurst, def.RateLimitBurst)),
		RequestTimeout:        getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		LogLevel:              getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, def.LogLevel)),
		LogFormat:             getEnvOrDefault(common.EnvLogFormat, orString(config.System.LogFormat, def.LogFormat)),
		DriftWindow:           getIntOrDefault(common.EnvDriftWindow, orIntPtr(config.Drift.Window, def.DriftWindow)),
		DriftAlertThreshold:   getFloatOrDefault(common.EnvDriftAlertThreshold, orFloat(nonZero(config.Drift.AlertThreshold), def.DriftAlertThreshold)),
		DriftBaselinePath:     getEnvOrDefault(common.EnvDriftBaselinePath, config.Drift.BaselinePath),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	def := Defaults()

	settings := Settings{
		ModelPath:             getEnvOrDefault(common.EnvModelPath, def.ModelPath),
		LazyLoad:              getBoolOrDefault(common.EnvLazyLoad, def.LazyLoad),
		TopK:                  getIntOrDefault(common.EnvTopK, def.TopK),
		SignificanceFilter:    getBoolOrDefault(common.EnvSignificanceFilter, def.SignificanceFilter),
		SignificanceThreshold: getFloatOrDefault(common.EnvSignificanceThreshold, def.SignificanceThreshold),
		GlobalTopK:            getIntOrDefault(common.EnvGlobalTopK, def.GlobalTopK),
		ListenPort:            getIntOrDefault(common.EnvListenPort, def.ListenPort),
		MetricsPort:           getIntOrDefault(common.EnvMetricsPort, def.MetricsPort),
		DataPath:              os.Getenv(common.EnvDataPath),  // optional
		UsagePath:             os.Getenv(common.EnvUsagePath), // optional
		RateLimitRPS:          getFloatOrDefault(common.EnvRateLimitRPS, def.RateLimitRPS),
		RateLimitBurst:        getIntOrDefault(common.EnvRateLimitBurst, def.RateLimitBurst),
		RequestTimeout:        getDurationOrDefault(common.EnvRequestTimeout, def.RequestTimeout),
		LogLevel:              getEnvOrDefault(common.EnvLogLevel, def.LogLevel),
		LogFormat:             getEnvOrDefault(common.EnvLogFormat, def.LogFormat),
		DriftWindow:           getIntOrDefault(common.EnvDriftWindow, def.DriftWindow),
		DriftAlertThreshold:   getFloatOrDefault(common.EnvDriftAlertThreshold, def.DriftAlertThreshold),
		DriftBaselinePath:     os.Getenv(common.EnvDriftBaselinePath), // optional
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orIntPtr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func orBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func orFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ModelPath) == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	// Ranking
	if settings.TopK < 1 || settings.TopK > common.MaxTopK {
		return fmt.Errorf("top K must be between 1 and %d, got %d", common.MaxTopK, settings.TopK)
	}
	if settings.GlobalTopK < 1 || settings.GlobalTopK > common.MaxTopK {
		return fmt.Errorf("global top K must be between 1 and %d, got %d", common.MaxTopK, settings.GlobalTopK)
	}
	if settings.SignificanceThreshold < 0 || settings.SignificanceThreshold > 1 {
		return fmt.Errorf("significance threshold must be between 0 and 1, got %g", settings.SignificanceThreshold)
	}

	// Ports
	if settings.ListenPort < common.MinPort || settings.ListenPort > common.MaxPort {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", settings.ListenPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	// Server limits
	if settings.RequestTimeout < common.MinReqTimeout || settings.RequestTimeout > common.MaxReqTimeout {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative, got %f", settings.RateLimitRPS)
	}
	if settings.RateLimitRPS > 0 && settings.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1 when rate limiting is enabled, got %d", settings.RateLimitBurst)
	}

	// Drift detection (window 0 disables it)
	if settings.DriftWindow < 0 || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between 0 and %d, got %d", common.MaxDriftWindow, settings.DriftWindow)
	}
	if settings.DriftWindow > 0 && settings.DriftAlertThreshold <= 0 {
		return fmt.Errorf("drift alert threshold must be positive, got %g", settings.DriftAlertThreshold)
	}

	// Logging
	switch strings.ToLower(settings.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
