package common

import "time"

// Environment variable keys
const (
	EnvConfigFile            = "CONFIG_FILE"
	EnvModelPath             = "MODEL_PATH"
	EnvLazyLoad              = "LAZY_LOAD"
	EnvTopK                  = "TOP_K"
	EnvSignificanceFilter    = "SIGNIFICANCE_FILTER"
	EnvSignificanceThreshold = "SIGNIFICANCE_THRESHOLD"
	EnvGlobalTopK            = "GLOBAL_TOP_K"
	EnvListenPort            = "LISTEN_PORT"
	EnvMetricsPort           = "METRICS_PORT"
	EnvDataPath              = "DATA_PATH"
	EnvUsagePath             = "USAGE_PATH"
	EnvRateLimitRPS          = "RATE_LIMIT_RPS"
	EnvRateLimitBurst        = "RATE_LIMIT_BURST"
	EnvRequestTimeout        = "REQUEST_TIMEOUT"
	EnvLogLevel              = "LOG_LEVEL"
	EnvLogFormat             = "LOG_FORMAT"
	EnvDriftWindow           = "DRIFT_WINDOW"
	EnvDriftAlertThreshold   = "DRIFT_ALERT_THRESHOLD"
	EnvDriftBaselinePath     = "DRIFT_BASELINE_PATH"
)

// Configuration defaults
const (
	DefaultModelPath             = "models/pipeline.json"
	DefaultTopK                  = 5
	DefaultSignificanceThreshold = 1e-6
	DefaultListenPort            = 8000
	DefaultMetricsPort           = 9090
	DefaultRateLimitRPS          = 50.0
	DefaultRateLimitBurst        = 100
	DefaultRequestTimeout        = 5 * time.Second
	DefaultShutdownTimeout       = 10 * time.Second
	DefaultAuditDBFile           = "predictions.db"
	DefaultDriftWindow           = 1000
	DefaultDriftAlertThreshold   = 0.1
)

// Validation constants
const (
	MaxTopK        = 50
	MinPort        = 1024
	MaxPort        = 65535
	MinReqTimeout  = 100 * time.Millisecond
	MaxReqTimeout  = time.Minute
	MaxDriftWindow = 100000
)
