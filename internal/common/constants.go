package common

// Service identity
const (
	ServiceName    = "Laptop Price Predictor"
	ServiceVersion = "1.0.0"
	APIPrefix      = "/api/v1"
)

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvAppEnv           = "APP_ENV"
	EnvAppHost          = "APP_HOST"
	EnvAppPort          = "APP_PORT"
	EnvModelPath        = "MODEL_PATH"
	EnvDataPath         = "DATA_PATH"
	EnvStoreDriver      = "STORE_DRIVER"
	EnvStoreDir         = "STORE_DIR"
	EnvCollectionName   = "COLLECTION_NAME"
	EnvCacheTTL         = "CACHE_TTL"
	EnvWorkers          = "WORKERS"
	EnvPersistQueueSize = "PERSIST_QUEUE_SIZE"
	EnvRateLimitRPS     = "RATE_LIMIT_RPS"
	EnvRateLimitBurst   = "RATE_LIMIT_BURST"
	EnvHistoryMaxLimit  = "HISTORY_MAX_LIMIT"
	EnvEagerModelLoad   = "EAGER_MODEL_LOAD"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFile          = "LOG_FILE"
	EnvAPIURL           = "PREDICTOR_API_URL"
)

// Configuration defaults
const (
	DefaultAppEnv           = "development"
	DefaultAppHost          = "0.0.0.0"
	DefaultAppPort          = 8000
	DefaultModelPath        = "models/laptop_price_model.json"
	DefaultDataPath         = "models/laptop_data.csv"
	DefaultStoreDriver      = StoreDriverBolt
	DefaultStoreDir         = "data"
	DefaultCollectionName   = "predictions"
	DefaultCacheTTLSeconds  = 300
	DefaultWorkers          = 2
	DefaultPersistQueueSize = 256
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultHistoryMaxLimit  = 1000
	DefaultHistoryLimit     = 100
	DefaultLogLevel         = "info"
	DefaultAPIURL           = "http://localhost:8000"
)

// Storage drivers
const (
	StoreDriverBolt   = "bolt"
	StoreDriverSQLite = "sqlite"
)

// Validation constants
const (
	MinPort             = 1
	MaxPort             = 65535
	MaxWorkers          = 64
	MaxPersistQueueSize = 100000
	MaxHistoryLimit     = 10000
)
