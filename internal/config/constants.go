package config

// Constants defining default values for application configuration
const (
	DefaultAnimalsCSVPath = "./animals.csv"
	DefaultSourcesCSVPath = "./sources.csv"
	DefaultDBPath         = "./petfeed.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces
	DefaultAPIURL     = "http://localhost:8080"

	DefaultPageSize = 5  // Videos per feed page
	MaxPageSize     = 50 // Upper bound accepted by the videos endpoint

	DefaultWorkerCount   = 0  // 0 means use runtime.NumCPU()
	DefaultInterval      = 30 // Minutes between source sync runs
	DefaultRetentionDays = 30 // Days to keep videos of adopted animals

	DefaultLogLevel = "info"
)

// Environment variable names
const (
	EnvDBPath        = "PETFEED_DB_PATH"
	EnvServerHost    = "PETFEED_HOST"
	EnvServerPort    = "PETFEED_PORT"
	EnvAPIKey        = "PETFEED_API_KEY"
	EnvLogLevel      = "PETFEED_LOG_LEVEL"
	EnvPageSize      = "PETFEED_PAGE_SIZE"
	EnvInterval      = "PETFEED_INTERVAL"
	EnvWorkerCount   = "PETFEED_WORKER_COUNT"
	EnvRetentionDays = "PETFEED_RETENTION_DAYS"
	EnvAnimalsCSV    = "PETFEED_ANIMALS_CSV"
	EnvSourcesCSV    = "PETFEED_SOURCES_CSV"
	EnvAPIURL        = "PETFEED_API_URL"
	EnvAssumeYes     = "PETFEED_ASSUME_YES"
)
