// Package config loads dfind settings from flags, the environment and an
// optional .env file, and validates them before any scanning starts.
package config

// Default configuration values for dfind.
const (
	// DefaultCPUUsageLimit is the CPU ceiling in percent of one core.
	DefaultCPUUsageLimit = 15

	// DefaultMaxRecentFolders bounds the recent-folder list.
	DefaultMaxRecentFolders = 20

	// DefaultConfigFile holds the recent-folder list.
	DefaultConfigFile = "config.json"

	// DefaultOutputFile is where the markdown report is written.
	DefaultOutputFile = "duplicate_files_report.md"

	// DefaultHashPartialSizes means every extension uses the default partial read.
	DefaultHashPartialSizes = "{}"

	// DefaultHashAlgorithm is the content digest.
	DefaultHashAlgorithm = "blake3"

	// DefaultMinSize includes every file.
	DefaultMinSize = "0"

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"

	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = "10MB"
	DefaultLogMaxAge     = 30
	DefaultLogMaxBackups = 5
)

// Keys are the environment variable names, which double as .env keys.
const (
	KeyCPUUsageLimit    = "CPU_USAGE_LIMIT"
	KeyMaxRecentFolders = "MAX_RECENT_FOLDERS"
	KeyConfigFile       = "CONFIG_FILE"
	KeyOutputFile       = "OUTPUT_FILE"
	KeyHashPartialSizes = "HASH_PARTIAL_SIZES"
	KeyHashAlgorithm    = "HASH_ALGORITHM"
	KeyHashWorkers      = "HASH_WORKERS"
	KeyWorkers          = "WORKERS"
	KeyMinSize          = "MIN_SIZE"
	KeyExtensions       = "EXTENSIONS"
	KeyExclude          = "EXCLUDE"
	KeyCacheEnabled     = "CACHE_ENABLED"
	KeyCacheDir         = "CACHE_DIR"
	KeyLogLevel         = "LOG_LEVEL"
	KeyLogFile          = "LOG_FILE"
	KeyLogMaxSize       = "LOG_MAX_SIZE"
	KeyLogMaxAge        = "LOG_MAX_AGE"
	KeyLogMaxBackups    = "LOG_MAX_BACKUPS"
	KeyLogDaily         = "LOG_DAILY"
)
