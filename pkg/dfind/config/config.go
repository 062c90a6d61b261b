package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/dfind/pkg/dfind/cache"
	"github.com/jamesainslie/dfind/pkg/dfind/digest"
	"github.com/jamesainslie/dfind/pkg/dfind/filter"
	"github.com/jamesainslie/dfind/pkg/dfind/hashpolicy"
	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string
	MaxAge     int
	MaxBackups int
	Daily      bool
}

// Config is the effective dfind configuration. Field tags name the
// environment variables they come from.
type Config struct {
	CPUUsageLimit    int      `mapstructure:"cpu_usage_limit" yaml:"CPU_USAGE_LIMIT"`
	MaxRecentFolders int      `mapstructure:"max_recent_folders" yaml:"MAX_RECENT_FOLDERS"`
	ConfigFile       string   `mapstructure:"config_file" yaml:"CONFIG_FILE"`
	OutputFile       string   `mapstructure:"output_file" yaml:"OUTPUT_FILE"`
	HashPartialSizes string   `mapstructure:"hash_partial_sizes" yaml:"HASH_PARTIAL_SIZES"`
	HashAlgorithm    string   `mapstructure:"hash_algorithm" yaml:"HASH_ALGORITHM"`
	HashWorkers      int      `mapstructure:"hash_workers" yaml:"HASH_WORKERS"`
	Workers          int      `mapstructure:"workers" yaml:"WORKERS"`
	MinSize          string   `mapstructure:"min_size" yaml:"MIN_SIZE"`
	Extensions       []string `mapstructure:"extensions" yaml:"EXTENSIONS"`
	Exclude          []string `mapstructure:"exclude" yaml:"EXCLUDE"`
	CacheEnabled     bool     `mapstructure:"cache_enabled" yaml:"CACHE_ENABLED"`
	CacheDir         string   `mapstructure:"cache_dir" yaml:"CACHE_DIR"`
	LogLevel         string   `mapstructure:"log_level" yaml:"LOG_LEVEL"`
	LogFile          string   `mapstructure:"log_file" yaml:"LOG_FILE"`

	LogMaxSize    string `mapstructure:"log_max_size" yaml:"LOG_MAX_SIZE"`
	LogMaxAge     int    `mapstructure:"log_max_age" yaml:"LOG_MAX_AGE"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"LOG_MAX_BACKUPS"`
	LogDaily      bool   `mapstructure:"log_daily" yaml:"LOG_DAILY"`

	// EnvFile is the .env file that was read, empty when none was found.
	EnvFile string `mapstructure:"-" yaml:"ENV_FILE,omitempty"`

	policy    *hashpolicy.Policy
	algorithm digest.Algorithm
	minSize   int64
	filter    *filter.Filter
}

// FlagKeys maps CLI flag names to configuration keys. Flags present in the
// set passed to Load override the environment and the .env file.
var FlagKeys = map[string]string{
	"cpu-limit":    KeyCPUUsageLimit,
	"output":       KeyOutputFile,
	"workers":      KeyWorkers,
	"hash-workers": KeyHashWorkers,
	"min-size":     KeyMinSize,
	"ext":          KeyExtensions,
	"exclude":      KeyExclude,
	"algorithm":    KeyHashAlgorithm,
	"log-level":    KeyLogLevel,
}

// Load builds the configuration. Precedence, highest first: changed flags,
// environment variables, the .env file, defaults.
//
// envFile names the .env file to read. Empty means DefaultEnvFile in the
// working directory, which may be absent; an explicit file must exist.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(viperKey(key), f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	used, err := readEnvFile(v, envFile)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.NewConfigError("ENV", used, err)
	}
	cfg.EnvFile = used
	cfg.Extensions = splitList(cfg.Extensions)
	cfg.Exclude = splitList(cfg.Exclude)

	for _, p := range []*string{&cfg.ConfigFile, &cfg.OutputFile, &cfg.CacheDir, &cfg.LogFile} {
		if *p == "" {
			continue
		}
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(viperKey(KeyCPUUsageLimit), DefaultCPUUsageLimit)
	v.SetDefault(viperKey(KeyMaxRecentFolders), DefaultMaxRecentFolders)
	v.SetDefault(viperKey(KeyConfigFile), DefaultConfigFile)
	v.SetDefault(viperKey(KeyOutputFile), DefaultOutputFile)
	v.SetDefault(viperKey(KeyHashPartialSizes), DefaultHashPartialSizes)
	v.SetDefault(viperKey(KeyHashAlgorithm), DefaultHashAlgorithm)
	v.SetDefault(viperKey(KeyHashWorkers), 0)
	v.SetDefault(viperKey(KeyWorkers), 0)
	v.SetDefault(viperKey(KeyMinSize), DefaultMinSize)
	v.SetDefault(viperKey(KeyExtensions), []string{})
	v.SetDefault(viperKey(KeyExclude), []string{})
	v.SetDefault(viperKey(KeyCacheEnabled), true)
	v.SetDefault(viperKey(KeyCacheDir), cache.DefaultDir())
	v.SetDefault(viperKey(KeyLogLevel), DefaultLogLevel)
	v.SetDefault(viperKey(KeyLogFile), logging.DefaultLogPath())
	v.SetDefault(viperKey(KeyLogMaxSize), DefaultLogMaxSize)
	v.SetDefault(viperKey(KeyLogMaxAge), DefaultLogMaxAge)
	v.SetDefault(viperKey(KeyLogMaxBackups), DefaultLogMaxBackups)
	v.SetDefault(viperKey(KeyLogDaily), true)
}

// readEnvFile merges a dotenv file into v and returns its path, or "" when
// the default file is absent.
func readEnvFile(v *viper.Viper, envFile string) (string, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	if _, err := os.Stat(envFile); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", types.NewConfigError("ENV_FILE", envFile, err)
	}

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return "", types.NewConfigError("ENV_FILE", envFile, err)
	}
	return envFile, nil
}

// viperKey maps an environment key to the viper key AutomaticEnv resolves
// back to the same variable.
func viperKey(key string) string {
	return strings.ToLower(key)
}

// splitList trims entries and splits any that still hold commas, which
// happens when a list arrives as one string from a flag or .env file.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate parses every value that can be wrong. The first problem is
// returned as a *types.ConfigError; on success the parsed forms are
// available from Policy, Algorithm, MinSizeBytes and Filter.
func (c *Config) Validate() error {
	if c.CPUUsageLimit < 0 || c.CPUUsageLimit > 100 {
		return types.NewConfigError(KeyCPUUsageLimit, fmt.Sprint(c.CPUUsageLimit),
			errors.New("must be between 0 and 100"))
	}
	if c.MaxRecentFolders < 1 {
		return types.NewConfigError(KeyMaxRecentFolders, fmt.Sprint(c.MaxRecentFolders),
			errors.New("must be at least 1"))
	}
	if strings.TrimSpace(c.ConfigFile) == "" {
		return types.NewConfigError(KeyConfigFile, "", errors.New("must not be empty"))
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		return types.NewConfigError(KeyOutputFile, "", errors.New("must not be empty"))
	}
	if c.Workers < 0 {
		return types.NewConfigError(KeyWorkers, fmt.Sprint(c.Workers), errors.New("must not be negative"))
	}
	if c.HashWorkers < 0 {
		return types.NewConfigError(KeyHashWorkers, fmt.Sprint(c.HashWorkers), errors.New("must not be negative"))
	}

	policy, err := hashpolicy.Parse(c.HashPartialSizes)
	if err != nil {
		return types.NewConfigError(KeyHashPartialSizes, c.HashPartialSizes, err)
	}

	algo, err := digest.ParseAlgorithm(c.HashAlgorithm)
	if err != nil {
		return types.NewConfigError(KeyHashAlgorithm, c.HashAlgorithm, err)
	}

	minSize, err := types.ParseSize(c.MinSize)
	if err != nil {
		return types.NewConfigError(KeyMinSize, c.MinSize, err)
	}

	f, err := filter.New(
		filter.WithMinSize(minSize),
		filter.WithExtensions(c.Extensions...),
		filter.WithExclude(c.Exclude...),
	)
	if err != nil {
		return types.NewConfigError(KeyExclude, strings.Join(c.Exclude, ","), err)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return types.NewConfigError(KeyLogLevel, c.LogLevel, err)
	}
	if c.LogMaxSize != "" {
		if _, err := types.ParseSize(c.LogMaxSize); err != nil {
			return types.NewConfigError(KeyLogMaxSize, c.LogMaxSize, err)
		}
	}

	c.policy = policy
	c.algorithm = algo
	c.minSize = minSize
	c.filter = f
	return nil
}

// Policy returns the parsed hash policy. Call Validate first.
func (c *Config) Policy() *hashpolicy.Policy {
	if c.policy == nil {
		return hashpolicy.Default()
	}
	return c.policy
}

// Algorithm returns the parsed digest algorithm. Call Validate first.
func (c *Config) Algorithm() digest.Algorithm {
	if c.algorithm == "" {
		return digest.DefaultAlgorithm
	}
	return c.algorithm
}

// MinSizeBytes returns MIN_SIZE in bytes. Call Validate first.
func (c *Config) MinSizeBytes() int64 {
	return c.minSize
}

// Filter returns the scan filter. It is nil before Validate, which the
// scanner treats as "accept everything".
func (c *Config) Filter() *filter.Filter {
	return c.filter
}

// Rotation returns the log rotation settings.
func (c *Config) Rotation() RotationConfig {
	return RotationConfig{
		MaxSize:    c.LogMaxSize,
		MaxAge:     c.LogMaxAge,
		MaxBackups: c.LogMaxBackups,
		Daily:      c.LogDaily,
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
