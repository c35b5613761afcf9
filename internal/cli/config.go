package cli

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/jarprobe/pkg/decompile"
	"github.com/matzehuels/jarprobe/pkg/egress"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/maven"
	"github.com/matzehuels/jarprobe/pkg/pipeline"
)

// envPrefix namespaces environment overrides (JARPROBE_THREADS, ...).
const envPrefix = "JARPROBE"

// Configuration keys. Flags, environment variables and config file
// entries all resolve to these.
const (
	keyThreads           = "threads"
	keyProxy             = "proxy"
	keyCache             = "cache"
	keyRepositories      = "repositories"
	keyPrivatePrefixes   = "private_prefixes"
	keyPublicPrefixes    = "public_prefixes"
	keySearchURL         = "search_url"
	keyDefaultRepository = "default_repository"
	keyLivenessURL       = "liveness_url"
	keyThroughputURL     = "throughput_url"
	keyMinRate           = "min_rate"
	keyRetryAttempts     = "retry_attempts"
	keyRetryBackoff      = "retry_backoff"
	keyMetricsAddr       = "metrics_addr"
	keyInstallLocal      = "install_local"
	keyDecompiler        = "decompiler"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	Threads int
	Proxy   string
	Cache   string

	Repositories    []string
	PrivatePrefixes []string
	PublicPrefixes  []string

	SearchURL         string
	DefaultRepository string

	LivenessURL   string
	ThroughputURL string
	MinRate       int64
	RetryAttempts int
	RetryBackoff  time.Duration

	MetricsAddr  string
	InstallLocal bool
	Decompiler   string
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault(keyThreads, pipeline.DefaultWorkers)
	if dir, err := cacheDir(); err == nil {
		v.SetDefault(keyCache, dir)
	} else {
		v.SetDefault(keyCache, "null:")
	}
	v.SetDefault(keySearchURL, maven.DefaultSearchURL)
	v.SetDefault(keyDefaultRepository, maven.DefaultRepository)
	v.SetDefault(keyLivenessURL, egress.DefaultLivenessURL)
	v.SetDefault(keyRetryAttempts, egress.DefaultAttempts)
	v.SetDefault(keyRetryBackoff, egress.DefaultBackoff)
	v.SetDefault(keyDecompiler, decompile.DefaultCommand)
}

// bindFlags binds each named flag of fs to the key of the same name with
// dashes replaced by underscores. Flags missing from fs are skipped.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := fs.Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// loadConfig resolves the configuration from, in increasing priority:
// defaults, the config file, a .env file, the environment and bound flags.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	// a missing .env is the common case
	_ = godotenv.Load()

	setConfigDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", file)
		}
	}

	cfg := &Config{
		Threads:           v.GetInt(keyThreads),
		Proxy:             v.GetString(keyProxy),
		Cache:             v.GetString(keyCache),
		Repositories:      splitList(v.GetStringSlice(keyRepositories)),
		PrivatePrefixes:   splitList(v.GetStringSlice(keyPrivatePrefixes)),
		PublicPrefixes:    splitList(v.GetStringSlice(keyPublicPrefixes)),
		SearchURL:         v.GetString(keySearchURL),
		DefaultRepository: v.GetString(keyDefaultRepository),
		LivenessURL:       v.GetString(keyLivenessURL),
		ThroughputURL:     v.GetString(keyThroughputURL),
		MinRate:           v.GetInt64(keyMinRate),
		RetryAttempts:     v.GetInt(keyRetryAttempts),
		RetryBackoff:      v.GetDuration(keyRetryBackoff),
		MetricsAddr:       v.GetString(keyMetricsAddr),
		InstallLocal:      v.GetBool(keyInstallLocal),
		Decompiler:        v.GetString(keyDecompiler),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "threads must be positive, got %d", c.Threads)
	}
	if c.MinRate < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "min_rate must not be negative, got %d", c.MinRate)
	}
	if c.RetryAttempts <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retry_attempts must be positive, got %d", c.RetryAttempts)
	}
	if c.Cache == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache is empty")
	}
	for _, u := range append([]string{c.SearchURL, c.DefaultRepository, c.LivenessURL}, c.Repositories...) {
		if err := errors.ValidateURL(u); err != nil {
			return err
		}
	}
	if c.ThroughputURL != "" {
		if err := errors.ValidateURL(c.ThroughputURL); err != nil {
			return err
		}
	}
	for _, p := range append(append([]string{}, c.PrivatePrefixes...), c.PublicPrefixes...) {
		if err := errors.ValidatePrefix(p); err != nil {
			return err
		}
	}
	if _, err := egress.ParseProxies(c.Proxy); err != nil {
		return err
	}
	return nil
}

// splitList flattens comma-separated items, which is how list values
// arrive from the environment.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
