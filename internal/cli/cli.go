package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matzehuels/jarprobe/pkg/buildinfo"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/egress"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "jarprobe"

	// memoSize bounds the in-process read-through memo over the cache.
	memoSize = 4096
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	v          *viper.Viper
	configFile string
	cfg        *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		v:      viper.New(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "jarprobe identifies the dependencies of a packaged Java application",
		Long: `jarprobe unpacks the libraries of a packaged Java application, confirms the
public identity of each one against remote repositories and the central
search index, and asks about the rest. The result is a manifest of public
and private dependencies ready to rebuild the application from.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.v, c.configFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (TOML, YAML or JSON)")
	flags.String("proxy", "", "comma-separated proxies (host:port, a.b.c.x-y:port, empty entry for direct)")
	flags.String("cache", "", "verification cache DSN (path, postgres://, redis://, mongodb://, null:)")
	flags.Int64("min-rate", 0, "minimum egress throughput in bytes per second (0 disables the test)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	bindFlags(c.v, flags, map[string]string{
		"proxy":        keyProxy,
		"cache":        keyCache,
		"min-rate":     keyMinRate,
		"metrics-addr": keyMetricsAddr,
	})

	// Register all subcommands
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.probeCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config returns the configuration loaded for the running command,
// loading it on first use.
func (c *CLI) config() (*Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := loadConfig(c.v, c.configFile)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Collaborator Factories
// =============================================================================

// newPool probes the configured egress endpoints behind a spinner.
func (c *CLI) newPool(ctx context.Context, cfg *Config) (*egress.Pool, error) {
	endpoints, err := egress.ParseProxies(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	s := newSpinnerWithContext(ctx, fmt.Sprintf("Probing %d egress endpoint(s)...", len(endpoints)))
	s.Start()
	pool, err := egress.New(ctx, egress.Config{
		Endpoints:     endpoints,
		LivenessURL:   cfg.LivenessURL,
		ThroughputURL: cfg.ThroughputURL,
		MinRate:       cfg.MinRate,
		Attempts:      cfg.RetryAttempts,
		Backoff:       cfg.RetryBackoff,
		UserAgent:     buildinfo.UserAgent(),
		Logger:        c.Logger,
	})
	if err != nil {
		s.StopWithError("No usable egress endpoint")
		return nil, err
	}
	s.Stop()
	return pool, nil
}

// openCache opens the configured verification cache behind a memo.
func openCache(ctx context.Context, dsn string) (cache.Store, error) {
	store, err := cache.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	memo, err := cache.NewMemo(store, memoSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return memo, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/jarprobe/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
