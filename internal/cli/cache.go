package cli

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

var sha1Hex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and seed the verification cache",
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheGetCommand())
	cmd.AddCommand(c.cachePutCommand())
	cmd.AddCommand(c.cacheCheckCommand())

	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configured cache DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Println(cfg.Cache)
			return nil
		},
	}
}

// cacheGetCommand creates the "cache get" subcommand.
func (c *CLI) cacheGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <sha1|archive.jar>",
		Short: "Show the cache entry of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hash, err := archiveHash(args[0])
			if err != nil {
				return err
			}
			return c.withCache(ctx, func(store cache.Store) error {
				e, ok, err := store.Get(ctx, hash)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New(errors.ErrCodeNotFound, "no cache entry for %s", hash)
				}
				printEntry(hash, e)
				return nil
			})
		},
	}
}

// cachePutCommand creates the "cache put" subcommand.
func (c *CLI) cachePutCommand() *cobra.Command {
	var private bool
	cmd := &cobra.Command{
		Use:   "put <sha1|archive.jar> <group:artifact:version> [repository]",
		Short: "Insert a cache entry unless one exists",
		Long: `Put records a verification result by hand. A public entry needs the
repository it resolves against; --private records a private marker
instead. Entries are never overwritten.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hash, err := archiveHash(args[0])
			if err != nil {
				return err
			}
			e, err := parseEntry(args[1:], private)
			if err != nil {
				return err
			}
			return c.withCache(ctx, func(store cache.Store) error {
				stored, err := store.Put(ctx, hash, e)
				if err != nil {
					return err
				}
				if !stored {
					printWarning("Entry for %s already exists, left unchanged", hash)
					return nil
				}
				printSuccess("Stored entry for %s", hash)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "record a private marker")
	return cmd
}

// cacheCheckCommand creates the "cache check" subcommand.
func (c *CLI) cacheCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect to the cache and verify its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCache(cmd.Context(), func(cache.Store) error {
				printSuccess("Cache schema matches")
				printDetail("DSN: %s", c.cfg.Cache)
				return nil
			})
		},
	}
}

func (c *CLI) withCache(ctx context.Context, fn func(cache.Store) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// archiveHash accepts a content hash or the path of an archive to hash.
func archiveHash(arg string) (string, error) {
	if h := strings.ToLower(arg); sha1Hex.MatchString(h) {
		return h, nil
	}
	if _, err := os.Stat(arg); err != nil {
		return "", errors.New(errors.ErrCodeInvalidInput, "%q is neither a SHA-1 nor a readable archive", arg)
	}
	return archive.Identify(arg)
}

// parseEntry builds an entry from "coordinate [repository]".
func parseEntry(args []string, private bool) (cache.Entry, error) {
	co, err := gav.Parse(args[0])
	if err != nil {
		return cache.Entry{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "coordinate")
	}
	if private {
		return cache.PrivateEntry(co), nil
	}
	if len(args) < 2 {
		return cache.Entry{}, errors.New(errors.ErrCodeInvalidInput, "public entry for %s needs a repository", co)
	}
	if err := errors.ValidateURL(args[1]); err != nil {
		return cache.Entry{}, err
	}
	e := cache.Entry{Coordinate: co, Repository: args[1]}
	return e, e.Validate()
}

func printEntry(hash string, e cache.Entry) {
	printKeyValue("Hash", hash)
	printKeyValue("Coordinate", e.Coordinate.String())
	if e.Private {
		printKeyValue("Private", "yes")
		return
	}
	printKeyValue("Repository", e.Repository)
}
