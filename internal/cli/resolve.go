package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/catalog"
	"github.com/matzehuels/jarprobe/pkg/decompile"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/egress"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/escalate"
	"github.com/matzehuels/jarprobe/pkg/manifest"
	"github.com/matzehuels/jarprobe/pkg/maven"
	"github.com/matzehuels/jarprobe/pkg/pipeline"
	"github.com/matzehuels/jarprobe/pkg/resolve"
)

const (
	// manifestName is the hand-off file written into the output directory.
	manifestName = "jarprobe.toml"

	// pomCacheSize bounds the parsed POMs kept by the repository client.
	pomCacheSize = 2048
)

// resolveOpts holds flags that only the resolve command reads.
type resolveOpts struct {
	output    string
	decompile bool
	force     bool
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts

	cmd := &cobra.Command{
		Use:   "resolve <application.jar>",
		Short: "Identify and verify the libraries of an application archive",
		Long: `Resolve unpacks BOOT-INF/lib of the application archive and confirms the
public identity of every library. Libraries that no strategy can settle
are shown at an interactive prompt:

  pub              confirm public content under a local coordinate
  priv             confirm private content
  pub pre <dir>    treat every library with a class under <dir> as public
  priv pre <dir>   treat every library with a class under <dir> as private
  add repo <url>   add a repository and retry the unsettled libraries

The result is written to jarprobe.toml in the output directory.`,
		Example: `  # Resolve with the defaults (central repository, file cache)
  jarprobe resolve app.jar

  # Through two proxies, with an internal repository and sources
  jarprobe resolve app.jar --proxy 10.0.0.1-2:3128 \
    --repo https://nexus.example.com/repository/public/ --decompile`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeArchives,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output directory (default: <application>-jarprobe)")
	f.BoolVar(&opts.decompile, "decompile", false, "decompile the application and its private libraries")
	f.BoolVar(&opts.force, "force", false, "write into a non-empty output directory")
	f.IntP("threads", "t", pipeline.DefaultWorkers, "number of resolver workers")
	f.StringSlice("repo", nil, "additional repository URL (repeatable)")
	f.StringSlice("private-prefix", nil, "class path prefix that marks private content (repeatable)")
	f.StringSlice("public-prefix", nil, "class path prefix that marks public content (repeatable)")
	f.Bool("install-local", false, "install private and unverifiable libraries into the local Maven repository")
	f.String("decompiler", "", "decompiler command with {archive} and {out} placeholders")
	f.String("search-url", "", "central search index endpoint")
	f.String("default-repository", "", "repository that confirms search index candidates")
	bindFlags(c.v, f, map[string]string{
		"threads":            keyThreads,
		"repo":               keyRepositories,
		"private-prefix":     keyPrivatePrefixes,
		"public-prefix":      keyPublicPrefixes,
		"install-local":      keyInstallLocal,
		"decompiler":         keyDecompiler,
		"search-url":         keySearchURL,
		"default-repository": keyDefaultRepository,
	})

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, appJar string, opts resolveOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	if _, err := os.Stat(appJar); err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "application archive %s", appJar)
	}
	out, err := prepareOutput(appJar, opts.output, opts.force)
	if err != nil {
		return err
	}

	printInfo("Resolving %s into %s", filepath.Base(appJar), out)

	stopMetrics, err := c.startMetrics(ctx, cfg.MetricsAddr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	prog := newProgress(logger)
	paths, err := archive.ExtractLibraries(appJar, filepath.Join(out, "lib"))
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Extracted %d libraries", len(paths)))

	pool, err := c.newPool(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	repos := seedRepositories(ctx, cfg, appJar, pool, logger)

	client, err := maven.NewClient(pool, pomCacheSize)
	if err != nil {
		return err
	}
	recorder := dependency.NewRecordingInstaller()
	var installer dependency.Installer = recorder
	if cfg.InstallLocal {
		installer = &dependency.CommandInstaller{Next: recorder}
	}

	prog = newProgress(logger)
	recs, err := identify(ctx, paths, cfg.Threads, dependency.Options{
		Checker:   maven.NewCollector(client, logger),
		Installer: installer,
		Cache:     store,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Identified %d libraries", len(recs)))

	privatePrefixes := catalog.NewPrefixes(cfg.PrivatePrefixes...)
	publicPrefixes := catalog.NewPrefixes(cfg.PublicPrefixes...)
	checker, err := resolve.New(resolve.Config{
		Repositories:      repos,
		PrivatePrefixes:   privatePrefixes,
		PublicPrefixes:    publicPrefixes,
		DefaultRepository: cfg.DefaultRepository,
		Repository:        client,
		Index:             maven.NewSearch(pool, cfg.SearchURL),
		Liveness:          pool,
		Cache:             store,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(pipeline.Options{
		Pipeline:        checker,
		Escalator:       escalate.New(os.Stdin, os.Stdout),
		Liveness:        pool,
		Repositories:    repos,
		PrivatePrefixes: privatePrefixes,
		PublicPrefixes:  publicPrefixes,
		Cache:           store,
		Workers:         cfg.Threads,
		Status:          os.Stdout,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, recs)
	if err != nil {
		return err
	}

	app, err := archive.Inspect(appJar)
	if err != nil {
		return err
	}
	m := manifest.Build(manifest.Input{
		RunID:        res.RunID,
		Application:  filepath.Base(appJar),
		AppBytecode:  app.BytecodeMajor,
		Repositories: repos.Snapshot(),
		Public:       res.Public,
		Private:      res.Private,
	})
	for _, cf := range m.Conflicts {
		logger.Warn("artifact packaged more than once", "artifact", cf.Key, "kept", cf.Kept.Version, "dropped", strings.Join(cf.DroppedVersions(), ","))
	}
	manifestPath := filepath.Join(out, manifestName)
	if err := m.WriteFile(manifestPath); err != nil {
		return err
	}
	logger.Debug("installed locally", "count", len(recorder.Records()))

	if opts.decompile {
		prog = newProgress(logger)
		if err := decompileSources(ctx, cfg.Decompiler, appJar, res.Private, filepath.Join(out, "src"), cfg.Threads); err != nil {
			return err
		}
		prog.done(fmt.Sprintf("Decompiled %d archives", len(res.Private)+1))
	}

	fmt.Println()
	fmt.Println(StyleTitle.Render("Summary"))
	renderSummary(os.Stdout, res.Public, res.Private, res.Dropped)
	printCounts(len(res.Public), len(res.Private), len(res.Dropped))
	printKeyValue("Run", res.RunID)
	printKeyValue("Escalations", fmt.Sprint(res.Stats.Escalations))
	printKeyValue("Duration", res.Stats.Duration.Round(time.Millisecond).String())
	if len(m.Conflicts) > 0 {
		printWarning("%d artifact(s) packaged more than once", len(m.Conflicts))
	}
	printSuccess("Manifest written")
	printFile(manifestPath)
	return nil
}

// prepareOutput picks the output directory and refuses to mix a new run
// into an old one unless forced.
func prepareOutput(appJar, output string, force bool) (string, error) {
	if output == "" {
		name := strings.TrimSuffix(filepath.Base(appJar), filepath.Ext(appJar))
		output = filepath.Join(filepath.Dir(appJar), name+"-"+appName)
	}
	if entries, err := os.ReadDir(output); err == nil && len(entries) > 0 && !force {
		return "", errors.New(errors.ErrCodeInvalidPath, "output directory %s is not empty (use --force)", output)
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", output)
	}
	return output, nil
}

// seedRepositories builds the initial repository list: the default
// repository, the configured ones, then live repositories declared by the
// application's own POM.
func seedRepositories(ctx context.Context, cfg *Config, appJar string, pool *egress.Pool, logger *log.Logger) *catalog.Repositories {
	repos := catalog.NewRepositories(cfg.DefaultRepository)
	for _, u := range cfg.Repositories {
		repos.Add(u)
	}

	declared, err := archive.EmbeddedPOMRepositories(appJar)
	if err != nil {
		logger.Warn("embedded repositories unreadable", "err", err)
		return repos
	}
	for _, u := range declared {
		if err := errors.ValidateURL(u); err != nil {
			logger.Debug("skipping embedded repository", "url", u, "err", errors.UserMessage(err))
			continue
		}
		if repos.Contains(u) {
			continue
		}
		if !pool.IsLive(ctx, u) {
			logger.Warn("embedded repository is not reachable", "url", u)
			continue
		}
		repos.Add(u)
		logger.Info("added embedded repository", "url", u)
	}
	return repos
}

// identify builds one record per archive, in the order of paths.
func identify(ctx context.Context, paths []string, limit int, opts dependency.Options) ([]*dependency.Record, error) {
	recs := make([]*dependency.Record, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := dependency.New(p, opts)
			if err != nil {
				return err
			}
			recs[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}

// decompileSources decompiles the application and every private library
// into per-archive directories under root.
func decompileSources(ctx context.Context, line, appJar string, private []*dependency.Record, root string, limit int) error {
	d, err := decompile.ParseCommand(line)
	if err != nil {
		return err
	}
	jobs := []decompile.Job{decompile.JobFor(root, appJar)}
	for _, r := range private {
		jobs = append(jobs, decompile.JobFor(root, r.Path))
	}
	return decompile.All(ctx, d, jobs, limit)
}
