package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/contentservice"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var errItemsFailed = errors.New("some posts failed to compile")

type options struct {
	configPath string
	contentDir string
	cacheDir   string
	backend    string
	workers    int
	check      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Precompile blog content into the cache",
		Long: `Compiles every content file on a bounded worker pool and writes the
per-post cache records and the index. Exits non-zero when any post fails.
With --check nothing is compiled; the index is only compared against the sources.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "env file with CONTENT_DIR, CACHE_DIR and CACHE_BACKEND")
	cmd.Flags().StringVar(&opts.contentDir, "content-dir", "content/blog", "directory holding the .md/.mdx sources")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", ".cache/blog", "directory for the file cache backend")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "compile workers (0 picks min(cpus, 4))")
	cmd.Flags().BoolVar(&opts.check, "check", false, "only report whether the index is older than the sources")

	return cmd
}

// resolve layers explicit flags over the config file.
func resolve(cmd *cobra.Command, opts *options) (*options, *common.Config, error) {
	resolved := *opts
	cfg := &common.Config{}

	if opts.configPath != "" {
		loaded, err := common.LoadConfig(opts.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not load config: %w", err)
		}
		cfg = loaded

		if !cmd.Flags().Changed("content-dir") && cfg.Content.Dir != "" {
			resolved.contentDir = cfg.Content.Dir
		}
		if !cmd.Flags().Changed("cache-dir") && cfg.Content.CacheDir != "" {
			resolved.cacheDir = cfg.Content.CacheDir
		}
		if !cmd.Flags().Changed("workers") {
			resolved.workers = cfg.Content.RebuildWorkers
		}
		resolved.backend = cfg.Content.CacheBackend
	}

	return &resolved, cfg, nil
}

func runRebuild(cmd *cobra.Command, opts *options) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	opts, cfg, err := resolve(cmd, opts)
	if err != nil {
		return err
	}

	store, err := contentservice.OpenStore(opts.backend, opts.cacheDir, func() (*redis.Client, error) {
		return common.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	})
	if err != nil {
		return err
	}

	compiler, err := contentservice.NewCompiler(contentservice.DefaultCompileOptions())
	if err != nil {
		return err
	}

	manager := contentservice.NewManager(
		contentservice.NewContentStore(opts.contentDir),
		store,
		compiler,
		contentservice.NewStats(),
		common.NewCache(time.Minute, time.Minute),
		logger,
		opts.workers,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.check {
		report, err := manager.RebuildAll(ctx)
		if err != nil {
			logger.Error("rebuild failed", slog.String("error", err.Error()))
			return err
		}

		for _, f := range report.Failures {
			logger.Error("post failed to compile", slog.String("slug", f.Slug), slog.String("error", f.Err.Error()))
		}

		stats := report.Index.BuildStats
		cmd.Printf("compiled %d/%d posts with %d workers in %s\n", stats.Compiled, stats.TotalFiles, stats.Workers, report.Duration.Round(time.Millisecond))

		if len(report.Failures) > 0 {
			return fmt.Errorf("%w: %d of %d", errItemsFailed, len(report.Failures), stats.TotalFiles)
		}
	}

	freshness, err := manager.CheckFreshness(ctx)
	if err != nil {
		return err
	}
	if freshness.Stale {
		logger.Warn("cache index is stale", slog.String("reason", freshness.Reason), slog.Time("newest_source", freshness.NewestSource))
		cmd.Println("warning: cache index is stale:", freshness.Reason)
		return nil
	}

	cmd.Println("cache index is up to date")
	return nil
}
