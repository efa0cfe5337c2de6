// Command brainstream is BrainStream's CLI and HTTP entrypoint: it wires
// every subsystem (plugins, collector, topology, feed selector,
// co-occurrence analyzer) from environment configuration and exposes them
// through a cobra command surface plus an optional HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"catchup-feed/internal/collector"
	"catchup-feed/internal/config"
	"catchup-feed/internal/content"
	"catchup-feed/internal/cooccurrence"
	"catchup-feed/internal/embedding"
	"catchup-feed/internal/feed"
	"catchup-feed/internal/feed/state"
	"catchup-feed/internal/httpapi"
	"catchup-feed/internal/notify"
	"catchup-feed/internal/observability/logging"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/plugin/releases"
	"catchup-feed/internal/plugin/rss"
	"catchup-feed/internal/plugin/scraping"
	"catchup-feed/internal/scheduler"
	"catchup-feed/internal/summarizer"
	"catchup-feed/internal/topology"
)

// version is set at build time via -ldflags; "dev" otherwise.
var version = "dev"

// app holds every wired dependency a subcommand needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	armStore   *state.Store
	engine     *topology.Engine
	registry   *plugin.Registry
	collector  *collector.Collector
	selector   *feed.Selector
	analyzer   *cooccurrence.Analyzer
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "brainstream",
		Short:         "Personal technology-intelligence hub",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newFetchCmd(), newStatusCmd(), newSourcesCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and scheduler, unless disabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return a.runServer(cmd.Context())
		},
	}
}

func newFetchCmd() *cobra.Command {
	var skipLLM bool
	cmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Run one collection pass, optionally scoped to a single source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if skipLLM {
				a.logger.Info("--skip-llm requested; summarizer fallback will be used for all items")
			}

			ctx := cmd.Context()
			if len(args) == 1 {
				result, err := a.collector.CollectFrom(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: fetched=%d new=%d processed=%d errors=%v\n",
					result.SourceName, result.Fetched, result.New, result.Processed, result.Errors)
				return nil
			}

			summary, err := a.collector.CollectAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "collected: fetched=%d new=%d processed=%d duration=%s\n",
				summary.TotalFetched, summary.TotalNew, summary.TotalProcessed, summary.Duration)
			for _, r := range summary.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: fetched=%d new=%d errors=%v\n", r.SourceName, r.Fetched, r.New, r.Errors)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "skip summarizer invocation and use fallback summaries")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print topology and arm status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			info, err := a.engine.TopologyInfo(ctx)
			if err != nil {
				return err
			}
			arms, err := a.armStore.GetAllClusterArms(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total articles: %d\n", info.TotalArticles)
			fmt.Fprintf(cmd.OutOrStdout(), "clusters: %d\n", len(arms))
			for _, arm := range arms {
				fmt.Fprintf(cmd.OutOrStdout(), "  cluster %d: articles=%d alpha=%.1f beta=%.1f label=%q\n",
					arm.ClusterID, arm.ArticleCount, arm.Alpha, arm.Beta, arm.Label)
			}
			return nil
		},
	}
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered source plugins and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			for _, p := range a.registry.All() {
				info := p.Info()
				healthy := p.HealthCheck(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s vendor=%-15s type=%-10s healthy=%v\n",
					info.Name, info.Vendor, info.SourceType, healthy)
			}
			return nil
		},
	}
}

// bootstrap wires every dependency from environment configuration. The
// returned cleanup func must be called once the caller is done.
func bootstrap(ctx context.Context) (*app, func(), error) {
	logger := logging.NewLogger()
	cfg := config.Load(logger)

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("ensure data dir: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, topology.Schema); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply vector store schema: %w", err)
	}

	armStore, err := state.Open(cfg.StateDBPath)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}

	store := topology.NewPostgresStore(pool)
	embedder := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	engine := topology.NewEngine(store, embedder, topology.ClusterParams{
		MinClusterSize: cfg.HDBSCANMinClusterSize,
		MinSamples:     cfg.HDBSCANMinSamples,
	})

	registry := buildRegistry()
	summ := summarizer.New(cfg.SummarizerCmd, cfg.SummarizerTimeout)
	enhancer := content.New(logger)
	coll := collector.New(registry, engine, armStore, summ, enhancer, buildNotifier(cfg), logger)
	selector := feed.New(engine, armStore, nil)
	analyzer := cooccurrence.New(allTechStack(registry), 10)

	cleanup := func() {
		armStore.Close()
		pool.Close()
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		armStore:  armStore,
		engine:    engine,
		registry:  registry,
		collector: coll,
		selector:  selector,
		analyzer:  analyzer,
	}, cleanup, nil
}

// buildRegistry constructs the fixed set of built-in vendor plugins,
// mirroring original_source's builtin plugin registry.
func buildRegistry() *plugin.Registry {
	return plugin.NewRegistry(
		rss.New("aws-whatsnew", "AWS What's New", "AWS", "https://aws.amazon.com/about-aws/whats-new/recent/feed/",
			[]string{"aws", "cloud"}),
		rss.New("gcp-release-notes", "GCP Release Notes", "Google Cloud", "https://cloud.google.com/feeds/gcp-release-notes.xml",
			[]string{"gcp", "cloud"}),
		rss.New("openai-blog", "OpenAI Blog", "OpenAI", "https://openai.com/blog/rss.xml",
			[]string{"openai", "llm"}),
		rss.New("github-blog", "GitHub Blog", "GitHub", "https://github.blog/feed/",
			[]string{"github", "devtools"}),
		rss.New("github-changelog", "GitHub Changelog", "GitHub", "https://github.blog/changelog/feed/",
			[]string{"github", "devtools"}),
		scraping.New("anthropic-changelog", "Anthropic API Changelog", "Anthropic",
			scraping.Config{
				PageURL:         "https://docs.anthropic.com/en/release-notes/overview",
				HeadingSelector: "h2, h3",
				DateLayouts:     []string{"January 2, 2006", "2006-01-02"},
			},
			[]string{"anthropic", "claude", "llm"}),
		releases.New("github-releases", "Tracked Repository Releases", "Open Source",
			releases.DefaultRepositories, "", []string{"langchain", "terraform", "kubernetes", "docker", "fastapi", "nextjs", "vite"}),
	)
}

// buildNotifier wires a Slack digest notifier when a webhook URL is
// configured, otherwise a no-op.
func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.SlackWebhookURL == "" {
		return notify.NoOp{}
	}
	return notify.NewSlack(notify.SlackConfig{
		WebhookURL: cfg.SlackWebhookURL,
		Timeout:    cfg.SlackNotifyTimeout,
	})
}

func allTechStack(r *plugin.Registry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r.All() {
		for _, t := range p.Info().SupportedTechStack {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func (a *app) runServer(ctx context.Context) error {
	var sched *scheduler.Scheduler
	if a.cfg.SchedulerEnabled {
		s, err := scheduler.New(a.cfg.FetchInterval, a.cfg.RunOnStart, a.logger, func(runCtx context.Context) {
			if _, err := a.collector.CollectAll(runCtx); err != nil {
				a.logger.Error("scheduled collection failed", slog.Any("error", err))
			}
		})
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}
		sched = s
		sched.Start()
		defer sched.Stop()
	}

	srv := httpapi.New(a.cfg, a.logger, a.selector, a.engine, a.registry, a.collector, sched)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return runCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", slog.String("addr", httpServer.Addr), slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
		a.logger.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
