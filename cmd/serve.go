package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/socialecho/config"
	"github.com/mohammad-safakhou/socialecho/internal/agent"
	"github.com/mohammad-safakhou/socialecho/internal/cache"
	"github.com/mohammad-safakhou/socialecho/internal/enrich"
	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/internal/pipeline"
	"github.com/mohammad-safakhou/socialecho/internal/query"
	"github.com/mohammad-safakhou/socialecho/internal/semantic"
	"github.com/mohammad-safakhou/socialecho/internal/server"
	"github.com/mohammad-safakhou/socialecho/internal/telemetry"
	fireworks_provider "github.com/mohammad-safakhou/socialecho/provider/fireworks"
	"github.com/mohammad-safakhou/socialecho/tools/reddit"
	"github.com/mohammad-safakhou/socialecho/tools/twitter"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the query answering HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = cfg.Server.Address
			}

			logger := log.New(os.Stdout, "[SOCIALECHO] ", log.LstdFlags)

			breakers := guard.NewBreakerGroup(
				cfg.Security.FailureThreshold,
				cfg.Security.RecoveryTimeout,
				"llm", "search", "embeddings",
			)

			llm := fireworks_provider.NewClient(
				cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.EmbeddingModel, cfg.LLM.Timeout,
			)
			enricher := enrich.NewClient(llm, breakers.Get("llm"),
				log.New(os.Stdout, "[ENRICH] ", log.LstdFlags))
			processor := query.NewProcessor(enricher,
				log.New(os.Stdout, "[QUERY] ", log.LstdFlags))

			redditClient := reddit.NewClient(
				cfg.Sources.Reddit.BaseURL,
				cfg.Sources.Reddit.MaxResults,
				cfg.Sources.Reddit.MinScore,
				cfg.Sources.Reddit.Timeout,
				breakers.Get("search"),
				log.New(os.Stdout, "[REDDIT] ", log.LstdFlags),
			)
			twitterClient := twitter.NewClient(
				cfg.Sources.Twitter.SerperAPIKey,
				cfg.Sources.Twitter.ScraperBinary,
				cfg.Sources.Twitter.MaxResults,
				cfg.Sources.Twitter.Timeout,
				cfg.Sources.Twitter.ScraperTimeout,
				breakers.Get("search"),
				log.New(os.Stdout, "[TWITTER] ", log.LstdFlags),
			)

			caches := cache.NewManager(cfg.Cache,
				log.New(os.Stdout, "[CACHE] ", log.LstdFlags))
			defer caches.Close()

			var sem *semantic.Client
			if cfg.Semantic.APIKey != "" {
				sem = semantic.NewClient(
					cfg.Semantic.APIKey,
					cfg.Semantic.BaseURL,
					cfg.Semantic.Model,
					cfg.Semantic.Timeout,
					breakers.Get("embeddings"),
					log.New(os.Stdout, "[SEMANTIC] ", log.LstdFlags),
				)
			} else {
				// No dedicated embeddings key: reuse the LLM provider's
				// embeddings endpoint.
				sem = semantic.NewFromEmbedder(llm,
					breakers.Get("embeddings"),
					log.New(os.Stdout, "[SEMANTIC] ", log.LstdFlags))
			}

			pl := pipeline.New(enricher,
				log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags))
			ag := agent.New(processor, redditClient, twitterClient, pl, sem, caches.Posts,
				log.New(os.Stdout, "[AGENT] ", log.LstdFlags))

			metrics := telemetry.New(prometheus.DefaultRegisterer)
			limiter := guard.NewRateLimiter(cfg.Security.DefaultLimit, cfg.Security.EndpointLimits)
			monitor := guard.NewMonitor(log.New(os.Stdout, "[GUARD] ", log.LstdFlags))

			srv := server.New(server.Deps{
				Agent:        ag,
				Caches:       caches,
				Monitor:      monitor,
				Limiter:      limiter,
				Breakers:     breakers,
				Metrics:      metrics,
				AllowOrigins: cfg.Server.AllowOrigins,
				Logger:       logger,
			})
			return srv.Start(serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "http-addr", "", "bind address (default from config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}
