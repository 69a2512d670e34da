package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/sentinelai/sentinel-go/internal/ingestion"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/provider"
	"github.com/sentinelai/sentinel-go/internal/server"
	"github.com/sentinelai/sentinel-go/internal/tracing"
)

// NewServeCmd constructs the `sentinel serve` command, which starts the HTTP
// API for query analysis and knowledge ingestion.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Sentinel HTTP API",
		Long: `Start the Sentinel HTTP server on localhost.

The server exposes:
  POST /api/analyze   answer or score a query against the knowledge base
  POST /api/ingest    ingest a batch of knowledge chunks
  GET  /api/health    liveness probe
  GET  /api/ready     readiness probe (checks Qdrant and the embedder)
  GET  /metrics       Prometheus metrics

Set SENTINEL_API_KEY to require Bearer authentication on the /api routes.

Examples:
  sentinel serve
  sentinel serve --port 9090
  MODEL_PROVIDER=azure sentinel serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			stack, err := buildRAGStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.Close()

			// Full engine generates grounded answers; the similarity engine
			// shares guard and retriever but never calls the model.
			answerEngine, err := newEngine(stack, chatModel)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			similarityEngine, err := newEngine(stack, nil)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(chatModel, stack.embedder, stack.store, &ingestion.Config{
				Language: getEnvOrDefault("CONTENT_LANGUAGE", "en"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create ingestion pipeline: %w", err)
			}

			ql := openQueryLog(log)
			if ql != nil {
				defer func() { _ = ql.Close() }()
			}

			srv, err := server.New(answerEngine, similarityEngine, pipeline, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewQdrantPinger(stack.store.Client()),
					server.NewEmbedderPinger(stack.embedder),
				},
				APIKey:   os.Getenv("SENTINEL_API_KEY"),
				QueryLog: ql,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
