package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/logging"
	"github.com/54b3r/ragserve-go/internal/server"
	"github.com/54b3r/ragserve-go/internal/tracing"
)

// NewServeCmd constructs the `ragserve serve` command, which starts the HTTP
// server exposing the document and question-answering REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragserve HTTP server",
		Long: `Start the ragserve HTTP server on localhost.

The server exposes a REST API for document management (add, bulk add, get,
update, delete), similarity search, and retrieval-augmented question
answering, plus health, readiness, and Prometheus metrics endpoints.

Set RAGSERVE_API_KEY to require Bearer authentication on the API routes.

Examples:
  ragserve serve
  ragserve serve --port 9090
  VECTOR_STORE_BACKEND=sqlite ragserve serve
  GENERATION_PROVIDER=openrouter OPENROUTER_API_KEY=sk-... ragserve serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("store", getEnvOrDefault("VECTOR_STORE_BACKEND", "memory")),
				slog.String("generation", getEnvOrDefault("GENERATION_PROVIDER", "mock")),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			pipeline, emb, store, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			log.Info("pipeline ready",
				slog.String("embedder", emb.ModelName()),
				slog.Int("dimensions", emb.Dimensions()),
				slog.String("model", pipeline.ModelUsed()),
			)

			pingers := []server.Pinger{
				server.NewStorePinger(store, getEnvOrDefault("VECTOR_STORE_BACKEND", "memory")),
			}
			// The hash fallback has no remote dependency worth probing.
			if !emb.Fallback() {
				pingers = append(pingers, server.NewEmbedderPinger("embedder", func(ctx context.Context) error {
					_, err := emb.Embed(ctx, []string{"readiness probe"})
					return err
				}))
			}

			srv, err := server.New(pipeline, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: getEnvFloat("RAGSERVE_RATE_LIMIT", 0),
				RateBurst: getEnvInt("RAGSERVE_RATE_BURST", 0),
				APIKey:    os.Getenv("RAGSERVE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")

	return cmd
}
