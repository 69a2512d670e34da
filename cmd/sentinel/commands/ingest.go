package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelai/sentinel-go/internal/ingestion"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/provider"
)

// NewIngestCmd constructs the `sentinel ingest` command, which populates the
// Qdrant vector store either from a generated topic or from a JSON batch file.
func NewIngestCmd() *cobra.Command {
	var file string
	var chunks int

	cmd := &cobra.Command{
		Use:   "ingest [topic]",
		Short: "Ingest knowledge chunks into the vector store",
		Long: `Populate the Qdrant vector store that Sentinel answers from.

Two modes are available:

  topic mode   sentinel ingest "course enrollment"
               The generation model produces a bounded set of self-contained
               chunks about the topic, which are embedded and upserted.

  batch mode   sentinel ingest --file chunks.json
               Reads a JSON array of {"title","content","tags"} records and
               ingests them verbatim. No generation backend is needed.

The target collection is created if absent, sized to the configured
embedding backend. Ingestion is all-or-nothing per run: a malformed batch or
a failed upsert aborts without partial writes from this run's batch call.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: sentinel_docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_*          Embedding backend overrides (see README)

Examples:
  sentinel ingest "VPN setup instructions"
  sentinel ingest --chunks 8 "exam regulations"
  sentinel ingest --file ./seed/faq.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			topic := ""
			if len(args) == 1 {
				topic = strings.TrimSpace(args[0])
			}
			if topic == "" && file == "" {
				return fmt.Errorf("ingest: a topic argument or --file is required")
			}
			if topic != "" && file != "" {
				return fmt.Errorf("ingest: topic argument and --file are mutually exclusive")
			}

			var chatModel ingestion.ChatModel
			if topic != "" {
				m, err := provider.NewFromEnv(ctx)
				if err != nil {
					return fmt.Errorf("ingest: failed to initialise model provider: %w", err)
				}
				chatModel = m
			}

			stack, err := buildRAGStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer stack.Close()

			pipeline, err := ingestion.NewPipeline(chatModel, stack.embedder, stack.store, &ingestion.Config{
				ChunkTarget: chunks,
				Language:    getEnvOrDefault("CONTENT_LANGUAGE", "en"),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var count int
			if topic != "" {
				log.Info("starting topic ingestion", slog.String("topic", topic))
				count, err = pipeline.IngestTopic(ctx, topic)
			} else {
				var items []ingestion.Item
				items, err = readBatchFile(file)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("starting batch ingestion", slog.String("file", file), slog.Int("items", len(items)))
				count, err = pipeline.Ingest(ctx, items)
			}
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("chunks", count))
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks\n", count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of {title, content, tags} records")
	cmd.Flags().IntVar(&chunks, "chunks", 0, "Upper bound of generated chunks in topic mode (default 5)")

	return cmd
}

// readBatchFile reads and decodes a JSON batch file into ingestion items.
func readBatchFile(path string) ([]ingestion.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var items []ingestion.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: expected a JSON array of {title, content, tags}: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("parse %s: batch file contains no items", path)
	}
	return items, nil
}
