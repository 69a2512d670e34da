package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/provider"
)

// NewAskCmd constructs the `sentinel ask` command, which answers a single
// question from the indexed knowledge base and prints the result to stdout.
func NewAskCmd() *cobra.Command {
	var similarityOnly bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question against the indexed knowledge base",
		Long: `Ask Sentinel a single question. The answer is grounded strictly in
content previously ingested into the Qdrant vector store; questions without
sufficiently similar indexed content are refused rather than answered from
model memory.

With --similarity, no answer is generated — only the closest matching
sources and their scores are listed. This mode needs no generation backend.

Examples:
  sentinel ask "when does enrollment for the spring course open?"
  sentinel ask --similarity "VPN setup on Linux"
  MIN_SCORE=0.6 sentinel ask "how do I reset my account?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			var chatModel grounding.ChatModel
			if !similarityOnly {
				m, err := provider.NewFromEnv(ctx)
				if err != nil {
					return fmt.Errorf("ask: failed to initialise model provider: %w", err)
				}
				chatModel = m
			}

			stack, err := buildRAGStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.Close()

			eng, err := newEngine(stack, chatModel)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			ql := openQueryLog(log)
			if ql != nil {
				defer func() { _ = ql.Close() }()
			}

			query := strings.Join(args, " ")
			ans, err := eng.Answer(ctx, query)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			recordOutcome(ctx, ql, query, ans, "console")

			fmt.Fprintln(cmd.OutOrStdout(), grounding.RenderConsole(ans, getEnvInt("WRAP_COLUMNS", 100)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&similarityOnly, "similarity", false, "List closest matching sources without generating an answer")

	return cmd
}
