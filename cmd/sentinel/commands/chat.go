package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/provider"
)

// NewChatCmd constructs the `sentinel chat` command, an interactive console
// loop that answers one question per line from the indexed knowledge base.
func NewChatCmd() *cobra.Command {
	var similarityOnly bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive console for grounded question answering",
		Long: `Start an interactive console session. Each line is treated as one
independent question — there is no conversation memory, because every answer
must be traceable to indexed evidence, not to chat history.

Type "exit" or "quit" (or press Ctrl-D) to end the session.

Examples:
  sentinel chat
  sentinel chat --similarity
  BLOCK_OVERRIDE=true sentinel chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			var chatModel grounding.ChatModel
			if !similarityOnly {
				m, err := provider.NewFromEnv(ctx)
				if err != nil {
					return fmt.Errorf("chat: failed to initialise model provider: %w", err)
				}
				chatModel = m
			}

			stack, err := buildRAGStack(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer stack.Close()

			eng, err := newEngine(stack, chatModel)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			ql := openQueryLog(log)
			if ql != nil {
				defer func() { _ = ql.Close() }()
			}

			out := cmd.OutOrStdout()
			wrapCols := getEnvInt("WRAP_COLUMNS", 100)

			fmt.Fprintf(out, "sentinel console — min_score=%.2f, type 'exit' to quit\n\n", eng.MinScore())

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				if query == "exit" || query == "quit" {
					break
				}

				ans, err := eng.Answer(ctx, query)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n\n", err)
					continue
				}
				recordOutcome(ctx, ql, query, ans, "console")

				fmt.Fprintln(out, grounding.RenderConsole(ans, wrapCols))
				fmt.Fprintln(out)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: read input: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&similarityOnly, "similarity", false, "List closest matching sources without generating answers")

	return cmd
}
