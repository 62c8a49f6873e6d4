package commands

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/session"
	"github.com/54b3r/shopai-go/internal/tracing"
)

// NewAskCmd constructs the `shopai ask` command, which answers a single
// question from the catalog and streams the reply to stdout.
func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about the catalog",
		Long: `Ask one question about the product catalog and print the answer.

The catalog is ingested first if the collection is empty.

Examples:
  shopai ask "What is the price of the Canon EOS 80D?"
  shopai ask "Which mirrorless cameras are rated above 4.5?"
  CATALOG_PATH=./lenses.csv shopai ask "list the Sigma lenses"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(ctx)
			defer flush()

			ci, err := prepareIndex(ctx, prometheus.NewRegistry(), func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer ci.Close()

			shopAgent, _, _, err := buildAgent(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			sess, err := session.New(ci.index, shopAgent, session.Options{})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if _, err := sess.HandleStream(ctx, strings.Join(args, " "), out); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
