package commands

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/session"
	"github.com/54b3r/shopai-go/internal/tracing"
	"github.com/54b3r/shopai-go/internal/tui"
)

// NewChatCmd constructs the `shopai chat` command, an interactive terminal
// chat over the catalog.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat about the catalog",
		Long: `Start a full-screen terminal chat. Each question is answered from the
catalog; the conversation stays on screen until you quit (Ctrl+C or Esc).

Logs are written to LOG_FILE (default ~/.shopai/shopai.log) so they do not
disturb the screen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLog, err := logging.NewFileLogger()
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer func() { _ = closeLog() }()
			ctx := logging.WithLogger(cmd.Context(), log)

			flush := tracing.Enable(ctx)
			defer flush()

			errOut := cmd.ErrOrStderr()
			ci, err := prepareIndex(ctx, prometheus.NewRegistry(), func(msg string) {
				fmt.Fprintln(errOut, msg)
			})
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer ci.Close()

			shopAgent, _, cfg, err := buildAgent(ctx)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			sess, err := session.New(ci.index, shopAgent, session.Options{})
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			title := fmt.Sprintf("shopai · %s (%s)", cfg.ModelName(), ci.backend)
			p := tea.NewProgram(tui.New(ctx, sess, title), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			log.Info("chat ended", slog.Int("turns", len(sess.History())))
			return nil
		},
	}
}
