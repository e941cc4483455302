package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/client/sync"
	"github.com/iudanet/worksync/internal/models"
)

func (a *App) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay subscribed and print changes as they arrive",
		Long:  "Stay subscribed to the workspace document and print every applied change until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				s.engine.OnChange(func(source sync.ChangeSource, cols models.Collections) {
					a.io.Printf("[%s] %s change: %s\n", time.Now().Format(time.TimeOnly), source, summary(cols))
				})
				a.io.Printf("Watching workspace %q (%s)\n", a.cfg.Workspace, summary(s.engine.Snapshot()))

				<-ctx.Done()
				return nil
			})
		},
	}
}

func summary(cols models.Collections) string {
	sizes := cols.Sizes()
	return fmt.Sprintf("%d tasks, %d reminders, %d goals, %d completions", sizes[0], sizes[1], sizes[2], sizes[3])
}
