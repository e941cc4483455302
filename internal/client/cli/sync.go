package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local copy with the remote document",
		Long: `Pull the remote document, merge it with the local copy and commit
anything the remote document is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				if err := a.commit(ctx, s, true); err != nil {
					return err
				}
				st := s.engine.Status()
				a.io.Printf("Tasks: %d  Reminders: %d  Goals: %d  Completions: %d\n",
					st.Counts[0], st.Counts[1], st.Counts[2], st.Counts[3])
				return nil
			})
		},
	}
}
