package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/client/sync"
)

func (a *App) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show synchronization status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				lastSync, err := s.store.GetLastSyncTimestamp(ctx)
				if err != nil {
					return err
				}
				a.printStatus(s.engine.Status(), lastSync, s.store.Encrypted())
				return nil
			})
		},
	}
}

func (a *App) printStatus(st sync.SyncStatus, lastSync int64, encrypted bool) {
	a.io.Println("=== Sync Status ===")
	a.io.Println()
	a.io.Printf("Workspace:       %s\n", st.Workspace)
	a.io.Printf("Remote:          %s\n", a.cfg.Remote)
	a.io.Printf("Device:          %s\n", st.DeviceID)
	a.io.Printf("Remote health:   %s\n", st.Health)
	a.io.Printf("State:           %s\n", st.State)
	a.io.Printf("Subscribed:      %t\n", st.Subscribed)
	a.io.Printf("Version:         %d\n", st.Version)
	a.io.Printf("Fingerprint:     %s\n", st.Fingerprint)
	a.io.Printf("Cache encrypted: %t\n", encrypted)
	a.io.Println()
	a.io.Printf("Tasks: %d  Reminders: %d  Goals: %d  Completions: %d\n",
		st.Counts[0], st.Counts[1], st.Counts[2], st.Counts[3])
	a.io.Println()

	if st.PendingWriteAt > 0 {
		a.io.Printf("Pending local write since %s\n", formatMillis(st.PendingWriteAt))
	}
	if st.Dirty {
		a.io.Println("Local copy has changes not yet in the remote document")
	}
	if lastSync > 0 {
		ago := time.Since(time.UnixMilli(lastSync)).Round(time.Second)
		a.io.Printf("Last sync:       %s (%s ago)\n", formatMillis(lastSync), ago)
	} else {
		a.io.Println("Last sync:       never")
	}
	if st.LastError != "" {
		a.io.Println()
		a.io.Printf("Last error: %s\n", st.LastError)
	}
}
