package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/models"
)

func (a *App) newReminderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Manage reminders",
	}
	cmd.AddCommand(a.newReminderAddCommand())
	return cmd
}

func (a *App) newReminderAddCommand() *cobra.Command {
	var at, taskRef string

	cmd := &cobra.Command{
		Use:   "add <message>",
		Short: "Add a reminder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remindAt, err := parseTime(at)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				reminder := models.Reminder{
					ID:       uuid.NewString(),
					Message:  strings.Join(args, " "),
					RemindAt: remindAt,
				}

				// Ссылка на задачу мягкая: проверяем только то, что видно локально
				if taskRef != "" {
					tasks := s.engine.Snapshot().Tasks
					keys := make([]string, len(tasks))
					for i, t := range tasks {
						keys[i] = t.ID
					}
					reminder.TaskID, err = resolveID(keys, taskRef)
					if err != nil {
						return fmt.Errorf("failed to resolve task: %w", err)
					}
				}

				return a.mutate(ctx, s, s.engine.PutReminder(reminder), "Added reminder "+reminder.ID)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "when to remind: YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339")
	cmd.Flags().StringVar(&taskRef, "task", "", "id (or unique prefix) of the related task")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}
