package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/client/sync"
	"github.com/iudanet/worksync/internal/models"
)

func (a *App) newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(a.newTaskAddCommand())
	cmd.AddCommand(a.newTaskDoneCommand())
	return cmd
}

func (a *App) newTaskAddCommand() *cobra.Command {
	var notes, due string

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := models.Task{
				ID:          uuid.NewString(),
				Description: strings.Join(args, " "),
				Notes:       notes,
			}
			if due != "" {
				dueAt, err := parseTime(due)
				if err != nil {
					return err
				}
				task.DueAt = dueAt
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				return a.mutate(ctx, s, s.engine.PutTask(task), "Added task "+task.ID)
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "additional notes")
	cmd.Flags().StringVar(&due, "due", "", "due time: YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339")

	return cmd
}

func (a *App) newTaskDoneCommand() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task as completed",
		Long:  "Mark a task as completed. The id may be shortened to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				var id string
				outcome := s.engine.Mutate(func(c *models.Collections) error {
					keys := make([]string, len(c.Tasks))
					for i, t := range c.Tasks {
						keys[i] = t.ID
					}
					var err error
					id, err = resolveID(keys, args[0])
					if err != nil {
						return fmt.Errorf("%w: task: %w", sync.ErrItemNotFound, err)
					}
					for i := range c.Tasks {
						if c.Tasks[i].ID == id {
							c.Tasks[i].Completed = !undo
						}
					}
					return nil
				})

				state := "completed"
				if undo {
					state = "reopened"
				}
				return a.mutate(ctx, s, outcome, fmt.Sprintf("Task %s %s", shortID(id), state))
			})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task as not completed")

	return cmd
}
