package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/models"
)

var cadences = []string{"daily", "weekly"}

func (a *App) newGoalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals and their completions",
	}
	cmd.AddCommand(a.newGoalAddCommand())
	cmd.AddCommand(a.newGoalCompleteCommand())
	return cmd
}

func (a *App) newGoalAddCommand() *cobra.Command {
	var cadence string
	var target int64

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidCadence(cadence) {
				return fmt.Errorf("invalid cadence %q: must be one of %v", cadence, cadences)
			}
			if target < 1 {
				return fmt.Errorf("target must be at least 1, got %d", target)
			}

			goal := models.Goal{
				ID:      uuid.NewString(),
				Title:   strings.Join(args, " "),
				Cadence: cadence,
				Target:  target,
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				return a.mutate(ctx, s, s.engine.PutGoal(goal), "Added goal "+goal.ID)
			})
		},
	}

	cmd.Flags().StringVar(&cadence, "cadence", "daily", "how often the goal repeats: daily or weekly")
	cmd.Flags().Int64Var(&target, "target", 1, "completions needed per period")

	return cmd
}

func (a *App) newGoalCompleteCommand() *cobra.Command {
	var date, note string
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete <goal-id>",
		Short: "Record a goal completion for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := date
			if day == "" {
				day = time.Now().Format(time.DateOnly)
			}
			if _, err := time.Parse(time.DateOnly, day); err != nil {
				return fmt.Errorf("invalid date %q: use YYYY-MM-DD", day)
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				goals := s.engine.Snapshot().Goals
				keys := make([]string, len(goals))
				for i, g := range goals {
					keys[i] = g.ID
				}
				goalID, err := resolveID(keys, args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve goal: %w", err)
				}

				completion := models.GoalCompletion{
					GoalID:    goalID,
					Date:      day,
					Note:      note,
					Completed: !undo,
				}
				done := fmt.Sprintf("Goal %s marked done for %s", shortID(goalID), day)
				if undo {
					done = fmt.Sprintf("Goal %s marked not done for %s", shortID(goalID), day)
				}
				return a.mutate(ctx, s, s.engine.PutCompletion(completion), done)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day of the completion, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "note", "", "comment for the day")
	cmd.Flags().BoolVar(&undo, "undo", false, "record the day as not completed")

	return cmd
}

func isValidCadence(cadence string) bool {
	for _, c := range cadences {
		if c == cadence {
			return true
		}
	}
	return false
}
