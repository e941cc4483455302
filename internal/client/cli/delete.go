package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/models"
)

func (a *App) newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <collection> <id> [date]",
		Short: "Delete an item",
		Long: `Delete a task, reminder, goal or goal completion.

Goal completions are addressed by goal id and date:
  worksync delete completion <goal-id> 2026-01-31

Deletion removes the item from this device's copy. Another device that
still holds the item may bring it back when it commits.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := models.ParseCollectionName(args[0])
			if err != nil {
				return err
			}
			if name == models.CollectionGoalCompletions && len(args) != 3 {
				return fmt.Errorf("goal completions are addressed by goal id and date")
			}
			if name != models.CollectionGoalCompletions && len(args) != 2 {
				return fmt.Errorf("%s are addressed by id only", name)
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				key, err := itemKey(s.engine.Snapshot(), name, args[1:])
				if err != nil {
					return err
				}
				return a.mutate(ctx, s, s.engine.Delete(name, key), fmt.Sprintf("Deleted %s %s", name, displayKey(key)))
			})
		},
	}

	return cmd
}

// itemKey разрешает ссылку пользователя в ключ элемента коллекции
func itemKey(cols models.Collections, name models.CollectionName, refs []string) (string, error) {
	var keys []string
	switch name {
	case models.CollectionTasks:
		for _, t := range cols.Tasks {
			keys = append(keys, t.ItemKey())
		}
	case models.CollectionReminders:
		for _, r := range cols.Reminders {
			keys = append(keys, r.ItemKey())
		}
	case models.CollectionGoals:
		for _, g := range cols.Goals {
			keys = append(keys, g.ItemKey())
		}
	case models.CollectionGoalCompletions:
		seen := make(map[string]bool)
		for _, c := range cols.GoalCompletions {
			if !seen[c.GoalID] {
				seen[c.GoalID] = true
				keys = append(keys, c.GoalID)
			}
		}
		goalID, err := resolveID(keys, refs[0])
		if err != nil {
			return "", err
		}
		return models.CompletionKey(goalID, refs[1]), nil
	}

	return resolveID(keys, refs[0])
}

// displayKey показывает составной ключ отметки в читаемом виде
func displayKey(key string) string {
	if goalID, date, ok := strings.Cut(key, "\x1f"); ok {
		return shortID(goalID) + "@" + date
	}
	return shortID(key)
}
