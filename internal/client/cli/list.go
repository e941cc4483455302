package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/models"
)

func (a *App) newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [collection]",
		Short: "List items of the workspace",
		Long: `List tasks, reminders, goals and goal completions.

Without an argument every collection is printed. When the remote store
is unreachable the locally cached copy is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := models.AllCollections
			if len(args) == 1 {
				name, err := models.ParseCollectionName(args[0])
				if err != nil {
					return err
				}
				names = []models.CollectionName{name}
			}

			return a.withSession(cmd.Context(), func(s *session) error {
				cols := s.engine.Snapshot()
				for i, name := range names {
					if i > 0 {
						a.io.Println()
					}
					if err := printCollection(a.io, cols, name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}

// printCollection печатает одну коллекцию таблицей
func printCollection(w io.Writer, cols models.Collections, name models.CollectionName) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	switch name {
	case models.CollectionTasks:
		fmt.Fprintf(tw, "Tasks (%d)\n", len(cols.Tasks))
		for _, t := range cols.Tasks {
			fmt.Fprintf(tw, "  %s\t%s\t%s\tdue %s\n", checkbox(t.Completed), shortID(t.ID), t.Description, formatMillis(t.DueAt))
		}
	case models.CollectionReminders:
		fmt.Fprintf(tw, "Reminders (%d)\n", len(cols.Reminders))
		for _, r := range cols.Reminders {
			task := "-"
			if r.TaskID != "" {
				task = shortID(r.TaskID)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\tat %s\ttask %s\n", checkbox(r.Dismissed), shortID(r.ID), r.Message, formatMillis(r.RemindAt), task)
		}
	case models.CollectionGoals:
		fmt.Fprintf(tw, "Goals (%d)\n", len(cols.Goals))
		for _, g := range cols.Goals {
			archived := ""
			if g.Archived {
				archived = "archived"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d/%s\t%s\n", shortID(g.ID), g.Title, g.Target, g.Cadence, archived)
		}
	case models.CollectionGoalCompletions:
		fmt.Fprintf(tw, "Goal completions (%d)\n", len(cols.GoalCompletions))
		for _, c := range cols.GoalCompletions {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", checkbox(c.Completed), shortID(c.GoalID), c.Date, c.Note)
		}
	}

	return tw.Flush()
}
