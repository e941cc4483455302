package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/worksync/internal/models"
)

func sampleCollections() models.Collections {
	return models.Collections{
		Tasks: []models.Task{
			{ID: "t1", Description: "buy milk", RevisedAt: 100},
			{ID: "t2", Description: "call mom", DueAt: 1700000000000, RevisedAt: 200},
		},
		Reminders: []models.Reminder{
			{ID: "r1", TaskID: "t2", Message: "today", RemindAt: 1700000000000, RevisedAt: 300},
		},
		Goals: []models.Goal{
			{ID: "g1", Title: "run", Cadence: "daily", Target: 1, RevisedAt: 400},
		},
		GoalCompletions: []models.GoalCompletion{
			{GoalID: "g1", Date: "2024-01-01", Completed: true, RevisedAt: 500},
			{GoalID: "g1", Date: "2024-01-02", Completed: false, RevisedAt: 600},
		},
	}
}

func TestCompute_KnownValues(t *testing.T) {
	// Значения зафиксированы: формат канонизации не должен меняться,
	// иначе устройства с разными версиями перестанут совпадать по отпечаткам.
	assert.Equal(t, Fingerprint("aa75114a30c60050"), Compute(models.Collections{}))

	cols := models.Collections{Tasks: []models.Task{{ID: "t1", Description: "buy milk", RevisedAt: 42}}}
	assert.Equal(t, Fingerprint("2fb8d79e3cc16169"), Compute(cols))
}

func TestCompute_Stable(t *testing.T) {
	cols := sampleCollections()

	first := Compute(cols)
	second := Compute(cols)

	assert.Equal(t, first, second)
	assert.Len(t, string(first), 16)
	assert.False(t, first.Empty())
}

func TestCompute_OrderIndependent(t *testing.T) {
	cols := sampleCollections()
	reordered := cols.Clone()
	reordered.Tasks[0], reordered.Tasks[1] = reordered.Tasks[1], reordered.Tasks[0]
	reordered.GoalCompletions[0], reordered.GoalCompletions[1] = reordered.GoalCompletions[1], reordered.GoalCompletions[0]

	assert.Equal(t, Compute(cols), Compute(reordered))
}

func TestCompute_IgnoresRevision(t *testing.T) {
	cols := sampleCollections()
	restamped := cols.Clone()
	for i := range restamped.Tasks {
		restamped.Tasks[i].RevisedAt += 1000
	}
	restamped.Goals[0].RevisedAt = 0

	assert.Equal(t, Compute(cols), Compute(restamped))
}

func TestCompute_Sensitivity(t *testing.T) {
	base := sampleCollections()
	baseFP := Compute(base)

	tests := []struct {
		mutate func(c *models.Collections)
		name   string
	}{
		{
			name: "add task",
			mutate: func(c *models.Collections) {
				c.Tasks = append(c.Tasks, models.Task{ID: "t3"})
			},
		},
		{
			name: "remove reminder",
			mutate: func(c *models.Collections) {
				c.Reminders = nil
			},
		},
		{
			name: "change task field",
			mutate: func(c *models.Collections) {
				c.Tasks[0].Completed = true
			},
		},
		{
			name: "change temporal field",
			mutate: func(c *models.Collections) {
				c.Reminders[0].RemindAt++
			},
		},
		{
			name: "change completion",
			mutate: func(c *models.Collections) {
				c.GoalCompletions[1].Completed = true
			},
		},
		{
			name: "swap one deleted for one added",
			mutate: func(c *models.Collections) {
				c.Goals[0] = models.Goal{ID: "g2", Title: "read"}
			},
		},
		{
			name: "move item between collections",
			mutate: func(c *models.Collections) {
				c.Goals = append(c.Goals, models.Goal{ID: "t1"})
				c.Tasks = c.Tasks[1:]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := base.Clone()
			tt.mutate(&cols)
			assert.NotEqual(t, baseFP, Compute(cols))
		})
	}
}

func TestCanonical_Format(t *testing.T) {
	cols := models.Collections{
		Tasks: []models.Task{{ID: "b"}, {ID: "a"}},
	}

	want := "2,0,0,0\n#tasks\n" +
		`id="a",description="",notes="",dueAt=0,completed=false` + "\n" +
		`id="b",description="",notes="",dueAt=0,completed=false` +
		"\n#reminders\n#goals\n#goalCompletions"

	assert.Equal(t, want, Canonical(cols))
}
