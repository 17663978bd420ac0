package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/models"
)

// Wednesday
var now = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeReference_Window(t *testing.T) {
	mustKind := func(k models.TimeKind) models.TimeReference {
		ref, err := models.NewTimeReference(k)
		require.NoError(t, err)
		return ref
	}

	tests := []struct {
		name       string
		ref        models.TimeReference
		start, end time.Time
	}{
		{"today", mustKind(models.TimeToday), day(2026, 10, 14), day(2026, 10, 15)},
		{"tomorrow", mustKind(models.TimeTomorrow), day(2026, 10, 15), day(2026, 10, 16)},
		{"this week", mustKind(models.TimeThisWeek), day(2026, 10, 12), day(2026, 10, 19)},
		{"next week", mustKind(models.TimeNextWeek), day(2026, 10, 19), day(2026, 10, 26)},
		{"specific", models.SpecificDate(time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)), day(2026, 11, 2), day(2026, 11, 3)},
		{"range", models.DateRange(day(2026, 10, 20), day(2026, 10, 22)), day(2026, 10, 20), day(2026, 10, 23)},
		{"relative", models.RelativeDays(-2), day(2026, 10, 12), day(2026, 10, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := tt.ref.Window(now)
			require.True(t, ok)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestTimeReference_Invariants(t *testing.T) {
	_, err := models.NewTimeReference(models.TimeSpecificDate)
	require.Error(t, err)
	_, err = models.NewTimeReference(models.TimeDateRange)
	require.Error(t, err)

	specific := models.SpecificDate(day(2026, 1, 1))
	d, ok := specific.Date()
	require.True(t, ok)
	require.Equal(t, day(2026, 1, 1), d)

	reversed := models.DateRange(day(2026, 1, 5), day(2026, 1, 1))
	start, _ := reversed.Date()
	end, ok := reversed.End()
	require.True(t, ok)
	require.True(t, start.Before(end))

	last, err := models.NewTimeReference(models.TimeLastSession)
	require.NoError(t, err)
	_, _, ok = last.Window(now)
	require.False(t, ok)
}

func TestParseCategoryAndPriority(t *testing.T) {
	assert.Equal(t, models.CategoryFollowUp, models.ParseCategory("Follow-Up"))
	assert.Equal(t, models.CategoryGeneral, models.ParseCategory("gardening"))
	assert.Equal(t, models.PriorityUrgent, models.ParsePriority(" URGENT "))
	assert.Equal(t, models.PriorityMedium, models.ParsePriority(""))
	assert.Equal(t, models.ActionUnknown, models.ParseAction("dance"))
	assert.Len(t, models.Actions, 9)
	assert.Len(t, models.Categories, 7)
	assert.Len(t, models.Priorities, 4)
}

func TestConversation_Recent(t *testing.T) {
	c := models.NewConversation(now)
	require.True(t, c.Active)
	require.NotEmpty(t, c.ID)
	require.Nil(t, c.Recent(3))

	for i := 0; i < 5; i++ {
		c.Messages = append(c.Messages, models.Message{Text: string(rune('a' + i))})
	}
	recent := c.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, "d", recent[0].Text)
}
