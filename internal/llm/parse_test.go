package llm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/llm"
	"github.com/xaenox/voicememo/internal/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, true},
		{"prose around object", `Sure thing! {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"array", `Items: ["x", "y"].`, `["x", "y"]`, true},
		{"no json", "nothing here", "", false},
		{"unterminated", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := llm.ExtractJSON(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseIntent(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	t.Run("non json", func(t *testing.T) {
		intent := llm.ParseIntent("I am not sure what you mean", now)
		assert.Equal(t, models.ActionUnknown, intent.Action)
	})

	t.Run("array instead of object", func(t *testing.T) {
		intent := llm.ParseIntent(`["get_schedule"]`, now)
		assert.Equal(t, models.ActionUnknown, intent.Action)
	})

	t.Run("unknown action", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"order_pizza"}`, now)
		assert.Equal(t, models.ActionUnknown, intent.Action)
	})

	t.Run("full intent", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"client_history","entity_type":"client","entity_id":42,"entity_name":"Sam Rivera","time_reference":{"type":"specific_date","date":"2026-10-20"}}`, now)
		require.Equal(t, models.ActionClientHistory, intent.Action)
		assert.Equal(t, "client", intent.EntityType)
		assert.Equal(t, "42", intent.EntityID)
		assert.Equal(t, "Sam Rivera", intent.EntityName)
		require.NotNil(t, intent.Time)
		d, ok := intent.Time.Date()
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("null entities", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"get_schedule","entity_name":null,"entity_id":"null","time_reference":"Tomorrow"}`, now)
		require.Equal(t, models.ActionGetSchedule, intent.Action)
		assert.Empty(t, intent.EntityName)
		assert.Empty(t, intent.EntityID)
		require.NotNil(t, intent.Time)
		assert.Equal(t, models.TimeTomorrow, intent.Time.Kind())
	})

	t.Run("specific date without date is dropped", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"get_schedule","time_reference":{"type":"specific_date"}}`, now)
		require.Equal(t, models.ActionGetSchedule, intent.Action)
		assert.Nil(t, intent.Time)
	})

	t.Run("range needs both ends", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"get_schedule","time_reference":{"type":"date_range","start":"2026-10-20"}}`, now)
		assert.Nil(t, intent.Time)

		intent = llm.ParseIntent(`{"action":"get_schedule","time_reference":{"type":"date_range","start":"2026-10-20","end":"2026-10-22"}}`, now)
		require.NotNil(t, intent.Time)
		assert.Equal(t, models.TimeDateRange, intent.Time.Kind())
	})

	t.Run("relative offset", func(t *testing.T) {
		intent := llm.ParseIntent(`{"action":"session_notes","entity_name":"Kim","time_reference":{"type":"relative","offset_days":-3}}`, now)
		require.NotNil(t, intent.Time)
		assert.Equal(t, -3, intent.Time.Offset())
	})
}
