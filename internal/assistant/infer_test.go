package assistant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/voicememo/internal/assistant"
	"github.com/xaenox/voicememo/internal/models"
)

func TestInferTimeReference(t *testing.T) {
	tests := []struct {
		utterance string
		want      models.TimeKind
		ok        bool
	}{
		{"What's on my schedule tomorrow?", models.TimeTomorrow, true},
		{"Anything TODAY", models.TimeToday, true},
		{"who am I seeing tonight", models.TimeToday, true},
		{"Show next week", models.TimeNextWeek, true},
		{"how busy is this week", models.TimeThisWeek, true},
		{"today or tomorrow?", models.TimeTomorrow, true},
		{"list my clients", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			ref, ok := assistant.InferTimeReference(tt.utterance)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ref.Kind())
			}
		})
	}
}

func TestMatchClient(t *testing.T) {
	clients := []models.Client{
		{ID: "1", Name: "Jane Doe"},
		{ID: "2", Name: "Jane Smith"},
		{ID: "3", Name: "Amir Khan"},
	}

	c, ok := assistant.MatchClient(clients, "jane smith")
	assert.True(t, ok)
	assert.Equal(t, "2", c.ID)

	c, ok = assistant.MatchClient(clients, "Khan's")
	assert.True(t, ok)
	assert.Equal(t, "3", c.ID)

	_, ok = assistant.MatchClient(clients, "Zed")
	assert.False(t, ok)
	_, ok = assistant.MatchClient(clients, "")
	assert.False(t, ok)
}
