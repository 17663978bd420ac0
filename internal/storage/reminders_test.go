package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
	"github.com/xaenox/voicememo/internal/storage"
)

func TestFileReminderStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "reminders.json")
	store, err := storage.OpenReminderStore(path)
	require.NoError(t, err)

	all, err := store.All()
	require.NoError(t, err)
	require.Empty(t, all)

	processedAt := base.Add(time.Minute)
	first := models.VoiceReminder{
		ID:            "r1",
		CreatedAt:     base,
		Transcription: "Call Jane's psychiatrist about the dosage",
		ClientID:      "c1",
		Status:        models.ReminderReady,
	}
	first.ApplyProcessing(models.ProcessedReminder{
		FollowUps: []string{"Call psychiatrist"},
		Category:  models.CategoryClinical,
		Priority:  models.PriorityHigh,
	}, processedAt)
	second := models.VoiceReminder{ID: "r2", CreatedAt: base, Transcription: "Buy printer paper", FollowUps: []string{}, Status: models.ReminderTranscribed}

	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(second))

	reopened, err := storage.OpenReminderStore(path)
	require.NoError(t, err)
	all, err = reopened.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID)
	assert.Equal(t, "r2", all[1].ID)
	assert.Equal(t, models.CategoryClinical, all[0].SuggestedCategory)
	assert.True(t, all[0].ProcessedAt.Equal(processedAt))

	got, err := reopened.Get("r2")
	require.NoError(t, err)
	assert.Equal(t, models.ReminderTranscribed, got.Status)

	_, err = reopened.Get("r3")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileReminderStore_AppendSameIDReplaces(t *testing.T) {
	store, err := storage.OpenReminderStore(filepath.Join(t.TempDir(), "reminders.json"))
	require.NoError(t, err)

	require.NoError(t, store.Append(models.VoiceReminder{ID: "a", Transcription: "one"}))
	require.NoError(t, store.Append(models.VoiceReminder{ID: "b", Transcription: "two"}))
	require.NoError(t, store.Append(models.VoiceReminder{ID: "a", Transcription: "one, edited"}))

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "one, edited", all[0].Transcription)

	require.Error(t, store.Append(models.VoiceReminder{}))
}

func TestFileReminderStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := storage.OpenReminderStore(path)
	require.ErrorIs(t, err, errs.ErrDecodeFailure)
}
