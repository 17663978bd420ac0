// Package storage holds the data façade the assistant reads schedules and
// clients from, and the local store dictated reminders are saved to.
package storage

import (
	"context"

	"github.com/xaenox/voicememo/internal/models"
)

// Backend is the practice-management data façade. Lookups of a missing
// record return errs.ErrNotFound.
type Backend interface {
	ListClients(ctx context.Context) ([]models.Client, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	ListNotesForClient(ctx context.Context, clientID string) ([]models.Note, error)
	NextSessionPrep(ctx context.Context, sessionID, clientID string) (models.SessionPrep, error)
	GenerateSessionPrep(ctx context.Context, sessionID string) (models.SessionPrep, error)
	CreateReminderRecord(ctx context.Context, rec models.ReminderRecord) (models.ReminderRecord, error)
	Close() error
}

// ReminderStore is the ordered, id-keyed list of dictated reminders.
type ReminderStore interface {
	All() ([]models.VoiceReminder, error)
	Get(id string) (models.VoiceReminder, error)
	Append(r models.VoiceReminder) error
}
