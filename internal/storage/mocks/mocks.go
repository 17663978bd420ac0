package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xaenox/voicememo/internal/models"
)

// Backend is a mock for storage.Backend.
type Backend struct {
	mock.Mock
}

func (m *Backend) ListClients(ctx context.Context) ([]models.Client, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]models.Client); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Backend) ListSessions(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]models.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Backend) ListNotesForClient(ctx context.Context, clientID string) ([]models.Note, error) {
	args := m.Called(ctx, clientID)
	if list, ok := args.Get(0).([]models.Note); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Backend) NextSessionPrep(ctx context.Context, sessionID, clientID string) (models.SessionPrep, error) {
	args := m.Called(ctx, sessionID, clientID)
	if p, ok := args.Get(0).(models.SessionPrep); ok {
		return p, args.Error(1)
	}
	return models.SessionPrep{}, args.Error(1)
}

func (m *Backend) GenerateSessionPrep(ctx context.Context, sessionID string) (models.SessionPrep, error) {
	args := m.Called(ctx, sessionID)
	if p, ok := args.Get(0).(models.SessionPrep); ok {
		return p, args.Error(1)
	}
	return models.SessionPrep{}, args.Error(1)
}

func (m *Backend) CreateReminderRecord(ctx context.Context, rec models.ReminderRecord) (models.ReminderRecord, error) {
	args := m.Called(ctx, rec)
	if r, ok := args.Get(0).(models.ReminderRecord); ok {
		return r, args.Error(1)
	}
	return models.ReminderRecord{}, args.Error(1)
}

func (m *Backend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ReminderStore is a mock for storage.ReminderStore.
type ReminderStore struct {
	mock.Mock
}

func (m *ReminderStore) All() ([]models.VoiceReminder, error) {
	args := m.Called()
	if list, ok := args.Get(0).([]models.VoiceReminder); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ReminderStore) Get(id string) (models.VoiceReminder, error) {
	args := m.Called(id)
	if r, ok := args.Get(0).(models.VoiceReminder); ok {
		return r, args.Error(1)
	}
	return models.VoiceReminder{}, args.Error(1)
}

func (m *ReminderStore) Append(r models.VoiceReminder) error {
	args := m.Called(r)
	return args.Error(0)
}
