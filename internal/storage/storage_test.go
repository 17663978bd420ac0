package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
	"github.com/xaenox/voicememo/internal/storage"
)

var base = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// seeder is implemented by both backends with slightly different
// signatures; the adapters below give the tests one shape.
type seeder struct {
	client  func(models.Client) models.Client
	session func(models.Session) models.Session
	note    func(models.Note) models.Note
}

func memoryBackend(t *testing.T) (storage.Backend, seeder) {
	m := storage.NewMemoryStorage()
	return m, seeder{client: m.AddClient, session: m.AddSession, note: m.AddNote}
}

func sqliteBackend(t *testing.T) (storage.Backend, seeder) {
	t.Helper()
	s, err := storage.NewSQLStorage(storage.DatabaseConfig{Driver: storage.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	return s, seeder{
		client: func(c models.Client) models.Client {
			out, err := s.AddClient(ctx, c)
			require.NoError(t, err)
			return out
		},
		session: func(sess models.Session) models.Session {
			out, err := s.AddSession(ctx, sess)
			require.NoError(t, err)
			return out
		},
		note: func(n models.Note) models.Note {
			out, err := s.AddNote(ctx, n)
			require.NoError(t, err)
			return out
		},
	}
}

func TestBackends(t *testing.T) {
	backends := map[string]func(*testing.T) (storage.Backend, seeder){
		"memory": memoryBackend,
		"sqlite": sqliteBackend,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b, seed := open(t)

			jane := seed.client(models.Client{Name: "Jane Doe", RiskLevel: "high", CreatedAt: base})
			amir := seed.client(models.Client{Name: "Amir Khan", CreatedAt: base})

			later := seed.session(models.Session{ClientID: jane.ID, StartsAt: base.Add(48 * time.Hour), EndsAt: base.Add(49 * time.Hour)})
			seed.session(models.Session{ClientID: amir.ID, StartsAt: base, EndsAt: base.Add(time.Hour), Status: "completed"})

			seed.note(models.Note{ClientID: jane.ID, Content: "Discussed sleep. Try journaling.", CreatedAt: base.Add(-48 * time.Hour)})
			seed.note(models.Note{ClientID: jane.ID, Content: "Anxiety about work review", CreatedAt: base.Add(-24 * time.Hour)})

			clients, err := b.ListClients(ctx)
			require.NoError(t, err)
			require.Len(t, clients, 2)
			assert.Equal(t, "Amir Khan", clients[0].Name)
			assert.Equal(t, "high", clients[1].RiskLevel)

			sessions, err := b.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.Equal(t, "Amir Khan", sessions[0].ClientName)
			assert.True(t, sessions[0].Completed())
			assert.Equal(t, "Jane Doe", sessions[1].ClientName)
			assert.Equal(t, "scheduled", sessions[1].Status)

			notes, err := b.ListNotesForClient(ctx, jane.ID)
			require.NoError(t, err)
			require.Len(t, notes, 2)
			assert.Equal(t, "Anxiety about work review", notes[0].Content)

			_, err = b.ListNotesForClient(ctx, "nobody")
			require.ErrorIs(t, err, errs.ErrNotFound)

			_, err = b.NextSessionPrep(ctx, later.ID, jane.ID)
			require.ErrorIs(t, err, errs.ErrNotFound)

			rec, err := b.CreateReminderRecord(ctx, models.ReminderRecord{ClientID: jane.ID, Text: "Send sleep worksheet"})
			require.NoError(t, err)
			assert.NotEmpty(t, rec.ID)

			prep, err := b.GenerateSessionPrep(ctx, later.ID)
			require.NoError(t, err)
			assert.Contains(t, prep.Summary, "Anxiety about work review")
			assert.Equal(t, []string{"Anxiety about work review", "Discussed sleep"}, prep.FocusAreas)
			assert.Equal(t, []string{"Send sleep worksheet"}, prep.OpenFollowUps)

			stored, err := b.NextSessionPrep(ctx, later.ID, jane.ID)
			require.NoError(t, err)
			assert.Equal(t, prep, stored)

			_, err = b.NextSessionPrep(ctx, later.ID, amir.ID)
			require.ErrorIs(t, err, errs.ErrNotFound)

			_, err = b.GenerateSessionPrep(ctx, "missing")
			require.ErrorIs(t, err, errs.ErrNotFound)
		})
	}
}

func TestNewSQLStorage_UnknownDriver(t *testing.T) {
	_, err := storage.NewSQLStorage(storage.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := storage.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "practice", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=practice sslmode=disable", pg.DSN())

	lite := storage.DatabaseConfig{Driver: storage.DriverSQLite, Path: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db", lite.DSN())
}
