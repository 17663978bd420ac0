package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
)

// MemoryStorage is a Backend kept entirely in process memory.
type MemoryStorage struct {
	mu        sync.RWMutex
	clients   map[string]models.Client
	sessions  map[string]models.Session
	notes     map[string][]models.Note
	preps     map[string]models.SessionPrep
	reminders []models.ReminderRecord
	now       func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients:  make(map[string]models.Client),
		sessions: make(map[string]models.Session),
		notes:    make(map[string][]models.Note),
		preps:    make(map[string]models.SessionPrep),
		now:      time.Now,
	}
}

// AddClient stores c, assigning an id when it has none.
func (s *MemoryStorage) AddClient(c models.Client) models.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.clients[c.ID] = c
	return c
}

// AddSession stores a session. The client name is filled in from the
// client record when missing.
func (s *MemoryStorage) AddSession(sess models.Session) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.ClientName == "" {
		sess.ClientName = s.clients[sess.ClientID].Name
	}
	if sess.Status == "" {
		sess.Status = "scheduled"
	}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *MemoryStorage) AddNote(n models.Note) models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notes[n.ClientID] = append(s.notes[n.ClientID], n)
	return n
}

// SetPrep stores prepared material for a session.
func (s *MemoryStorage) SetPrep(p models.SessionPrep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preps[p.SessionID] = p
}

func (s *MemoryStorage) ListClients(ctx context.Context) ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].Name < clients[j].Name
	})
	return clients, nil
}

func (s *MemoryStorage) ListSessions(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartsAt.Before(sessions[j].StartsAt)
	})
	return sessions, nil
}

func (s *MemoryStorage) ListNotesForClient(ctx context.Context, clientID string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clients[clientID]; !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, errs.ErrNotFound)
	}
	notes := append([]models.Note{}, s.notes[clientID]...)
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (s *MemoryStorage) NextSessionPrep(ctx context.Context, sessionID, clientID string) (models.SessionPrep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preps[sessionID]
	if !ok || (clientID != "" && p.ClientID != clientID) {
		return models.SessionPrep{}, fmt.Errorf("prep for session %s: %w", sessionID, errs.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStorage) GenerateSessionPrep(ctx context.Context, sessionID string) (models.SessionPrep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.SessionPrep{}, fmt.Errorf("session %s: %w", sessionID, errs.ErrNotFound)
	}
	p := buildPrep(sess, s.notes[sess.ClientID], s.reminders)
	s.preps[sessionID] = p
	return p, nil
}

func (s *MemoryStorage) CreateReminderRecord(ctx context.Context, rec models.ReminderRecord) (models.ReminderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.reminders = append(s.reminders, rec)
	return rec, nil
}

// ReminderRecords returns every record created so far.
func (s *MemoryStorage) ReminderRecords() []models.ReminderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ReminderRecord{}, s.reminders...)
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
