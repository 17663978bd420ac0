package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
)

// FileReminderStore keeps reminders in one JSON file. Every append rewrites
// the whole file through a temporary sibling and a rename.
type FileReminderStore struct {
	mu        sync.RWMutex
	path      string
	reminders []models.VoiceReminder
}

// OpenReminderStore creates or loads the store located at path.
func OpenReminderStore(path string) (*FileReminderStore, error) {
	s := &FileReminderStore{path: path}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	return s, nil
}

// All returns the reminders in insertion order.
func (s *FileReminderStore) All() ([]models.VoiceReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.VoiceReminder{}, s.reminders...), nil
}

func (s *FileReminderStore) Get(id string) (models.VoiceReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return models.VoiceReminder{}, fmt.Errorf("reminder %s: %w", id, errs.ErrNotFound)
}

// Append adds r to the end of the list. A reminder whose id is already
// stored replaces the earlier record in place.
func (s *FileReminderStore) Append(r models.VoiceReminder) error {
	if r.ID == "" {
		return errors.New("reminder has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]models.VoiceReminder{}, s.reminders...)
	replaced := false
	for i := range next {
		if next[i].ID == r.ID {
			next[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, r)
	}

	if err := s.saveLocked(next); err != nil {
		return err
	}
	s.reminders = next
	return nil
}

func (s *FileReminderStore) load() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	var payload struct {
		Reminders []models.VoiceReminder `json:"reminders"`
	}
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDecodeFailure, err)
	}
	s.reminders = payload.Reminders
	return nil
}

func (s *FileReminderStore) saveLocked(reminders []models.VoiceReminder) error {
	payload := struct {
		Reminders []models.VoiceReminder `json:"reminders"`
	}{Reminders: reminders}

	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}
