package models

import "time"

// Client represents a therapy client as returned by the data façade
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RiskLevel string    `json:"risk_level,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session represents a scheduled or completed appointment
type Session struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Status     string    `json:"status"`
	Location   string    `json:"location,omitempty"`
}

// Completed reports whether the session already took place
func (s Session) Completed() bool {
	return s.Status == "completed"
}

// Note represents a clinical note attached to a client
type Note struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	SessionID string    `json:"session_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionPrep holds the preparation material for an upcoming session
type SessionPrep struct {
	SessionID     string   `json:"session_id"`
	ClientID      string   `json:"client_id"`
	Summary       string   `json:"summary"`
	FocusAreas    []string `json:"focus_areas"`
	OpenFollowUps []string `json:"open_follow_ups"`
}

// ReminderRecord is a reminder persisted remotely through the data façade
type ReminderRecord struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id,omitempty"`
	Text      string     `json:"text"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
