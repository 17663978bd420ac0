package models

import (
	"strings"
	"time"
)

// ReminderStatus is the lifecycle status of a voice reminder
type ReminderStatus string

const (
	ReminderPending     ReminderStatus = "pending"
	ReminderTranscribed ReminderStatus = "transcribed"
	ReminderProcessing  ReminderStatus = "processing"
	ReminderReady       ReminderStatus = "ready"
)

// Category is one of the fixed note categories the model may suggest
type Category string

const (
	CategoryClinical       Category = "clinical"
	CategoryFollowUp       Category = "follow_up"
	CategoryScheduling     Category = "scheduling"
	CategoryAdministrative Category = "administrative"
	CategoryBilling        Category = "billing"
	CategoryPersonal       Category = "personal"
	CategoryGeneral        Category = "general"
)

// Categories lists every known category in prompt order
var Categories = []Category{
	CategoryClinical,
	CategoryFollowUp,
	CategoryScheduling,
	CategoryAdministrative,
	CategoryBilling,
	CategoryPersonal,
	CategoryGeneral,
}

// ParseCategory normalises a model-provided category, defaulting to general
func ParseCategory(s string) Category {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, c := range Categories {
		if string(c) == norm {
			return c
		}
	}
	return CategoryGeneral
}

// Priority is one of the fixed priority levels
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every level from lowest to highest
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority normalises a model-provided priority, defaulting to medium
func ParsePriority(s string) Priority {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Priorities {
		if string(p) == norm {
			return p
		}
	}
	return PriorityMedium
}

// VoiceReminder is a dictated note kept in the local reminder store
type VoiceReminder struct {
	ID                string         `json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	Transcription     string         `json:"transcription"`
	ClientID          string         `json:"client_id,omitempty"`
	SessionID         string         `json:"session_id,omitempty"`
	IsProcessed       bool           `json:"is_processed"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	FollowUps         []string       `json:"follow_ups"`
	SuggestedCategory Category       `json:"suggested_category,omitempty"`
	Priority          Priority       `json:"priority,omitempty"`
	Status            ReminderStatus `json:"status"`
	AudioPath         string         `json:"audio_path,omitempty"`
}

// ApplyProcessing copies the AI result onto the reminder and marks it ready
func (r *VoiceReminder) ApplyProcessing(p ProcessedReminder, at time.Time) {
	r.FollowUps = append([]string{}, p.FollowUps...)
	r.SuggestedCategory = p.Category
	r.Priority = p.Priority
	r.IsProcessed = true
	r.ProcessedAt = &at
	r.Status = ReminderReady
}

// ProcessedReminder is the decoded AI analysis of a dictated note
type ProcessedReminder struct {
	FollowUps   []string `json:"follow_ups"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	KeyEntities []string `json:"key_entities"`
	ActionItems []string `json:"action_items"`
}

// DefaultProcessedReminder is used when the model reply cannot be decoded
func DefaultProcessedReminder() ProcessedReminder {
	return ProcessedReminder{
		FollowUps:   []string{},
		Category:    CategoryGeneral,
		Priority:    PriorityMedium,
		KeyEntities: []string{},
		ActionItems: []string{},
	}
}
