package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
)

// Execute runs intent against the data façade. A missing or unmatched
// entity gives NoData; only façade failures are returned as errors.
func (c *Controller) Execute(ctx context.Context, intent models.DetectedIntent, utterance string, convCtx models.ConversationContext) (Result, error) {
	res, err := c.execute(ctx, intent, utterance, convCtx)
	if errors.Is(err, errs.ErrNotFound) {
		return NoData{Reason: err.Error()}, nil
	}
	return res, err
}

func (c *Controller) execute(ctx context.Context, intent models.DetectedIntent, utterance string, convCtx models.ConversationContext) (Result, error) {
	now := c.now()

	switch intent.Action {
	case models.ActionGetSchedule:
		start, end, ok := window(intent.Time, now)
		if !ok {
			start, end, _ = todayWindow(now)
		}
		sessions, err := c.backend.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		return Schedule{Start: start, End: end, Sessions: between(sessions, start, end)}, nil

	case models.ActionNextAppointment:
		sessions, err := c.backend.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		if intent.EntityName != "" {
			client, found, err := c.findClient(ctx, intent, convCtx)
			if err != nil {
				return nil, err
			}
			if !found {
				return NoData{Reason: "no client named " + intent.EntityName}, nil
			}
			sessions = forClient(sessions, client.ID)
		}
		next, ok := nextSession(sessions, now)
		if !ok {
			return NoData{Reason: "no upcoming sessions"}, nil
		}
		return Appointment{Session: next}, nil

	case models.ActionClientHistory:
		client, found, err := c.findClient(ctx, intent, convCtx)
		if err != nil || !found {
			return noClient(intent), err
		}
		sessions, err := c.backend.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		sessions = forClient(sessions, client.ID)
		if intent.Time != nil && intent.Time.Kind() == models.TimeLastSession {
			last, ok := lastSession(sessions, now)
			if !ok {
				return NoData{Reason: "no past sessions with " + client.Name}, nil
			}
			sessions = []models.Session{last}
		} else if start, end, ok := window(intent.Time, now); ok {
			sessions = between(sessions, start, end)
		}
		return History{Client: client, Sessions: sessions}, nil

	case models.ActionClientInfo:
		client, found, err := c.findClient(ctx, intent, convCtx)
		if err != nil || !found {
			return noClient(intent), err
		}
		sessions, err := c.backend.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		info := ClientInfo{Client: client}
		if next, ok := nextSession(forClient(sessions, client.ID), now); ok {
			info.Upcoming = &next
		}
		return info, nil

	case models.ActionListClients:
		clients, err := c.backend.ListClients(ctx)
		if err != nil {
			return nil, err
		}
		return ClientList{Clients: clients}, nil

	case models.ActionSessionNotes:
		client, found, err := c.findClient(ctx, intent, convCtx)
		if err != nil || !found {
			return noClient(intent), err
		}
		notes, err := c.backend.ListNotesForClient(ctx, client.ID)
		if err != nil {
			return nil, err
		}
		if start, end, ok := window(intent.Time, now); ok {
			kept := notes[:0:0]
			for _, n := range notes {
				if !n.CreatedAt.Before(start) && n.CreatedAt.Before(end) {
					kept = append(kept, n)
				}
			}
			notes = kept
		}
		return Notes{Client: client, Notes: notes}, nil

	case models.ActionSessionPrep:
		return c.sessionPrep(ctx, intent, convCtx, now)

	case models.ActionCreateReminder:
		rec := models.ReminderRecord{Text: strings.TrimSpace(utterance), CreatedAt: now}
		if intent.EntityName != "" || intent.EntityID != "" {
			client, found, err := c.findClient(ctx, intent, convCtx)
			if err != nil {
				return nil, err
			}
			if found {
				rec.ClientID = client.ID
			}
		}
		if start, _, ok := window(intent.Time, now); ok {
			due := start
			rec.DueAt = &due
		}
		created, err := c.backend.CreateReminderRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		return ReminderCreated{Record: created}, nil

	case models.ActionDailySummary:
		return c.dailySummary(ctx, intent, now)
	}

	return NoData{Reason: "request not understood"}, nil
}

func (c *Controller) sessionPrep(ctx context.Context, intent models.DetectedIntent, convCtx models.ConversationContext, now time.Time) (Result, error) {
	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	clientID := ""
	if intent.EntityName != "" || intent.EntityID != "" || convCtx.LastClientName != "" {
		client, found, err := c.findClient(ctx, intent, convCtx)
		if err != nil {
			return nil, err
		}
		if found {
			clientID = client.ID
			sessions = forClient(sessions, client.ID)
		} else if intent.EntityName != "" {
			return noClient(intent), nil
		}
	}

	var target models.Session
	var ok bool
	if intent.EntityType == "session" && intent.EntityID != "" {
		for _, s := range sessions {
			if s.ID == intent.EntityID {
				target, ok = s, true
				break
			}
		}
	} else if start, end, inWindow := window(intent.Time, now); inWindow {
		target, ok = nextSession(between(sessions, start, end), start)
	} else {
		target, ok = nextSession(sessions, now)
	}
	if !ok {
		return NoData{Reason: "no session to prepare for"}, nil
	}

	prep, err := c.backend.NextSessionPrep(ctx, target.ID, clientID)
	if errors.Is(err, errs.ErrNotFound) {
		prep, err = c.backend.GenerateSessionPrep(ctx, target.ID)
	}
	if err != nil {
		return nil, err
	}
	return Prep{Session: target, Prep: prep}, nil
}

func (c *Controller) dailySummary(ctx context.Context, intent models.DetectedIntent, now time.Time) (Result, error) {
	start, end, ok := window(intent.Time, now)
	if !ok {
		start, end, _ = todayWindow(now)
	}

	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	var completed []models.Session
	for _, s := range between(sessions, start, end) {
		if s.Completed() {
			completed = append(completed, s)
		}
	}

	var reminders []models.VoiceReminder
	if c.reminders != nil {
		all, err := c.reminders.All()
		if err != nil {
			return nil, fmt.Errorf("load reminders: %w", err)
		}
		for _, r := range all {
			if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
				reminders = append(reminders, r)
			}
		}
	}

	if len(completed) == 0 && len(reminders) == 0 {
		return NoData{Reason: "no completed sessions or reminders for the day"}, nil
	}
	text, err := c.brain.SummarizeDay(ctx, reminders, completed)
	if err != nil {
		return nil, err
	}
	return Summary{Text: text}, nil
}

// findClient resolves the client an intent refers to: by id, then by name,
// then by the client discussed in the previous turn.
func (c *Controller) findClient(ctx context.Context, intent models.DetectedIntent, convCtx models.ConversationContext) (models.Client, bool, error) {
	clients, err := c.backend.ListClients(ctx)
	if err != nil {
		return models.Client{}, false, err
	}
	if intent.EntityID != "" && intent.EntityType != "session" {
		for _, cl := range clients {
			if cl.ID == intent.EntityID {
				return cl, true, nil
			}
		}
	}
	name := intent.EntityName
	if name == "" {
		name = convCtx.LastClientName
	}
	cl, ok := MatchClient(clients, name)
	return cl, ok, nil
}

// MatchClient finds a client by a spoken name. An exact match wins over a
// partial one; a partial match is a full-word match on any part of the name.
func MatchClient(clients []models.Client, name string) (models.Client, bool) {
	query := strings.ToLower(strings.TrimSpace(name))
	query = strings.TrimSuffix(query, "'s")
	if query == "" {
		return models.Client{}, false
	}
	for _, cl := range clients {
		if strings.ToLower(cl.Name) == query {
			return cl, true
		}
	}
	words := strings.Fields(query)
	for _, cl := range clients {
		parts := strings.Fields(strings.ToLower(cl.Name))
		for _, w := range words {
			for _, p := range parts {
				if w == p {
					return cl, true
				}
			}
		}
	}
	return models.Client{}, false
}

func noClient(intent models.DetectedIntent) Result {
	if intent.EntityName == "" {
		return NoData{Reason: "no client named"}
	}
	return NoData{Reason: "no client named " + intent.EntityName}
}

func window(ref *models.TimeReference, now time.Time) (time.Time, time.Time, bool) {
	if ref == nil {
		return time.Time{}, time.Time{}, false
	}
	return ref.Window(now)
}

func todayWindow(now time.Time) (time.Time, time.Time, bool) {
	today, _ := models.NewTimeReference(models.TimeToday)
	return today.Window(now)
}

func between(sessions []models.Session, start, end time.Time) []models.Session {
	out := []models.Session{}
	for _, s := range sessions {
		if !s.StartsAt.Before(start) && s.StartsAt.Before(end) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out
}

func forClient(sessions []models.Session, clientID string) []models.Session {
	out := []models.Session{}
	for _, s := range sessions {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out
}

func nextSession(sessions []models.Session, after time.Time) (models.Session, bool) {
	var best models.Session
	found := false
	for _, s := range sessions {
		if s.StartsAt.Before(after) || s.Status == "cancelled" || s.Completed() {
			continue
		}
		if !found || s.StartsAt.Before(best.StartsAt) {
			best, found = s, true
		}
	}
	return best, found
}

func lastSession(sessions []models.Session, now time.Time) (models.Session, bool) {
	var best models.Session
	found := false
	for _, s := range sessions {
		if !s.StartsAt.Before(now) || s.Status == "cancelled" {
			continue
		}
		if !found || s.StartsAt.After(best.StartsAt) {
			best, found = s, true
		}
	}
	return best, found
}

func sortSessions(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartsAt.Before(sessions[j].StartsAt)
	})
}
