package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xaenox/voicememo/internal/models"
)

const prepNoteLimit = 3

// buildPrep assembles session prep from the client's latest notes and the
// reminders still open for them.
func buildPrep(sess models.Session, notes []models.Note, reminders []models.ReminderRecord) models.SessionPrep {
	latest := append([]models.Note{}, notes...)
	sort.Slice(latest, func(i, j int) bool {
		return latest[i].CreatedAt.After(latest[j].CreatedAt)
	})
	if len(latest) > prepNoteLimit {
		latest = latest[:prepNoteLimit]
	}

	p := models.SessionPrep{
		SessionID:     sess.ID,
		ClientID:      sess.ClientID,
		FocusAreas:    []string{},
		OpenFollowUps: []string{},
	}
	if len(latest) == 0 {
		p.Summary = fmt.Sprintf("No earlier notes for %s.", sess.ClientName)
	} else {
		p.Summary = fmt.Sprintf("Latest note for %s (%s): %s",
			sess.ClientName, latest[0].CreatedAt.Format("Jan 2"), strings.TrimSpace(latest[0].Content))
	}
	for _, n := range latest {
		if line := firstLine(n.Content); line != "" {
			p.FocusAreas = append(p.FocusAreas, line)
		}
	}
	for _, r := range reminders {
		if r.ClientID == sess.ClientID {
			p.OpenFollowUps = append(p.OpenFollowUps, r.Text)
		}
	}
	return p
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
