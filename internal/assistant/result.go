package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/voicememo/internal/models"
)

// Result is what executing one intent produced. The set of variants is
// closed; Describe switches over all of them.
type Result interface {
	result()
}

// NoData means the intent matched nothing, or named nothing it could use.
type NoData struct {
	Reason string
}

type Schedule struct {
	Start, End time.Time
	Sessions   []models.Session
}

type Appointment struct {
	Session models.Session
}

type ClientInfo struct {
	Client   models.Client
	Upcoming *models.Session
}

type ClientList struct {
	Clients []models.Client
}

type History struct {
	Client   models.Client
	Sessions []models.Session
}

type Notes struct {
	Client models.Client
	Notes  []models.Note
}

type Prep struct {
	Session models.Session
	Prep    models.SessionPrep
}

type ReminderCreated struct {
	Record models.ReminderRecord
}

type Summary struct {
	Text string
}

func (NoData) result()          {}
func (Schedule) result()        {}
func (Appointment) result()     {}
func (ClientInfo) result()      {}
func (ClientList) result()      {}
func (History) result()         {}
func (Notes) result()           {}
func (Prep) result()            {}
func (ReminderCreated) result() {}
func (Summary) result()         {}

const (
	dayFormat  = "Monday, Jan 2"
	timeFormat = "3:04 PM"
)

// Describe renders a result as the plain-text data block handed to reply
// generation. NoData renders empty.
func Describe(r Result) string {
	var b strings.Builder
	switch r := r.(type) {
	case NoData:
		return ""
	case Schedule:
		fmt.Fprintf(&b, "Sessions from %s to %s: %d\n",
			r.Start.Format(dayFormat), r.End.Add(-time.Nanosecond).Format(dayFormat), len(r.Sessions))
		for _, s := range r.Sessions {
			writeSession(&b, s)
		}
	case Appointment:
		b.WriteString("Next appointment:\n")
		writeSession(&b, r.Session)
	case ClientInfo:
		fmt.Fprintf(&b, "Client: %s\n", r.Client.Name)
		if r.Client.RiskLevel != "" {
			fmt.Fprintf(&b, "Risk level: %s\n", r.Client.RiskLevel)
		}
		if r.Client.Notes != "" {
			fmt.Fprintf(&b, "Notes: %s\n", r.Client.Notes)
		}
		if !r.Client.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "Client since: %s\n", r.Client.CreatedAt.Format("January 2006"))
		}
		if r.Upcoming != nil {
			b.WriteString("Next session:\n")
			writeSession(&b, *r.Upcoming)
		}
	case ClientList:
		fmt.Fprintf(&b, "Clients (%d):\n", len(r.Clients))
		for _, c := range r.Clients {
			fmt.Fprintf(&b, "- %s\n", c.Name)
		}
	case History:
		fmt.Fprintf(&b, "Sessions with %s (%d):\n", r.Client.Name, len(r.Sessions))
		for _, s := range r.Sessions {
			writeSession(&b, s)
		}
	case Notes:
		fmt.Fprintf(&b, "Notes for %s (%d):\n", r.Client.Name, len(r.Notes))
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- %s: %s\n", n.CreatedAt.Format("Jan 2"), strings.TrimSpace(n.Content))
		}
	case Prep:
		b.WriteString("Prep for session:\n")
		writeSession(&b, r.Session)
		fmt.Fprintf(&b, "Summary: %s\n", r.Prep.Summary)
		for _, f := range r.Prep.FocusAreas {
			fmt.Fprintf(&b, "Focus: %s\n", f)
		}
		for _, f := range r.Prep.OpenFollowUps {
			fmt.Fprintf(&b, "Open follow-up: %s\n", f)
		}
	case ReminderCreated:
		fmt.Fprintf(&b, "Reminder saved: %s\n", r.Record.Text)
		if r.Record.DueAt != nil {
			fmt.Fprintf(&b, "Due: %s\n", r.Record.DueAt.Format(dayFormat))
		}
	case Summary:
		return r.Text
	}
	return b.String()
}

func writeSession(b *strings.Builder, s models.Session) {
	fmt.Fprintf(b, "- %s at %s with %s", s.StartsAt.Format(dayFormat), s.StartsAt.Format(timeFormat), s.ClientName)
	if s.Location != "" {
		fmt.Fprintf(b, " (%s)", s.Location)
	}
	if s.Status != "" && s.Status != "scheduled" {
		fmt.Fprintf(b, " [%s]", s.Status)
	}
	b.WriteString("\n")
}

// clientName returns the client a result is about, if any.
func clientName(r Result) string {
	switch r := r.(type) {
	case ClientInfo:
		return r.Client.Name
	case History:
		return r.Client.Name
	case Notes:
		return r.Client.Name
	case Appointment:
		return r.Session.ClientName
	case Prep:
		return r.Session.ClientName
	}
	return ""
}
