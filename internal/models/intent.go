package models

import (
	"fmt"
	"time"
)

// IntentAction is the classified goal of one utterance
type IntentAction string

const (
	ActionGetSchedule     IntentAction = "get_schedule"
	ActionNextAppointment IntentAction = "next_appointment"
	ActionClientHistory   IntentAction = "client_history"
	ActionClientInfo      IntentAction = "client_info"
	ActionListClients     IntentAction = "list_clients"
	ActionSessionNotes    IntentAction = "session_notes"
	ActionSessionPrep     IntentAction = "session_prep"
	ActionCreateReminder  IntentAction = "create_reminder"
	ActionDailySummary    IntentAction = "daily_summary"
	ActionUnknown         IntentAction = "unknown"
)

// Actions lists the known actions, excluding unknown
var Actions = []IntentAction{
	ActionGetSchedule,
	ActionNextAppointment,
	ActionClientHistory,
	ActionClientInfo,
	ActionListClients,
	ActionSessionNotes,
	ActionSessionPrep,
	ActionCreateReminder,
	ActionDailySummary,
}

// ParseAction maps a model-provided action name onto a known action
func ParseAction(s string) IntentAction {
	for _, a := range Actions {
		if string(a) == s {
			return a
		}
	}
	return ActionUnknown
}

// DetectedIntent is the structured reading of one user utterance
type DetectedIntent struct {
	Action     IntentAction
	EntityType string
	EntityID   string
	EntityName string
	Time       *TimeReference
}

// UnknownIntent is the safe default when classification fails
func UnknownIntent() DetectedIntent {
	return DetectedIntent{Action: ActionUnknown}
}

// TimeKind tags the active variant of a TimeReference
type TimeKind string

const (
	TimeToday        TimeKind = "today"
	TimeTomorrow     TimeKind = "tomorrow"
	TimeThisWeek     TimeKind = "this_week"
	TimeNextWeek     TimeKind = "next_week"
	TimeSpecificDate TimeKind = "specific_date"
	TimeDateRange    TimeKind = "date_range"
	TimeRelative     TimeKind = "relative"
	TimeLastSession  TimeKind = "last_session"
)

// TimeReference is a tagged time expression. Only the constructors below
// create values, so a specific reference always has a date and a range
// always has both ends.
type TimeReference struct {
	kind   TimeKind
	date   time.Time
	end    time.Time
	offset int
}

// NewTimeReference builds one of the date-less kinds.
func NewTimeReference(kind TimeKind) (TimeReference, error) {
	switch kind {
	case TimeToday, TimeTomorrow, TimeThisWeek, TimeNextWeek, TimeLastSession:
		return TimeReference{kind: kind}, nil
	}
	return TimeReference{}, fmt.Errorf("time kind %q needs explicit dates", kind)
}

// SpecificDate references a single day
func SpecificDate(d time.Time) TimeReference {
	return TimeReference{kind: TimeSpecificDate, date: d}
}

// DateRange references an inclusive day range; the ends are swapped if reversed
func DateRange(start, end time.Time) TimeReference {
	if end.Before(start) {
		start, end = end, start
	}
	return TimeReference{kind: TimeDateRange, date: start, end: end}
}

// RelativeDays references the day offset days from today (negative for the past)
func RelativeDays(offset int) TimeReference {
	return TimeReference{kind: TimeRelative, offset: offset}
}

func (t TimeReference) Kind() TimeKind { return t.kind }

// Date returns the concrete date of a specific reference or the start of a range
func (t TimeReference) Date() (time.Time, bool) {
	if t.kind == TimeSpecificDate || t.kind == TimeDateRange {
		return t.date, true
	}
	return time.Time{}, false
}

// End returns the last day of a range reference
func (t TimeReference) End() (time.Time, bool) {
	if t.kind == TimeDateRange {
		return t.end, true
	}
	return time.Time{}, false
}

func (t TimeReference) Offset() int { return t.offset }

// Window returns the half-open [start, end) interval the reference covers
// relative to now. Weeks start on Monday. last_session has no window.
func (t TimeReference) Window(now time.Time) (time.Time, time.Time, bool) {
	today := StartOfDay(now)
	switch t.kind {
	case TimeToday:
		return today, today.AddDate(0, 0, 1), true
	case TimeTomorrow:
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2), true
	case TimeThisWeek:
		start := startOfWeek(today)
		return start, start.AddDate(0, 0, 7), true
	case TimeNextWeek:
		start := startOfWeek(today).AddDate(0, 0, 7)
		return start, start.AddDate(0, 0, 7), true
	case TimeSpecificDate:
		d := StartOfDay(t.date.In(now.Location()))
		return d, d.AddDate(0, 0, 1), true
	case TimeDateRange:
		s := StartOfDay(t.date.In(now.Location()))
		e := StartOfDay(t.end.In(now.Location()))
		return s, e.AddDate(0, 0, 1), true
	case TimeRelative:
		d := today.AddDate(0, 0, t.offset)
		return d, d.AddDate(0, 0, 1), true
	}
	return time.Time{}, time.Time{}, false
}

func (t TimeReference) String() string {
	switch t.kind {
	case TimeSpecificDate:
		return fmt.Sprintf("%s(%s)", t.kind, t.date.Format(time.DateOnly))
	case TimeDateRange:
		return fmt.Sprintf("%s(%s..%s)", t.kind, t.date.Format(time.DateOnly), t.end.Format(time.DateOnly))
	case TimeRelative:
		return fmt.Sprintf("%s(%+d)", t.kind, t.offset)
	}
	return string(t.kind)
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(day time.Time) time.Time {
	shift := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -shift)
}
