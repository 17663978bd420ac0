package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/voicememo/internal/models"
	"go.uber.org/zap"
)

const assistantRole = `You are a concise, warm scheduling assistant for a licensed therapist.
You never invent appointments, clients or notes. Keep clinical details private and brief.`

// ClassifyIntent reads the user's goal from one utterance. Provider errors
// are returned; an undecodable reply becomes the unknown intent.
func (g *Gateway) ClassifyIntent(ctx context.Context, utterance string, convCtx models.ConversationContext, recent []models.Message) (models.DetectedIntent, error) {
	now := g.now()
	actions := make([]string, len(models.Actions))
	for i, a := range models.Actions {
		actions[i] = string(a)
	}

	system := `You classify requests sent to a therapist's scheduling assistant.
Reply with a single JSON object and nothing else.`

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s (%s).\n", now.Format(time.DateOnly), now.Weekday())
	fmt.Fprintf(&b, "Known actions: %s, unknown.\n", strings.Join(actions, ", "))
	b.WriteString(`Time reference types: today, tomorrow, this_week, next_week, specific_date (needs "date"), date_range (needs "start" and "end"), relative (needs "offset_days"), last_session.
Return:
{
    "action": "one_of_the_actions",
    "entity_type": "client" | "session" | null,
    "entity_id": "id or null",
    "entity_name": "client name or null",
    "time_reference": {"type": "...", "date": "YYYY-MM-DD", "start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "offset_days": 0} | null
}
`)
	if convCtx.LastIntent != nil {
		fmt.Fprintf(&b, "Previous intent: %s.\n", convCtx.LastIntent.Action)
	}
	if convCtx.LastClientName != "" {
		fmt.Fprintf(&b, "Last client mentioned: %s. Resolve pronouns like \"she\" or \"they\" to this client.\n", convCtx.LastClientName)
	}
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
	}
	fmt.Fprintf(&b, "\nRequest: %s", utterance)

	reply, err := g.SendPrompt(ctx, system, b.String())
	if err != nil {
		return models.UnknownIntent(), err
	}

	intent := ParseIntent(reply, now)
	if intent.Action == models.ActionUnknown {
		g.logger.Debug("Intent classified as unknown", zap.String("response", reply))
	}
	return intent, nil
}

// GenerateResponse writes the spoken-style reply for an executed intent.
// data is the plain-text rendering of whatever the intent fetched.
func (g *Gateway) GenerateResponse(ctx context.Context, utterance string, intent models.DetectedIntent, data string, convCtx models.ConversationContext) (string, error) {
	system := assistantRole + `
Answer in one to three short sentences suitable for being read aloud. No markdown, no lists.`

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n", g.now().Format("Monday, January 2 2006"))
	fmt.Fprintf(&b, "User said: %s\n", utterance)
	fmt.Fprintf(&b, "Detected action: %s\n", intent.Action)
	if intent.EntityName != "" {
		fmt.Fprintf(&b, "About: %s\n", intent.EntityName)
	}
	if intent.Time != nil {
		fmt.Fprintf(&b, "Time frame: %s\n", intent.Time)
	}
	if convCtx.LastClientName != "" {
		fmt.Fprintf(&b, "Client discussed earlier: %s\n", convCtx.LastClientName)
	}
	if strings.TrimSpace(data) == "" {
		b.WriteString("Retrieved data: none. Say so plainly and suggest what the user could ask instead.\n")
	} else {
		fmt.Fprintf(&b, "Retrieved data:\n%s\n", data)
	}

	reply, err := g.SendPrompt(ctx, system, b.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// ExtractFollowUps lists the follow-up actions mentioned in a note.
func (g *Gateway) ExtractFollowUps(ctx context.Context, note string) ([]string, error) {
	system := assistantRole + "\nReply with a JSON array of strings and nothing else."
	user := fmt.Sprintf(`List every concrete follow-up action in this note, each as a short imperative phrase.
Return [] when there are none.

Note: %s`, note)

	reply, err := g.SendPrompt(ctx, system, user)
	if err != nil {
		return nil, err
	}
	items, err := decodeStringArray(reply)
	if err != nil {
		g.logger.Warn("Failed to parse follow-ups", zap.Error(err), zap.String("response", reply))
		return []string{}, nil
	}
	return items, nil
}

// CategorizeNote picks one of the fixed categories for a note.
func (g *Gateway) CategorizeNote(ctx context.Context, note string) (models.Category, error) {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	system := assistantRole + "\nReply with a JSON object and nothing else."
	user := fmt.Sprintf(`Pick the single best category for this note from: %s.
Return {"category": "..."}.

Note: %s`, strings.Join(names, ", "), note)

	reply, err := g.SendPrompt(ctx, system, user)
	if err != nil {
		return models.CategoryGeneral, err
	}
	var out struct {
		Category string `json:"category"`
	}
	if err := decodeObject(reply, &out); err != nil {
		g.logger.Warn("Failed to parse category", zap.Error(err), zap.String("response", reply))
		return models.CategoryGeneral, nil
	}
	return models.ParseCategory(out.Category), nil
}

// AssessPriority rates a note's urgency. riskLevel, when known, is the
// client's recorded clinical risk and should raise the priority.
func (g *Gateway) AssessPriority(ctx context.Context, note, riskLevel string) (models.Priority, error) {
	system := assistantRole + "\nReply with a JSON object and nothing else."
	var b strings.Builder
	b.WriteString(`Rate the urgency of this note as one of: low, medium, high, urgent.
Anything suggesting risk of harm is urgent.
Return {"priority": "..."}.
`)
	if riskLevel != "" {
		fmt.Fprintf(&b, "The client's recorded risk level is %s.\n", riskLevel)
	}
	fmt.Fprintf(&b, "\nNote: %s", note)

	reply, err := g.SendPrompt(ctx, system, b.String())
	if err != nil {
		return models.PriorityMedium, err
	}
	var out struct {
		Priority string `json:"priority"`
	}
	if err := decodeObject(reply, &out); err != nil {
		g.logger.Warn("Failed to parse priority", zap.Error(err), zap.String("response", reply))
		return models.PriorityMedium, nil
	}
	return models.ParsePriority(out.Priority), nil
}

// ProcessReminder analyses a dictated reminder in one call.
func (g *Gateway) ProcessReminder(ctx context.Context, transcription string) (models.ProcessedReminder, error) {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	system := assistantRole + "\nReply with a single JSON object and nothing else."
	user := fmt.Sprintf(`Analyze this dictated reminder and return:
{
    "follow_ups": ["short imperative follow-up", ...],
    "category": "one of %s",
    "priority": "low | medium | high | urgent",
    "key_entities": ["people, medications, places", ...],
    "action_items": ["concrete task", ...]
}

Reminder: %s`, strings.Join(names, ", "), transcription)

	reply, err := g.SendPrompt(ctx, system, user)
	if err != nil {
		return models.ProcessedReminder{}, err
	}

	var raw struct {
		FollowUps   []string `json:"follow_ups"`
		Category    string   `json:"category"`
		Priority    string   `json:"priority"`
		KeyEntities []string `json:"key_entities"`
		ActionItems []string `json:"action_items"`
	}
	if err := decodeObject(reply, &raw); err != nil {
		g.logger.Warn("Failed to parse reminder analysis", zap.Error(err), zap.String("response", reply))
		return models.DefaultProcessedReminder(), nil
	}
	return models.ProcessedReminder{
		FollowUps:   cleanList(raw.FollowUps),
		Category:    models.ParseCategory(raw.Category),
		Priority:    models.ParsePriority(raw.Priority),
		KeyEntities: cleanList(raw.KeyEntities),
		ActionItems: cleanList(raw.ActionItems),
	}, nil
}

// SummarizeDay narrates the day's reminders and completed sessions.
func (g *Gateway) SummarizeDay(ctx context.Context, reminders []models.VoiceReminder, sessions []models.Session) (string, error) {
	system := assistantRole + "\nWrite a short spoken end-of-day summary, at most four sentences. Plain text only."

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", g.now().Format("Monday, January 2 2006"))
	fmt.Fprintf(&b, "Completed sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&b, "- %s with %s\n", s.StartsAt.Format(time.Kitchen), s.ClientName)
	}
	fmt.Fprintf(&b, "Reminders (%d):\n", len(reminders))
	for _, r := range reminders {
		line := r.Transcription
		if r.Priority != "" {
			line = fmt.Sprintf("[%s] %s", r.Priority, line)
		}
		fmt.Fprintf(&b, "- %s\n", line)
		for _, f := range r.FollowUps {
			fmt.Fprintf(&b, "  follow-up: %s\n", f)
		}
	}

	reply, err := g.SendPrompt(ctx, system, b.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
