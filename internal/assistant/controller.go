// Package assistant runs the conversational assistant: it classifies each
// utterance, fetches what was asked for and answers in a speakable reply.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/voicememo/internal/events"
	"github.com/xaenox/voicememo/internal/models"
	"github.com/xaenox/voicememo/internal/storage"
	"go.uber.org/zap"
)

// recentTurns is how many earlier messages go into the classification prompt.
const recentTurns = 6

// Brain is the language-model side of the assistant.
type Brain interface {
	ClassifyIntent(ctx context.Context, utterance string, convCtx models.ConversationContext, recent []models.Message) (models.DetectedIntent, error)
	GenerateResponse(ctx context.Context, utterance string, intent models.DetectedIntent, data string, convCtx models.ConversationContext) (string, error)
	SummarizeDay(ctx context.Context, reminders []models.VoiceReminder, sessions []models.Session) (string, error)
}

// Speaker reads replies aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Controller struct {
	brain     Brain
	backend   storage.Backend
	reminders storage.ReminderStore
	speaker   Speaker
	logger    *zap.Logger
	now       func() time.Time

	// turn serialises Submit calls; mu guards conv.
	turn sync.Mutex
	mu   sync.Mutex
	conv models.Conversation

	feed events.Feed[models.Conversation]
}

// NewController builds an assistant. reminders and speaker may be nil: the
// daily summary then covers sessions only, and replies are not spoken.
func NewController(brain Brain, backend storage.Backend, reminders storage.ReminderStore, speaker Speaker, logger *zap.Logger) *Controller {
	c := &Controller{
		brain:     brain,
		backend:   backend,
		reminders: reminders,
		speaker:   speaker,
		logger:    logger,
		now:       time.Now,
	}
	c.conv = models.NewConversation(c.now())
	return c
}

// WithClock overrides the time source used for windows and timestamps.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	c.mu.Lock()
	c.conv.StartedAt = now()
	c.mu.Unlock()
	return c
}

// Subscribe observes the conversation after every change.
func (c *Controller) Subscribe(fn func(models.Conversation)) func() {
	return c.feed.Subscribe(fn)
}

// Conversation returns a snapshot of the running conversation.
func (c *Controller) Conversation() models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit handles one utterance and returns the assistant's reply. Blank
// input is ignored and reported with ok false. Every failure along the way
// becomes an apology reply, which is spoken like any other. A reply whose
// conversation was cleared during the turn is returned but neither recorded
// nor spoken.
func (c *Controller) Submit(ctx context.Context, text string) (reply models.Message, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, false
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	if !c.conv.Active {
		c.conv = models.NewConversation(c.now())
	}
	convID := c.conv.ID
	recent := append([]models.Message{}, c.conv.Recent(recentTurns)...)
	convCtx := c.conv.Context
	c.conv.Messages = append(c.conv.Messages, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Text:      text,
		Timestamp: c.now(),
	})
	c.publishLocked()

	answer, intent, res, err := c.answer(ctx, text, convCtx, recent)
	if err != nil {
		c.logger.Error("Assistant turn failed", zap.Error(err), zap.String("utterance", text))
		answer = apology(err)
	}

	c.mu.Lock()
	reply = models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Text:      answer,
		Timestamp: c.now(),
	}
	if c.conv.ID != convID {
		// cleared mid-turn; the reply belongs to the old conversation
		c.mu.Unlock()
		c.logger.Debug("Dropping reply for cleared conversation", zap.String("conversation_id", convID))
		return reply, true
	}
	if intent != nil {
		reply.Intent = intent
		c.conv.Context.LastIntent = intent
		if name := clientName(res); name != "" {
			c.conv.Context.LastClientName = name
		} else if intent.EntityName != "" {
			c.conv.Context.LastClientName = intent.EntityName
		}
	}
	c.conv.Messages = append(c.conv.Messages, reply)
	c.publishLocked()

	if c.speaker != nil {
		if err := c.speaker.Speak(ctx, answer); err != nil {
			c.logger.Warn("Failed to speak reply", zap.Error(err))
		}
	}
	return reply, true
}

// answer runs classify, execute and generate. intent is nil only when
// classification itself failed.
func (c *Controller) answer(ctx context.Context, text string, convCtx models.ConversationContext, recent []models.Message) (string, *models.DetectedIntent, Result, error) {
	intent, err := c.brain.ClassifyIntent(ctx, text, convCtx, recent)
	if err != nil {
		return "", nil, nil, fmt.Errorf("classify: %w", err)
	}
	if intent.Time == nil {
		if ref, ok := InferTimeReference(text); ok {
			intent.Time = &ref
		}
	}
	c.logger.Debug("Intent detected",
		zap.String("action", string(intent.Action)),
		zap.String("entity", intent.EntityName),
		zap.String("time", describeTime(intent.Time)))

	res, err := c.Execute(ctx, intent, text, convCtx)
	if err != nil {
		return "", &intent, nil, fmt.Errorf("fetch %s: %w", intent.Action, err)
	}

	reply, err := c.brain.GenerateResponse(ctx, text, intent, Describe(res), convCtx)
	if err != nil {
		return "", &intent, res, fmt.Errorf("reply: %w", err)
	}
	if reply == "" {
		if s, ok := res.(Summary); ok {
			reply = s.Text
		} else {
			reply = "I don't have an answer for that right now."
		}
	}
	return reply, &intent, res, nil
}

// Clear drops messages and context and starts a new conversation.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.conv = models.NewConversation(c.now())
	c.publishLocked()
}

// End closes the conversation. The next Submit starts a new one.
func (c *Controller) End() {
	c.mu.Lock()
	if !c.conv.Active {
		c.mu.Unlock()
		return
	}
	ended := c.now()
	c.conv.EndedAt = &ended
	c.conv.Active = false
	c.publishLocked()
}

// publishLocked releases mu before notifying subscribers.
func (c *Controller) publishLocked() {
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.feed.Publish(snap)
}

func (c *Controller) snapshotLocked() models.Conversation {
	snap := c.conv
	snap.Messages = append([]models.Message{}, c.conv.Messages...)
	return snap
}

func apology(err error) string {
	return fmt.Sprintf("Sorry, something went wrong while handling that: %v. Please try again.", err)
}

func describeTime(ref *models.TimeReference) string {
	if ref == nil {
		return "none"
	}
	return ref.String()
}
