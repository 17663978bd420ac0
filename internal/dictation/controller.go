// Package dictation drives one dictated reminder from microphone to the
// local reminder store.
package dictation

import (
	"context"
	"errors"
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

type State int

const (
	Idle State = iota
	Recording
	Reviewing
	ProcessedSaved
	PlainSaved
	Discarded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Reviewing:
		return "reviewing"
	case ProcessedSaved:
		return "processed_saved"
	case PlainSaved:
		return "plain_saved"
	case Discarded:
		return "discarded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state ends a dictation.
func (s State) Terminal() bool {
	return s == ProcessedSaved || s == PlainSaved || s == Discarded
}

var (
	ErrInvalidTransition = errors.New("invalid dictation transition")
	// ErrDiscarded is returned when the dictation was cancelled or reset
	// while a stop, analysis or save was running.
	ErrDiscarded = errors.New("dictation discarded")
)

// Recorder writes the audio artifact of a take.
type Recorder interface {
	StartRecording(ctx context.Context, nameHint string) (string, error)
	StopRecording() (string, bool)
	CancelRecording()
	Discard(path string)
}

// Transcriber produces the live transcript of a take.
type Transcriber interface {
	StartRecording(ctx context.Context) error
	StopRecording()
	Transcript() string
}

// Processor analyses a finished transcription.
type Processor interface {
	ProcessReminder(ctx context.Context, transcription string) (models.ProcessedReminder, error)
}

type Controller struct {
	recorder    Recorder
	transcriber Transcriber
	processor   Processor
	store       storage.ReminderStore
	logger      *zap.Logger
	now         func() time.Time

	mu        sync.Mutex
	state     State
	reminder  *models.VoiceReminder
	clientID  string
	sessionID string
	gen       uint64

	feed events.Feed[State]
}

func NewController(recorder Recorder, transcriber Transcriber, processor Processor, store storage.ReminderStore, logger *zap.Logger) *Controller {
	return &Controller{
		recorder:    recorder,
		transcriber: transcriber,
		processor:   processor,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source used for reminder timestamps.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

func (c *Controller) Subscribe(fn func(State)) func() {
	return c.feed.Subscribe(fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reminder returns the reminder under review or last saved.
func (c *Controller) Reminder() (models.VoiceReminder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reminder == nil {
		return models.VoiceReminder{}, false
	}
	return *c.reminder, true
}

// Link attaches the next (or current) reminder to a client and session.
func (c *Controller) Link(clientID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = clientID
	c.sessionID = sessionID
	if c.reminder != nil && c.state == Reviewing {
		c.reminder.ClientID = clientID
		c.reminder.SessionID = sessionID
	}
}

// Start begins recording and live transcription together. If either fails
// to start, whatever did start is stopped and the error is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, state)
	}
	gen := c.gen
	c.mu.Unlock()

	if _, err := c.recorder.StartRecording(ctx, "dictation"); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	if err := c.transcriber.StartRecording(ctx); err != nil {
		c.recorder.CancelRecording()
		return fmt.Errorf("start transcription: %w", err)
	}

	if !c.transitionFrom(gen, Recording, nil) {
		c.transcriber.StopRecording()
		c.recorder.CancelRecording()
		return fmt.Errorf("%w: controller moved while starting", ErrInvalidTransition)
	}
	c.logger.Info("Dictation started")
	return nil
}

// Stop ends the take. An empty transcript discards the audio and returns
// to Idle; otherwise the reminder is held for review.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != Recording {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, state)
	}
	gen := c.gen
	clientID, sessionID := c.clientID, c.sessionID
	c.mu.Unlock()

	c.transcriber.StopRecording()
	path, _ := c.recorder.StopRecording()

	text := strings.TrimSpace(c.transcriber.Transcript())
	if text == "" {
		c.recorder.Discard(path)
		if c.transitionFrom(gen, Idle, nil) {
			c.logger.Info("Empty dictation discarded")
		}
		return nil
	}

	ok := c.transitionFrom(gen, Reviewing, &models.VoiceReminder{
		ID:            uuid.NewString(),
		CreatedAt:     c.now(),
		Transcription: text,
		ClientID:      clientID,
		SessionID:     sessionID,
		FollowUps:     []string{},
		Status:        models.ReminderPending,
		AudioPath:     path,
	})
	if !ok {
		// cancelled while stopping
		c.recorder.Discard(path)
		return ErrDiscarded
	}
	return nil
}

// ProcessAndSave analyses the reminder under review and saves it. On
// failure the controller stays in Reviewing so the caller can retry or
// save it plain.
func (c *Controller) ProcessAndSave(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Reviewing || c.reminder == nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: process from %s", ErrInvalidTransition, state)
	}
	gen := c.gen
	r := *c.reminder
	c.reminder.Status = models.ReminderProcessing
	c.mu.Unlock()

	processed, err := c.processor.ProcessReminder(ctx, r.Transcription)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if err != nil {
		c.reminder.Status = models.ReminderPending
		c.mu.Unlock()
		c.logger.Warn("Reminder processing failed", zap.Error(err), zap.String("reminder_id", r.ID))
		return fmt.Errorf("process reminder: %w", err)
	}
	r = *c.reminder
	c.mu.Unlock()

	r.ApplyProcessing(processed, c.now())
	return c.save(gen, r, ProcessedSaved)
}

// SavePlain saves the reminder under review without analysis.
func (c *Controller) SavePlain() error {
	c.mu.Lock()
	if c.state != Reviewing || c.reminder == nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: save from %s", ErrInvalidTransition, state)
	}
	gen := c.gen
	r := *c.reminder
	c.mu.Unlock()

	r.Status = models.ReminderTranscribed
	r.FollowUps = []string{}
	return c.save(gen, r, PlainSaved)
}

// save appends r and moves to next. The lock is held across the generation
// check and the append so a concurrent Cancel or Reset either happens first
// and nothing is written, or waits and finds the reminder saved.
func (c *Controller) save(gen uint64, r models.VoiceReminder, next State) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if err := c.store.Append(r); err != nil {
		if c.reminder != nil {
			c.reminder.Status = models.ReminderPending
		}
		c.mu.Unlock()
		return fmt.Errorf("save reminder: %w", err)
	}
	c.setLocked(next, &r)
	c.mu.Unlock()
	c.feed.Publish(next)

	c.logger.Info("Reminder saved",
		zap.String("reminder_id", r.ID),
		zap.String("status", string(r.Status)),
		zap.String("priority", string(r.Priority)))
	return nil
}

// Cancel abandons the dictation from any non-terminal state. Capture is
// stopped, the audio is deleted and nothing is saved.
func (c *Controller) Cancel() {
	c.mu.Lock()
	state := c.state
	if state != Recording && state != Reviewing {
		c.mu.Unlock()
		return
	}
	var path string
	if c.reminder != nil {
		path = c.reminder.AudioPath
	}
	// claim the generation before letting go of the lock so an in-flight
	// save sees the dictation as discarded
	c.setLocked(Discarded, nil)
	c.mu.Unlock()

	if state == Recording {
		c.transcriber.StopRecording()
		c.recorder.CancelRecording()
	} else {
		c.recorder.Discard(path)
	}
	c.feed.Publish(Discarded)
	c.logger.Info("Dictation cancelled", zap.Stringer("from", state))
}

// Reset returns to Idle from Reviewing or a terminal state. A reminder
// still under review is dropped with its audio.
func (c *Controller) Reset() error {
	c.mu.Lock()
	state := c.state
	switch {
	case state == Idle:
		c.mu.Unlock()
		return nil
	case state == Reviewing, state.Terminal():
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, state)
	}
	var path string
	if state == Reviewing && c.reminder != nil {
		path = c.reminder.AudioPath
	}
	c.setLocked(Idle, nil)
	c.mu.Unlock()

	if path != "" {
		c.recorder.Discard(path)
	}
	c.feed.Publish(Idle)
	return nil
}

// transitionFrom moves to next only if nothing else moved the controller
// since gen was read.
func (c *Controller) transitionFrom(gen uint64, next State, r *models.VoiceReminder) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.setLocked(next, r)
	c.mu.Unlock()
	c.feed.Publish(next)
	return true
}

func (c *Controller) setLocked(next State, r *models.VoiceReminder) {
	c.state = next
	c.reminder = r
	c.gen++
}
