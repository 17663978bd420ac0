// Package speech turns microphone input into a live transcript and a level
// signal, and transcribes finished audio files.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaenox/voicememo/internal/audio"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/events"
	"go.uber.org/zap"
)

// State is the published capture state.
type State struct {
	Transcript string
	Final      bool
	Level      float64
	Recording  bool
}

// Capture streams microphone audio into a recognizer. All state changes
// coming from the audio pipeline are applied on the dispatcher.
type Capture struct {
	session    *audio.Session
	recognizer Recognizer
	auth       Authorizer
	dispatcher events.Dispatcher
	locale     string
	logger     *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	task       Task
	release    func()
	authorized bool

	feed events.Feed[State]
}

func NewCapture(session *audio.Session, recognizer Recognizer, auth Authorizer, dispatcher events.Dispatcher, locale string, logger *zap.Logger) *Capture {
	if auth == nil {
		auth = AlwaysAuthorized
	}
	if locale == "" {
		locale = "en-US"
	}
	return &Capture{
		session:    session,
		recognizer: recognizer,
		auth:       auth,
		dispatcher: dispatcher,
		locale:     locale,
		logger:     logger,
	}
}

// Subscribe observes every state change.
func (c *Capture) Subscribe(fn func(State)) func() {
	return c.feed.Subscribe(fn)
}

// State returns a snapshot of the capture state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the current (or final) transcript.
func (c *Capture) Transcript() string {
	return c.State().Transcript
}

// Authorize reports whether recognition is permitted. A grant is remembered;
// a denial is asked again next time.
func (c *Capture) Authorize(ctx context.Context) bool {
	c.mu.Lock()
	if c.authorized {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	ok, err := c.auth.Authorize(ctx)
	if err != nil {
		c.logger.Warn("Speech authorization failed", zap.Error(err))
		return false
	}
	c.mu.Lock()
	c.authorized = ok
	c.mu.Unlock()
	return ok
}

// StartRecording resets the transcript and begins live recognition.
func (c *Capture) StartRecording(ctx context.Context) error {
	if !c.Authorize(ctx) {
		return errs.ErrPermissionDenied
	}
	if c.recognizer == nil || !c.recognizer.Available(c.locale) {
		return fmt.Errorf("%w: no recognizer for %s", errs.ErrUnavailable, c.locale)
	}

	c.StopRecording()

	task, err := c.recognizer.Begin(ctx, c.locale)
	if err != nil {
		if errors.Is(err, errs.ErrPermissionDenied) || errors.Is(err, errs.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: start recognition: %v", errs.ErrUnavailable, err)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = State{Recording: true}
	c.task = task
	c.mu.Unlock()

	release, err := c.session.Tap("speech", func(buf audio.Buffer) {
		task.Append(buf)
		level := audio.Level(buf.Samples)
		c.dispatcher.Post(func() { c.applyLevel(gen, level) })
	})
	if err != nil {
		task.Cancel()
		c.mu.Lock()
		if c.generation == gen {
			c.generation++
			c.task = nil
			c.state = State{}
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}

	c.mu.Lock()
	if c.generation == gen {
		c.release = release
		release = nil
	}
	snapshot := c.state
	c.mu.Unlock()
	if release != nil {
		// stopped while the tap was being installed
		release()
		return nil
	}

	go c.consume(gen, task)
	c.logger.Info("Speech capture started", zap.String("locale", c.locale))
	c.feed.Publish(snapshot)
	return nil
}

// StopRecording tears down the audio tap and recognizer synchronously and
// finalizes the transcript. Safe to call repeatedly or without a start.
func (c *Capture) StopRecording() {
	if c.stop(0, "stopped") {
		c.logger.Info("Speech capture stopped")
	}
}

// stop ends generation gen, or whichever generation is current when gen is 0.
func (c *Capture) stop(gen uint64, reason string) bool {
	c.mu.Lock()
	if gen != 0 && gen != c.generation {
		c.mu.Unlock()
		return false
	}
	if !c.state.Recording && c.task == nil && c.release == nil {
		c.mu.Unlock()
		return false
	}
	task, release := c.task, c.release
	c.task, c.release = nil, nil
	c.generation++
	c.state.Recording = false
	c.state.Final = true
	c.state.Level = 0
	snapshot := c.state
	c.mu.Unlock()

	if release != nil {
		release()
	}
	if task != nil {
		task.Cancel()
	}
	c.logger.Debug("Speech transcript finalized",
		zap.String("reason", reason),
		zap.Int("length", len(snapshot.Transcript)))
	c.feed.Publish(snapshot)
	return true
}

func (c *Capture) consume(gen uint64, task Task) {
	for r := range task.Results() {
		c.dispatcher.Post(func() { c.applyResult(gen, r) })
	}
	c.dispatcher.Post(func() { c.stop(gen, "recognizer finished") })
}

func (c *Capture) applyLevel(gen uint64, level float64) {
	c.mu.Lock()
	if gen != c.generation || !c.state.Recording {
		c.mu.Unlock()
		return
	}
	c.state.Level = level
	snapshot := c.state
	c.mu.Unlock()
	c.feed.Publish(snapshot)
}

func (c *Capture) applyResult(gen uint64, r Result) {
	if r.Err != nil {
		c.logger.Warn("Speech recognition error", zap.Error(r.Err))
		c.stop(gen, "recognition error")
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if r.Text != "" {
		c.state.Transcript = r.Text
	}
	snapshot := c.state
	c.mu.Unlock()

	if r.Final {
		c.stop(gen, "recognizer final")
		return
	}
	c.feed.Publish(snapshot)
}
