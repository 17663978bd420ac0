// Package tts speaks assistant replies through a hosted voice, falling back
// to an on-device synthesizer whenever the hosted path is unavailable.
package tts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/events"
	"go.uber.org/zap"
)

// Synthesizer is the hosted half of the gateway.
type Synthesizer interface {
	Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error)
	Voices(ctx context.Context, apiKey string) ([]Voice, error)
}

type Gateway struct {
	hosted Synthesizer
	player Player
	local  LocalSpeaker
	creds  credentials.Store
	logger *zap.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	turn     uint64
	voices   []Voice

	speakingFeed events.Feed[bool]
}

func NewGateway(hosted Synthesizer, player Player, local LocalSpeaker, creds credentials.Store, logger *zap.Logger) *Gateway {
	return &Gateway{
		hosted: hosted,
		player: player,
		local:  local,
		creds:  creds,
		logger: logger,
	}
}

// Configured reports whether a hosted-voice credential exists.
func (g *Gateway) Configured() bool {
	return g.hosted != nil && credentials.Has(g.creds, credentials.SpeechKey)
}

// Speaking reports whether a clip is currently playing.
func (g *Gateway) Speaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speaking
}

// SubscribeSpeaking observes changes of the speaking flag.
func (g *Gateway) SubscribeSpeaking(fn func(bool)) func() {
	return g.speakingFeed.Subscribe(fn)
}

// Speak says text and returns when playback ends or is stopped. A hosted
// failure of any kind falls back to the on-device voice within this call;
// only an on-device failure is returned.
func (g *Gateway) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, turn := g.begin(ctx)
	defer g.finish(turn)

	if g.Configured() {
		err := g.speakHosted(ctx, text)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		g.logger.Warn("Hosted speech failed, using on-device voice", zap.Error(err))
	}

	if g.local == nil {
		return fmt.Errorf("on-device speech: %w", errs.ErrUnavailable)
	}
	if err := g.local.Speak(ctx, text); err != nil && ctx.Err() == nil {
		return fmt.Errorf("on-device speech: %w", err)
	}
	return nil
}

func (g *Gateway) speakHosted(ctx context.Context, text string) error {
	key, _ := g.creds.Get(credentials.SpeechKey)
	audio, err := g.hosted.Synthesize(ctx, key, g.VoiceID(), text)
	if err != nil {
		return err
	}
	return g.player.Play(ctx, audio)
}

// Synthesize returns hosted audio for text without playing it.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !g.Configured() {
		return nil, errs.ErrNoCredential
	}
	key, _ := g.creds.Get(credentials.SpeechKey)
	return g.hosted.Synthesize(ctx, key, g.VoiceID(), text)
}

// Stop halts whichever voice is playing. It is safe when nothing plays.
func (g *Gateway) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	wasSpeaking := g.speaking
	g.speaking = false
	g.turn++
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasSpeaking {
		g.speakingFeed.Publish(false)
	}
}

func (g *Gateway) begin(ctx context.Context) (context.Context, uint64) {
	g.Stop()

	ctx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.turn++
	turn := g.turn
	g.cancel = cancel
	g.speaking = true
	g.mu.Unlock()

	g.speakingFeed.Publish(true)
	return ctx, turn
}

func (g *Gateway) finish(turn uint64) {
	g.mu.Lock()
	if g.turn != turn {
		// stopped or superseded; Stop already reset the flag
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.cancel = nil
	g.speaking = false
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.speakingFeed.Publish(false)
}

// VoiceID returns the selected hosted voice.
func (g *Gateway) VoiceID() string {
	if id, ok := g.creds.Get(credentials.VoiceIDKey); ok && id != "" {
		return id
	}
	return DefaultVoiceID
}

// SetVoice selects and persists the hosted voice.
func (g *Gateway) SetVoice(id string) error {
	return g.creds.Set(credentials.VoiceIDKey, strings.TrimSpace(id))
}

// ListVoices refreshes the cached voice list. Errors, including rate
// limits, leave the cache and playback state untouched.
func (g *Gateway) ListVoices(ctx context.Context) ([]Voice, error) {
	if !g.Configured() {
		return nil, errs.ErrNoCredential
	}
	key, _ := g.creds.Get(credentials.SpeechKey)
	voices, err := g.hosted.Voices(ctx, key)
	if err != nil {
		g.logger.Warn("Failed to list voices", zap.Error(err))
		return nil, err
	}

	g.mu.Lock()
	g.voices = voices
	g.mu.Unlock()
	return append([]Voice{}, voices...), nil
}

// Voices returns the last successfully listed voices.
func (g *Gateway) Voices() []Voice {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Voice{}, g.voices...)
}
