package tts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/tts"
	"go.uber.org/zap"
)

type mockSynth struct {
	mock.Mock
}

func (m *mockSynth) Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error) {
	args := m.Called(ctx, apiKey, voiceID, text)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSynth) Voices(ctx context.Context, apiKey string) ([]tts.Voice, error) {
	args := m.Called(ctx, apiKey)
	if v, ok := args.Get(0).([]tts.Voice); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	started chan struct{}
	block   bool
	err     error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.spoken...)
}

type recordingPlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (p *recordingPlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	return p.err
}

func configuredStore(t *testing.T) credentials.Store {
	t.Helper()
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Set(credentials.SpeechKey, "xi-key"))
	return store
}

func TestSpeak_HostedVoice(t *testing.T) {
	synth := &mockSynth{}
	player := &recordingPlayer{}
	local := &recordingSpeaker{}
	gw := tts.NewGateway(synth, player, local, configuredStore(t), zap.NewNop())

	synth.On("Synthesize", mock.Anything, "xi-key", tts.DefaultVoiceID, "hello").Return([]byte("mp3"), nil)

	var flags []bool
	gw.SubscribeSpeaking(func(b bool) { flags = append(flags, b) })

	require.True(t, gw.Configured())
	require.NoError(t, gw.Speak(context.Background(), "hello"))
	require.False(t, gw.Speaking())
	require.Equal(t, [][]byte{[]byte("mp3")}, player.played)
	require.Empty(t, local.said())
	require.Equal(t, []bool{true, false}, flags)
}

func TestSpeak_RateLimitedFallsBackToLocal(t *testing.T) {
	synth := &mockSynth{}
	player := &recordingPlayer{}
	local := &recordingSpeaker{}
	gw := tts.NewGateway(synth, player, local, configuredStore(t), zap.NewNop())

	synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, "hello").
		Return(nil, fmt.Errorf("%w: quota", errs.ErrRateLimited))

	require.NoError(t, gw.Speak(context.Background(), "hello"))
	require.Equal(t, []string{"hello"}, local.said())
	require.Empty(t, player.played)
	require.False(t, gw.Speaking())
}

func TestSpeak_PlayerFailureFallsBack(t *testing.T) {
	synth := &mockSynth{}
	player := &recordingPlayer{err: errors.New("no audio device")}
	local := &recordingSpeaker{}
	gw := tts.NewGateway(synth, player, local, configuredStore(t), zap.NewNop())
	synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	require.NoError(t, gw.Speak(context.Background(), "hi"))
	require.Equal(t, []string{"hi"}, local.said())
}

func TestSpeak_UnconfiguredGoesStraightToLocal(t *testing.T) {
	synth := &mockSynth{}
	local := &recordingSpeaker{}
	gw := tts.NewGateway(synth, &recordingPlayer{}, local, credentials.NewMemoryStore(), zap.NewNop())

	require.False(t, gw.Configured())
	require.NoError(t, gw.Speak(context.Background(), "hi"))
	require.Equal(t, []string{"hi"}, local.said())
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSpeak_LocalFailureIsReturned(t *testing.T) {
	local := &recordingSpeaker{err: errors.New("espeak missing")}
	gw := tts.NewGateway(&mockSynth{}, &recordingPlayer{}, local, credentials.NewMemoryStore(), zap.NewNop())

	require.Error(t, gw.Speak(context.Background(), "hi"))
	require.False(t, gw.Speaking())
}

func TestStop_InterruptsPlayback(t *testing.T) {
	local := &recordingSpeaker{block: true, started: make(chan struct{})}
	gw := tts.NewGateway(&mockSynth{}, &recordingPlayer{}, local, credentials.NewMemoryStore(), zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- gw.Speak(context.Background(), "a long answer") }()

	<-local.started
	require.True(t, gw.Speaking())
	gw.Stop()
	require.False(t, gw.Speaking())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("speak did not return after stop")
	}
	require.False(t, gw.Speaking())
}

func TestStop_SafeWhenIdle(t *testing.T) {
	gw := tts.NewGateway(&mockSynth{}, &recordingPlayer{}, &recordingSpeaker{}, credentials.NewMemoryStore(), zap.NewNop())
	gw.Stop()
	gw.Stop()
	require.False(t, gw.Speaking())
}

func TestVoices_CacheSurvivesRateLimit(t *testing.T) {
	synth := &mockSynth{}
	gw := tts.NewGateway(synth, &recordingPlayer{}, &recordingSpeaker{}, configuredStore(t), zap.NewNop())

	voices := []tts.Voice{{ID: "v1", Name: "Rachel"}}
	synth.On("Voices", mock.Anything, "xi-key").Return(voices, nil).Once()
	synth.On("Voices", mock.Anything, "xi-key").Return(nil, fmt.Errorf("%w: quota", errs.ErrRateLimited)).Once()

	got, err := gw.ListVoices(context.Background())
	require.NoError(t, err)
	require.Equal(t, voices, got)

	_, err = gw.ListVoices(context.Background())
	require.ErrorIs(t, err, errs.ErrRateLimited)
	require.Equal(t, voices, gw.Voices())
	require.False(t, gw.Speaking())
}

func TestSetVoice_Persists(t *testing.T) {
	store := configuredStore(t)
	synth := &mockSynth{}
	player := &recordingPlayer{}
	gw := tts.NewGateway(synth, player, &recordingSpeaker{}, store, zap.NewNop())

	require.NoError(t, gw.SetVoice("v2"))
	require.Equal(t, "v2", gw.VoiceID())

	synth.On("Synthesize", mock.Anything, "xi-key", "v2", "hey").Return([]byte("x"), nil)
	require.NoError(t, gw.Speak(context.Background(), "hey"))
	synth.AssertExpectations(t)
}
