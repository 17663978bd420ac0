package audio

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Source produces audio buffers until stopped. Start must not block; buffers
// are delivered on the source's own goroutine.
type Source interface {
	Start(onBuffer func(Buffer)) error
	Stop() error
}

// Session is the exclusive claim on one audio Source. Several consumers tap
// it at once; the source runs while at least one tap is held.
type Session struct {
	source Source
	logger *zap.Logger

	// lifecycle serialises source start/stop; tapsMu guards the tap set and
	// is the only lock taken on the delivery path.
	lifecycle sync.Mutex
	active    bool

	tapsMu sync.RWMutex
	taps   map[int]func(Buffer)
	nextID int
}

func NewSession(source Source, logger *zap.Logger) *Session {
	return &Session{
		source: source,
		logger: logger,
		taps:   make(map[int]func(Buffer)),
	}
}

// Tap registers fn for every buffer, activating the source if this is the
// first tap. The returned release is idempotent; after it returns no new
// delivery to fn starts, and the source is stopped if no taps remain.
func (s *Session) Tap(name string, fn func(Buffer)) (release func(), err error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.tapsMu.Lock()
	id := s.nextID
	s.nextID++
	s.taps[id] = fn
	s.tapsMu.Unlock()

	if !s.active {
		if err := s.source.Start(s.dispatch); err != nil {
			s.tapsMu.Lock()
			delete(s.taps, id)
			s.tapsMu.Unlock()
			return nil, fmt.Errorf("activate audio session: %w", err)
		}
		s.active = true
		s.logger.Debug("Audio session activated", zap.String("tap", name))
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(name, id) })
	}, nil
}

// Active reports whether the source is currently claimed.
func (s *Session) Active() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.active
}

func (s *Session) release(name string, id int) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.tapsMu.Lock()
	delete(s.taps, id)
	remaining := len(s.taps)
	s.tapsMu.Unlock()

	if remaining > 0 || !s.active {
		return
	}
	s.active = false
	if err := s.source.Stop(); err != nil {
		s.logger.Warn("Failed to stop audio source", zap.Error(err), zap.String("tap", name))
	}
	s.logger.Debug("Audio session deactivated", zap.String("tap", name))
}

func (s *Session) dispatch(buf Buffer) {
	s.tapsMu.RLock()
	fns := make([]func(Buffer), 0, len(s.taps))
	for _, fn := range s.taps {
		fns = append(fns, fn)
	}
	s.tapsMu.RUnlock()

	for _, fn := range fns {
		fn(buf)
	}
}
