// Package recorder writes microphone takes to WAV files and reports their
// duration and level on a fixed interval.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/voicememo/internal/audio"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/events"
	"go.uber.org/zap"
)

const (
	DefaultInterval   = 100 * time.Millisecond
	DefaultSampleRate = 16000
	DefaultRetention  = 30 * 24 * time.Hour

	fileExt = ".wav"
)

// Permission asks whether the microphone may be used.
type Permission interface {
	Authorize(ctx context.Context) (bool, error)
}

// Telemetry is the published state of the current take.
type Telemetry struct {
	Recording bool
	Duration  time.Duration
	Level     float64
}

type Recorder struct {
	dir        string
	sampleRate int
	interval   time.Duration
	session    *audio.Session
	perm       Permission
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	starting  bool
	writer    *audio.WAVWriter
	path      string
	release   func()
	stopTick  chan struct{}
	level     float64
	telemetry Telemetry
	gen       uint64

	feed events.Feed[Telemetry]
}

func New(dir string, sampleRate int, session *audio.Session, perm Permission, dispatcher events.Dispatcher, logger *zap.Logger) *Recorder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Recorder{
		dir:        dir,
		sampleRate: sampleRate,
		interval:   DefaultInterval,
		session:    session,
		perm:       perm,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// WithInterval overrides the telemetry sampling interval.
func (r *Recorder) WithInterval(d time.Duration) *Recorder {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithClock overrides the time source used for names and retention.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Dir is the recordings directory.
func (r *Recorder) Dir() string { return r.dir }

// Subscribe observes telemetry samples.
func (r *Recorder) Subscribe(fn func(Telemetry)) func() {
	return r.feed.Subscribe(fn)
}

// Telemetry returns the last published sample.
func (r *Recorder) Telemetry() Telemetry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.telemetry
}

// Recording reports whether a take is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer != nil
}

// StartRecording opens a new uniquely named artifact and starts writing
// microphone audio into it. It returns the artifact path.
func (r *Recorder) StartRecording(ctx context.Context, nameHint string) (string, error) {
	if r.perm != nil {
		granted, err := r.perm.Authorize(ctx)
		if err != nil {
			r.logger.Warn("Microphone permission request failed", zap.Error(err))
		}
		if !granted {
			return "", errs.ErrPermissionDenied
		}
	}

	// starting reserves the take across the unlocked setup below
	r.mu.Lock()
	if r.writer != nil || r.starting {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: a take is already in progress", errs.ErrRecordingFailed)
	}
	r.starting = true
	r.mu.Unlock()

	path, w, release, err := r.open(nameHint)
	if err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %v", errs.ErrRecordingFailed, err)
	}

	stop := make(chan struct{})
	r.mu.Lock()
	r.starting = false
	r.writer = w
	r.path = path
	r.release = release
	r.stopTick = stop
	r.level = 0
	r.gen++
	gen := r.gen
	r.mu.Unlock()
	go r.tick(gen, stop)

	r.logger.Info("Recording started", zap.String("path", path))
	return path, nil
}

// open creates the artifact and taps the session. Buffers delivered before
// the writer is published are dropped by write.
func (r *Recorder) open(nameHint string) (string, *audio.WAVWriter, func(), error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", nil, nil, err
	}
	path := filepath.Join(r.dir, r.artifactName(nameHint))
	w, err := audio.CreateWAV(path, r.sampleRate)
	if err != nil {
		return "", nil, nil, err
	}
	release, err := r.session.Tap("recorder", r.write)
	if err != nil {
		w.Close()
		os.Remove(path)
		return "", nil, nil, err
	}
	return path, w, release, nil
}

// StopRecording finishes the take and returns its path. ok is false when
// nothing was recording. It is always safe to call.
func (r *Recorder) StopRecording() (string, bool) {
	r.mu.Lock()
	w, path, release, stop := r.writer, r.path, r.release, r.stopTick
	if w == nil {
		r.mu.Unlock()
		return "", false
	}
	r.writer = nil
	r.path = ""
	r.release = nil
	r.stopTick = nil
	r.level = 0
	r.gen++
	r.telemetry = Telemetry{}
	r.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if release != nil {
		release()
	}
	if err := w.Close(); err != nil {
		r.logger.Warn("Failed to finalize recording", zap.Error(err), zap.String("path", path))
	}
	r.dispatcher.Post(func() { r.feed.Publish(Telemetry{}) })

	r.logger.Info("Recording stopped", zap.String("path", path))
	return path, true
}

// CancelRecording stops the take and deletes its artifact.
func (r *Recorder) CancelRecording() {
	path, ok := r.StopRecording()
	if !ok {
		return
	}
	r.Discard(path)
}

// Discard deletes a finished artifact. Missing files are ignored.
func (r *Recorder) Discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Failed to delete recording", zap.Error(err), zap.String("path", path))
	}
}

// CleanupOlderThan deletes artifacts last modified more than age ago and
// returns how many were removed. The take in progress is never touched.
func (r *Recorder) CleanupOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read recordings dir: %w", err)
	}

	r.mu.Lock()
	current := r.path
	r.mu.Unlock()

	cutoff := r.now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		if path == current {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			r.logger.Warn("Failed to delete old recording", zap.Error(err), zap.String("path", path))
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("Old recordings removed", zap.Int("count", removed), zap.Duration("older_than", age))
	}
	return removed, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (r *Recorder) artifactName(hint string) string {
	hint = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(hint), "-"), "-")
	if hint == "" {
		hint = "recording"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s%s", hint, r.now().Format("20060102-150405"), suffix, fileExt)
}

// write runs on the audio source's goroutine.
func (r *Recorder) write(buf audio.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return
	}
	if err := r.writer.Write(buf.Samples); err != nil {
		r.logger.Warn("Failed to write audio", zap.Error(err))
		return
	}
	r.level = audio.Level(buf.Samples)
}

func (r *Recorder) tick(gen uint64, stop <-chan struct{}) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			r.sample(gen)
		}
	}
}

func (r *Recorder) sample(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || r.writer == nil {
		r.mu.Unlock()
		return
	}
	tel := Telemetry{
		Recording: true,
		Duration:  time.Duration(r.writer.Duration() * float64(time.Second)),
		Level:     r.level,
	}
	r.mu.Unlock()

	r.dispatcher.Post(func() {
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		r.telemetry = tel
		r.mu.Unlock()
		r.feed.Publish(tel)
	})
}
