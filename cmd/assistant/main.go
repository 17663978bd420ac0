package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xaenox/voicememo/internal/assistant"
	"github.com/xaenox/voicememo/internal/audio"
	"github.com/xaenox/voicememo/internal/bot"
	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/dictation"
	"github.com/xaenox/voicememo/internal/events"
	"github.com/xaenox/voicememo/internal/llm"
	"github.com/xaenox/voicememo/internal/recorder"
	"github.com/xaenox/voicememo/internal/speech"
	"github.com/xaenox/voicememo/internal/storage"
	"github.com/xaenox/voicememo/internal/tts"
	"github.com/xaenox/voicememo/pkg/config"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	mode := flag.String("mode", "repl", "repl | dictate | bot | cleanup")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer app.close()

	switch *mode {
	case "repl":
		err = app.runREPL(ctx)
	case "dictate":
		err = app.runDictation(ctx)
	case "bot":
		err = app.runBot(ctx)
	case "cleanup":
		_, err = app.recorder.CleanupOlderThan(app.retention)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Run failed", zap.Error(err), zap.String("mode", *mode))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	creds     credentials.Store
	backend   storage.Backend
	reminders *storage.FileReminderStore
	brain     *llm.Gateway
	voice     *tts.Gateway
	loop      *events.Loop
	recorder  *recorder.Recorder
	capture   *speech.Capture
	retention time.Duration
}

func wire(cfg *config.Config, logger *zap.Logger) (*app, error) {
	creds, err := credentials.OpenFileStore(cfg.Storage.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	// keys from the environment or config file take precedence
	for key, value := range map[string]string{
		credentials.PrimaryLLMKey:   cfg.LLM.PrimaryAPIKey,
		credentials.SecondaryLLMKey: cfg.LLM.SecondaryAPIKey,
		credentials.SpeechKey:       cfg.TTS.APIKey,
		credentials.RecognizerKey:   cfg.Speech.APIKey,
		credentials.VoiceIDKey:      cfg.TTS.VoiceID,
	} {
		if value == "" {
			continue
		}
		if current, _ := creds.Get(key); current != value {
			if err := creds.Set(key, value); err != nil {
				return nil, fmt.Errorf("store credential %s: %w", key, err)
			}
		}
	}

	// Initialize storage
	var backend storage.Backend
	switch cfg.Database.Driver {
	case "", "memory":
		logger.Info("Using in-memory storage")
		backend = storage.NewMemoryStorage()
	default:
		logger.Info("Using SQL storage", zap.String("driver", cfg.Database.Driver))
		backend, err = storage.NewSQLStorage(storage.DatabaseConfig{
			Driver:   cfg.Database.Driver,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			Path:     cfg.Database.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
	}

	reminders, err := storage.OpenReminderStore(cfg.Storage.RemindersPath)
	if err != nil {
		backend.Close()
		return nil, err
	}

	brain := llm.NewGateway([]llm.Endpoint{
		{Provider: llm.NewOpenAIProvider(cfg.LLM.PrimaryBaseURL, cfg.LLM.PrimaryModel, cfg.LLM.Temperature), CredentialKey: credentials.PrimaryLLMKey},
		{Provider: llm.NewCompatProvider(cfg.LLM.SecondaryName, cfg.LLM.SecondaryURL, cfg.LLM.SecondaryModel), CredentialKey: credentials.SecondaryLLMKey},
	}, creds, llm.FallbackPolicy{MaxAttempts: cfg.LLM.MaxAttempts}, logger.Named("llm"))

	voice := tts.NewGateway(
		tts.NewClient(cfg.TTS.BaseURL, cfg.TTS.ModelID),
		tts.CommandPlayer{Argv: cfg.TTS.PlayerCmd},
		tts.CommandSpeaker{Argv: cfg.TTS.SpeakerCmd},
		creds, logger.Named("tts"))

	loop := events.NewLoop()
	session := audio.NewSession(&audio.CommandSource{
		Argv:         cfg.Speech.CaptureCmd,
		SampleRate:   cfg.Speech.SampleRate,
		FrameSamples: cfg.Speech.SampleRate / 10,
		Logger:       logger.Named("audio"),
	}, logger.Named("audio"))

	rec := recorder.New(cfg.Recorder.Dir, cfg.Speech.SampleRate, session, speech.AlwaysAuthorized, loop, logger.Named("recorder"))
	recognizer := speech.NewWebsocketRecognizer(cfg.Speech.RecognizerURL, cfg.Speech.SampleRate, creds, logger.Named("speech"))
	capture := speech.NewCapture(session, recognizer, speech.AlwaysAuthorized, loop, cfg.Speech.Locale, logger.Named("speech"))

	retention := time.Duration(cfg.Recorder.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = recorder.DefaultRetention
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		creds:     creds,
		backend:   backend,
		reminders: reminders,
		brain:     brain,
		voice:     voice,
		loop:      loop,
		recorder:  rec,
		capture:   capture,
		retention: retention,
	}, nil
}

func (a *app) close() {
	a.voice.Stop()
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
}

func (a *app) runREPL(ctx context.Context) error {
	ctrl := assistant.NewController(a.brain, a.backend, a.reminders, a.voice, a.logger.Named("assistant"))
	defer ctrl.End()

	fmt.Println("Ask about your schedule. Empty line to skip, /clear to reset, /quit to exit.")
	lines := readLines(ctx)
	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/clear":
				ctrl.Clear()
				continue
			}
			if reply, ok := ctrl.Submit(ctx, line); ok {
				fmt.Println(reply.Text)
			}
		}
	}
}

func (a *app) runDictation(ctx context.Context) error {
	go a.loop.Run(ctx)

	// retention runs opportunistically while the app is in use
	if n, err := a.recorder.CleanupOlderThan(a.retention); err != nil {
		a.logger.Warn("Recording cleanup failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("Recording cleanup", zap.Int("removed", n))
	}

	ctrl := dictation.NewController(a.recorder, a.capture, a.brain, a.reminders, a.logger.Named("dictation"))
	unsubscribe := a.capture.Subscribe(func(s speech.State) {
		if s.Recording {
			fmt.Printf("\r%s %s", levelBar(s.Level), s.Transcript)
		}
	})
	defer unsubscribe()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	fmt.Println("Recording. Press Enter to stop.")
	lines := readLines(ctx)

	select {
	case <-ctx.Done():
		ctrl.Cancel()
		return ctx.Err()
	case <-lines:
	}
	if err := ctrl.Stop(); err != nil {
		return err
	}
	fmt.Println()

	reminder, ok := ctrl.Reminder()
	if !ok {
		fmt.Println("Nothing was heard; dictation discarded.")
		return nil
	}
	fmt.Printf("Transcript: %s\n", reminder.Transcription)

	if err := review(ctx, ctrl, lines, os.Stdout); err != nil {
		return err
	}

	if st := ctrl.State(); st != dictation.ProcessedSaved && st != dictation.PlainSaved {
		fmt.Println("Dictation discarded.")
		return nil
	}
	if saved, ok := ctrl.Reminder(); ok {
		fmt.Printf("Saved (%s, %s priority).\n", saved.Status, saved.Priority)
		for _, f := range saved.FollowUps {
			fmt.Printf("  → %s\n", f)
		}
	}
	return nil
}

func (a *app) runBot(ctx context.Context) error {
	b, err := bot.New(a.cfg.Telegram.Token, bot.Deps{
		Brain:       a.brain,
		Backend:     a.backend,
		Reminders:   a.reminders,
		Transcriber: speech.NewWhisperTranscriber(a.creds, a.cfg.LLM.PrimaryBaseURL, a.cfg.Speech.Language),
		Voice:       a.voice,
	}, a.logger.Named("bot"))
	if err != nil {
		return err
	}
	return b.Start(ctx)
}

// reviewer is the part of the dictation controller the review prompt drives.
type reviewer interface {
	State() dictation.State
	ProcessAndSave(ctx context.Context) error
	SavePlain() error
	Cancel()
}

// review prompts until the reminder under review is saved or discarded.
// A closed input discards it.
func review(ctx context.Context, ctrl reviewer, lines <-chan string, out io.Writer) error {
	for ctrl.State() == dictation.Reviewing {
		fmt.Fprint(out, "[p]rocess and save, [s]ave as is, [d]iscard? ")
		var line string
		select {
		case <-ctx.Done():
			ctrl.Cancel()
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				ctrl.Cancel()
				continue
			}
			line = l
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "p":
			if err := ctrl.ProcessAndSave(ctx); err != nil {
				fmt.Fprintf(out, "Processing failed: %v\n", err)
			}
		case "s":
			if err := ctrl.SavePlain(); err != nil {
				fmt.Fprintf(out, "Save failed: %v\n", err)
			}
		case "d":
			ctrl.Cancel()
		}
	}
	return nil
}

// readLines feeds stdin lines to a channel closed at EOF.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func levelBar(level float64) string {
	const width = 10
	n := min(int(level*width+0.5), width)
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "]"
}
