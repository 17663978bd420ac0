package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/voicememo/internal/assistant"
	"github.com/xaenox/voicememo/internal/models"
	"github.com/xaenox/voicememo/internal/storage"
	"github.com/xaenox/voicememo/internal/tts"
	"go.uber.org/zap"
)

// Transcriber turns a received voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, r io.Reader) (string, error)
}

// Voice is the hosted speech the bot answers with.
type Voice interface {
	Configured() bool
	Synthesize(ctx context.Context, text string) ([]byte, error)
	ListVoices(ctx context.Context) ([]tts.Voice, error)
	SetVoice(id string) error
	VoiceID() string
}

// Deps are the collaborators shared by every chat.
type Deps struct {
	Brain       assistant.Brain
	Backend     storage.Backend
	Reminders   storage.ReminderStore
	Transcriber Transcriber
	Voice       Voice
}

type Bot struct {
	api    *tgbotapi.BotAPI
	deps   Deps
	http   *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	chats map[int64]*assistant.Controller
}

func New(token string, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:    api,
		deps:   deps,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		chats:  make(map[int64]*assistant.Controller),
	}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// conversation returns the assistant owning chatID, creating it on first use.
func (b *Bot) conversation(chatID int64) *assistant.Controller {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chatID]; ok {
		return c
	}
	c := assistant.NewController(b.deps.Brain, b.deps.Backend, b.deps.Reminders, nil,
		b.logger.With(zap.Int64("chat_id", chatID)))
	b.chats[chatID] = c
	return c
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	var text string
	switch {
	case message.Voice != nil:
		transcript, err := b.transcribeVoice(ctx, message.Voice)
		if err != nil {
			b.logger.Error("Failed to transcribe voice note",
				zap.Error(err),
				zap.Int64("chat_id", message.Chat.ID))
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't understand that voice note. Please try again or type your question.")
			return
		}
		text = transcript
		b.sendMessage(message.Chat.ID, "🎙 "+transcript)
	case message.Text != "":
		text = message.Text
	default:
		text = message.Caption
	}

	reply, ok := b.conversation(message.Chat.ID).Submit(ctx, text)
	if !ok {
		return
	}
	b.sendReply(ctx, message.Chat.ID, message.MessageID, reply)
}

func (b *Bot) transcribeVoice(ctx context.Context, voice *tgbotapi.Voice) (string, error) {
	if b.deps.Transcriber == nil {
		return "", fmt.Errorf("voice notes are not supported")
	}
	fileURL, err := b.api.GetFileDirectURL(voice.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve voice file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download voice file: status %d", resp.StatusCode)
	}

	// Telegram voice notes are Ogg/Opus
	return b.deps.Transcriber.Transcribe(ctx, voice.FileUniqueID+".ogg", resp.Body)
}

// sendReply sends the reply text and, when hosted speech is configured, the
// same reply as audio.
func (b *Bot) sendReply(ctx context.Context, chatID int64, replyToID int, reply models.Message) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}

	if b.deps.Voice == nil || !b.deps.Voice.Configured() {
		return
	}
	audio, err := b.deps.Voice.Synthesize(ctx, reply.Text)
	if err != nil {
		b.logger.Warn("Failed to synthesize reply", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	voice := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: "reply.mp3", Bytes: audio})
	if _, err := b.api.Send(voice); err != nil {
		b.logger.Error("Failed to send audio reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "clear":
		b.conversation(message.Chat.ID).Clear()
		b.sendMessage(message.Chat.ID, "Conversation cleared.")
	case "reminders":
		b.handleReminders(message)
	case "voices":
		b.handleVoices(ctx, message)
	case "voice":
		b.handleSetVoice(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome! 🗓
I'm your practice assistant. Ask me about your schedule, clients and session prep, by text or voice note.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/reminders - Show your latest dictated reminders
/clear - Start a new conversation
/voices - List the available reply voices
/voice <id> - Choose the reply voice

You can ask things like:
- What's on my schedule tomorrow?
- When is my next appointment with Jane?
- Prepare me for my next session
- Remind me to call Amir on Friday`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleReminders(message *tgbotapi.Message) {
	if b.deps.Reminders == nil {
		b.sendMessage(message.Chat.ID, "You don't have any reminders yet.")
		return
	}
	reminders, err := b.deps.Reminders.All()
	if err != nil {
		b.logger.Error("Failed to load reminders",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your reminders. Please try again later.")
		return
	}
	if len(reminders) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any reminders yet.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatReminders(reminders, 5))
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reminders",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleVoices(ctx context.Context, message *tgbotapi.Message) {
	if b.deps.Voice == nil || !b.deps.Voice.Configured() {
		b.sendMessage(message.Chat.ID, "Spoken replies are not configured.")
		return
	}
	voices, err := b.deps.Voice.ListVoices(ctx)
	if err != nil {
		b.logger.Warn("Failed to list voices", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't fetch the voice list right now.")
		return
	}
	b.sendMessage(message.Chat.ID, formatVoices(voices, b.deps.Voice.VoiceID()))
}

func (b *Bot) handleSetVoice(message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" || b.deps.Voice == nil {
		b.sendMessage(message.Chat.ID, "Usage: /voice <id>. Use /voices to list them.")
		return
	}
	if err := b.deps.Voice.SetVoice(id); err != nil {
		b.logger.Error("Failed to save voice", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save that voice.")
		return
	}
	b.sendMessage(message.Chat.ID, "Voice updated.")
}

// formatReminders renders the newest limit reminders as MarkdownV2.
func formatReminders(reminders []models.VoiceReminder, limit int) string {
	if len(reminders) > limit {
		reminders = reminders[len(reminders)-limit:]
	}

	response := "*Your recent reminders:*\n\n"
	for i := len(reminders) - 1; i >= 0; i-- {
		r := reminders[i]
		header := r.CreatedAt.Format("Jan 2 15:04")
		if r.Priority != "" {
			header += " · " + string(r.Priority)
		}
		response += fmt.Sprintf("*%s*\n", escapeMarkdown(header))
		response += fmt.Sprintf("_%s_\n", escapeMarkdown(r.Transcription))
		for _, f := range r.FollowUps {
			response += escapeMarkdown("→ "+f) + "\n"
		}
		if r.SuggestedCategory != "" {
			response += escapeMarkdown("#"+string(r.SuggestedCategory)) + "\n"
		}
		response += "\n"
	}
	return response
}

func formatVoices(voices []tts.Voice, current string) string {
	if len(voices) == 0 {
		return "No voices available."
	}
	var b strings.Builder
	b.WriteString("Available voices:\n")
	for _, v := range voices {
		marker := "  "
		if v.ID == current {
			marker = "✓ "
		}
		fmt.Fprintf(&b, "%s%s (%s)\n", marker, v.Name, v.ID)
	}
	return b.String()
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
