package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/errs"
)

// WhisperTranscriber transcribes finished recordings, such as voice notes
// received by the bot, with the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	creds    credentials.Store
	baseURL  string
	language string
}

func NewWhisperTranscriber(creds credentials.Store, baseURL, language string) *WhisperTranscriber {
	return &WhisperTranscriber{creds: creds, baseURL: baseURL, language: language}
}

// Transcribe reads audio named name (the extension selects the format).
func (w *WhisperTranscriber) Transcribe(ctx context.Context, name string, r io.Reader) (string, error) {
	key, ok := w.creds.Get(credentials.PrimaryLLMKey)
	if !ok || key == "" {
		return "", errs.ErrNoCredential
	}
	cfg := openai.DefaultConfig(key)
	if w.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(w.baseURL, "/")
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filepath.Base(name),
		Reader:   r,
		Language: w.language,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if kind := errs.FromStatus(apiErr.HTTPStatusCode); kind != nil {
				return "", fmt.Errorf("%w: %v", kind, err)
			}
		}
		return "", fmt.Errorf("transcribe %s: %w", name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
