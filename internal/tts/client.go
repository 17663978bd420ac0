package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xaenox/voicememo/internal/errs"
)

const (
	DefaultBaseURL    = "https://api.elevenlabs.io/v1"
	DefaultModelID    = "eleven_monolingual_v1"
	DefaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	DefaultStability  = 0.5
	DefaultSimilarity = 0.75
)

// Voice is one voice offered by the hosted provider.
type Voice struct {
	ID       string
	Name     string
	Category string
}

// Client talks to an ElevenLabs-compatible text-to-speech API.
type Client struct {
	BaseURL    string
	ModelID    string
	Stability  float64
	Similarity float64
	HTTP       *http.Client
}

func NewClient(baseURL, modelID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ModelID:    modelID,
		Stability:  DefaultStability,
		Similarity: DefaultSimilarity,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize returns MPEG audio for text spoken by voiceID.
func (c *Client) Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.Stability,
			SimilarityBoost: c.Similarity,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.BaseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	return c.do(req)
}

// Voices lists the voices available to apiKey.
func (c *Client) Voices(ctx context.Context, apiKey string) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: voices response is not JSON", errs.ErrDecodeFailure)
	}

	var voices []Voice
	gjson.GetBytes(data, "voices").ForEach(func(_, v gjson.Result) bool {
		voices = append(voices, Voice{
			ID:       v.Get("voice_id").String(),
			Name:     v.Get("name").String(),
			Category: v.Get("category").String(),
		})
		return true
	})
	return voices, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errs.ErrNetworkFailure, err)
	}
	if resp.StatusCode/100 == 2 {
		return data, nil
	}

	detail := gjson.GetBytes(data, "detail.message").String()
	if detail == "" {
		detail = strings.TrimSpace(string(data))
	}
	statusErr := fmt.Errorf("speech provider returned %d: %s", resp.StatusCode, detail)
	if kind := errs.FromStatus(resp.StatusCode); kind != nil {
		return nil, fmt.Errorf("%w: %v", kind, statusErr)
	}
	return nil, statusErr
}
