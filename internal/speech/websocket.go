package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xaenox/voicememo/internal/audio"
	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/errs"
	"go.uber.org/zap"
)

// WebsocketRecognizer streams PCM16 audio to a hosted streaming recognizer.
//
// Protocol: the client sends binary frames of little-endian PCM16 mono audio
// and, when the user stops talking, a text frame {"type":"close_stream"}.
// The server sends text frames {"type":"partial"|"final"|"error","text":"..."}
// where text is the transcript so far.
type WebsocketRecognizer struct {
	URL        string
	SampleRate int
	creds      credentials.Store
	dialer     *websocket.Dialer
	logger     *zap.Logger
}

func NewWebsocketRecognizer(rawURL string, sampleRate int, creds credentials.Store, logger *zap.Logger) *WebsocketRecognizer {
	return &WebsocketRecognizer{
		URL:        rawURL,
		SampleRate: sampleRate,
		creds:      creds,
		dialer:     websocket.DefaultDialer,
		logger:     logger,
	}
}

func (r *WebsocketRecognizer) Available(locale string) bool {
	return r.URL != "" && locale != ""
}

func (r *WebsocketRecognizer) Begin(ctx context.Context, locale string) (Task, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: recognizer url: %v", errs.ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("language", locale)
	q.Set("sample_rate", strconv.Itoa(r.SampleRate))
	q.Set("encoding", "linear16")
	u.RawQuery = q.Encode()

	header := http.Header{}
	if key, ok := r.creds.Get(credentials.RecognizerKey); ok && key != "" {
		header.Set("Authorization", "Token "+key)
	}

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: recognizer rejected credentials", errs.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("%w: dial recognizer: %v", errs.ErrUnavailable, err)
	}

	t := &wsTask{
		conn:    conn,
		frames:  make(chan []byte, 64),
		results: make(chan Result, 16),
		logger:  r.logger,
	}
	go t.writeLoop()
	go t.readLoop()
	return t, nil
}

type wsTask struct {
	conn    *websocket.Conn
	frames  chan []byte
	results chan Result
	logger  *zap.Logger

	mu        sync.Mutex
	ended     bool
	closeOnce sync.Once
}

type wsMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (t *wsTask) Results() <-chan Result { return t.results }

// Append queues a frame; frames are dropped when the network falls behind.
func (t *wsTask) Append(buf audio.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	select {
	case t.frames <- audio.ToPCM16(buf.Samples):
	default:
		t.logger.Debug("Dropping audio frame, recognizer is behind")
	}
}

func (t *wsTask) EndAudio() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.ended = true
		close(t.frames)
	}
}

func (t *wsTask) Cancel() {
	t.EndAudio()
	t.closeOnce.Do(func() { _ = t.conn.Close() })
}

func (t *wsTask) writeLoop() {
	for frame := range t.frames {
		if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
	msg, _ := json.Marshal(wsMessage{Type: "close_stream"})
	_ = t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *wsTask) readLoop() {
	defer close(t.results)
	defer t.closeOnce.Do(func() { _ = t.conn.Close() })

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			t.mu.Lock()
			ended := t.ended
			t.mu.Unlock()
			if !ended {
				t.results <- Result{Err: fmt.Errorf("%w: recognizer stream: %v", errs.ErrNetworkFailure, err)}
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Debug("Ignoring malformed recognizer message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case "partial":
			t.results <- Result{Text: msg.Text}
		case "final":
			t.results <- Result{Text: msg.Text, Final: true}
			return
		case "error":
			t.results <- Result{Err: fmt.Errorf("%w: %s", errs.ErrUnavailable, msg.Text)}
			return
		}
	}
}
