package speech

import (
	"context"

	"github.com/xaenox/voicememo/internal/audio"
)

// Result is one recognition update. Text is the whole transcript so far.
// Final marks the recognizer's last word on the task.
type Result struct {
	Text  string
	Final bool
	Err   error
}

// Task is one running recognition. Results is closed when the task ends.
type Task interface {
	Append(buf audio.Buffer)
	EndAudio()
	Cancel()
	Results() <-chan Result
}

// Recognizer turns streamed audio into text.
type Recognizer interface {
	Available(locale string) bool
	Begin(ctx context.Context, locale string) (Task, error)
}

// Authorizer asks the platform for speech recognition and microphone access.
type Authorizer interface {
	Authorize(ctx context.Context) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context) (bool, error) { return f(ctx) }

// AlwaysAuthorized is used on hosts without a permission model.
var AlwaysAuthorized = AuthorizerFunc(func(context.Context) (bool, error) { return true, nil })
