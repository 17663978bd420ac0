// Package errs holds the error kinds shared by the voice pipeline.
// Callers match them with errors.Is; producers wrap them with %w.
package errs

import "errors"

var (
	// ErrPermissionDenied is returned when microphone or recognition access was refused
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable is returned when the recognizer or backend cannot run
	ErrUnavailable = errors.New("unavailable")

	// ErrNoCredential is returned when no provider key is configured
	ErrNoCredential = errors.New("no credential configured")

	// ErrRateLimited is returned when a hosted provider throttles the request
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable is returned when a hosted provider reports a server-side outage
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDecodeFailure is returned when a provider reply cannot be decoded
	ErrDecodeFailure = errors.New("decode failure")

	// ErrNetworkFailure is returned when a request never reached the provider
	ErrNetworkFailure = errors.New("network failure")

	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrRecordingFailed is returned when the audio encoder refuses to start
	ErrRecordingFailed = errors.New("recording failed")
)

// FromStatus maps an HTTP status code from a hosted provider to an error kind.
// It returns nil for codes that carry no special meaning.
func FromStatus(code int) error {
	switch {
	case code == 401 || code == 403:
		return ErrNoCredential
	case code == 404:
		return ErrNotFound
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrServiceUnavailable
	}
	return nil
}
