package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/xaenox/voicememo/internal/errs"
)

// DefaultMaxTokens bounds every completion.
const DefaultMaxTokens = 1000

// Prompt is one system + user exchange sent to a hosted model.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Provider is a hosted large-language-model API. Implementations wrap
// provider failures with the errs kinds (rate limit, outage, network).
type Provider interface {
	Name() string
	Complete(ctx context.Context, apiKey string, p Prompt) (string, error)
}

// Endpoint pairs a provider with the credential that enables it.
type Endpoint struct {
	Provider      Provider
	CredentialKey string
}

// FallbackPolicy declares how many configured providers one call may try.
// Providers are tried in order and the first success wins.
type FallbackPolicy struct {
	MaxAttempts int
}

// OneShotFallback tries the primary and at most one fallback provider.
var OneShotFallback = FallbackPolicy{MaxAttempts: 2}

func classifyStatus(code int, err error) error {
	if kind := errs.FromStatus(code); kind != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	return err
}

func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", errs.ErrNetworkFailure, err)
	}
	return err
}
