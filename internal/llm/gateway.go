// Package llm turns natural-language instructions into free text or JSON
// through hosted language models, with one-shot provider fallback.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/voicememo/internal/credentials"
	"github.com/xaenox/voicememo/internal/errs"
	"go.uber.org/zap"
)

type Gateway struct {
	endpoints []Endpoint
	creds     credentials.Store
	policy    FallbackPolicy
	maxTokens int
	logger    *zap.Logger
	now       func() time.Time
}

// NewGateway builds a gateway over endpoints in preference order.
func NewGateway(endpoints []Endpoint, creds credentials.Store, policy FallbackPolicy, logger *zap.Logger) *Gateway {
	if policy.MaxAttempts <= 0 {
		policy = OneShotFallback
	}
	return &Gateway{
		endpoints: endpoints,
		creds:     creds,
		policy:    policy,
		maxTokens: DefaultMaxTokens,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source used in prompts.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Configured reports whether any provider has a credential.
func (g *Gateway) Configured() bool {
	return len(g.configured()) > 0
}

func (g *Gateway) configured() []Endpoint {
	out := make([]Endpoint, 0, len(g.endpoints))
	for _, ep := range g.endpoints {
		if credentials.Has(g.creds, ep.CredentialKey) {
			out = append(out, ep)
		}
	}
	return out
}

// SendPrompt sends one system + user prompt and returns the reply text.
// Unconfigured providers are skipped entirely. When a configured provider
// fails, the next configured one is tried, up to the policy's attempt limit.
// An empty reply counts as success and is not retried.
func (g *Gateway) SendPrompt(ctx context.Context, system, user string) (string, error) {
	candidates := g.configured()
	if len(candidates) == 0 {
		return "", errs.ErrNoCredential
	}

	attempts := min(len(candidates), g.policy.MaxAttempts)
	var lastErr error
	for i := 0; i < attempts; i++ {
		ep := candidates[i]
		key, _ := g.creds.Get(ep.CredentialKey)

		start := time.Now()
		text, err := ep.Provider.Complete(ctx, key, Prompt{
			System:    system,
			User:      user,
			MaxTokens: g.maxTokens,
		})
		if err == nil {
			g.logger.Debug("LLM call succeeded",
				zap.String("provider", ep.Provider.Name()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("attempt", i+1))
			return text, nil
		}

		lastErr = fmt.Errorf("%s: %w", ep.Provider.Name(), err)
		g.logger.Warn("LLM call failed",
			zap.Error(err),
			zap.String("provider", ep.Provider.Name()),
			zap.Int("attempt", i+1))
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}
