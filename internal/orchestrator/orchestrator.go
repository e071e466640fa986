// Package orchestrator runs the degradation chain: an ordered list of
// (transport, encoding) attempts against the remote horoscope capability,
// bounded by per-attempt and overall deadlines, ending in a local synthesizer
// that always produces an answer.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/astrachat/astrachat/internal/config"
	"github.com/astrachat/astrachat/internal/mcp"
	"github.com/astrachat/astrachat/pkg/models"
)

// answerTTL bounds how long a remote horoscope answer is reused. Horoscope
// content changes at day granularity, so a day is the natural ceiling.
const answerTTL = 24 * time.Hour

// Orchestrator owns the attempt plan and the answer cache. Safe for
// concurrent use.
type Orchestrator struct {
	plan           []Attempt
	attemptTimeout time.Duration
	budget         time.Duration

	flight singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedAnswer
}

type cachedAnswer struct {
	answer  models.Answer
	expires time.Time
}

// New builds an orchestrator from configuration.
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		plan:           buildPlan(cfg),
		attemptTimeout: cfg.AttemptTimeout,
		budget:         cfg.OverallBudget,
		cache:          make(map[string]cachedAnswer),
	}
}

// Answer resolves the intent to text. It never returns an error: when every
// remote attempt fails the answer is synthesized locally and tagged as such.
// Identical in-flight horoscope lookups are collapsed to one remote call.
func (o *Orchestrator) Answer(ctx context.Context, intent models.ResolvedIntent) models.Answer {
	key, cacheable := cacheKey(intent)
	if !cacheable {
		return o.run(ctx, intent)
	}

	if answer, ok := o.cached(key); ok {
		return answer
	}
	v, _, _ := o.flight.Do(key, func() (any, error) {
		answer := o.run(ctx, intent)
		if answer.Remote() {
			o.store(key, answer)
		}
		return answer, nil
	})
	return v.(models.Answer)
}

// run walks the attempt ladder under the overall budget and falls through to
// the synthesizer. A protocol rejection of one encoding moves to the next
// attempt, never to a retry of the same one.
func (o *Orchestrator) run(ctx context.Context, intent models.ResolvedIntent) models.Answer {
	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	for tier, attempt := range o.plan {
		if ctx.Err() != nil {
			log.Warn().Int("tier", tier).Msg("overall budget exhausted before attempt")
			break
		}
		if answer, ok := o.try(ctx, tier, attempt, intent); ok {
			return answer
		}
	}
	return Synthesize(intent, len(o.plan))
}

func (o *Orchestrator) try(ctx context.Context, tier int, attempt Attempt, intent models.ResolvedIntent) (models.Answer, bool) {
	transport := attempt.Dial()
	defer transport.Close()

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	client := mcp.NewClient(transport, 0)
	outcome := client.CallTool(attemptCtx, string(intent.Tool), encodeArguments(intent, attempt.Encoding))

	switch outcome.Kind {
	case mcp.KindSuccess:
		return models.Answer{
			Text:         outcome.Text,
			Provenance:   models.ProvenanceRemote,
			Tool:         intent.Tool,
			Tier:         tier,
			Transport:    attempt.Transport,
			Encoding:     string(attempt.Encoding),
			SessionToken: outcome.SessionToken,
			GeneratedAt:  time.Now(),
		}, true
	case mcp.KindProtocolError:
		log.Debug().
			Int("tier", tier).
			Str("transport", attempt.Transport).
			Str("encoding", string(attempt.Encoding)).
			Int("code", outcome.Code).
			Str("message", outcome.Message).
			Msg("attempt rejected by server, advancing")
	case mcp.KindTimeout:
		log.Debug().
			Int("tier", tier).
			Str("transport", attempt.Transport).
			Str("encoding", string(attempt.Encoding)).
			Msg("attempt timed out, advancing")
	default:
		log.Debug().
			Int("tier", tier).
			Str("transport", attempt.Transport).
			Str("encoding", string(attempt.Encoding)).
			Err(outcome.Err).
			Msg("attempt failed, advancing")
	}
	return models.Answer{}, false
}

// cacheKey is defined only for the horoscope family, whose answers are stable
// within a period for a given sign and aspect.
func cacheKey(intent models.ResolvedIntent) (string, bool) {
	if !intent.Tool.IsHoroscope() {
		return "", false
	}
	return fmt.Sprintf("%s|%s|%s", intent.Tool, intent.StringArg("zodiac"), intent.StringArg("category")), true
}

func (o *Orchestrator) cached(key string) (models.Answer, bool) {
	o.mu.RLock()
	entry, ok := o.cache[key]
	o.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return models.Answer{}, false
	}
	return entry.answer, true
}

func (o *Orchestrator) store(key string, answer models.Answer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for k, entry := range o.cache {
		if now.After(entry.expires) {
			delete(o.cache, k)
		}
	}
	o.cache[key] = cachedAnswer{answer: answer, expires: now.Add(answerTTL)}
}

// CacheLen reports live cache entries, for the status endpoint.
func (o *Orchestrator) CacheLen() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cache)
}

// PlanLen reports the number of configured attempt tiers.
func (o *Orchestrator) PlanLen() int { return len(o.plan) }
