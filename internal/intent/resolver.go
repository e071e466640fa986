// Package intent turns free-text questions into structured calls against the
// closed horoscope tool vocabulary. Resolution is layered: fast rule matchers
// first, an optional model-backed resolver when the rules are unsure, and a
// slot-completeness gate that converts under-specified intents into
// clarification prompts instead of doomed tool calls.
package intent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

// ConfidenceThreshold is the floor below which an intent is not executed
// without first trying the model resolver or asking the user.
const ConfidenceThreshold = 0.8

// SessionContext is the slice of the session store the resolver needs:
// reading and writing the remembered sign.
type SessionContext interface {
	Zodiac(sessionID string) (string, bool)
	RememberZodiac(sessionID, sign string, confidence float64, date string)
}

// Resolver resolves questions to intents for one deployment. model may be
// nil; the rules then stand alone.
type Resolver struct {
	sessions SessionContext
	model    *ModelResolver
}

func NewResolver(sessions SessionContext, model *ModelResolver) *Resolver {
	return &Resolver{sessions: sessions, model: model}
}

// Resolve maps question to an executable intent. When the intent cannot be
// completed from the question and session context, the returned clarification
// is non-nil and the intent must not be executed.
func (r *Resolver) Resolve(ctx context.Context, sessionID, question string) (models.ResolvedIntent, *models.ClarificationRequest) {
	remembered, _ := r.sessions.Zodiac(sessionID)

	intent := matchRules(question, remembered)
	if intent.Confidence < ConfidenceThreshold && r.model != nil {
		upgraded, err := r.model.Resolve(ctx, question, remembered)
		if err != nil {
			log.Debug().Err(err).Msg("model resolver unavailable, keeping rules result")
		} else if upgraded.Confidence > intent.Confidence {
			intent = upgraded
		}
	}

	if clarification := r.gate(intent, question); clarification != nil {
		return intent, clarification
	}

	r.remember(sessionID, intent)
	log.Debug().
		Str("sessionId", sessionID).
		Str("tool", string(intent.Tool)).
		Str("strategy", string(intent.Strategy)).
		Float64("confidence", intent.Confidence).
		Msg("intent resolved")
	return intent, nil
}

// gate enforces slot completeness per tool, and for sign-bearing tools also
// the confidence floor: a populated sign at low confidence is still a guess,
// so it clarifies rather than executes. A nil return means the intent is
// executable as-is.
func (r *Resolver) gate(intent models.ResolvedIntent, question string) *models.ClarificationRequest {
	switch intent.Tool {
	case models.ToolZodiacByDate:
		if zodiac.ValidDate(intent.IntArg("month"), intent.IntArg("day")) {
			return nil
		}
	case models.ToolCompatibility:
		if intent.Confidence >= ConfidenceThreshold && hasSign(intent, "sign1") && hasSign(intent, "sign2") {
			return nil
		}
	case models.ToolAskZodiac:
		if intent.Confidence >= ConfidenceThreshold {
			return nil
		}
	default:
		if intent.Tool.IsHoroscope() && intent.Confidence >= ConfidenceThreshold && hasSign(intent, "zodiac") {
			return nil
		}
	}
	return r.clarify(intent, question)
}

// clarify builds the prompt for a missing sign. A declared don't-know asks
// for a birth date; a bare month-day fragment proposes the inferred sign for
// confirmation; otherwise the full sign list with date ranges is offered.
func (r *Resolver) clarify(intent models.ResolvedIntent, question string) *models.ClarificationRequest {
	if saysDontKnow(question) {
		return &models.ClarificationRequest{
			Intent:   intent,
			Question: "没关系！告诉我你的出生日期（例如 1996.02.10），我帮你查出星座。",
		}
	}

	if month, day, ok := extractMonthDay(question); ok {
		if sign, found := zodiac.ByDate(month, day); found {
			return &models.ClarificationRequest{
				Intent:         intent,
				Question:       fmt.Sprintf("%d月%d日出生的是%s。要帮你看%s的运势吗？", month, day, sign.Name, sign.Name),
				Candidates:     []string{sign.Name},
				InferredZodiac: sign.Name,
				InferredDate:   fmt.Sprintf("%d月%d日", month, day),
			}
		}
	}

	signs := zodiac.All()
	candidates := make([]string, len(signs))
	for i, sign := range signs {
		candidates[i] = fmt.Sprintf("%s（%s）", sign.Name, sign.DateRange)
	}
	return &models.ClarificationRequest{
		Intent:     intent,
		Question:   "想了解运势的话，先告诉我你的星座吧～也可以直接告诉我出生日期。",
		Candidates: candidates,
	}
}

// remember writes the sign this intent establishes back into the session, so
// follow-up questions can omit it.
func (r *Resolver) remember(sessionID string, intent models.ResolvedIntent) {
	switch {
	case intent.Tool == models.ToolZodiacByDate:
		month, day := intent.IntArg("month"), intent.IntArg("day")
		if sign, ok := zodiac.ByDate(month, day); ok {
			r.sessions.RememberZodiac(sessionID, sign.Name, intent.Confidence, fmt.Sprintf("%d-%d", month, day))
		}
	case intent.Tool.IsHoroscope():
		r.sessions.RememberZodiac(sessionID, intent.StringArg("zodiac"), intent.Confidence, "")
	}
}

func hasSign(intent models.ResolvedIntent, key string) bool {
	sign := intent.StringArg(key)
	return sign != "" && sign != models.UnknownZodiac
}
