package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

const maxQuestionLen = 2000

type analyzeRequest struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

type analyzeResponse struct {
	SessionID  string  `json:"sessionId"`
	Answer     string  `json:"answer"`
	Provenance string  `json:"provenance"`
	Tool       string  `json:"tool"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`

	Tier       int    `json:"tier"`
	Transport  string `json:"transport,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	MCPSession string `json:"mcpSession,omitempty"`

	NeedsClarification bool     `json:"needsClarification,omitempty"`
	FollowUpQuestions  []string `json:"followUpQuestions,omitempty"`
	InferredZodiac     string   `json:"inferredZodiac,omitempty"`
	InferredDate       string   `json:"inferredDate,omitempty"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	respondJSON(w, http.StatusCreated, map[string]any{
		"sessionId": sess.ID,
		"createdAt": sess.CreatedAt,
	})
}

// handleAnalyze is the main conversational endpoint: resolve the question to
// an intent, then either ask for clarification or run the degradation chain.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	if len(req.Question) > maxQuestionLen {
		respondError(w, http.StatusBadRequest, "question too long")
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	resolved, clarification := s.resolver.Resolve(r.Context(), sess.ID, req.Question)

	s.sessions.AppendTurn(sess.ID, models.Turn{
		Role:       models.RoleUser,
		Content:    req.Question,
		Timestamp:  time.Now(),
		Tool:       resolved.Tool,
		Confidence: resolved.Confidence,
	})

	if clarification != nil {
		s.sessions.AppendTurn(sess.ID, models.Turn{
			Role:      models.RoleAssistant,
			Content:   clarification.Question,
			Timestamp: time.Now(),
		})
		respondJSON(w, http.StatusOK, analyzeResponse{
			SessionID:          sess.ID,
			Answer:             clarification.Question,
			Tool:               string(resolved.Tool),
			Confidence:         resolved.Confidence,
			Strategy:           string(resolved.Strategy),
			NeedsClarification: true,
			FollowUpQuestions:  clarification.Candidates,
			InferredZodiac:     clarification.InferredZodiac,
			InferredDate:       clarification.InferredDate,
		})
		return
	}

	answer := s.answers.Answer(r.Context(), resolved)
	s.sessions.AppendTurn(sess.ID, models.Turn{
		Role:      models.RoleAssistant,
		Content:   answer.Text,
		Timestamp: time.Now(),
		Tool:      answer.Tool,
	})

	log.Info().
		Str("sessionId", sess.ID).
		Str("tool", string(answer.Tool)).
		Str("provenance", string(answer.Provenance)).
		Int("tier", answer.Tier).
		Msg("question answered")

	respondJSON(w, http.StatusOK, analyzeResponse{
		SessionID:  sess.ID,
		Answer:     answer.Text,
		Provenance: string(answer.Provenance),
		Tool:       string(answer.Tool),
		Confidence: resolved.Confidence,
		Strategy:   string(resolved.Strategy),
		Tier:       answer.Tier,
		Transport:  answer.Transport,
		Encoding:   answer.Encoding,
		MCPSession: answer.SessionToken,
	})
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type setZodiacRequest struct {
	SessionID string `json:"sessionId"`
	Zodiac    string `json:"zodiac"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
}

// handleSetZodiac lets a client pin the session's sign explicitly, either by
// name or by birth date. An explicit statement is full confidence.
func (s *Service) handleSetZodiac(w http.ResponseWriter, r *http.Request) {
	var req setZodiacRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	var (
		sign zodiac.Sign
		ok   bool
		date string
	)
	switch {
	case req.Zodiac != "":
		sign, ok = zodiac.ByName(req.Zodiac)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown zodiac sign")
			return
		}
	case req.Month != 0 || req.Day != 0:
		sign, ok = zodiac.ByDate(req.Month, req.Day)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid birth date")
			return
		}
		date = time.Date(2000, time.Month(req.Month), req.Day, 0, 0, 0, 0, time.UTC).Format("1月2日")
	default:
		respondError(w, http.StatusBadRequest, "zodiac or birth date is required")
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	s.sessions.RememberZodiac(sess.ID, sign.Name, 1.0, date)

	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"zodiac": map[string]string{
			"name":        sign.Name,
			"englishName": sign.EnglishName,
			"dateRange":   sign.DateRange,
		},
	})
}

func (s *Service) handleListSigns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"signs": zodiac.All()})
}

func (s *Service) handleGetSign(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sign")
	sign, ok := zodiac.ByName(name)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown zodiac sign")
		return
	}
	respondJSON(w, http.StatusOK, sign)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime":         time.Since(s.startTime).String(),
		"sessions":       s.sessions.Len(),
		"cachedAnswers":  s.answers.CacheLen(),
		"attemptTiers":   s.answers.PlanLen(),
		"modelResolver":  s.config.ModelEnabled(),
		"mcpUrl":         s.config.MCPURL,
		"pipeConfigured": s.config.MCPCommand != "",
	})
}
