package gateway

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrachat/astrachat/internal/config"
	"github.com/astrachat/astrachat/internal/intent"
	"github.com/astrachat/astrachat/internal/orchestrator"
	"github.com/astrachat/astrachat/internal/session"
)

// fakeMCP answers every tools/call with a canned remote answer over SSE.
func fakeMCP(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "text/event-stream")
		if req.Method == "initialize" {
			w.Header().Set("mcp-session-id", "sess-test")
			fmt.Fprint(w, `data: {"jsonrpc":"2.0","id":1,"result":{"capabilities":{}}}`+"\n\n")
			return
		}
		fmt.Fprint(w, `data: {"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"远程运势内容"}]}}`+"\n\n")
	}))
}

// testService builds a fully wired Service against a fake remote capability.
func testService(t *testing.T, mcpURL string) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.MCPURL = mcpURL
	cfg.MCPCommand = ""
	cfg.AttemptTimeout = time.Second
	cfg.OverallBudget = 5 * time.Second

	sessions := session.NewStore(session.Options{
		SessionTTL: cfg.SessionTTL,
		ContextTTL: cfg.ContextTTL,
		MaxTurns:   cfg.MaxTurns,
	})
	resolver := intent.NewResolver(sessions, nil)
	answers := orchestrator.New(cfg)

	return NewService("test-version", cfg, sessions, resolver, answers)
}

func doJSON(t *testing.T, svc *Service, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestCreateSession(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodPost, "/api/v1/chat/session", nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, body["sessionId"])
}

func TestAnalyzeAnswersFromRemote(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "狮子座今天运势怎么样",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "远程运势内容", body["answer"])
	assert.Equal(t, "mcp_remote", body["provenance"])
	assert.Equal(t, "get_daily_horoscope", body["tool"])
	assert.Equal(t, "sess-test", body["mcpSession"])
	assert.NotEmpty(t, body["sessionId"])
}

func TestAnalyzeRemembersSignAcrossTurns(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	_, first := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "狮子座今天运势怎么样",
	})
	sessionID := first["sessionId"].(string)

	rec, second := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"sessionId": sessionID,
		"question":  "本周事业运怎么样",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "get_weekly_horoscope", second["tool"], "remembered sign must complete the follow-up")
	assert.Nil(t, second["needsClarification"])
}

func TestAnonymousClientsGetDistinctSessions(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	// Client A establishes a sign without sending a session id.
	_, first := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "狮子座今天运势怎么样",
	})
	firstID, _ := first["sessionId"].(string)
	require.NotEmpty(t, firstID)

	// Client B, also id-less, must get a fresh session and must not inherit
	// client A's remembered sign.
	rec, second := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "本周事业运怎么样",
	})
	secondID, _ := second["sessionId"].(string)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, secondID)
	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, true, second["needsClarification"], "an anonymous client must not see another client's context")
}

func TestAnalyzeAsksForClarification(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "我今天适合做什么？",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["needsClarification"])
	assert.Len(t, body["followUpQuestions"], 12)
}

func TestAnalyzeSynthesizesWhenRemoteIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{
		"question": "狮子座今天运势怎么样",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local_synthesis", body["provenance"])
	assert.NotEmpty(t, body["answer"])
}

func TestAnalyzeValidation(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, _ := doJSON(t, svc, http.MethodPost, "/api/v1/chat/analyze", map[string]string{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/analyze", bytes.NewReader([]byte("{broken")))
	rec2 := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, _ := doJSON(t, svc, http.MethodGet, "/api/v1/chat/session/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetZodiacByNameAndByDate(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	_, created := doJSON(t, svc, http.MethodPost, "/api/v1/chat/session", nil)
	sessionID := created["sessionId"].(string)

	rec, body := doJSON(t, svc, http.MethodPost, "/api/v1/chat/set-zodiac", map[string]any{
		"sessionId": sessionID,
		"zodiac":    "Leo",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	zodiacInfo := body["zodiac"].(map[string]any)
	assert.Equal(t, "狮子座", zodiacInfo["name"])

	rec2, body2 := doJSON(t, svc, http.MethodPost, "/api/v1/chat/set-zodiac", map[string]any{
		"sessionId": sessionID,
		"month":     2,
		"day":       10,
	})
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "水瓶座", body2["zodiac"].(map[string]any)["name"])

	rec3, _ := doJSON(t, svc, http.MethodPost, "/api/v1/chat/set-zodiac", map[string]any{
		"sessionId": sessionID,
		"zodiac":    "不存在座",
	})
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
}

func TestSignsEndpoints(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodGet, "/api/v1/signs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["signs"], 12)

	rec2, sign := doJSON(t, svc, http.MethodGet, "/api/v1/signs/天蝎座", nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "Scorpio", sign["englishName"])

	rec3, _ := doJSON(t, svc, http.MethodGet, "/api/v1/signs/不存在座", nil)
	assert.Equal(t, http.StatusNotFound, rec3.Code)
}

func TestHealthzAndStatus(t *testing.T) {
	srv := fakeMCP(t)
	defer srv.Close()
	svc := testService(t, srv.URL)

	rec, body := doJSON(t, svc, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec2, status := doJSON(t, svc, http.MethodGet, "/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "test-version", status["version"])
	assert.Equal(t, float64(3), status["attemptTiers"])
}
