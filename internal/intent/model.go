package intent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

// ModelResolver asks an OpenAI-compatible chat endpoint to map a question
// onto the closed tool vocabulary. It is an accuracy upgrade over the rules,
// never a requirement: any failure falls back to the rules result.
type ModelResolver struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewModelResolver builds a resolver against an OpenAI-compatible
// chat-completions endpoint.
func NewModelResolver(endpoint, apiKey, model string, timeout time.Duration) *ModelResolver {
	return &ModelResolver{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

const systemPrompt = `你是星座咨询服务的意图解析器。把用户的问题映射到下面的工具之一，只输出一个 JSON 对象，不要输出任何其它文字。

工具:
- get_daily_horoscope: 今日运势, 参数 {"zodiac": 星座中文名}
- get_weekly_horoscope: 本周运势, 参数 {"zodiac": 星座中文名}
- get_monthly_horoscope: 本月运势, 参数 {"zodiac": 星座中文名}
- get_yearly_horoscope: 年度运势, 参数 {"zodiac": 星座中文名}
- get_compatibility: 星座配对, 参数 {"sign1": 星座中文名, "sign2": 星座中文名}
- get_zodiac_by_date: 按出生日期查星座, 参数 {"month": 月, "day": 日}
- ask_zodiac: 其它星座问题, 参数 {"question": 原问题, "zodiac": 星座中文名或"unknown"}

输出格式:
{"tool": "...", "arguments": {...}, "confidence": 0.0到1.0, "reasoning": "一句话理由", "context": {"zodiac": "提到的星座或unknown"}}

如果问题没有提到星座而上下文里有已知星座，就使用上下文星座。如果无法确定星座，zodiac 用 "unknown"。`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// modelVerdict is the strict JSON shape the model must emit.
type modelVerdict struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Context    struct {
		Zodiac string `json:"zodiac"`
	} `json:"context"`
}

// Resolve asks the model for a verdict. rememberedSign, when known, is given
// to the model as session context. The returned error means the caller should
// keep the rules result; a nil error always carries a validated intent.
func (m *ModelResolver) Resolve(ctx context.Context, question, rememberedSign string) (models.ResolvedIntent, error) {
	user := question
	if rememberedSign != "" && rememberedSign != models.UnknownZodiac {
		user = fmt.Sprintf("已知用户星座: %s\n问题: %s", rememberedSign, question)
	}

	body, err := json.Marshal(chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return models.ResolvedIntent{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ResolvedIntent{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return models.ResolvedIntent{}, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.ResolvedIntent{}, fmt.Errorf("chat completion: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return models.ResolvedIntent{}, fmt.Errorf("decode chat response: %w", err)
	}
	if chat.Error != nil {
		return models.ResolvedIntent{}, fmt.Errorf("chat completion: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return models.ResolvedIntent{}, fmt.Errorf("chat completion returned no choices")
	}

	verdict, err := parseVerdict(chat.Choices[0].Message.Content)
	if err != nil {
		return models.ResolvedIntent{}, err
	}
	intent, err := standardize(verdict, question)
	if err != nil {
		return models.ResolvedIntent{}, err
	}
	log.Debug().
		Str("tool", string(intent.Tool)).
		Float64("confidence", intent.Confidence).
		Msg("model resolved intent")
	return intent, nil
}

// parseVerdict extracts the JSON object from the model output, tolerating
// surrounding prose and markdown fences.
func parseVerdict(content string) (modelVerdict, error) {
	var verdict modelVerdict
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return verdict, fmt.Errorf("model output has no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return verdict, fmt.Errorf("parse model verdict: %w", err)
	}
	return verdict, nil
}

// standardize validates the verdict against the closed vocabulary and
// normalizes sign arguments to native names. An unknown tool or an
// out-of-table sign rejects the whole verdict.
func standardize(v modelVerdict, question string) (models.ResolvedIntent, error) {
	tool := models.Tool(v.Tool)
	if !tool.Valid() {
		return models.ResolvedIntent{}, fmt.Errorf("model picked unknown tool %q", v.Tool)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return models.ResolvedIntent{}, fmt.Errorf("model confidence %v out of range", v.Confidence)
	}

	args := v.Arguments
	if args == nil {
		args = map[string]any{}
	}
	for _, key := range []string{"zodiac", "sign1", "sign2"} {
		raw, ok := args[key].(string)
		if !ok || raw == "" || raw == models.UnknownZodiac {
			continue
		}
		sign, found := zodiac.ByName(raw)
		if !found {
			return models.ResolvedIntent{}, fmt.Errorf("model named unknown sign %q", raw)
		}
		args[key] = sign.Name
	}

	switch {
	case tool.IsHoroscope():
		if _, ok := args["zodiac"].(string); !ok {
			args["zodiac"] = models.UnknownZodiac
		}
		if _, ok := args["category"].(string); !ok {
			args["category"] = string(models.CategoryGeneral)
		}
	case tool == models.ToolZodiacByDate:
		month := intArg(args, "month")
		day := intArg(args, "day")
		if !zodiac.ValidDate(month, day) {
			return models.ResolvedIntent{}, fmt.Errorf("model produced invalid date %d-%d", month, day)
		}
		args["month"], args["day"] = month, day
	case tool == models.ToolAskZodiac:
		if _, ok := args["question"].(string); !ok {
			args["question"] = question
		}
		if _, ok := args["zodiac"].(string); !ok {
			args["zodiac"] = models.UnknownZodiac
		}
	}

	return models.ResolvedIntent{
		Tool:       tool,
		Arguments:  args,
		Confidence: v.Confidence,
		Rationale:  v.Reasoning,
		Question:   question,
		Strategy:   models.StrategyModel,
	}, nil
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}
