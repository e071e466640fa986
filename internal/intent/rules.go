package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

// Rule confidences. A birth date or an explicit sign pair is close to
// unambiguous; a single sign mention still depends on reading the time range
// right; anything else is a guess that needs the model or a clarification.
const (
	confidenceDate     = 0.95
	confidenceCompat   = 0.95
	confidenceSign     = 0.85
	confidenceFallback = 0.5
)

// Birth date formats accepted anywhere in the question. Full dates carry a
// year; the bare month-day form is only used to infer a sign for
// confirmation, never to resolve directly.
var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`),
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
		regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
	}
	monthDayPattern = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
)

// Compatibility requires two spans joined by a connective; two sign names
// merely co-occurring in a question (a comparison, say) are not a pairing.
var compatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(.+?)[和与跟](.+?)(?:配对|相配|配吗|般配|合适|适合|关系|compatib)`),
	regexp.MustCompile(`(?i)(.+?)\s(?:and|with)\s(.+?)(?:compatib|match|relationship|suitable)`),
	regexp.MustCompile(`(?i)(.+?)compatib\w*\s+with\s+(.+)`),
}

var dontKnowMarkers = []string{"不知道", "不清楚", "不确定", "不记得"}

var rangeKeywords = []struct {
	words []string
	r     models.TimeRange
}{
	{[]string{"本周", "这周", "这一周", "一周", "下周", "week"}, models.RangeWeekly},
	{[]string{"本月", "这个月", "这月", "月运", "month"}, models.RangeMonthly},
	{[]string{"今年", "本年", "年度", "全年", "year"}, models.RangeYearly},
	{[]string{"今天", "今日", "当天", "today"}, models.RangeDaily},
}

var categoryKeywords = []struct {
	words []string
	c     models.Category
}{
	{[]string{"爱情", "恋爱", "感情", "桃花", "脱单", "love"}, models.CategoryLove},
	{[]string{"事业", "工作", "职场", "升职", "跳槽", "career"}, models.CategoryCareer},
	{[]string{"财运", "财富", "金钱", "投资", "理财", "wealth"}, models.CategoryWealth},
	{[]string{"健康", "身体", "养生", "health"}, models.CategoryHealth},
	{[]string{"学业", "学习", "考试", "考研", "study"}, models.CategoryEducation},
}

// matchRules runs the ordered matchers. An explicit birth date wins over
// everything, a sign pair wins over a single sign, and a single sign resolves
// to the horoscope tool for the detected time range. rememberedSign fills in
// when the question names no sign at all.
func matchRules(question, rememberedSign string) models.ResolvedIntent {
	if month, day, ok := extractDate(question); ok {
		return models.ResolvedIntent{
			Tool:       models.ToolZodiacByDate,
			Arguments:  map[string]any{"month": month, "day": day},
			Confidence: confidenceDate,
			Rationale:  fmt.Sprintf("explicit birth date %d-%d", month, day),
			Question:   question,
			Strategy:   models.StrategyRules,
		}
	}

	if first, second, ok := matchCompatibility(question); ok {
		return models.ResolvedIntent{
			Tool:       models.ToolCompatibility,
			Arguments:  map[string]any{"sign1": first, "sign2": second},
			Confidence: confidenceCompat,
			Rationale:  fmt.Sprintf("sign pair %s / %s", first, second),
			Question:   question,
			Strategy:   models.StrategyRules,
		}
	}

	signs := extractSigns(question)
	sign := rememberedSign
	rationale := "remembered sign from session context"
	if len(signs) > 0 {
		sign = signs[0]
		rationale = "sign named in question"
	}
	if sign != "" && sign != models.UnknownZodiac {
		timeRange := extractRange(question)
		return models.ResolvedIntent{
			Tool:       models.HoroscopeTool(timeRange),
			Arguments:  map[string]any{"zodiac": sign, "category": string(extractCategory(question))},
			Confidence: confidenceSign,
			Rationale:  rationale,
			Question:   question,
			Strategy:   models.StrategyRules,
		}
	}

	return models.ResolvedIntent{
		Tool:       models.ToolAskZodiac,
		Arguments:  map[string]any{"question": question, "zodiac": models.UnknownZodiac},
		Confidence: confidenceFallback,
		Rationale:  "no date, sign, or remembered context matched",
		Question:   question,
		Strategy:   models.StrategyRules,
	}
}

// matchCompatibility fires only when a connective pattern yields two spans
// that both resolve to known signs. Either span failing rejects the whole
// pattern and the question falls through to the single-sign path.
func matchCompatibility(question string) (string, string, bool) {
	for _, pattern := range compatPatterns {
		m := pattern.FindStringSubmatch(question)
		if m == nil {
			continue
		}
		first, okFirst := zodiac.ByName(strings.TrimSpace(m[1]))
		second, okSecond := zodiac.ByName(strings.TrimSpace(m[2]))
		if okFirst && okSecond {
			return first.Name, second.Name, true
		}
	}
	return "", "", false
}

// extractDate finds a full birth date in any accepted format and validates it
// against the calendar up front.
func extractDate(question string) (month, day int, ok bool) {
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(question)
		if m == nil {
			continue
		}
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
		if zodiac.ValidDate(month, day) {
			return month, day, true
		}
	}
	return 0, 0, false
}

// extractMonthDay finds a bare month-day fragment like 2月10日.
func extractMonthDay(question string) (month, day int, ok bool) {
	m := monthDayPattern.FindStringSubmatch(question)
	if m == nil {
		return 0, 0, false
	}
	month, _ = strconv.Atoi(m[1])
	day, _ = strconv.Atoi(m[2])
	if !zodiac.ValidDate(month, day) {
		return 0, 0, false
	}
	return month, day, true
}

// extractSigns returns the distinct signs mentioned, in order of first
// appearance, normalized to native names.
func extractSigns(question string) []string {
	lower := strings.ToLower(question)
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	seen := make(map[string]bool)
	for _, sign := range zodiac.All() {
		pos := strings.Index(question, sign.Name)
		if pos < 0 {
			pos = strings.Index(lower, strings.ToLower(sign.EnglishName))
		}
		if pos >= 0 && !seen[sign.Name] {
			seen[sign.Name] = true
			hits = append(hits, hit{pos, sign.Name})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

func extractRange(question string) models.TimeRange {
	lower := strings.ToLower(question)
	for _, kw := range rangeKeywords {
		for _, word := range kw.words {
			if strings.Contains(lower, word) {
				return kw.r
			}
		}
	}
	return models.RangeDaily
}

func extractCategory(question string) models.Category {
	lower := strings.ToLower(question)
	for _, kw := range categoryKeywords {
		for _, word := range kw.words {
			if strings.Contains(lower, word) {
				return kw.c
			}
		}
	}
	return models.CategoryGeneral
}

func saysDontKnow(question string) bool {
	for _, marker := range dontKnowMarkers {
		if strings.Contains(question, marker) {
			return true
		}
	}
	return false
}
