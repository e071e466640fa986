package intent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/astrachat/astrachat/pkg/models"
)

type fakeSessions struct {
	sign string

	rememberedSign string
	rememberedConf float64
	rememberedDate string
}

func (f *fakeSessions) Zodiac(string) (string, bool) {
	return f.sign, f.sign != ""
}

func (f *fakeSessions) RememberZodiac(_, sign string, confidence float64, date string) {
	f.rememberedSign = sign
	f.rememberedConf = confidence
	f.rememberedDate = date
}

type ResolverSuite struct {
	suite.Suite
	sessions *fakeSessions
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.sessions = &fakeSessions{}
	s.resolver = NewResolver(s.sessions, nil)
}

func (s *ResolverSuite) TestBirthDateWinsOverEverything() {
	// A date and a sign in the same question: the date decides the tool.
	intent, clar := s.resolver.Resolve(context.Background(), "s1", "狮子座的我其实是1996.02.10出生的，是什么星座？")

	s.Nil(clar)
	s.Equal(models.ToolZodiacByDate, intent.Tool)
	s.Equal(2, intent.IntArg("month"))
	s.Equal(10, intent.IntArg("day"))
	s.InDelta(0.95, intent.Confidence, 0.001)
	s.Equal(models.StrategyRules, intent.Strategy)
	s.Equal("水瓶座", s.sessions.rememberedSign, "resolved sign must be written back")
}

func (s *ResolverSuite) TestDateFormatVariants() {
	for _, q := range []string{
		"1996.08.23是什么星座",
		"1996-08-23是什么星座",
		"1996/08/23是什么星座",
		"1996年8月23日是什么星座",
	} {
		intent, clar := s.resolver.Resolve(context.Background(), "s1", q)
		s.Nil(clar, q)
		s.Equal(models.ToolZodiacByDate, intent.Tool, q)
		s.Equal(8, intent.IntArg("month"), q)
		s.Equal(23, intent.IntArg("day"), q)
	}
}

func (s *ResolverSuite) TestSignPairResolvesToCompatibility() {
	intent, clar := s.resolver.Resolve(context.Background(), "s1", "狮子座和白羊座合适吗？")

	s.Nil(clar)
	s.Equal(models.ToolCompatibility, intent.Tool)
	s.Equal("狮子座", intent.StringArg("sign1"))
	s.Equal("白羊座", intent.StringArg("sign2"))
	s.InDelta(0.95, intent.Confidence, 0.001)
}

func (s *ResolverSuite) TestEnglishSignNamesNormalized() {
	intent, clar := s.resolver.Resolve(context.Background(), "s1", "Is Leo compatible with Aries?")

	s.Nil(clar)
	s.Equal(models.ToolCompatibility, intent.Tool)
	s.Equal("狮子座", intent.StringArg("sign1"))
	s.Equal("白羊座", intent.StringArg("sign2"))
}

func (s *ResolverSuite) TestSingleSignWithTimeRange() {
	cases := []struct {
		question string
		tool     models.Tool
		category string
	}{
		{"狮子座今天运势怎么样", models.ToolDailyHoroscope, "general"},
		{"狮子座本周事业运怎么样", models.ToolWeeklyHoroscope, "career"},
		{"狮子座这个月财运如何", models.ToolMonthlyHoroscope, "wealth"},
		{"狮子座今年的爱情运势", models.ToolYearlyHoroscope, "love"},
	}
	for _, tc := range cases {
		intent, clar := s.resolver.Resolve(context.Background(), "s1", tc.question)
		s.Nil(clar, tc.question)
		s.Equal(tc.tool, intent.Tool, tc.question)
		s.Equal("狮子座", intent.StringArg("zodiac"), tc.question)
		s.Equal(tc.category, intent.StringArg("category"), tc.question)
	}
}

func (s *ResolverSuite) TestRememberedSignFillsOmittedSlot() {
	s.sessions.sign = "狮子座"

	intent, clar := s.resolver.Resolve(context.Background(), "s1", "本周事业运怎么样")

	s.Nil(clar)
	s.Equal(models.ToolWeeklyHoroscope, intent.Tool)
	s.Equal("狮子座", intent.StringArg("zodiac"))
	s.Equal("career", intent.StringArg("category"))
}

func (s *ResolverSuite) TestUnknownSignAsksForClarification() {
	intent, clar := s.resolver.Resolve(context.Background(), "s1", "我今天适合做什么？")

	s.Require().NotNil(clar)
	s.Equal(models.ToolAskZodiac, intent.Tool)
	s.Len(clar.Candidates, 12, "all signs with date ranges must be offered")
	s.Contains(clar.Candidates[0], "白羊座")
	s.Empty(s.sessions.rememberedSign, "nothing must be remembered before the user answers")
}

func (s *ResolverSuite) TestDontKnowAsksForBirthDate() {
	_, clar := s.resolver.Resolve(context.Background(), "s1", "我不知道自己是什么星座")

	s.Require().NotNil(clar)
	s.Contains(clar.Question, "出生日期")
	s.Empty(clar.Candidates)
}

func (s *ResolverSuite) TestMonthDayFragmentProposesInferredSign() {
	_, clar := s.resolver.Resolve(context.Background(), "s1", "我是2月10日出生的")

	s.Require().NotNil(clar)
	s.Equal("水瓶座", clar.InferredZodiac)
	s.Equal("2月10日", clar.InferredDate)
	s.Equal([]string{"水瓶座"}, clar.Candidates)
}

func (s *ResolverSuite) TestModelUpgradesWeakRulesResult() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		verdict := `{"tool":"get_weekly_horoscope","arguments":{"zodiac":"leo","category":"career"},"confidence":0.9,"reasoning":"follow-up about career","context":{"zodiac":"狮子座"}}`
		fmt.Fprintf(w, `{"choices":[{"message":{"content":"%s"}}]}`, jsonEscape("```json\n"+verdict+"\n```"))
	}))
	defer srv.Close()

	model := NewModelResolver(srv.URL, "test-key", "test-model", time.Second)
	resolver := NewResolver(s.sessions, model)

	intent, clar := resolver.Resolve(context.Background(), "s1", "接下来一段时间工作顺利吗")

	s.Nil(clar)
	s.Equal(models.ToolWeeklyHoroscope, intent.Tool)
	s.Equal("狮子座", intent.StringArg("zodiac"), "English sign from the model must be normalized")
	s.Equal(models.StrategyModel, intent.Strategy)
}

func (s *ResolverSuite) TestComparisonQuestionIsNotCompatibility() {
	// Two signs without a pairing connective is a comparison, and the first
	// named sign owns the horoscope.
	intent, clar := s.resolver.Resolve(context.Background(), "s1", "金牛座比狮子座今天运势好吗")

	s.Nil(clar)
	s.Equal(models.ToolDailyHoroscope, intent.Tool)
	s.Equal("金牛座", intent.StringArg("zodiac"))
}

func (s *ResolverSuite) TestModelBelowThresholdSignBearingClarifies() {
	// A populated sign does not rescue a low-confidence verdict: sign-bearing
	// tools under the confidence floor must clarify, never execute.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"tool\":\"get_daily_horoscope\",\"arguments\":{\"zodiac\":\"狮子座\"},\"confidence\":0.6,\"reasoning\":\"weak guess\"}"}}]}`)
	}))
	defer srv.Close()

	model := NewModelResolver(srv.URL, "test-key", "test-model", time.Second)
	resolver := NewResolver(s.sessions, model)

	intent, clar := resolver.Resolve(context.Background(), "s1", "帮我看看运势")

	s.Require().NotNil(clar)
	s.Equal(models.ToolDailyHoroscope, intent.Tool)
	s.InDelta(0.6, intent.Confidence, 0.001)
	s.Empty(s.sessions.rememberedSign, "a gated intent must not write back its sign")
}

func (s *ResolverSuite) TestModelFailureFallsBackToRules() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	model := NewModelResolver(srv.URL, "test-key", "test-model", time.Second)
	resolver := NewResolver(s.sessions, model)

	intent, clar := resolver.Resolve(context.Background(), "s1", "我今天适合做什么？")

	s.NotNil(clar)
	s.Equal(models.StrategyRules, intent.Strategy)
}

func (s *ResolverSuite) TestModelConfidentSignIsNotExecutedWithBrokenTool() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"tool\":\"delete_everything\",\"arguments\":{},\"confidence\":0.99}"}}]}`)
	}))
	defer srv.Close()

	model := NewModelResolver(srv.URL, "test-key", "test-model", time.Second)
	resolver := NewResolver(s.sessions, model)

	intent, clar := resolver.Resolve(context.Background(), "s1", "我今天适合做什么？")

	s.NotNil(clar, "out-of-vocabulary tool must be rejected")
	s.Equal(models.StrategyRules, intent.Strategy)
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

func TestExtractDateRejectsInvalid(t *testing.T) {
	for _, q := range []string{"1996.02.30是什么星座", "1996.13.01是什么星座", "没有日期"} {
		if _, _, ok := extractDate(q); ok {
			t.Fatalf("extractDate(%q) accepted an invalid date", q)
		}
	}
}

func TestMatchCompatibilityRequiresConnective(t *testing.T) {
	cases := []struct {
		question string
		ok       bool
		first    string
		second   string
	}{
		{"狮子座和白羊座合适吗？", true, "狮子座", "白羊座"},
		{"白羊座与摩羯座配对怎么样", true, "白羊座", "摩羯座"},
		{"金牛座跟天蝎座的关系如何", true, "金牛座", "天蝎座"},
		{"Is Leo compatible with Aries?", true, "狮子座", "白羊座"},
		{"金牛座比狮子座今天运势好吗", false, "", ""},
		{"狮子座白羊座", false, "", ""},
		{"我和狮子座合适吗", false, "", ""},
	}
	for _, tc := range cases {
		first, second, ok := matchCompatibility(tc.question)
		if ok != tc.ok || first != tc.first || second != tc.second {
			t.Fatalf("matchCompatibility(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.question, first, second, ok, tc.first, tc.second, tc.ok)
		}
	}
}

func TestExtractSignsOrderedByAppearance(t *testing.T) {
	signs := extractSigns("白羊座跟狮子座配吗，还是跟双鱼座更配？")
	if len(signs) != 3 {
		t.Fatalf("got %d signs, want 3", len(signs))
	}
	if signs[0] != "白羊座" || signs[1] != "狮子座" || signs[2] != "双鱼座" {
		t.Fatalf("wrong order: %v", signs)
	}
}
