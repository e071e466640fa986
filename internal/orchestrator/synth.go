package orchestrator

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

// Phrase pools for synthesized horoscopes. Selection is a deterministic hash
// of sign, period, and date, so the same question gets the same answer within
// a day instead of flickering between refreshes.
var (
	moodPhrases = []string{
		"整体状态平稳向好，适合按部就班推进手头的事",
		"能量比较充沛，主动出击会有不错的回报",
		"节奏稍显起伏，遇事多留一步余地更稳妥",
		"直觉在线，重要决定可以多相信自己的判断",
		"适合沉淀和梳理，不必急于求成",
	}
	lovePhrases = []string{
		"感情方面沟通顺畅，适合表达真实想法",
		"桃花运平稳，已有伴侣的更要珍惜相处时光",
		"多一点耐心，感情里的小摩擦会自然化解",
	}
	careerPhrases = []string{
		"工作上容易获得同事支持，协作类任务进展顺利",
		"适合处理积压事务，收尾比开新局更有成效",
		"会有表现机会出现，提前做好准备就能抓住",
	}
	wealthPhrases = []string{
		"财运平稳，理性消费为上",
		"正财运不错，额外支出要量力而行",
		"适合盘点财务状况，暂缓大额投资",
	}
	healthPhrases = []string{
		"注意作息规律，别让疲劳积累",
		"状态不错，适量运动能锦上添花",
		"留意肩颈和用眼，久坐记得起来活动",
	}
)

var periodLabel = map[models.TimeRange]string{
	models.RangeDaily:   "今日",
	models.RangeWeekly:  "本周",
	models.RangeMonthly: "本月",
	models.RangeYearly:  "今年",
}

// Synthesize produces a plausible local answer for the intent. It never
// fails and never returns empty text; tier records how many remote attempts
// were exhausted first.
func Synthesize(intent models.ResolvedIntent, tier int) models.Answer {
	var text string
	switch {
	case intent.Tool == models.ToolZodiacByDate:
		text = synthZodiacByDate(intent)
	case intent.Tool == models.ToolCompatibility:
		text = synthCompatibility(intent)
	case intent.Tool.IsHoroscope():
		text = synthHoroscope(intent)
	default:
		text = synthFreeform(intent)
	}

	return models.Answer{
		Text:        text,
		Provenance:  models.ProvenanceSynthesized,
		Tool:        intent.Tool,
		Tier:        tier,
		GeneratedAt: time.Now(),
	}
}

// synthZodiacByDate is exact: the sign table answers date lookups with full
// fidelity, no remote needed.
func synthZodiacByDate(intent models.ResolvedIntent) string {
	month, day := intent.IntArg("month"), intent.IntArg("day")
	sign, ok := zodiac.ByDate(month, day)
	if !ok {
		return fmt.Sprintf("%d月%d日不是一个有效的日期，请确认后再试一次。", month, day)
	}
	return fmt.Sprintf("%d月%d日出生的是%s（%s）。%s", month, day, sign.Name, sign.DateRange, sign.Description)
}

func synthCompatibility(intent models.ResolvedIntent) string {
	first, okFirst := zodiac.ByName(intent.StringArg("sign1"))
	second, okSecond := zodiac.ByName(intent.StringArg("sign2"))
	if !okFirst || !okSecond {
		return "请告诉我两个具体的星座，我来帮你看配对。"
	}
	if first.Name == second.Name {
		return fmt.Sprintf("%s和%s是同星座组合，彼此太了解对方，相处的关键是保留一点新鲜感。", first.Name, second.Name)
	}
	for _, name := range first.Compatible {
		if name == second.Name {
			return fmt.Sprintf("%s和%s是天作之合：%s元素的%s与%s能自然互补，三观和节奏都容易对上，好好经营会很长久。",
				first.Name, second.Name, first.Element, first.Name, second.Name)
		}
	}
	if first.Element == second.Element {
		return fmt.Sprintf("%s和%s同属%s元素，默契是天生的，矛盾多半来自太相似，学会分工就很稳。",
			first.Name, second.Name, first.Element)
	}
	return fmt.Sprintf("%s（%s元素）和%s（%s元素）是互相磨合型的组合，差异既是摩擦点也是吸引力，多沟通少猜测。",
		first.Name, first.Element, second.Name, second.Element)
}

func synthHoroscope(intent models.ResolvedIntent) string {
	sign, ok := zodiac.ByName(intent.StringArg("zodiac"))
	if !ok {
		return "先告诉我你的星座，我再帮你看运势～"
	}

	period := intent.Tool.Range()
	seed := hashSeed(sign.Name, string(period), time.Now().Format("2006-01-02"))
	label := periodLabel[period]

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s运势：%s。", sign.Name, label, pick(moodPhrases, seed))
	switch models.Category(intent.StringArg("category")) {
	case models.CategoryLove:
		fmt.Fprintf(&b, "%s。", pick(lovePhrases, seed>>3))
	case models.CategoryCareer, models.CategoryEducation:
		fmt.Fprintf(&b, "%s。", pick(careerPhrases, seed>>3))
	case models.CategoryWealth:
		fmt.Fprintf(&b, "%s。", pick(wealthPhrases, seed>>3))
	case models.CategoryHealth:
		fmt.Fprintf(&b, "%s。", pick(healthPhrases, seed>>3))
	default:
		fmt.Fprintf(&b, "%s。%s。", pick(careerPhrases, seed>>3), pick(lovePhrases, seed>>5))
	}
	fmt.Fprintf(&b, "幸运数字%d，守护星%s会给你底气。", int(seed%9)+1, sign.Planet)
	return b.String()
}

func synthFreeform(intent models.ResolvedIntent) string {
	sign := intent.StringArg("zodiac")
	if resolved, ok := zodiac.ByName(sign); ok {
		return fmt.Sprintf("关于%s：%s守护星是%s，属于%s元素。想看具体运势的话，可以问我今日、本周、本月或年度运势。",
			resolved.Name, resolved.Description, resolved.Planet, resolved.Element)
	}
	return "我可以帮你查星座运势、星座配对，或根据出生日期判断星座。告诉我你的星座或出生日期吧～"
}

func pick(pool []string, seed uint64) string {
	return pool[seed%uint64(len(pool))]
}

func hashSeed(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return h.Sum64()
}
