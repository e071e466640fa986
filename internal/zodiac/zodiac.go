// Package zodiac provides the static zodiac sign table: sign lookup by date,
// by name, and the ordered list of the twelve signs. The table is immutable
// and loaded once.
package zodiac

import "strings"

// MonthDay is an inclusive calendar boundary of a sign's date range.
type MonthDay struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Sign describes one of the twelve zodiac signs.
type Sign struct {
	Name        string   `json:"name"`
	EnglishName string   `json:"englishName"`
	DateRange   string   `json:"dateRange"`
	Start       MonthDay `json:"dateStart"`
	End         MonthDay `json:"dateEnd"`
	Element     string   `json:"element"`
	Quality     string   `json:"quality"`
	Planet      string   `json:"planet"`
	Description string   `json:"description"`
	Compatible  []string `json:"compatibleSigns"`
}

// signs is ordered by date range start, beginning with Aries. Capricorn is
// the boundary sign whose range wraps December into January.
var signs = []Sign{
	{
		Name: "白羊座", EnglishName: "Aries", DateRange: "3月21日 - 4月19日",
		Start: MonthDay{3, 21}, End: MonthDay{4, 19},
		Element: "火", Quality: "主动", Planet: "火星",
		Description: "充满活力和冒险精神的先驱者",
		Compatible:  []string{"狮子座", "射手座", "水瓶座"},
	},
	{
		Name: "金牛座", EnglishName: "Taurus", DateRange: "4月20日 - 5月20日",
		Start: MonthDay{4, 20}, End: MonthDay{5, 20},
		Element: "土", Quality: "固定", Planet: "金星",
		Description: "稳重踏实的享受主义者",
		Compatible:  []string{"处女座", "摩羯座", "巨蟹座"},
	},
	{
		Name: "双子座", EnglishName: "Gemini", DateRange: "5月21日 - 6月21日",
		Start: MonthDay{5, 21}, End: MonthDay{6, 21},
		Element: "风", Quality: "变动", Planet: "水星",
		Description: "聪明好奇的信息传递者",
		Compatible:  []string{"天秤座", "水瓶座", "狮子座"},
	},
	{
		Name: "巨蟹座", EnglishName: "Cancer", DateRange: "6月22日 - 7月22日",
		Start: MonthDay{6, 22}, End: MonthDay{7, 22},
		Element: "水", Quality: "主动", Planet: "月亮",
		Description: "敏感温柔的家庭守护者",
		Compatible:  []string{"天蝎座", "双鱼座", "金牛座"},
	},
	{
		Name: "狮子座", EnglishName: "Leo", DateRange: "7月23日 - 8月22日",
		Start: MonthDay{7, 23}, End: MonthDay{8, 22},
		Element: "火", Quality: "固定", Planet: "太阳",
		Description: "自信慷慨的领导者",
		Compatible:  []string{"白羊座", "射手座", "双子座"},
	},
	{
		Name: "处女座", EnglishName: "Virgo", DateRange: "8月23日 - 9月22日",
		Start: MonthDay{8, 23}, End: MonthDay{9, 22},
		Element: "土", Quality: "变动", Planet: "水星",
		Description: "细致完美的分析师",
		Compatible:  []string{"金牛座", "摩羯座", "双鱼座"},
	},
	{
		Name: "天秤座", EnglishName: "Libra", DateRange: "9月23日 - 10月23日",
		Start: MonthDay{9, 23}, End: MonthDay{10, 23},
		Element: "风", Quality: "主动", Planet: "金星",
		Description: "优雅和谐的和平缔造者",
		Compatible:  []string{"双子座", "水瓶座", "狮子座"},
	},
	{
		Name: "天蝎座", EnglishName: "Scorpio", DateRange: "10月24日 - 11月22日",
		Start: MonthDay{10, 24}, End: MonthDay{11, 22},
		Element: "水", Quality: "固定", Planet: "冥王星",
		Description: "深刻神秘的变革者",
		Compatible:  []string{"巨蟹座", "双鱼座", "处女座"},
	},
	{
		Name: "射手座", EnglishName: "Sagittarius", DateRange: "11月23日 - 12月21日",
		Start: MonthDay{11, 23}, End: MonthDay{12, 21},
		Element: "火", Quality: "变动", Planet: "木星",
		Description: "自由奔放的冒险家",
		Compatible:  []string{"白羊座", "狮子座", "天秤座"},
	},
	{
		Name: "摩羯座", EnglishName: "Capricorn", DateRange: "12月22日 - 1月19日",
		Start: MonthDay{12, 22}, End: MonthDay{1, 19},
		Element: "土", Quality: "主动", Planet: "土星",
		Description: "务实负责的成就者",
		Compatible:  []string{"金牛座", "处女座", "天蝎座"},
	},
	{
		Name: "水瓶座", EnglishName: "Aquarius", DateRange: "1月20日 - 2月18日",
		Start: MonthDay{1, 20}, End: MonthDay{2, 18},
		Element: "风", Quality: "固定", Planet: "天王星",
		Description: "独立创新的人道主义者",
		Compatible:  []string{"双子座", "天秤座", "射手座"},
	},
	{
		Name: "双鱼座", EnglishName: "Pisces", DateRange: "2月19日 - 3月20日",
		Start: MonthDay{2, 19}, End: MonthDay{3, 20},
		Element: "水", Quality: "变动", Planet: "海王星",
		Description: "敏感梦幻的梦想家",
		Compatible:  []string{"巨蟹座", "天蝎座", "双鱼座"},
	},
}

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ValidDate reports whether (month, day) is a real calendar date. February 29
// is accepted since the table is year-agnostic.
func ValidDate(month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= daysInMonth[month]
}

// ByDate returns the sign whose date range covers (month, day). The twelve
// ranges partition the calendar, so every valid date resolves to exactly one
// sign; invalid dates return false.
func ByDate(month, day int) (Sign, bool) {
	if !ValidDate(month, day) {
		return Sign{}, false
	}
	for _, s := range signs {
		if month == s.Start.Month && day >= s.Start.Day {
			return s, true
		}
		if month == s.End.Month && day <= s.End.Day {
			return s, true
		}
	}
	// Mid-range months fall between a sign's start and end month only when
	// the range spans a month boundary, which none of the twelve do beyond
	// adjacent months; unreachable for valid dates.
	return Sign{}, false
}

// ByName resolves text to a sign by exact or substring match against the
// native or English name. English matching is case-insensitive.
func ByName(text string) (Sign, bool) {
	if text == "" {
		return Sign{}, false
	}
	lower := strings.ToLower(text)
	for _, s := range signs {
		if strings.Contains(text, s.Name) || strings.Contains(lower, strings.ToLower(s.EnglishName)) {
			return s, true
		}
	}
	return Sign{}, false
}

// All returns the twelve signs in table order.
func All() []Sign {
	out := make([]Sign, len(signs))
	copy(out, signs)
	return out
}

// Names returns the native names of all twelve signs in table order.
func Names() []string {
	out := make([]string, len(signs))
	for i, s := range signs {
		out[i] = s.Name
	}
	return out
}

// Translate maps a native sign name to its English name, or returns the
// input unchanged when it is not a known sign.
func Translate(name string) string {
	for _, s := range signs {
		if s.Name == name {
			return s.EnglishName
		}
	}
	return name
}
