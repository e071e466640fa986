// Package models contains domain models for astrachat.
package models

// Tool identifies a remote capability exposed by the horoscope MCP server.
type Tool string

const (
	ToolDailyHoroscope   Tool = "get_daily_horoscope"
	ToolWeeklyHoroscope  Tool = "get_weekly_horoscope"
	ToolMonthlyHoroscope Tool = "get_monthly_horoscope"
	ToolYearlyHoroscope  Tool = "get_yearly_horoscope"
	ToolCompatibility    Tool = "get_compatibility"
	ToolZodiacByDate     Tool = "get_zodiac_by_date"
	ToolAskZodiac        Tool = "ask_zodiac"
)

// AllTools is the closed tool vocabulary, in presentation order.
var AllTools = []Tool{
	ToolDailyHoroscope,
	ToolWeeklyHoroscope,
	ToolMonthlyHoroscope,
	ToolYearlyHoroscope,
	ToolCompatibility,
	ToolZodiacByDate,
	ToolAskZodiac,
}

// Valid reports whether t is part of the closed tool vocabulary.
func (t Tool) Valid() bool {
	for _, known := range AllTools {
		if t == known {
			return true
		}
	}
	return false
}

// IsHoroscope reports whether t is one of the horoscope-family tools,
// which all require a single zodiac argument.
func (t Tool) IsHoroscope() bool {
	switch t {
	case ToolDailyHoroscope, ToolWeeklyHoroscope, ToolMonthlyHoroscope, ToolYearlyHoroscope:
		return true
	}
	return false
}

// TimeRange is the horoscope period derived from the question.
type TimeRange string

const (
	RangeDaily   TimeRange = "daily"
	RangeWeekly  TimeRange = "weekly"
	RangeMonthly TimeRange = "monthly"
	RangeYearly  TimeRange = "yearly"
)

// HoroscopeTool maps a time range to the horoscope tool serving it.
func HoroscopeTool(r TimeRange) Tool {
	switch r {
	case RangeWeekly:
		return ToolWeeklyHoroscope
	case RangeMonthly:
		return ToolMonthlyHoroscope
	case RangeYearly:
		return ToolYearlyHoroscope
	default:
		return ToolDailyHoroscope
	}
}

// Range maps a horoscope tool back to its time range.
func (t Tool) Range() TimeRange {
	switch t {
	case ToolWeeklyHoroscope:
		return RangeWeekly
	case ToolMonthlyHoroscope:
		return RangeMonthly
	case ToolYearlyHoroscope:
		return RangeYearly
	default:
		return RangeDaily
	}
}

// Category is the fortune aspect derived from the question.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryLove      Category = "love"
	CategoryCareer    Category = "career"
	CategoryWealth    Category = "wealth"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
)

// UnknownZodiac marks a missing or unresolvable zodiac argument. The
// slot-completeness gate turns intents carrying it into clarifications.
const UnknownZodiac = "unknown"
