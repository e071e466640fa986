package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a chat session. Turns are append-only; the
// session store retains only the most recent ones.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Tool       Tool      `json:"tool,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Session is a conversational identity spanning multiple turns. It remembers
// the user's zodiac sign once inferred so follow-up questions can omit it.
type Session struct {
	ID           string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Turns        []Turn    `json:"turns"`

	// Zodiac is the remembered sign, empty until inferred or set.
	// ZodiacConfidence guards against lower-confidence overwrites.
	Zodiac           string  `json:"zodiac,omitempty"`
	ZodiacConfidence float64 `json:"zodiacConfidence,omitempty"`
	// ZodiacDate is the birth date the sign was inferred from, if any.
	ZodiacDate string `json:"zodiacDate,omitempty"`
}

// RememberedZodiac returns the stored sign, or empty if none is known.
func (s *Session) RememberedZodiac() string {
	if s == nil || s.Zodiac == UnknownZodiac {
		return ""
	}
	return s.Zodiac
}
