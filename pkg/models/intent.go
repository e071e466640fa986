package models

// Strategy identifies which resolver produced an intent.
type Strategy string

const (
	StrategyRules Strategy = "rules"
	StrategyModel Strategy = "model"
)

// ResolvedIntent is the structured representation of what remote capability a
// question should invoke. A resolver always returns an intent, even when the
// sign slot is unknown; the slot-completeness gate decides what happens next.
type ResolvedIntent struct {
	Tool       Tool           `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"reasoning"`
	Question   string         `json:"question"`
	Strategy   Strategy       `json:"strategy"`
}

// StringArg returns the named argument as a string, or empty when absent or
// not a string.
func (in ResolvedIntent) StringArg(key string) string {
	if in.Arguments == nil {
		return ""
	}
	s, _ := in.Arguments[key].(string)
	return s
}

// IntArg returns the named argument as an int. JSON decoding yields float64
// for numbers, so both forms are accepted.
func (in ResolvedIntent) IntArg(key string) int {
	switch v := in.Arguments[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// ClarificationRequest asks the user for the information a tool call is
// missing, instead of failing the turn.
type ClarificationRequest struct {
	Intent     ResolvedIntent `json:"intent"`
	Question   string         `json:"question"`
	Candidates []string       `json:"followUpQuestions"`

	// InferredZodiac is set when a date fragment in the original question
	// allowed a sign to be guessed; the prompt then asks for confirmation.
	InferredZodiac string `json:"inferredZodiac,omitempty"`
	InferredDate   string `json:"inferredDate,omitempty"`
}
