package models

import "time"

// Provenance tags where an answer came from, so callers can always tell a
// genuine remote answer from a locally synthesized one.
type Provenance string

const (
	ProvenanceRemote      Provenance = "mcp_remote"
	ProvenanceSynthesized Provenance = "local_synthesis"
)

// Answer is the terminal result of the degradation chain for a single turn.
type Answer struct {
	Text       string     `json:"answer"`
	Provenance Provenance `json:"provenance"`
	Tool       Tool       `json:"tool"`

	// Tier is the index of the attempt descriptor that produced the answer;
	// it equals the attempt count when the answer was synthesized.
	Tier      int    `json:"tier"`
	Transport string `json:"transport,omitempty"`
	Encoding  string `json:"encoding,omitempty"`

	SessionToken string    `json:"mcpSession,omitempty"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Remote reports whether the answer came from the remote capability.
func (a Answer) Remote() bool { return a.Provenance == ProvenanceRemote }
