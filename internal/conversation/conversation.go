// Package conversation defines the core data types flowing through an
// interview session: the role-tagged turns and the append-only transcript
// that the dialogue engine extends and the report writer persists.
package conversation

import (
	"sync"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleSystem is the directive that frames the language model's behavior.
	// It is always the first entry of a transcript.
	RoleSystem Role = "system"

	// RoleInterviewer is text generated by the language model and spoken aloud.
	RoleInterviewer Role = "interviewer"

	// RoleCandidate is transcribed speech captured from the candidate.
	RoleCandidate Role = "candidate"
)

// Label returns the human-readable label used in the written report.
func (r Role) Label() string {
	switch r {
	case RoleInterviewer:
		return "Entrevistador"
	case RoleCandidate:
		return "Candidato"
	case RoleSystem:
		return "Sistema"
	default:
		return string(r)
	}
}

// RoleFromLabel is the inverse of Role.Label.
func RoleFromLabel(label string) (Role, bool) {
	for _, r := range []Role{RoleInterviewer, RoleCandidate, RoleSystem} {
		if r.Label() == label {
			return r, true
		}
	}
	return "", false
}

// Turn is a single immutable entry of the transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered, append-only record of a session.
//
// The first entry is always the system directive passed to New. Entries are
// never modified or removed once appended. Turns returns a copy so callers
// cannot reach the backing array.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// New creates a transcript seeded with the given system directive.
func New(directive string) *Transcript {
	return &Transcript{
		turns: []Turn{{Role: RoleSystem, Content: directive}},
	}
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(role Role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, Turn{Role: role, Content: content})
}

// Turns returns a snapshot of every entry, directive included.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Exchanges returns the snapshot without the leading system directive.
func (t *Transcript) Exchanges() []Turn {
	turns := t.Turns()
	if len(turns) == 0 {
		return nil
	}
	return turns[1:]
}
