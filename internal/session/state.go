package session

import "strings"

// State is a step of the interview state machine.
type State int32

const (
	StateSelectingCapture State = iota
	StateAwaitingOpeningReply
	StateListening
	StateTranscribing
	StateDispatching
	StateSpeaking
	StateTerminating
	StateSummarizing
	StateDone
)

var stateNames = [...]string{
	StateSelectingCapture:     "selecting_capture",
	StateAwaitingOpeningReply: "awaiting_opening_reply",
	StateListening:            "listening",
	StateTranscribing:         "transcribing",
	StateDispatching:          "dispatching",
	StateSpeaking:             "speaking",
	StateTerminating:          "terminating",
	StateSummarizing:          "summarizing",
	StateDone:                 "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// InConversation reports whether s belongs to the turn-taking loop.
func (s State) InConversation() bool {
	return s >= StateAwaitingOpeningReply && s <= StateSpeaking
}

// terminationVerbs covers how the recognizer commonly spells "encerrar".
var terminationVerbs = []string{"encerrar", "cerrar", "serrar"}

// IsTerminationRequest reports whether the candidate asked to end the
// interview: the text mentions "entrevista" together with one of the
// closing verbs.
func IsTerminationRequest(text string) bool {
	text = strings.ToLower(text)
	if !strings.Contains(text, "entrevista") {
		return false
	}
	for _, v := range terminationVerbs {
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}
