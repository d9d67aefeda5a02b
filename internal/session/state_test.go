package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminationRequest(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"eu gostaria de encerrar a entrevista", true},
		{"vamos cerrar a entrevista", true},
		{"pode serrar a entrevista agora", true},
		{"Encerrar a Entrevista", true},
		{"a entrevista está ótima", false},
		{"quero encerrar o projeto", false},
		{"encerrar", false},
		{"entrevista", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTerminationRequest(tc.text), "text %q", tc.text)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "listening", StateListening.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateSpeaking.InConversation())
	assert.False(t, StateTerminating.InConversation())
	assert.False(t, StateSelectingCapture.InConversation())
}
