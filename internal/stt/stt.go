// Package stt defines the speech-to-text contract used by the interview loop.
//
// A transcriber consumes one captured turn and returns the recognized text.
// Every recognition failure, from an unreachable server to an empty result,
// collapses into ErrNoSpeech: the session treats it exactly like silence and
// listens again.
package stt

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/nadzzz/sidekick/internal/audio"
)

// ErrNoSpeech means nothing usable was recognized in the sample.
var ErrNoSpeech = errors.New("no speech recognized")

// Transcriber converts captured audio to text.
type Transcriber interface {
	// Transcribe returns lower-cased text, or ErrNoSpeech.
	Transcribe(ctx context.Context, sample audio.Sample) (string, error)
}

// Normalize lower-cases and trims recognizer output. It returns false when
// nothing but whitespace and punctuation remains.
func Normalize(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return text, true
		}
	}
	return "", false
}
