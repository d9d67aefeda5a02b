// Package tts renders the interviewer's replies as audible speech.
//
// A Synthesizer turns text into audio and a Player sends it to the speakers.
// Speaker acquires both for a single utterance and releases them before
// returning. Failures are confined to the utterance that caused them.
package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nadzzz/sidekick/internal/audio"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "pt", "en") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates a WAV-wrapped PCM 16-bit LE rendition of text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050).
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}

// Player plays mono PCM16 audio and blocks until done.
type Player interface {
	Play(ctx context.Context, pcm []int16, sampleRate int) error
}

// Speaker speaks one reply per call.
type Speaker struct {
	synth  Synthesizer // nil when TTS is disabled
	player Player
	opts   SynthesizeOpts
	out    io.Writer
}

// NewSpeaker creates a speaker. A nil synth only prints the text.
func NewSpeaker(synth Synthesizer, player Player, opts SynthesizeOpts, out io.Writer) *Speaker {
	return &Speaker{synth: synth, player: player, opts: opts, out: out}
}

// Speak prints and plays text. It never fails: errors and panics from the
// engine are logged and the utterance is dropped.
func (s *Speaker) Speak(ctx context.Context, text string) {
	if s.out != nil {
		fmt.Fprintf(s.out, "Sidekick: %s\n", text)
	}
	if s.synth == nil || text == "" {
		return
	}
	if err := s.speak(ctx, text); err != nil {
		if s.out != nil {
			fmt.Fprintf(s.out, "Ocorreu um erro crítico ao tentar falar: %v\n", err)
		}
		slog.Error("speech output failed", "error", err, "text_length", len(text))
	}
}

func (s *Speaker) speak(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("speech engine panic: %v", r)
		}
	}()

	res, err := s.synth.Synthesize(ctx, text, s.opts)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}

	pcm, info, err := audio.DecodeWAV(res.Audio)
	if err != nil {
		return fmt.Errorf("decoding synthesized audio: %w", err)
	}
	if info.BytesPerSample != 2 || info.Channels != 1 {
		return fmt.Errorf("unsupported synthesized format: %d channels, %d bytes per sample", info.Channels, info.BytesPerSample)
	}

	slog.Debug("playing synthesized speech", "sample_rate", info.SampleRate, "pcm_bytes", len(pcm))
	if err := s.player.Play(ctx, audio.BytesToInt16(pcm), info.SampleRate); err != nil {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}
