// Package piper synthesizes speech with a Piper server over the Wyoming
// protocol (TCP, port 10200 by default).
//
// Every call dials its own connection, sends one synthesize event and
// collects audio-start, audio-chunk and audio-stop events until the
// utterance is complete. The connection is closed before returning.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/sidekick/internal/audio"
	"github.com/nadzzz/sidekick/internal/config"
	"github.com/nadzzz/sidekick/internal/tts"
)

// voices maps ISO-639-1 codes to Piper voice models.
var voices = map[string]string{
	"pt": "pt_BR-faber-medium",
	"en": "en_US-lessac-medium",
	"es": "es_ES-davefx-medium",
}

const fallbackLanguage = "pt"

// Synthesizer implements tts.Synthesizer against a Piper server.
type Synthesizer struct {
	addr    string
	voice   string
	timeout time.Duration
}

// New creates a synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	addr := cfg.Endpoint
	for _, scheme := range []string{"tcp://", "http://"} {
		addr = strings.TrimPrefix(addr, scheme)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{addr: addr, voice: cfg.Voice, timeout: timeout}
}

// voiceFor picks the explicit voice, then the configured one, then the
// language default.
func (s *Synthesizer) voiceFor(opts tts.SynthesizeOpts) string {
	switch {
	case opts.Voice != "":
		return opts.Voice
	case s.voice != "":
		return s.voice
	}
	if v, ok := voices[opts.Language]; ok {
		return v
	}
	return voices[fallbackLanguage]
}

// Synthesize renders text and returns it as a WAV file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("nothing to synthesize")
	}
	if s.addr == "" {
		return nil, errors.New("piper endpoint not configured")
	}
	voice := s.voiceFor(opts)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("dialing piper at %s: %w", s.addr, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	start := time.Now()
	err = writeEvent(conn, event{
		Type: "synthesize",
		Data: map[string]any{"text": text, "voice": map[string]any{"name": voice}},
	})
	if err != nil {
		return nil, fmt.Errorf("sending synthesize: %w", err)
	}

	pcm, format, err := collect(bufio.NewReader(conn))
	if err != nil {
		return nil, err
	}

	slog.Debug("piper synthesis complete", "voice", voice, "pcm_bytes", len(pcm),
		"sample_rate", format.rate, "duration", time.Since(start))
	return &tts.SynthesizeResult{
		Audio:       audio.EncodeWAV(pcm, format.rate, format.channels, format.width),
		ContentType: "audio/wav",
		SampleRate:  format.rate,
		Channels:    format.channels,
	}, nil
}

// Close is a no-op; connections never outlive a call.
func (s *Synthesizer) Close() error { return nil }

type pcmFormat struct {
	rate, width, channels int
}

// collect reads events until audio-stop and concatenates the chunks.
func collect(r *bufio.Reader) ([]byte, pcmFormat, error) {
	format := pcmFormat{rate: 22050, width: 2, channels: 1}
	var pcm bytes.Buffer
	for {
		e, err := readEvent(r)
		if err != nil {
			return nil, format, fmt.Errorf("reading piper response: %w", err)
		}
		switch e.Type {
		case "audio-start":
			format = pcmFormat{
				rate:     intField(e.Data, "rate", format.rate),
				width:    intField(e.Data, "width", format.width),
				channels: intField(e.Data, "channels", format.channels),
			}
		case "audio-chunk":
			pcm.Write(e.Payload)
		case "audio-stop":
			return pcm.Bytes(), format, nil
		case "error":
			msg, _ := e.Data["text"].(string)
			if msg == "" {
				msg = "unspecified error"
			}
			return nil, format, fmt.Errorf("piper: %s", msg)
		default:
			slog.Debug("ignoring piper event", "type", e.Type)
		}
	}
}
