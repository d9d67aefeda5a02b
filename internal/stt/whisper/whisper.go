// Package whisper implements the stt.Transcriber interface against a
// self-hosted Whisper server.
//
// Two flavours are supported:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/nadzzz/sidekick/internal/audio"
	"github.com/nadzzz/sidekick/internal/config"
	"github.com/nadzzz/sidekick/internal/stt"
)

// Client sends captured turns to a Whisper-compatible endpoint.
type Client struct {
	endpoint string
	kind     string // "openai" or "asr"
	model    string
	language string
	timeout  time.Duration
	out      io.Writer

	// HTTPClient may be replaced in tests.
	HTTPClient *http.Client
}

// New creates a new Whisper client from config. Recognized text is echoed to
// out as the candidate's line.
func New(cfg config.TranscriptionConfig, out io.Writer) *Client {
	kind := cfg.Type
	if kind == "" {
		kind = "openai"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		kind:       kind,
		model:      cfg.Model,
		language:   cfg.Language,
		timeout:    timeout,
		out:        out,
		HTTPClient: &http.Client{},
	}
}

// Transcribe uploads the sample as WAV. Any failure is logged and reported
// as stt.ErrNoSpeech.
func (c *Client) Transcribe(ctx context.Context, sample audio.Sample) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch c.kind {
	case "asr":
		text, err = c.transcribeASR(ctx, sample.WAV())
	default:
		text, err = c.transcribeOpenAI(ctx, sample.WAV())
	}
	if err != nil {
		if c.out != nil {
			fmt.Fprintf(c.out, "Erro na transcrição: %v\n", err)
		}
		slog.Warn("transcription failed", "kind", c.kind, "error", err)
		return "", stt.ErrNoSpeech
	}

	normalized, ok := stt.Normalize(text)
	if !ok {
		slog.Debug("transcription empty", "raw", text)
		return "", stt.ErrNoSpeech
	}
	if c.out != nil {
		fmt.Fprintf(c.out, "Candidato: %s\n", normalized)
	}
	return normalized, nil
}

// transcribeASR handles the ahmetoner/whisper-asr-webservice format.
// API: POST /asr?task=transcribe&language=pt&output=json
// Body: multipart/form-data with field "audio_file"
func (c *Client) transcribeASR(ctx context.Context, wav []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	q := make(url.Values)
	q.Set("task", "transcribe")
	q.Set("output", "json")
	q.Set("encode", "true")
	if c.language != "" {
		q.Set("language", c.language)
	}

	reqURL := c.endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	slog.Debug("whisper-asr request", "url", reqURL, "bytes", len(wav))
	return c.do(req)
}

// transcribeOpenAI handles OpenAI-compatible whisper endpoints.
func (c *Client) transcribeOpenAI(ctx context.Context, wav []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if c.model != "" {
		_ = writer.WriteField("model", c.model)
	}
	if c.language != "" {
		_ = writer.WriteField("language", c.language)
	}
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	slog.Debug("whisper request", "url", c.endpoint, "bytes", len(wav))
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return result.Text, nil
}
