package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nadzzz/sidekick/internal/config"
)

// Publisher delivers records as JSON to downstream HTTP services.
type Publisher struct {
	targets []config.Target

	// HTTPClient may be replaced in tests.
	HTTPClient *http.Client
}

// NewPublisher creates a publisher for the given targets.
func NewPublisher(targets []config.Target) *Publisher {
	return &Publisher{
		targets:    targets,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Publish POSTs rec to every target. A failing target does not stop the
// others; all failures are returned joined.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	if len(p.targets) == 0 {
		return nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}

	var errs []error
	for _, target := range p.targets {
		if err := p.send(ctx, target, payload); err != nil {
			slog.Error("failed to publish record", "target", target.Name, "error", err)
			errs = append(errs, fmt.Errorf("target %s: %w", target.Name, err))
			continue
		}
		slog.Info("record published", "target", target.Name, "session_id", rec.SessionID)
	}
	return errors.Join(errs...)
}

func (p *Publisher) send(ctx context.Context, target config.Target, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if target.Token != "" {
		req.Header.Set("Authorization", "Bearer "+target.Token)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http send: status %d: %s", resp.StatusCode, body)
	}

	slog.Debug("http send success", "target", target.Endpoint, "status", resp.StatusCode)
	return nil
}
