package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// protocolVersion is sent in every event header.
const protocolVersion = "1.5.4"

// maxSection bounds data and payload sections read from the server.
const maxSection = 16 << 20

// event is one Wyoming message: a JSON header line, then optional data
// and payload sections whose lengths the header announces.
type event struct {
	Type    string
	Data    map[string]any
	Payload []byte
}

type header struct {
	Type          string         `json:"type"`
	Version       string         `json:"version,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

func writeEvent(w io.Writer, e event) error {
	var data []byte
	if len(e.Data) > 0 {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("encoding %s data: %w", e.Type, err)
		}
	}
	h, err := json.Marshal(header{
		Type:          e.Type,
		Version:       protocolVersion,
		DataLength:    len(data),
		PayloadLength: len(e.Payload),
	})
	if err != nil {
		return fmt.Errorf("encoding %s header: %w", e.Type, err)
	}

	frame := make([]byte, 0, len(h)+1+len(data)+len(e.Payload))
	frame = append(frame, h...)
	frame = append(frame, '\n')
	frame = append(frame, data...)
	frame = append(frame, e.Payload...)
	_, err = w.Write(frame)
	return err
}

func readEvent(r *bufio.Reader) (event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return event{}, fmt.Errorf("reading header: %w", err)
	}
	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return event{}, fmt.Errorf("decoding header %q: %w", line, err)
	}
	if h.DataLength < 0 || h.DataLength > maxSection || h.PayloadLength < 0 || h.PayloadLength > maxSection {
		return event{}, fmt.Errorf("%s: section length out of range", h.Type)
	}

	e := event{Type: h.Type, Data: h.Data}
	if h.DataLength > 0 {
		raw := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, raw); err != nil {
			return event{}, fmt.Errorf("reading %s data: %w", h.Type, err)
		}
		extra := map[string]any{}
		if err := json.Unmarshal(raw, &extra); err != nil {
			return event{}, fmt.Errorf("decoding %s data: %w", h.Type, err)
		}
		if e.Data == nil {
			e.Data = extra
		} else {
			for k, v := range extra {
				e.Data[k] = v
			}
		}
	}
	if h.PayloadLength > 0 {
		e.Payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, e.Payload); err != nil {
			return event{}, fmt.Errorf("reading %s payload: %w", h.Type, err)
		}
	}
	return e, nil
}

// intField reads a numeric field decoded from JSON.
func intField(data map[string]any, key string, fallback int) int {
	if v, ok := data[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}
