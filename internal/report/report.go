// Package report persists the outcome of an interview session.
//
// The primary artifact is a UTF-8 text file holding the full transcript
// followed by the generated summary. The same record can also be published
// as JSON to downstream HTTP services.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nadzzz/sidekick/internal/conversation"
)

const (
	transcriptHeader = " Transcrição Completa \n"
	summaryHeader    = "\n\n Resumo Gerado pela IA \n"

	// continuationIndent prefixes every line of a turn after its first, so
	// a reply line that looks like "Candidato: ..." is not read back as a
	// new turn.
	continuationIndent = "  "

	// UnavailableNote replaces the summary when it could not be generated.
	UnavailableNote = "Resumo indisponível"
)

// Record is the persisted outcome of a session.
type Record struct {
	SessionID    string              `json:"session_id"`
	Strategy     string              `json:"strategy,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Turns        []conversation.Turn `json:"turns"`
	Summary      string              `json:"summary,omitempty"`
	SummaryError string              `json:"summary_error,omitempty"`
}

// SummaryText is the text written under the summary header.
func (r Record) SummaryText() string {
	if r.SummaryError != "" {
		return fmt.Sprintf("%s: %s", UnavailableNote, r.SummaryError)
	}
	return r.Summary
}

// Writer writes records to a text file, replacing any previous content.
type Writer struct {
	path string
}

// NewWriter creates a writer for the given output path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// Write renders rec and overwrites the output file.
func (w *Writer) Write(rec Record) error {
	data := Render(rec)
	if err := os.WriteFile(w.path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	slog.Info("report written", "path", w.path, "turns", len(rec.Turns), "bytes", len(data))
	return nil
}

// Render formats rec in the text layout. System turns are omitted.
func Render(rec Record) string {
	var b strings.Builder
	b.WriteString(transcriptHeader)
	for _, t := range rec.Turns {
		if t.Role == conversation.RoleSystem {
			continue
		}
		content := strings.ReplaceAll(t.Content, "\n", "\n"+continuationIndent)
		fmt.Fprintf(&b, "%s: %s\n", t.Role.Label(), content)
	}
	b.WriteString(summaryHeader)
	b.WriteString(rec.SummaryText())
	return b.String()
}

// ErrMalformed is returned by Parse when the text does not follow the layout.
var ErrMalformed = errors.New("malformed report")

// Read loads a report file written by Writer.
func Read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("reading report: %w", err)
	}
	return Parse(string(data))
}

// Parse recovers the turns and summary from rendered text. Indented lines
// continue the previous turn. Unindented lines without a role label are
// also treated as continuations, as older files were written that way.
func Parse(text string) (Record, error) {
	body, ok := strings.CutPrefix(text, transcriptHeader)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing transcript header", ErrMalformed)
	}
	turnsText, summary, ok := strings.Cut(body, summaryHeader)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing summary header", ErrMalformed)
	}

	var rec Record
	rec.Summary = summary
	turnsText = strings.TrimSuffix(turnsText, "\n")
	if turnsText == "" {
		return rec, nil
	}

	for i, line := range strings.Split(turnsText, "\n") {
		if rest, indented := strings.CutPrefix(line, continuationIndent); indented && len(rec.Turns) > 0 {
			last := &rec.Turns[len(rec.Turns)-1]
			last.Content += "\n" + rest
			continue
		}
		if label, content, found := strings.Cut(line, ": "); found {
			if role, ok := conversation.RoleFromLabel(label); ok {
				rec.Turns = append(rec.Turns, conversation.Turn{Role: role, Content: content})
				continue
			}
		}
		if len(rec.Turns) == 0 {
			return Record{}, fmt.Errorf("%w: line %d has no role label", ErrMalformed, i+1)
		}
		last := &rec.Turns[len(rec.Turns)-1]
		last.Content += "\n" + line
	}
	return rec, nil
}
