// Package session runs one spoken interview from device selection to the
// written summary.
//
// The Orchestrator is a single-goroutine state machine. Per-turn failures
// (silence, timeouts, unrecognized speech) send it back to listening. Any
// other error or panic in the loop, including cancellation of the root
// context, ends the conversation; the summary and the record are still
// produced on a context detached from that cancellation.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/sidekick/internal/audio"
	"github.com/nadzzz/sidekick/internal/conversation"
	"github.com/nadzzz/sidekick/internal/report"
	"github.com/nadzzz/sidekick/internal/stt"
)

// ClosingLine is spoken when the session ends.
const ClosingLine = "Entendido. Encerrando a sessão e gerando o resumo."

// Resolver selects the capture strategy once per session.
type Resolver interface {
	Resolve(mode audio.Mode) (audio.Strategy, error)
}

// Capturer records one candidate turn.
type Capturer interface {
	Capture(ctx context.Context, s audio.Strategy) (audio.Sample, error)
}

// Engine is the dialogue side of the session.
type Engine interface {
	Open(ctx context.Context) string
	Reply(ctx context.Context, utterance string) string
	Summarize(ctx context.Context) (string, error)
	Transcript() *conversation.Transcript
}

// Speaker voices interviewer text. It must not fail.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// RecordWriter persists the final record.
type RecordWriter interface {
	Write(rec report.Record) error
	Path() string
}

// Publisher forwards the final record elsewhere.
type Publisher interface {
	Publish(ctx context.Context, rec report.Record) error
}

// Deps are the collaborators of an Orchestrator. Publisher is optional.
type Deps struct {
	Resolver    Resolver
	Capturer    Capturer
	Transcriber stt.Transcriber
	Engine      Engine
	Speaker     Speaker
	Writer      RecordWriter
	Publisher   Publisher
}

// Options configure an Orchestrator.
type Options struct {
	Mode audio.Mode

	// Out receives the console narration. Nil discards it.
	Out io.Writer

	// Observer, if set, is called synchronously on every state change.
	Observer func(State)
}

// Snapshot is a point-in-time view of a running session.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Strategy  string    `json:"strategy,omitempty"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
}

// Orchestrator drives a single interview.
type Orchestrator struct {
	deps     Deps
	mode     audio.Mode
	out      io.Writer
	observer func(State)

	id        string
	startedAt time.Time
	state     atomic.Int32
	strategy  atomic.Pointer[string]
	logger    *slog.Logger
}

// New creates an orchestrator with a fresh session id.
func New(deps Deps, opts Options) *Orchestrator {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	id := uuid.NewString()
	return &Orchestrator{
		deps:      deps,
		mode:      opts.Mode,
		out:       out,
		observer:  opts.Observer,
		id:        id,
		startedAt: time.Now(),
		logger:    slog.Default().With("session_id", id),
	}
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// State returns the current state. Safe for concurrent use.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Snapshot returns the current session view. Safe for concurrent use.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		SessionID: o.id,
		State:     o.State().String(),
		StartedAt: o.startedAt,
	}
	if p := o.strategy.Load(); p != nil {
		s.Strategy = *p
	}
	if o.deps.Engine != nil {
		s.Turns = len(o.deps.Engine.Transcript().Exchanges())
	}
	return s
}

// Run executes the session to completion. It returns an error only when no
// capture strategy could be selected or the record could not be written.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("session starting", "mode", o.mode)

	o.setState(StateSelectingCapture)
	strategy, err := o.deps.Resolver.Resolve(o.mode)
	if err != nil {
		o.setState(StateDone)
		return fmt.Errorf("selecting capture strategy: %w", err)
	}
	desc := strategy.Describe()
	o.strategy.Store(&desc)
	o.logger.Info("capture strategy selected", "strategy", desc)

	o.printf("\nAssistente pronto. Iniciando a conversa...\n")
	requested, err := o.converse(ctx, strategy)
	if err != nil {
		o.printf("Ocorreu um erro no loop principal: %v\n", err)
		o.logger.Error("conversation loop ended", "error", err)
	} else if requested {
		o.logger.Info("termination requested by candidate")
	}

	// The record is written even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)

	o.setState(StateTerminating)
	o.deps.Speaker.Speak(finishCtx, ClosingLine)

	o.setState(StateSummarizing)
	rec := o.summarize(finishCtx, desc)
	werr := o.deps.Writer.Write(rec)
	if werr != nil {
		o.printf("Ocorreu um erro ao salvar o resumo: %v\n", werr)
	} else {
		o.printf("\nTranscrição e resumo salvos em '%s'\n", o.deps.Writer.Path())
	}
	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.Publish(finishCtx, rec); err != nil {
			o.logger.Warn("publishing record failed", "error", err)
		}
	}

	o.setState(StateDone)
	o.logger.Info("session finished", "turns", len(rec.Turns), "duration", time.Since(o.startedAt))
	if werr != nil {
		return fmt.Errorf("writing record: %w", werr)
	}
	return nil
}

// converse runs the opening reply and the turn-taking loop. It returns
// true when the candidate asked to stop, and an error for anything that
// ended the loop otherwise.
func (o *Orchestrator) converse(ctx context.Context, strategy audio.Strategy) (requested bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	o.setState(StateAwaitingOpeningReply)
	o.deps.Speaker.Speak(ctx, o.deps.Engine.Open(ctx))

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		o.setState(StateListening)
		sample, err := o.deps.Capturer.Capture(ctx, strategy)
		if errors.Is(err, audio.ErrSilence) || errors.Is(err, audio.ErrTimeout) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("capturing: %w", err)
		}

		o.setState(StateTranscribing)
		text, err := o.deps.Transcriber.Transcribe(ctx, sample)
		if errors.Is(err, stt.ErrNoSpeech) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("transcribing: %w", err)
		}
		if IsTerminationRequest(text) {
			return true, nil
		}

		o.setState(StateDispatching)
		reply := o.deps.Engine.Reply(ctx, text)

		o.setState(StateSpeaking)
		o.deps.Speaker.Speak(ctx, reply)
	}
}

func (o *Orchestrator) summarize(ctx context.Context, strategy string) report.Record {
	rec := report.Record{
		SessionID: o.id,
		Strategy:  strategy,
		StartedAt: o.startedAt,
	}

	o.printf("\n\n Gerando Resumo da Entrevista \n")
	summary, err := o.safeSummarize(ctx)
	if err != nil {
		o.printf("Ocorreu um erro ao gerar o resumo: %v\n", err)
		o.logger.Error("summary failed", "error", err)
		rec.SummaryError = err.Error()
	} else {
		o.printf("\nResumo da Entrevista:\n%s\n", summary)
		rec.Summary = summary
	}

	rec.Turns = o.deps.Engine.Transcript().Exchanges()
	rec.FinishedAt = time.Now()
	return rec
}

func (o *Orchestrator) safeSummarize(ctx context.Context) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.deps.Engine.Summarize(ctx)
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	o.logger.Debug("state transition", "from", prev, "to", s)
	if o.observer != nil {
		o.observer(s)
	}
}

func (o *Orchestrator) printf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}
