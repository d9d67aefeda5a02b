// Package dialogue drives the conversation with the language model.
//
// The Engine owns the session transcript. In conversation mode every call
// extends it with the candidate's utterance and the interviewer's reply; in
// summary mode a different system directive is prepended to a copy and the
// canonical transcript is left untouched.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/sidekick/internal/conversation"
)

const (
	// InterviewerDirective frames the model as the interviewer.
	InterviewerDirective = "Você é um entrevistador de emprego amigável e profissional. Seu nome é Sidekick. " +
		"Você está conduzindo uma entrevista para uma vaga de desenvolvedor Python. " +
		"Comece a entrevista se apresentando e fazendo a primeira pergunta. " +
		"Faça uma pergunta por vez e espere a resposta do candidato. Mantenha suas respostas e perguntas concisas."

	// KickoffInstruction asks the model for its opening question.
	KickoffInstruction = "Comece a entrevista se apresentando e fazendo a primeira pergunta."

	// SummaryDirective turns the model into an HR analyst for the summary.
	SummaryDirective = "Você é um assistente de RH. Analise a transcrição da entrevista a seguir e forneça " +
		"um resumo conciso dos pontos principais. Destaque as habilidades, experiências e a adequação do " +
		"candidato para a vaga de desenvolvedor Python."

	// Apology replaces a reply the backend failed to produce.
	Apology = "Desculpe, estou com um problema de conexão no momento."
)

// ErrEmptyTranscript is returned by Summarize when nothing but the system
// directive has been recorded.
var ErrEmptyTranscript = errors.New("transcript has no exchanges to summarize")

// Backend produces the next message for a list of turns.
type Backend interface {
	Complete(ctx context.Context, turns []conversation.Turn) (string, error)
}

// Engine holds the transcript of one session and talks to the backend.
type Engine struct {
	backend    Backend
	transcript *conversation.Transcript
	logger     *slog.Logger
}

// NewEngine creates an engine over transcript. The transcript is shared by
// reference: the engine appends to it, everyone else only reads.
func NewEngine(backend Backend, transcript *conversation.Transcript) *Engine {
	return &Engine{
		backend:    backend,
		transcript: transcript,
		logger:     slog.Default().With("component", "dialogue"),
	}
}

// Transcript returns the transcript the engine extends.
func (e *Engine) Transcript() *conversation.Transcript {
	return e.transcript
}

// Open asks for the interviewer's opening. The kickoff instruction is sent
// to the backend but not recorded; only the reply is appended.
func (e *Engine) Open(ctx context.Context) string {
	turns := append(e.transcript.Turns(), conversation.Turn{
		Role:    conversation.RoleCandidate,
		Content: KickoffInstruction,
	})
	reply := e.complete(ctx, turns)
	e.transcript.Append(conversation.RoleInterviewer, reply)
	return reply
}

// Reply records the candidate's utterance and returns the interviewer's
// answer, which is recorded too. A backend failure yields Apology.
func (e *Engine) Reply(ctx context.Context, utterance string) string {
	e.transcript.Append(conversation.RoleCandidate, utterance)
	reply := e.complete(ctx, e.transcript.Turns())
	e.transcript.Append(conversation.RoleInterviewer, reply)
	return reply
}

// Summarize asks the backend for an HR summary of the whole transcript.
func (e *Engine) Summarize(ctx context.Context) (string, error) {
	turns := e.transcript.Turns()
	if len(turns) <= 1 {
		return "", ErrEmptyTranscript
	}
	req := make([]conversation.Turn, 0, len(turns)+1)
	req = append(req, conversation.Turn{Role: conversation.RoleSystem, Content: SummaryDirective})
	req = append(req, turns...)

	summary, err := e.backend.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("generating summary: empty response")
	}
	return summary, nil
}

func (e *Engine) complete(ctx context.Context, turns []conversation.Turn) string {
	reply, err := e.backend.Complete(ctx, turns)
	if err == nil {
		reply = strings.TrimSpace(reply)
	}
	if err != nil || reply == "" {
		e.logger.Error("language backend failed, using apology", "error", err, "turns", len(turns))
		return Apology
	}
	return reply
}
