// Sidekick conducts an automated spoken job interview: it listens to the
// candidate on a call or a local microphone, transcribes each turn, asks a
// language model for the next question, speaks it, and writes a transcript
// with an HR summary when the candidate asks to end the interview.
//
// Usage:
//
//	sidekick [flags]
//	sidekick --mode live --config /path/to/sidekick.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadzzz/sidekick/internal/audio"
	"github.com/nadzzz/sidekick/internal/audio/portaudio"
	"github.com/nadzzz/sidekick/internal/config"
	"github.com/nadzzz/sidekick/internal/console"
	"github.com/nadzzz/sidekick/internal/conversation"
	"github.com/nadzzz/sidekick/internal/dialogue"
	"github.com/nadzzz/sidekick/internal/dialogue/openai"
	"github.com/nadzzz/sidekick/internal/report"
	"github.com/nadzzz/sidekick/internal/session"
	"github.com/nadzzz/sidekick/internal/status"
	"github.com/nadzzz/sidekick/internal/stt/whisper"
	"github.com/nadzzz/sidekick/internal/tts"
	"github.com/nadzzz/sidekick/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/sidekick.yaml)")
	modeFlag := flag.String("mode", "", "session mode: 1|live or 2|local (prompts when empty)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sidekick %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging. stdout belongs to the interview console.
	config.SetupLogging(cfg.Logging, os.Stderr)
	slog.Info("sidekick starting", "version", version)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Println("Erro ao inicializar o cliente Groq: chave de API ausente.")
			fmt.Println("Verifique sua GROQ_API_KEY no arquivo .env")
		}
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if *modeFlag != "" {
		cfg.Session.Mode = *modeFlag
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	// The mode prompt runs before signal handling is installed so that
	// Ctrl-C there still terminates the process.
	mode, err := selectMode(cfg.Session.Mode)
	if err != nil {
		slog.Error("failed to select session mode", "error", err)
		return 1
	}

	host, err := portaudio.Open()
	if err != nil {
		fmt.Printf("Erro ao inicializar o áudio: %v\n", err)
		slog.Error("audio initialization failed", "error", err)
		return 1
	}
	defer host.Close()

	// Create root context with signal handling; cancellation ends the
	// conversation and still produces the summary.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Speech-to-text.
	transcriber := whisper.New(cfg.Transcription, os.Stdout)
	slog.Info("using whisper transcriber",
		"endpoint", cfg.Transcription.Endpoint,
		"type", cfg.Transcription.Type,
		"language", cfg.Transcription.Language)

	// Language backend.
	engine := dialogue.NewEngine(openai.New(cfg.Dialogue), conversation.New(dialogue.InterviewerDirective))
	slog.Info("using chat completions backend", "base_url", cfg.Dialogue.BaseURL, "model", cfg.Dialogue.Model)

	// Text-to-speech (optional).
	var synth tts.Synthesizer
	if cfg.TTS.Enabled {
		synth = piper.New(cfg.TTS.Piper)
		defer synth.Close()
		slog.Info("TTS enabled", "backend", cfg.TTS.Backend, "endpoint", cfg.TTS.Piper.Endpoint)
	}
	speaker := tts.NewSpeaker(synth, host, tts.SynthesizeOpts{
		Language: cfg.Transcription.Language,
		Voice:    cfg.TTS.Piper.Voice,
	}, os.Stdout)

	var (
		statusSrv *status.Server
		healthSrv *status.HealthServer
	)
	observe := func(s session.State) {
		live := s.InConversation()
		if statusSrv != nil {
			statusSrv.SetReady(live)
		}
		if healthSrv != nil {
			healthSrv.SetServing(live)
		}
	}

	deps := session.Deps{
		Resolver:    audio.NewResolver(host, cfg.Capture.CableKeywords, os.Stdout),
		Capturer:    audio.NewCapturer(host, captureOptions(cfg.Capture), os.Stdout),
		Transcriber: transcriber,
		Engine:      engine,
		Speaker:     speaker,
		Writer:      report.NewWriter(cfg.Report.OutputFile),
	}
	if len(cfg.Report.Targets) > 0 {
		deps.Publisher = report.NewPublisher(cfg.Report.Targets)
	}
	orch := session.New(deps, session.Options{
		Mode:     mode,
		Out:      os.Stdout,
		Observer: observe,
	})
	slog.Info("session created", "session_id", orch.ID(), "mode", mode)

	// Status servers outlive the signal context so they can report the
	// summary phase.
	srvCtx, stopServers := context.WithCancel(context.Background())
	defer stopServers()

	if cfg.Server.HealthPort > 0 {
		statusSrv = status.New(cfg.Server.HealthPort, orch)
		go func() {
			if err := statusSrv.ListenAndServe(srvCtx); err != nil {
				slog.Error("status server failed", "error", err)
			}
		}()
	}
	if cfg.Server.GRPCPort > 0 {
		healthSrv = status.NewHealthServer(cfg.Server.GRPCPort)
		go func() {
			if err := healthSrv.ListenAndServe(srvCtx); err != nil {
				slog.Error("grpc health server failed", "error", err)
			}
		}()
	}

	if err := orch.Run(ctx); err != nil {
		var noDevice *audio.NoCaptureDeviceError
		if errors.As(err, &noDevice) {
			slog.Error("no capture device available", "error", err)
		} else {
			slog.Error("session failed", "error", err)
		}
		return 1
	}

	slog.Info("sidekick stopped", "session_id", orch.ID())
	return 0
}

// selectMode uses the configured mode, or asks on stdin when there is none.
func selectMode(configured string) (audio.Mode, error) {
	if configured != "" {
		return audio.ParseMode(configured)
	}
	return console.SelectMode(os.Stdin, os.Stdout)
}

func captureOptions(c config.CaptureConfig) audio.CaptureOptions {
	return audio.CaptureOptions{
		CalibrationWindow: c.CalibrationWindow,
		ListenTimeout:     c.ListenTimeout,
		PhraseTimeLimit:   c.PhraseTimeLimit,
		PauseThreshold:    c.PauseThreshold,
		EnergyThreshold:   c.EnergyThreshold,
		LoopbackWindow:    c.LoopbackWindow,
		LoopbackThreshold: c.LoopbackThreshold,
	}
}
