// Package config handles loading and validating the sidekick configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the sidekick interviewer.
type Config struct {
	Session       SessionConfig       `mapstructure:"session"`
	Capture       CaptureConfig       `mapstructure:"capture"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Dialogue      DialogueConfig      `mapstructure:"dialogue"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Report        ReportConfig        `mapstructure:"report"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// SessionConfig holds the interview session settings.
type SessionConfig struct {
	Mode string `mapstructure:"mode"` // "1"/"live", "2"/"local"; empty prompts on stdin
}

// CaptureConfig tunes device selection and turn-end detection.
type CaptureConfig struct {
	CableKeywords     []string      `mapstructure:"cable_keywords"`
	CalibrationWindow time.Duration `mapstructure:"calibration_window"`
	ListenTimeout     time.Duration `mapstructure:"listen_timeout"`     // max wait for first speech
	PhraseTimeLimit   time.Duration `mapstructure:"phrase_time_limit"`  // max phrase length
	PauseThreshold    time.Duration `mapstructure:"pause_threshold"`    // trailing silence that ends a phrase
	EnergyThreshold   float64       `mapstructure:"energy_threshold"`   // RMS floor on the int16 scale
	LoopbackWindow    time.Duration `mapstructure:"loopback_window"`    // fixed loopback recording window
	LoopbackThreshold float64       `mapstructure:"loopback_threshold"` // peak on the [-1,1] scale
}

// TranscriptionConfig configures the Whisper-compatible speech-to-text server.
type TranscriptionConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Type     string        `mapstructure:"type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"` // ISO-639-1
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DialogueConfig configures the OpenAI-compatible chat completions backend.
type DialogueConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"` // "piper"
	Piper   PiperConfig `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
	Voice    string        `mapstructure:"voice"`    // empty selects the voice for session language
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ReportConfig controls where the interview record is persisted.
type ReportConfig struct {
	OutputFile string   `mapstructure:"output_file"`
	Targets    []Target `mapstructure:"targets"`
}

// Target defines a downstream HTTP service that receives the JSON record.
type Target struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

// ServerConfig holds the status server settings. A zero port disables it.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
	GRPCPort   int `mapstructure:"grpc_port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ErrMissingAPIKey is returned by Validate when no language backend key is configured.
var ErrMissingAPIKey = errors.New("language backend API key is not set (GROQ_API_KEY)")

// Load reads the configuration from .env, file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./sidekick.yaml, ./configs/sidekick.yaml, /etc/sidekick/sidekick.yaml.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("session.mode", "")
	v.SetDefault("capture.cable_keywords", []string{"cable", "blackhole"})
	v.SetDefault("capture.calibration_window", time.Second)
	v.SetDefault("capture.listen_timeout", 7*time.Second)
	v.SetDefault("capture.phrase_time_limit", 15*time.Second)
	v.SetDefault("capture.pause_threshold", 800*time.Millisecond)
	v.SetDefault("capture.energy_threshold", 300.0)
	v.SetDefault("capture.loopback_window", 7*time.Second)
	v.SetDefault("capture.loopback_threshold", 0.01)
	v.SetDefault("transcription.endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("transcription.type", "openai")
	v.SetDefault("transcription.model", "base")
	v.SetDefault("transcription.language", "pt")
	v.SetDefault("transcription.timeout", 60*time.Second)
	v.SetDefault("dialogue.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("dialogue.api_key", "${GROQ_API_KEY}")
	v.SetDefault("dialogue.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("dialogue.timeout", 30*time.Second)
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.voice", "")
	v.SetDefault("tts.piper.timeout", 30*time.Second)
	v.SetDefault("report.output_file", "resumo_entrevista.txt")
	v.SetDefault("server.health_port", 0)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("sidekick")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sidekick")
	}

	// Environment variables: SIDEKICK_SESSION_MODE, SIDEKICK_DIALOGUE_API_KEY, etc.
	v.SetEnvPrefix("SIDEKICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GROQ_API_KEY}")
	cfg.Dialogue.APIKey = resolveEnvRef(cfg.Dialogue.APIKey)
	for i := range cfg.Report.Targets {
		cfg.Report.Targets[i].Token = resolveEnvRef(cfg.Report.Targets[i].Token)
	}

	return &cfg, nil
}

// Validate reports configuration that makes a session impossible to start.
func (c *Config) Validate() error {
	key := strings.TrimSpace(c.Dialogue.APIKey)
	if key == "" || isEnvRef(key) {
		return ErrMissingAPIKey
	}
	if c.Report.OutputFile == "" {
		return errors.New("report.output_file must not be empty")
	}
	switch c.Transcription.Type {
	case "openai", "asr":
	default:
		return fmt.Errorf("unknown transcription type %q", c.Transcription.Type)
	}
	if c.TTS.Enabled && c.TTS.Backend != "piper" {
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	return nil
}

func isEnvRef(val string) bool {
	return strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}")
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if isEnvRef(val) {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
// Logs go to w so that stdout stays reserved for the interview console.
func SetupLogging(cfg LoggingConfig, w io.Writer) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
