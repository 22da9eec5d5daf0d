package commands

import (
	"fmt"
	"io"
	"log/slog"

	"voice-orb/config"
	"voice-orb/internal/application"
	"voice-orb/internal/domain"
	"voice-orb/internal/infra/anthropic"
	"voice-orb/internal/infra/audio"
	"voice-orb/internal/infra/bridge"
	"voice-orb/internal/infra/capture"
	"voice-orb/internal/infra/gemini"
	"voice-orb/internal/infra/openai"
	"voice-orb/internal/infra/speech"
	"voice-orb/internal/infra/webhook"
)

func newAssistant(cfg *config.Config) (application.RemoteAssistant, error) {
	switch cfg.Assistant.Backend {
	case "webhook":
		return webhook.NewClient(cfg.Webhook.URL, cfg.RequestTimeout(), cfg.Webhook.EmptyReply), nil
	case "claude":
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Assistant.Name), nil
	case "gemini":
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Assistant.Name), nil
	default:
		return nil, fmt.Errorf("unknown assistant backend %q", cfg.Assistant.Backend)
	}
}

func newVoice(cfg config.VoiceConfig) domain.Voice {
	return domain.Voice{Locale: cfg.Locale, Rate: cfg.Rate, Pitch: cfg.Pitch}
}

func newSpeechToText(cfg *config.Config) application.SpeechToText {
	if cfg.OpenAI.APIKey == "" {
		return &application.NoopSTT{}
	}
	language := cfg.OpenAI.Language
	if language == "" {
		language = openai.LanguageFromLocale(cfg.Voice.Locale)
	}
	return openai.NewWhisperClient(cfg.OpenAI.APIKey, language)
}

func newCapture(cfg *config.Config, b *bridge.Bridge, logger *slog.Logger) (application.SpeechCapture, error) {
	switch cfg.Capture.Source {
	case "console":
		return capture.NewConsoleCapture(), nil
	case "bridge":
		return b, nil
	case "microphone":
		micCfg := audio.DefaultMicrophoneConfig()
		micCfg.SampleRate = cfg.Capture.SampleRate
		micCfg.MaxClip = cfg.MaxClip()
		micCfg.SilenceAfter = cfg.SilenceAfter()
		source := audio.NewMicrophoneSource(micCfg, logger)
		return capture.NewTranscribingCapture(source, newSpeechToText(cfg), logger), nil
	case "file":
		source := audio.NewFileSource(cfg.Capture.FileDir)
		return capture.NewTranscribingCapture(source, newSpeechToText(cfg), logger), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Capture.Source)
	}
}

func newOutput(cfg *config.Config, b *bridge.Bridge, w io.Writer, logger *slog.Logger) (application.SpeechOutput, error) {
	switch cfg.Speech.Output {
	case "console":
		return speech.NewConsoleOutput(w), nil
	case "command":
		return speech.NewCommandOutput(cfg.Speech.Command, logger), nil
	case "bridge":
		return b, nil
	default:
		return nil, fmt.Errorf("unknown speech output %q", cfg.Speech.Output)
	}
}
