package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Webhook   WebhookConfig   `yaml:"webhook"`
	Assistant AssistantConfig `yaml:"assistant"`
	Voice     VoiceConfig     `yaml:"voice"`
	Capture   CaptureConfig   `yaml:"capture"`
	Speech    SpeechConfig    `yaml:"speech"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Pushover  PushoverConfig  `yaml:"pushover"`
	Log       LogConfig       `yaml:"log"`
}

type WebhookConfig struct {
	URL        string `yaml:"url"`
	Timeout    string `yaml:"timeout"`
	EmptyReply string `yaml:"empty_reply"`
}

type AssistantConfig struct {
	// Backend is webhook, claude or gemini.
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
}

type VoiceConfig struct {
	Locale string  `yaml:"locale"`
	Rate   float64 `yaml:"rate"`
	Pitch  float64 `yaml:"pitch"`
}

type CaptureConfig struct {
	// Source is console, bridge, microphone or file.
	Source       string `yaml:"source"`
	FileDir      string `yaml:"file_dir"`
	SampleRate   int    `yaml:"sample_rate"`
	MaxClip      string `yaml:"max_clip"`
	SilenceAfter string `yaml:"silence_after"`
}

type SpeechConfig struct {
	// Output is console, command or bridge.
	Output  string   `yaml:"output"`
	Command []string `yaml:"command"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type BridgeConfig struct {
	Addr string `yaml:"addr"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${ENV} references in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Webhook.Timeout == "" {
		c.Webhook.Timeout = "30s"
	}
	if c.Assistant.Backend == "" {
		c.Assistant.Backend = "webhook"
	}
	if c.Assistant.Name == "" {
		c.Assistant.Name = "Shealth.ai"
	}
	if c.Voice.Locale == "" {
		c.Voice.Locale = "en-US"
	}
	if c.Voice.Rate == 0 {
		c.Voice.Rate = 1.0
	}
	if c.Voice.Pitch == 0 {
		c.Voice.Pitch = 1.0
	}
	if c.Capture.Source == "" {
		c.Capture.Source = "console"
	}
	if c.Capture.FileDir == "" {
		c.Capture.FileDir = "./audio"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.MaxClip == "" {
		c.Capture.MaxClip = "10s"
	}
	if c.Capture.SilenceAfter == "" {
		c.Capture.SilenceAfter = "1s"
	}
	if c.Speech.Output == "" {
		c.Speech.Output = "console"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Assistant.Backend {
	case "webhook":
		if c.Webhook.URL == "" {
			errs = append(errs, errors.New("webhook.url is required for the webhook backend"))
		}
	case "claude", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown assistant.backend %q", c.Assistant.Backend))
	}

	switch c.Capture.Source {
	case "console", "bridge", "microphone", "file":
	default:
		errs = append(errs, fmt.Errorf("unknown capture.source %q", c.Capture.Source))
	}

	switch c.Speech.Output {
	case "console", "command", "bridge":
	default:
		errs = append(errs, fmt.Errorf("unknown speech.output %q", c.Speech.Output))
	}

	for name, value := range map[string]string{
		"webhook.timeout":       c.Webhook.Timeout,
		"capture.max_clip":      c.Capture.MaxClip,
		"capture.silence_after": c.Capture.SilenceAfter,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
	}

	return errors.Join(errs...)
}

// RequestTimeout is the parsed webhook.timeout.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Webhook.Timeout)
	return d
}

func (c *Config) MaxClip() time.Duration {
	d, _ := time.ParseDuration(c.Capture.MaxClip)
	return d
}

func (c *Config) SilenceAfter() time.Duration {
	d, _ := time.ParseDuration(c.Capture.SilenceAfter)
	return d
}

// UsesBridge reports whether any adapter is served by the browser bridge.
func (c *Config) UsesBridge() bool {
	return c.Capture.Source == "bridge" || c.Speech.Output == "bridge"
}
