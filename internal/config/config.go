// Package config handles configuration and credentials for geminivoice.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. GEMINIVOICE_SPEECH_RATE.
const EnvPrefix = "GEMINIVOICE"

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" mapstructure:"style"`                           // "dark", "light", "dracula", ...
	EnableEmoji      bool   `json:"enable_emoji" mapstructure:"enable_emoji"`             // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines" mapstructure:"preserve_newlines"`   // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap" mapstructure:"table_wrap"`                 // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links" mapstructure:"inline_table_links"` // Render links inline in tables
}

// SpeechConfig configures the voice input and output capabilities
type SpeechConfig struct {
	Locale string  `json:"locale" mapstructure:"locale"`
	Rate   float64 `json:"rate" mapstructure:"rate"`
	Pitch  float64 `json:"pitch" mapstructure:"pitch"`

	// Synthesizer selects the TTS command: "auto", "espeak-ng", "espeak", "say", "spd-say" or "none".
	Synthesizer string `json:"synthesizer" mapstructure:"synthesizer"`

	// Recognizer selects the STT provider: "auto", "deepgram" or "none".
	Recognizer string `json:"recognizer" mapstructure:"recognizer"`

	// CaptureCommand is the ffmpeg binary used for microphone capture.
	CaptureCommand string `json:"capture_command" mapstructure:"capture_command"`
	InputFormat    string `json:"input_format" mapstructure:"input_format"` // ffmpeg -f value (pulse, alsa, avfoundation)
	InputDevice    string `json:"input_device" mapstructure:"input_device"` // ffmpeg -i value

	DeepgramModel   string `json:"deepgram_model" mapstructure:"deepgram_model"`
	DeepgramBaseURL string `json:"deepgram_base_url,omitempty" mapstructure:"deepgram_base_url"`

	// MaxListenSeconds bounds a single listening session.
	MaxListenSeconds int `json:"max_listen_seconds" mapstructure:"max_listen_seconds"`
}

// Config represents the user configuration
type Config struct {
	DefaultModel      string `json:"default_model" mapstructure:"default_model"`
	SystemInstruction string `json:"system_instruction,omitempty" mapstructure:"system_instruction"`
	Persona           string `json:"persona,omitempty" mapstructure:"persona"`

	// SpeakResponses is the initial state of the voice output toggle.
	SpeakResponses  bool   `json:"speak_responses" mapstructure:"speak_responses"`
	CopyToClipboard bool   `json:"copy_to_clipboard" mapstructure:"copy_to_clipboard"`
	Verbose         bool   `json:"verbose" mapstructure:"verbose"`
	LogLevel        string `json:"log_level" mapstructure:"log_level"`
	LogFile         string `json:"log_file,omitempty" mapstructure:"log_file"`
	TUITheme        string `json:"tui_theme,omitempty" mapstructure:"tui_theme"`

	Markdown MarkdownConfig `json:"markdown" mapstructure:"markdown"`
	Speech   SpeechConfig   `json:"speech" mapstructure:"speech"`

	// Credentials come from the environment only and are never written to disk.
	APIKey         string `json:"-" mapstructure:"api_key"`
	DeepgramAPIKey string `json:"-" mapstructure:"deepgram_api_key"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultSpeechConfig returns the default speech configuration
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Locale:           "en-US",
		Rate:             1,
		Pitch:            1,
		Synthesizer:      "auto",
		Recognizer:       "auto",
		CaptureCommand:   "ffmpeg",
		InputFormat:      "pulse",
		InputDevice:      "default",
		DeepgramModel:    "nova-2",
		MaxListenSeconds: 30,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		DefaultModel:    "gemini-2.5-flash",
		SpeakResponses:  true,
		CopyToClipboard: false,
		Verbose:         false,
		LogLevel:        "info",
		TUITheme:        "tokyonight",
		Markdown:        DefaultMarkdownConfig(),
		Speech:          DefaultSpeechConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".geminivoice"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the log file path, honoring an explicit LogFile.
func GetLogPath(cfg Config) (string, error) {
	if cfg.LogFile != "" {
		return cfg.LogFile, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "geminivoice.log"), nil
}

// LoadConfig loads the configuration from disk, the environment and .env
func LoadConfig() (Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return withCredentials(DefaultConfig()), err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from a specific file. A missing file
// yields the defaults (plus environment overrides).
func LoadConfigFrom(configPath string) (Config, error) {
	// .env never overrides variables already set in the process environment
	_ = godotenv.Load()

	v := newViper(configPath)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return withCredentials(DefaultConfig()), fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return withCredentials(DefaultConfig()), fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return withCredentials(DefaultConfig()), fmt.Errorf("failed to decode config: %w", err)
	}

	return withCredentials(cfg), nil
}

// newViper builds a viper instance seeded with every default so that
// environment overrides apply to all keys.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}
	v.SetDefault("api_key", "")
	v.SetDefault("deepgram_api_key", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// withCredentials fills API keys from the conventional variables.
func withCredentials(cfg Config) Config {
	cfg.APIKey = firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY"))
	cfg.DeepgramAPIKey = firstNonEmpty(cfg.DeepgramAPIKey, os.Getenv("DEEPGRAM_API_KEY"))
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	return SaveConfigTo(filepath.Join(configDir, "config.json"), cfg)
}

// SaveConfigTo writes the configuration to a specific path
func SaveConfigTo(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0o600: the file may hold a custom system instruction
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// defaultValues flattens DefaultConfig into dotted viper keys
func defaultValues() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"default_model":               d.DefaultModel,
		"system_instruction":          d.SystemInstruction,
		"persona":                     d.Persona,
		"speak_responses":             d.SpeakResponses,
		"copy_to_clipboard":           d.CopyToClipboard,
		"verbose":                     d.Verbose,
		"log_level":                   d.LogLevel,
		"log_file":                    d.LogFile,
		"tui_theme":                   d.TUITheme,
		"markdown.style":              d.Markdown.Style,
		"markdown.enable_emoji":       d.Markdown.EnableEmoji,
		"markdown.preserve_newlines":  d.Markdown.PreserveNewLines,
		"markdown.table_wrap":         d.Markdown.TableWrap,
		"markdown.inline_table_links": d.Markdown.InlineTableLinks,
		"speech.locale":               d.Speech.Locale,
		"speech.rate":                 d.Speech.Rate,
		"speech.pitch":                d.Speech.Pitch,
		"speech.synthesizer":          d.Speech.Synthesizer,
		"speech.recognizer":           d.Speech.Recognizer,
		"speech.capture_command":      d.Speech.CaptureCommand,
		"speech.input_format":         d.Speech.InputFormat,
		"speech.input_device":         d.Speech.InputDevice,
		"speech.deepgram_model":       d.Speech.DeepgramModel,
		"speech.deepgram_base_url":    d.Speech.DeepgramBaseURL,
		"speech.max_listen_seconds":   d.Speech.MaxListenSeconds,
	}
}

// SettableKeys returns the keys accepted by Set, sorted
func SettableKeys() []string {
	keys := make([]string, 0, len(defaultValues()))
	for k := range defaultValues() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a single dotted key from its string form.
func Set(cfg *Config, key, value string) error {
	parseBool := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not a boolean", key, value)
		}
		*dst = b
		return nil
	}
	parseFloat := func(dst *float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid value for %s: %q is not a positive number", key, value)
		}
		*dst = f
		return nil
	}

	switch key {
	case "default_model":
		cfg.DefaultModel = value
	case "system_instruction":
		cfg.SystemInstruction = value
	case "persona":
		cfg.Persona = value
	case "speak_responses":
		return parseBool(&cfg.SpeakResponses)
	case "copy_to_clipboard":
		return parseBool(&cfg.CopyToClipboard)
	case "verbose":
		return parseBool(&cfg.Verbose)
	case "log_level":
		cfg.LogLevel = value
	case "log_file":
		cfg.LogFile = value
	case "tui_theme":
		cfg.TUITheme = value
	case "markdown.style":
		cfg.Markdown.Style = value
	case "markdown.enable_emoji":
		return parseBool(&cfg.Markdown.EnableEmoji)
	case "markdown.preserve_newlines":
		return parseBool(&cfg.Markdown.PreserveNewLines)
	case "markdown.table_wrap":
		return parseBool(&cfg.Markdown.TableWrap)
	case "markdown.inline_table_links":
		return parseBool(&cfg.Markdown.InlineTableLinks)
	case "speech.locale":
		cfg.Speech.Locale = value
	case "speech.rate":
		return parseFloat(&cfg.Speech.Rate)
	case "speech.pitch":
		return parseFloat(&cfg.Speech.Pitch)
	case "speech.synthesizer":
		cfg.Speech.Synthesizer = value
	case "speech.recognizer":
		cfg.Speech.Recognizer = value
	case "speech.capture_command":
		cfg.Speech.CaptureCommand = value
	case "speech.input_format":
		cfg.Speech.InputFormat = value
	case "speech.input_device":
		cfg.Speech.InputDevice = value
	case "speech.deepgram_model":
		cfg.Speech.DeepgramModel = value
	case "speech.deepgram_base_url":
		cfg.Speech.DeepgramBaseURL = value
	case "speech.max_listen_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: %q is not a positive integer", key, value)
		}
		cfg.Speech.MaxListenSeconds = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Get returns the string form of a single dotted key
func Get(cfg Config, key string) (string, error) {
	formatFloat := func(f float64) string {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}

	switch key {
	case "default_model":
		return cfg.DefaultModel, nil
	case "system_instruction":
		return cfg.SystemInstruction, nil
	case "persona":
		return cfg.Persona, nil
	case "speak_responses":
		return strconv.FormatBool(cfg.SpeakResponses), nil
	case "copy_to_clipboard":
		return strconv.FormatBool(cfg.CopyToClipboard), nil
	case "verbose":
		return strconv.FormatBool(cfg.Verbose), nil
	case "log_level":
		return cfg.LogLevel, nil
	case "log_file":
		return cfg.LogFile, nil
	case "tui_theme":
		return cfg.TUITheme, nil
	case "markdown.style":
		return cfg.Markdown.Style, nil
	case "markdown.enable_emoji":
		return strconv.FormatBool(cfg.Markdown.EnableEmoji), nil
	case "markdown.preserve_newlines":
		return strconv.FormatBool(cfg.Markdown.PreserveNewLines), nil
	case "markdown.table_wrap":
		return strconv.FormatBool(cfg.Markdown.TableWrap), nil
	case "markdown.inline_table_links":
		return strconv.FormatBool(cfg.Markdown.InlineTableLinks), nil
	case "speech.locale":
		return cfg.Speech.Locale, nil
	case "speech.rate":
		return formatFloat(cfg.Speech.Rate), nil
	case "speech.pitch":
		return formatFloat(cfg.Speech.Pitch), nil
	case "speech.synthesizer":
		return cfg.Speech.Synthesizer, nil
	case "speech.recognizer":
		return cfg.Speech.Recognizer, nil
	case "speech.capture_command":
		return cfg.Speech.CaptureCommand, nil
	case "speech.input_format":
		return cfg.Speech.InputFormat, nil
	case "speech.input_device":
		return cfg.Speech.InputDevice, nil
	case "speech.deepgram_model":
		return cfg.Speech.DeepgramModel, nil
	case "speech.deepgram_base_url":
		return cfg.Speech.DeepgramBaseURL, nil
	case "speech.max_listen_seconds":
		return strconv.Itoa(cfg.Speech.MaxListenSeconds), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// AvailableModels returns a list of suggested model names
func AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-2.5-pro",
		"gemini-2.0-flash",
	}
}
