package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	CacheDir  string `toml:"cache_dir"`
	ModelsDir string `toml:"models_dir"`
}

// LLM contains shared LLM connection settings used by the splitter,
// optimizer, and the OpenAI-style translator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translator contains configuration for the translation stage.
type Translator struct {
	Service        string `toml:"service"`
	TargetLanguage string `toml:"target_language"`
	DeepLXEndpoint string `toml:"deeplx_endpoint"`
	NeedReflect    bool   `toml:"need_reflect"`
}

// Subtitles contains configuration for subtitle splitting and rendering.
type Subtitles struct {
	Layout              string `toml:"layout"`
	Style               string `toml:"style"`
	SplitStrategy       string `toml:"split_strategy"`
	MaxWordCountCJK     int    `toml:"max_word_count_cjk"`
	MaxWordCountEnglish int    `toml:"max_word_count_english"`
	RemovePunctuation   bool   `toml:"remove_punctuation"`
	CustomPrompt        string `toml:"custom_prompt"`
}

// Pipeline contains stage toggles and batch dispatch limits.
type Pipeline struct {
	NeedSplit     bool `toml:"need_split"`
	NeedOptimize  bool `toml:"need_optimize"`
	NeedTranslate bool `toml:"need_translate"`
	ThreadNum     int  `toml:"thread_num"`
	BatchSize     int  `toml:"batch_size"`
	RetryTimes    int  `toml:"retry_times"`
}

// Quota contains configuration for the bundled shared endpoint and its
// daily usage limit.
type Quota struct {
	DailyLimit    int    `toml:"daily_limit"`
	SharedBaseURL string `toml:"shared_base_url"`
	RetentionDays int    `toml:"retention_days"`
}

// Transcribe contains configuration for local whisper.cpp transcription.
type Transcribe struct {
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	Threads        int    `toml:"threads"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Captioner.
//
// Configuration sections by subsystem:
//   - Paths: data, cache, log, and model directories
//   - LLM: shared connection settings for LLM-backed stages
//   - Translator: translation service selection and target language
//   - Subtitles: split limits, output layout, and styling
//   - Pipeline: stage toggles and batch dispatch limits
//   - Quota: shared endpoint daily usage limit
//   - Transcribe: local whisper.cpp settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Translator    Translator    `toml:"translator"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Quota         Quota         `toml:"quota"`
	Transcribe    Transcribe    `toml:"transcribe"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captioner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/captioner/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// ModelsDir is created on a best-effort basis so the CLI can run when the
// model store lives on external storage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ModelsDir) != "" {
		_ = os.MkdirAll(c.Paths.ModelsDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database file holding tasks and the
// usage ledger.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "captioner.db")
}

// UsesSharedEndpoint reports whether LLM calls go to the bundled shared
// endpoint, which is subject to the daily quota. An empty base URL counts:
// GetLLM falls back to the shared endpoint in that case.
func (c *Config) UsesSharedEndpoint() bool {
	base := strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	shared := strings.TrimRight(strings.TrimSpace(c.Quota.SharedBaseURL), "/")
	return shared != "" && (base == "" || base == shared)
}

// WhisperBinary returns the whisper.cpp executable name.
func (c *Config) WhisperBinary() string {
	return "whisper-cli"
}

// FFmpegBinary returns the ffmpeg executable name used for audio probing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains resolved LLM connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings. When no base URL is
// configured the bundled shared endpoint is used.
func (c *Config) GetLLM() LLMConfig {
	cfg := LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(c.Quota.SharedBaseURL)
	}
	return cfg
}
