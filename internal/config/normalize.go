package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTranslator()
	c.normalizeSubtitles()
	// Quota defaults must land before the pipeline clamp checks whether
	// the shared endpoint is in use.
	c.normalizeQuota()
	c.normalizePipeline()
	c.normalizeTranscribe()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelsDir) == "" {
		c.Paths.ModelsDir = defaultModelsDir
	}
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranslator() {
	c.Translator.Service = strings.ToLower(strings.TrimSpace(c.Translator.Service))
	if c.Translator.Service == "" {
		c.Translator.Service = defaultTranslatorService
	}
	c.Translator.TargetLanguage = strings.TrimSpace(c.Translator.TargetLanguage)
	if c.Translator.TargetLanguage == "" {
		c.Translator.TargetLanguage = defaultTargetLanguage
	}
	c.Translator.DeepLXEndpoint = strings.TrimSpace(c.Translator.DeepLXEndpoint)
	if c.Translator.DeepLXEndpoint == "" {
		c.Translator.DeepLXEndpoint = defaultDeepLXEndpoint
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Layout = strings.ToLower(strings.TrimSpace(c.Subtitles.Layout))
	if c.Subtitles.Layout == "" {
		c.Subtitles.Layout = defaultSubtitleLayout
	}
	c.Subtitles.SplitStrategy = strings.ToLower(strings.TrimSpace(c.Subtitles.SplitStrategy))
	if c.Subtitles.SplitStrategy == "" {
		c.Subtitles.SplitStrategy = defaultSplitStrategy
	}
	if c.Subtitles.MaxWordCountCJK <= 0 {
		c.Subtitles.MaxWordCountCJK = defaultMaxWordCountCJK
	}
	if c.Subtitles.MaxWordCountEnglish <= 0 {
		c.Subtitles.MaxWordCountEnglish = defaultMaxWordCountEnglish
	}
}

// normalizePipeline clamps dispatch limits while the shared endpoint is in
// use so a single client cannot saturate it.
func (c *Config) normalizePipeline() {
	if c.Pipeline.ThreadNum <= 0 {
		c.Pipeline.ThreadNum = defaultThreadNum
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.RetryTimes < 0 {
		c.Pipeline.RetryTimes = defaultRetryTimes
	}
	if c.UsesSharedEndpoint() {
		if c.Pipeline.ThreadNum > sharedThreadNum {
			c.Pipeline.ThreadNum = sharedThreadNum
		}
		if c.Pipeline.BatchSize > sharedBatchSize {
			c.Pipeline.BatchSize = sharedBatchSize
		}
	}
}

func (c *Config) normalizeQuota() {
	c.Quota.SharedBaseURL = strings.TrimRight(strings.TrimSpace(c.Quota.SharedBaseURL), "/")
	if c.Quota.SharedBaseURL == "" {
		c.Quota.SharedBaseURL = defaultSharedBaseURL
	}
	if c.Quota.DailyLimit <= 0 {
		c.Quota.DailyLimit = defaultQuotaDailyLimit
	}
	if c.Quota.RetentionDays <= 0 {
		c.Quota.RetentionDays = defaultQuotaRetentionDays
	}
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultWhisperModel
	}
	c.Transcribe.Language = strings.ToLower(strings.TrimSpace(c.Transcribe.Language))
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = defaultWhisperLanguage
	}
	if c.Transcribe.Threads < 0 {
		c.Transcribe.Threads = 0
	}
	if c.Transcribe.TimeoutSeconds <= 0 {
		c.Transcribe.TimeoutSeconds = defaultWhisperTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
