package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var validTranslatorServices = map[string]struct{}{
	"openai": {},
	"deeplx": {},
	"bing":   {},
	"google": {},
}

var validSubtitleLayouts = map[string]struct{}{
	"original_on_top":    {},
	"translation_on_top": {},
	"original_only":      {},
	"translation_only":   {},
}

// Validate ensures the configuration is usable. Provider credentials are
// checked at pipeline start, not here, because the Google and Bing
// translators need none.
func (c *Config) Validate() error {
	if err := c.validateTranslator(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateQuota(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranslator() error {
	if _, ok := validTranslatorServices[c.Translator.Service]; !ok {
		return fmt.Errorf("translator.service must be one of openai, deeplx, bing, google (got %q)", c.Translator.Service)
	}
	if _, err := language.Parse(c.Translator.TargetLanguage); err != nil {
		return fmt.Errorf("translator.target_language %q is not a valid language tag: %w", c.Translator.TargetLanguage, err)
	}
	if c.Translator.Service == "deeplx" && strings.TrimSpace(c.Translator.DeepLXEndpoint) == "" {
		return errors.New("translator.deeplx_endpoint must be set when translator.service is deeplx")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if _, ok := validSubtitleLayouts[c.Subtitles.Layout]; !ok {
		return fmt.Errorf("subtitles.layout must be one of original_on_top, translation_on_top, original_only, translation_only (got %q)", c.Subtitles.Layout)
	}
	switch c.Subtitles.SplitStrategy {
	case "semantic", "fixed":
	default:
		return fmt.Errorf("subtitles.split_strategy must be semantic or fixed (got %q)", c.Subtitles.SplitStrategy)
	}
	if err := ensurePositiveMap(map[string]int{
		"subtitles.max_word_count_cjk":     c.Subtitles.MaxWordCountCJK,
		"subtitles.max_word_count_english": c.Subtitles.MaxWordCountEnglish,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.thread_num":        c.Pipeline.ThreadNum,
		"pipeline.batch_size":        c.Pipeline.BatchSize,
		"llm.timeout_seconds":        c.LLM.TimeoutSeconds,
		"transcribe.timeout_seconds": c.Transcribe.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.RetryTimes < 0 {
		return errors.New("pipeline.retry_times must be >= 0")
	}
	return nil
}

func (c *Config) validateQuota() error {
	if c.Quota.DailyLimit <= 0 {
		return errors.New("quota.daily_limit must be positive")
	}
	if strings.TrimSpace(c.Quota.SharedBaseURL) == "" {
		return errors.New("quota.shared_base_url must be set")
	}
	if c.Quota.RetentionDays <= 0 {
		return errors.New("quota.retention_days must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
