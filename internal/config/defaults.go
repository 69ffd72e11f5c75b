package config

const (
	defaultDataDir             = "~/.local/share/captioner"
	defaultLogDir              = "~/.local/share/captioner/logs"
	defaultCacheDir            = "~/.cache/captioner"
	defaultModelsDir           = "~/.local/share/captioner/models"
	defaultLLMTimeoutSeconds   = 60
	defaultTranslatorService   = "openai"
	defaultTargetLanguage      = "zh"
	defaultDeepLXEndpoint      = "http://127.0.0.1:1188/translate"
	defaultSubtitleLayout      = "translation_on_top"
	defaultSplitStrategy       = "semantic"
	defaultMaxWordCountCJK     = 12
	defaultMaxWordCountEnglish = 14
	defaultThreadNum           = 10
	defaultBatchSize           = 20
	defaultRetryTimes          = 1
	defaultQuotaDailyLimit     = 30
	defaultSharedBaseURL       = "https://ddg.bkfeng.top/v1"
	defaultQuotaRetentionDays  = 30
	defaultWhisperModel        = "ggml-base.bin"
	defaultWhisperLanguage     = "en"
	defaultWhisperTimeout      = 3600
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30

	// Dispatch limits forced while the shared endpoint is in use.
	sharedThreadNum = 5
	sharedBatchSize = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			CacheDir:  defaultCacheDir,
			ModelsDir: defaultModelsDir,
		},
		LLM: LLM{
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Translator: Translator{
			Service:        defaultTranslatorService,
			TargetLanguage: defaultTargetLanguage,
			DeepLXEndpoint: defaultDeepLXEndpoint,
		},
		Subtitles: Subtitles{
			Layout:              defaultSubtitleLayout,
			SplitStrategy:       defaultSplitStrategy,
			MaxWordCountCJK:     defaultMaxWordCountCJK,
			MaxWordCountEnglish: defaultMaxWordCountEnglish,
		},
		Pipeline: Pipeline{
			NeedTranslate: true,
			ThreadNum:     defaultThreadNum,
			BatchSize:     defaultBatchSize,
			RetryTimes:    defaultRetryTimes,
		},
		Quota: Quota{
			DailyLimit:    defaultQuotaDailyLimit,
			SharedBaseURL: defaultSharedBaseURL,
			RetentionDays: defaultQuotaRetentionDays,
		},
		Transcribe: Transcribe{
			Model:          defaultWhisperModel,
			Language:       defaultWhisperLanguage,
			TimeoutSeconds: defaultWhisperTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
