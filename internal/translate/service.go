package translate

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"captioner/internal/services"
	"captioner/internal/services/llm"
)

// Service identifies a translation backend.
type Service string

const (
	ServiceOpenAI Service = "openai"
	ServiceDeepLX Service = "deeplx"
	ServiceBing   Service = "bing"
	ServiceGoogle Service = "google"
)

// ParseService converts a configuration string into a Service.
func ParseService(value string) (Service, error) {
	switch Service(strings.ToLower(strings.TrimSpace(value))) {
	case ServiceOpenAI:
		return ServiceOpenAI, nil
	case ServiceDeepLX:
		return ServiceDeepLX, nil
	case ServiceBing:
		return ServiceBing, nil
	case ServiceGoogle:
		return ServiceGoogle, nil
	default:
		return "", fmt.Errorf("unknown translator service %q", value)
	}
}

// NeedsLLM reports whether the service requires a configured LLM model.
func (s Service) NeedsLLM() bool {
	return s == ServiceOpenAI
}

// Options configure the translator factory.
type Options struct {
	Service        Service
	TargetLanguage string
	// Client is required for ServiceOpenAI.
	Client *llm.Client
	// DeepLXEndpoint is required for ServiceDeepLX.
	DeepLXEndpoint string
	// NeedReflect enables the LLM reflection pass.
	NeedReflect bool
	// CustomPrompt is appended to the LLM translation prompt.
	CustomPrompt string

	Threads    int
	BatchSize  int
	RetryTimes int
	// TimeoutSeconds bounds each provider call.
	TimeoutSeconds int
	Logger         *slog.Logger
	// HTTPClient overrides the default client for web providers (tests).
	HTTPClient *http.Client
}

// New builds a Translator for the configured service.
func New(opts Options) (*Translator, error) {
	tag, err := language.Parse(strings.TrimSpace(opts.TargetLanguage))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "setup",
			fmt.Sprintf("invalid target language %q", opts.TargetLanguage), err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := 60 * time.Second
		if opts.TimeoutSeconds > 0 {
			timeout = time.Duration(opts.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var p provider
	switch opts.Service {
	case ServiceOpenAI:
		if opts.Client == nil {
			return nil, services.Wrap(services.ErrConfiguration, "translate", "setup", "openai translation requires an LLM model", nil)
		}
		p = &llmProvider{
			client:       opts.Client,
			reflect:      opts.NeedReflect,
			customPrompt: strings.TrimSpace(opts.CustomPrompt),
		}
	case ServiceDeepLX:
		endpoint := strings.TrimSpace(opts.DeepLXEndpoint)
		if endpoint == "" {
			return nil, services.Wrap(services.ErrConfiguration, "translate", "setup", "deeplx endpoint required", nil)
		}
		p = &deeplxProvider{endpoint: endpoint, httpClient: httpClient}
	case ServiceBing:
		p = &bingProvider{httpClient: httpClient}
	case ServiceGoogle:
		p = &googleProvider{httpClient: httpClient}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "translate", "setup",
			fmt.Sprintf("unknown translator service %q", opts.Service), nil)
	}

	return newTranslator(p, tag, opts), nil
}
