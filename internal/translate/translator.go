package translate

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"captioner/internal/dispatch"
	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/subtitle"
)

// provider translates one batch of texts. Implementations must return one
// output per input, in order.
type provider interface {
	name() string
	translateBatch(ctx context.Context, texts []string, target language.Tag) ([]string, error)
}

// Translator runs a provider across a transcript.
type Translator struct {
	provider   provider
	target     language.Tag
	threads    int
	batchSize  int
	retryTimes int
	logger     *slog.Logger
}

func newTranslator(p provider, target language.Tag, opts Options) *Translator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{
		provider:   p,
		target:     target,
		threads:    opts.Threads,
		batchSize:  opts.BatchSize,
		retryTimes: opts.RetryTimes,
		logger:     logger,
	}
}

// Service returns the provider name, for logs and notifications.
func (t *Translator) Service() string {
	return t.provider.name()
}

// ProgressFunc receives segment counts as batches complete. Updated holds
// freshly translated segments with their absolute offset.
type ProgressFunc func(done, total, percent, offset int, updated []subtitle.Segment)

// Translate returns a transcript whose segments carry translated text.
// Original text and timing are untouched.
func (t *Translator) Translate(ctx context.Context, in *subtitle.Transcript, progress ProgressFunc) (*subtitle.Transcript, error) {
	if in.Len() == 0 {
		return &subtitle.Transcript{}, nil
	}

	d := dispatch.New[subtitle.Segment](dispatch.Options{
		Threads:    t.threads,
		BatchSize:  t.batchSize,
		RetryTimes: t.retryTimes,
		Logger:     logging.NewComponentLogger(t.logger, "translator"),
	})

	merged, err := d.Run(ctx, in.Segments, t.processBatch, func(p dispatch.Progress[subtitle.Segment]) {
		if progress != nil {
			progress(p.Done, p.Total, p.Percent, p.Offset, p.Results)
		}
	})
	if err != nil {
		return nil, err
	}
	return &subtitle.Transcript{Segments: merged}, nil
}

func (t *Translator) processBatch(ctx context.Context, batch dispatch.Batch[subtitle.Segment]) ([]subtitle.Segment, error) {
	texts := make([]string, len(batch.Items))
	for i, seg := range batch.Items {
		texts[i] = seg.Text
	}
	translated, err := t.provider.translateBatch(ctx, texts, t.target)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(batch.Items) {
		return nil, services.Wrap(services.ErrProvider, "translate", t.provider.name(),
			"provider returned a mismatched batch", nil)
	}
	out := make([]subtitle.Segment, len(batch.Items))
	for i, seg := range batch.Items {
		seg.Translation = translated[i]
		out[i] = seg
	}
	return out, nil
}

// languageName renders the target language in English for LLM prompts
// ("zh" -> "Chinese").
func languageName(tag language.Tag) string {
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// classifyHTTPError maps a web-provider transport failure onto the shared
// taxonomy so the dispatcher can decide whether to retry.
func classifyHTTPError(name string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "translate", name, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "translate", name, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "translate", name, "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransient, "translate", name, "network error", err)
	}
	return services.Wrap(services.ErrProvider, "translate", name, "request failed", err)
}

// classifyHTTPStatus maps a non-2xx response onto the shared taxonomy.
func classifyHTTPStatus(name string, status int) error {
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "translate", name,
			http.StatusText(status), nil)
	default:
		return services.Wrap(services.ErrProvider, "translate", name,
			http.StatusText(status), nil)
	}
}
