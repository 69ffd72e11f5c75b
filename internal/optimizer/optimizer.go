package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"captioner/internal/dispatch"
	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/services/llm"
	"captioner/internal/subtitle"
)

const temperature = 0.3

const systemPrompt = `You proofread machine-generated subtitles.

Fix recognition errors, casing, and obvious typos. Keep the meaning, the
language, and the line count. Never merge, reorder, translate, or summarize
lines.

Input is a JSON object mapping line numbers to subtitle text. Respond with
JSON only: the same object with corrected text, every key preserved.`

// Options tune the optimizer.
type Options struct {
	// CustomPrompt is appended to the system prompt when non-empty,
	// letting users supply domain vocabulary or style constraints.
	CustomPrompt string
	Threads      int
	BatchSize    int
	RetryTimes   int
	Logger       *slog.Logger
}

// Optimizer corrects transcript text batch by batch.
type Optimizer struct {
	client *llm.Client
	opts   Options
	logger *slog.Logger
}

// New constructs an optimizer around the given LLM client.
func New(client *llm.Client, opts Options) *Optimizer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Optimizer{client: client, opts: opts, logger: logger}
}

// ProgressFunc receives segment counts as batches complete. Updated holds
// the freshly corrected segments with their absolute offset.
type ProgressFunc func(done, total, percent, offset int, updated []subtitle.Segment)

// Optimize returns a transcript with corrected text. Timing is preserved
// segment by segment.
func (o *Optimizer) Optimize(ctx context.Context, t *subtitle.Transcript, progress ProgressFunc) (*subtitle.Transcript, error) {
	if o.client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "optimize", "run", "subtitle optimization requires an LLM model", nil)
	}
	if t.Len() == 0 {
		return &subtitle.Transcript{}, nil
	}

	d := dispatch.New[subtitle.Segment](dispatch.Options{
		Threads:    o.opts.Threads,
		BatchSize:  o.opts.BatchSize,
		RetryTimes: o.opts.RetryTimes,
		Logger:     logging.NewComponentLogger(o.logger, "optimizer"),
	})

	merged, err := d.Run(ctx, t.Segments, o.processBatch, func(p dispatch.Progress[subtitle.Segment]) {
		if progress != nil {
			progress(p.Done, p.Total, p.Percent, p.Offset, p.Results)
		}
	})
	if err != nil {
		return nil, err
	}
	return &subtitle.Transcript{Segments: merged}, nil
}

func (o *Optimizer) processBatch(ctx context.Context, batch dispatch.Batch[subtitle.Segment]) ([]subtitle.Segment, error) {
	numbered := make(map[string]string, len(batch.Items))
	for i, seg := range batch.Items {
		numbered[strconv.Itoa(batch.Offset+i)] = seg.Text
	}
	encoded, err := json.Marshal(numbered)
	if err != nil {
		return nil, fmt.Errorf("optimize: encode batch: %w", err)
	}

	system := systemPrompt
	if custom := strings.TrimSpace(o.opts.CustomPrompt); custom != "" {
		system += "\n\nAdditional instructions:\n" + custom
	}

	payload, err := o.client.CompleteJSON(ctx, system, string(encoded), temperature)
	if err != nil {
		return nil, err
	}

	corrected := make(map[string]string)
	if err := llm.DecodeJSON(payload, &corrected); err != nil {
		// Keep the original text rather than failing the stage over a
		// malformed correction payload.
		o.logger.Warn("unparseable optimize response, keeping original batch", logging.Error(err))
		return batch.Items, nil
	}

	out := make([]subtitle.Segment, len(batch.Items))
	for i, seg := range batch.Items {
		if text, ok := corrected[strconv.Itoa(batch.Offset+i)]; ok {
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				seg.Text = trimmed
			}
		}
		out[i] = seg
	}
	return out, nil
}
