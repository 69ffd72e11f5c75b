package splitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"captioner/internal/dispatch"
	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/services/llm"
	"captioner/internal/subtitle"
	"captioner/internal/textutil"
)

// Strategy selects how sentence boundaries are chosen.
type Strategy string

const (
	// StrategySemantic delegates boundary decisions to the LLM.
	StrategySemantic Strategy = "semantic"
	// StrategyFixed packs words up to the per-script limit locally.
	StrategyFixed Strategy = "fixed"
)

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategySemantic, "":
		return StrategySemantic, nil
	case StrategyFixed:
		return StrategyFixed, nil
	default:
		return "", fmt.Errorf("unknown split strategy %q", value)
	}
}

// Temperature used for boundary decisions; low to keep output mechanical.
const temperature = 0.3

// wordsPerRequest bounds how many words one LLM call handles.
const wordsPerRequest = 200

// Options tune the splitter.
type Options struct {
	Strategy            Strategy
	MaxWordCountCJK     int
	MaxWordCountEnglish int
	Threads             int
	RetryTimes          int
	Logger              *slog.Logger
}

// Splitter regroups word-level transcripts into sentence cues.
type Splitter struct {
	client *llm.Client
	opts   Options
	logger *slog.Logger
}

// New constructs a splitter. The client may be nil when the fixed strategy
// is used.
func New(client *llm.Client, opts Options) *Splitter {
	if opts.MaxWordCountCJK <= 0 {
		opts.MaxWordCountCJK = 12
	}
	if opts.MaxWordCountEnglish <= 0 {
		opts.MaxWordCountEnglish = 14
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategySemantic
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Splitter{client: client, opts: opts, logger: logger}
}

// ProgressFunc receives item counts as word batches complete.
type ProgressFunc func(done, total, percent int)

// Split converts the transcript into sentence cues. Sentence-level input is
// first exploded to words so re-splitting an already segmented file works.
func (s *Splitter) Split(ctx context.Context, t *subtitle.Transcript, progress ProgressFunc) (*subtitle.Transcript, error) {
	words := t.SplitToWords()
	if words.Len() == 0 {
		return &subtitle.Transcript{}, nil
	}

	if s.opts.Strategy == StrategyFixed {
		out := &subtitle.Transcript{Segments: s.groupFixed(words.Segments)}
		if progress != nil {
			progress(words.Len(), words.Len(), 100)
		}
		return out, nil
	}
	if s.client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "split", "run", "semantic splitting requires an LLM model", nil)
	}

	chunks := chunkWords(words.Segments, wordsPerRequest)
	d := dispatch.New[chunk](dispatch.Options{
		Threads:    s.opts.Threads,
		BatchSize:  1,
		RetryTimes: s.opts.RetryTimes,
		Logger:     logging.NewComponentLogger(s.logger, "splitter"),
	})

	wordTotal := words.Len()
	doneWords := 0
	merged, err := d.Run(ctx, chunks, s.processChunk, func(p dispatch.Progress[chunk]) {
		if progress == nil {
			return
		}
		// Progress callbacks are serialized by the dispatcher.
		for _, c := range p.Results {
			doneWords += len(c.words)
		}
		progress(doneWords, wordTotal, doneWords*100/wordTotal)
	})
	if err != nil {
		return nil, err
	}

	out := &subtitle.Transcript{}
	for _, c := range merged {
		out.Segments = append(out.Segments, c.sentences...)
	}
	return out, nil
}

// chunk is one LLM request's worth of words plus its result.
type chunk struct {
	words     []subtitle.Segment
	sentences []subtitle.Segment
}

func chunkWords(words []subtitle.Segment, size int) []chunk {
	chunks := make([]chunk, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, chunk{words: words[i:end]})
	}
	return chunks
}

func (s *Splitter) processChunk(ctx context.Context, batch dispatch.Batch[chunk]) ([]chunk, error) {
	out := make([]chunk, len(batch.Items))
	for i, c := range batch.Items {
		sentences, err := s.splitChunk(ctx, c.words)
		if err != nil {
			return nil, err
		}
		out[i] = chunk{words: c.words, sentences: sentences}
	}
	return out, nil
}

func (s *Splitter) splitChunk(ctx context.Context, words []subtitle.Segment) ([]subtitle.Segment, error) {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	payload, err := s.client.CompleteJSON(
		ctx,
		buildSystemPrompt(s.opts.MaxWordCountCJK, s.opts.MaxWordCountEnglish),
		strings.Join(texts, " "),
		temperature,
	)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Sentences []string `json:"sentences"`
	}
	if err := llm.DecodeJSON(payload, &parsed); err != nil {
		s.logger.Warn("unparseable split response, falling back to fixed grouping", logging.Error(err))
		return s.groupFixed(words), nil
	}

	counts := make([]int, 0, len(parsed.Sentences))
	total := 0
	for _, sentence := range parsed.Sentences {
		n := len(textutil.SplitWords(sentence))
		if n == 0 {
			continue
		}
		counts = append(counts, n)
		total += n
	}
	if total != len(words) {
		// The model dropped or invented words; its boundaries cannot be
		// trusted to line up with the timestamps.
		s.logger.Warn("split response word count mismatch, falling back to fixed grouping",
			logging.Int("want", len(words)),
			logging.Int("got", total),
		)
		return s.groupFixed(words), nil
	}

	sentences := make([]subtitle.Segment, 0, len(counts))
	cursor := 0
	for _, n := range counts {
		group := words[cursor : cursor+n]
		sentences = append(sentences, buildSentence(group))
		cursor += n
	}
	return sentences, nil
}

// groupFixed packs words greedily up to the per-script word limit.
func (s *Splitter) groupFixed(words []subtitle.Segment) []subtitle.Segment {
	var sentences []subtitle.Segment
	var group []subtitle.Segment
	for _, w := range words {
		group = append(group, w)
		text := joinWords(group)
		limit := s.opts.MaxWordCountEnglish
		if textutil.IsCJK(text) {
			limit = s.opts.MaxWordCountCJK
		}
		if textutil.WordCount(text) >= limit {
			sentences = append(sentences, buildSentence(group))
			group = nil
		}
	}
	if len(group) > 0 {
		sentences = append(sentences, buildSentence(group))
	}
	return sentences
}

func buildSentence(words []subtitle.Segment) subtitle.Segment {
	return subtitle.Segment{
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Text:  joinWords(words),
	}
}

// joinWords merges word tokens, omitting spaces for CJK text.
func joinWords(words []subtitle.Segment) string {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	spaced := strings.Join(texts, " ")
	if textutil.IsCJK(spaced) {
		return strings.Join(texts, "")
	}
	return spaced
}
