package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"captioner/internal/config"
	"captioner/internal/ledger"
	"captioner/internal/logging"
	"captioner/internal/notifications"
	"captioner/internal/optimizer"
	"captioner/internal/services"
	"captioner/internal/services/llm"
	"captioner/internal/splitter"
	"captioner/internal/subtitle"
	"captioner/internal/task"
	"captioner/internal/translate"
)

// Controller runs the subtitle pipeline for one task at a time.
type Controller struct {
	cfg      *config.Config
	store    *task.Store
	ledger   *ledger.Ledger
	notifier notifications.Service
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a controller. Store and ledger may be nil for ad-hoc runs
// without persistence; notifier may be nil to disable notifications.
func New(cfg *config.Config, store *task.Store, usage *ledger.Ledger, notifier notifications.Service, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Controller{
		cfg:      cfg,
		store:    store,
		ledger:   usage,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Cancel stops the in-flight run. Safe to call from another goroutine and
// when nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the pipeline for the task. On cancellation the task is
// marked cancelled, no error event fires, and the returned error carries
// the cancellation marker. The output file is only written on full success.
func (c *Controller) Run(ctx context.Context, t *task.Task, events Events) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	runID := uuid.NewString()
	runCtx = services.WithTaskID(runCtx, t.ID)
	runCtx = services.WithRequestID(runCtx, runID)
	logger := logging.WithContext(runCtx, c.logger)

	started := time.Now()
	logger.Info("task started",
		logging.String("input", t.InputPath),
		logging.String("output", t.OutputPath))
	_ = c.notifier.NotifyTaskStarted(runCtx, filepath.Base(t.InputPath))

	if err := c.execute(runCtx, t, events, logger); err != nil {
		return c.finish(ctx, t, events, logger, err)
	}

	t.Status = task.StatusCompleted
	t.SetProgress("Completed", "done", 100)
	c.persist(ctx, t)
	events.progress(100, "done")
	logger.Info("task completed", logging.Duration("elapsed", time.Since(started)))
	_ = c.notifier.NotifyTaskCompleted(runCtx, filepath.Base(t.InputPath), filepath.Base(t.OutputPath), time.Since(started))
	return nil
}

// execute walks the state machine up to and including the final save.
func (c *Controller) execute(ctx context.Context, t *task.Task, events Events, logger *slog.Logger) error {
	transcript, err := subtitle.ParseFile(t.InputPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "load",
			fmt.Sprintf("cannot read subtitle file %s", t.InputPath), err)
	}
	if transcript.Len() == 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "load",
			fmt.Sprintf("%s contains no subtitle segments", t.InputPath), nil)
	}
	events.transcript(transcript)

	plan, err := c.buildPlan(transcript)
	if err != nil {
		return err
	}

	client, err := c.validate(ctx, t, events, plan, logger)
	if err != nil {
		return err
	}

	splitPath := ""
	if plan.split {
		transcript, err = c.runSplit(ctx, t, events, plan, client, transcript, logger)
		if err != nil {
			return err
		}
		splitPath = intermediateSplitPath(t.InputPath)
		if werr := subtitle.WriteFile(transcript, splitPath, subtitle.LayoutOriginalOnly, ""); werr != nil {
			logger.Warn("intermediate split file not written", logging.Error(werr))
			splitPath = ""
		}
		events.transcript(transcript)
	}

	if plan.optimize {
		transcript, err = c.runOptimize(ctx, t, events, plan, client, transcript, logger)
		if err != nil {
			return err
		}
		events.transcript(transcript)
	}

	if plan.translate {
		transcript, err = c.runTranslate(ctx, t, events, plan, client, transcript, logger)
		if err != nil {
			return err
		}
		if c.cfg.Subtitles.RemovePunctuation {
			transcript.RemovePunctuation()
		}
		events.transcript(transcript)
	}

	return c.save(ctx, t, events, plan, transcript, splitPath, logger)
}

// plan fixes the enabled stages and their progress spans up front, so skipped
// stages do not leave gaps in the reported percentage.
type plan struct {
	split     bool
	optimize  bool
	translate bool
	needsLLM  bool

	strategy splitter.Strategy
	service  translate.Service
	layout   subtitle.Layout

	validateSpan  span
	splitSpan     span
	optimizeSpan  span
	translateSpan span
	saveSpan      span
}

func (c *Controller) buildPlan(transcript *subtitle.Transcript) (plan, error) {
	p := plan{
		optimize:  c.cfg.Pipeline.NeedOptimize,
		translate: c.cfg.Pipeline.NeedTranslate,
	}

	var err error
	p.strategy, err = splitter.ParseStrategy(c.cfg.Subtitles.SplitStrategy)
	if err != nil {
		return p, services.Wrap(services.ErrConfiguration, "pipeline", "plan", "invalid split strategy", err)
	}
	p.layout, err = subtitle.ParseLayout(c.cfg.Subtitles.Layout)
	if err != nil {
		return p, services.Wrap(services.ErrConfiguration, "pipeline", "plan", "invalid subtitle layout", err)
	}
	if p.translate {
		p.service, err = translate.ParseService(c.cfg.Translator.Service)
		if err != nil {
			return p, services.Wrap(services.ErrConfiguration, "pipeline", "plan", "invalid translator service", err)
		}
	}

	// Splitting only applies to word-level transcripts; a file that already
	// carries sentences passes through unchanged.
	p.split = c.cfg.Pipeline.NeedSplit && transcript.IsWordLevel()

	p.needsLLM = (p.split && p.strategy == splitter.StrategySemantic) ||
		p.optimize ||
		(p.translate && p.service.NeedsLLM())

	p.layoutSpans()
	return p, nil
}

// layoutSpans divides 5..95 evenly between the enabled stages. Validation
// owns 0..5 and saving 95..100.
func (p *plan) layoutSpans() {
	p.validateSpan = span{0, 5}
	p.saveSpan = span{95, 100}

	enabled := 0
	for _, on := range []bool{p.split, p.optimize, p.translate} {
		if on {
			enabled++
		}
	}
	if enabled == 0 {
		return
	}
	width := 90 / enabled
	next := 5
	assign := func(on bool) span {
		if !on {
			return span{next, next}
		}
		s := span{next, next + width}
		next += width
		return s
	}
	p.splitSpan = assign(p.split)
	p.optimizeSpan = assign(p.optimize)
	p.translateSpan = assign(p.translate)

	// Integer division can leave a few points short of 95; give them to
	// the last enabled stage.
	switch {
	case p.translate:
		p.translateSpan.end = 95
	case p.optimize:
		p.optimizeSpan.end = 95
	case p.split:
		p.splitSpan.end = 95
	}
}

// validate confirms LLM reachability and the shared-endpoint quota before
// any batch work starts. The quota increments only after the reachability
// probe actually consumed the shared service.
func (c *Controller) validate(ctx context.Context, t *task.Task, events Events, p plan, logger *slog.Logger) (*llm.Client, error) {
	ctx = c.setStatus(ctx, t, events, task.StatusValidating, p.validateSpan.at(0), "validating configuration")
	logger = logging.WithContext(ctx, logger)

	if !p.needsLLM {
		logger.Debug("no stage needs LLM access, skipping validation probe")
		return nil, nil
	}

	llmCfg := c.cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
		RetryTimes:     c.cfg.Pipeline.RetryTimes,
	})

	shared := c.cfg.UsesSharedEndpoint()
	if shared && c.ledger != nil {
		ok, used, err := c.ledger.CheckAvailable(ctx, ledger.ServiceLLM)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, services.Wrap(services.ErrQuotaExceeded, "pipeline", "validate",
				fmt.Sprintf("shared service daily limit reached (%d/%d); configure your own api_key and base_url to continue", used, c.ledger.Limit()), nil)
		}
	}

	if err := client.HealthCheck(ctx); err != nil {
		return nil, err
	}

	if shared && c.ledger != nil {
		if err := c.ledger.Increment(ctx, ledger.ServiceLLM); err != nil {
			return nil, err
		}
	}

	c.report(ctx, t, events, "Validating", p.validateSpan.at(100), "model reachable")
	return client, nil
}

func (c *Controller) runSplit(ctx context.Context, t *task.Task, events Events, p plan, client *llm.Client, in *subtitle.Transcript, logger *slog.Logger) (*subtitle.Transcript, error) {
	ctx = c.setStatus(ctx, t, events, task.StatusSplitting, p.splitSpan.at(0), "splitting into sentences")
	logger = logging.WithContext(ctx, logger)

	s := splitter.New(client, splitter.Options{
		Strategy:            p.strategy,
		MaxWordCountCJK:     c.cfg.Subtitles.MaxWordCountCJK,
		MaxWordCountEnglish: c.cfg.Subtitles.MaxWordCountEnglish,
		Threads:             c.cfg.Pipeline.ThreadNum,
		RetryTimes:          c.cfg.Pipeline.RetryTimes,
		Logger:              logger,
	})
	out, err := s.Split(ctx, in, func(done, total, percent int) {
		c.report(ctx, t, events, "Splitting", p.splitSpan.at(percent),
			fmt.Sprintf("split %d of %d words", done, total))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("split complete",
		logging.Int("words", in.SplitToWords().Len()),
		logging.Int("sentences", out.Len()))
	return out, nil
}

func (c *Controller) runOptimize(ctx context.Context, t *task.Task, events Events, p plan, client *llm.Client, in *subtitle.Transcript, logger *slog.Logger) (*subtitle.Transcript, error) {
	ctx = c.setStatus(ctx, t, events, task.StatusOptimizing, p.optimizeSpan.at(0), "optimizing subtitle text")
	logger = logging.WithContext(ctx, logger)

	o := optimizer.New(client, optimizer.Options{
		CustomPrompt: c.cfg.Subtitles.CustomPrompt,
		Threads:      c.cfg.Pipeline.ThreadNum,
		BatchSize:    c.cfg.Pipeline.BatchSize,
		RetryTimes:   c.cfg.Pipeline.RetryTimes,
		Logger:       logger,
	})
	out, err := o.Optimize(ctx, in, func(done, total, percent, offset int, updated []subtitle.Segment) {
		events.segments(offset, updated)
		c.report(ctx, t, events, "Optimizing", p.optimizeSpan.at(percent),
			fmt.Sprintf("optimized %d of %d segments", done, total))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Controller) runTranslate(ctx context.Context, t *task.Task, events Events, p plan, client *llm.Client, in *subtitle.Transcript, logger *slog.Logger) (*subtitle.Transcript, error) {
	ctx = c.setStatus(ctx, t, events, task.StatusTranslating, p.translateSpan.at(0),
		fmt.Sprintf("translating via %s", p.service))
	logger = logging.WithContext(ctx, logger)

	tr, err := translate.New(translate.Options{
		Service:        p.service,
		TargetLanguage: c.cfg.Translator.TargetLanguage,
		Client:         client,
		DeepLXEndpoint: c.cfg.Translator.DeepLXEndpoint,
		NeedReflect:    c.cfg.Translator.NeedReflect,
		CustomPrompt:   c.cfg.Subtitles.CustomPrompt,
		Threads:        c.cfg.Pipeline.ThreadNum,
		BatchSize:      c.cfg.Pipeline.BatchSize,
		RetryTimes:     c.cfg.Pipeline.RetryTimes,
		TimeoutSeconds: c.cfg.LLM.TimeoutSeconds,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	out, err := tr.Translate(ctx, in, func(done, total, percent, offset int, updated []subtitle.Segment) {
		events.segments(offset, updated)
		c.report(ctx, t, events, "Translating", p.translateSpan.at(percent),
			fmt.Sprintf("translated %d of %d segments", done, total))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// save writes the authoritative output. Never reached after a stage failure
// or cancellation, so a partial run leaves no final file behind.
func (c *Controller) save(ctx context.Context, t *task.Task, events Events, p plan, transcript *subtitle.Transcript, splitPath string, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "pipeline", "save", "run cancelled", err)
	}
	ctx = c.setStatus(ctx, t, events, task.StatusSaving, p.saveSpan.at(0), "saving output")
	logger = logging.WithContext(ctx, logger)

	if err := subtitle.WriteFile(transcript, t.OutputPath, p.layout, c.cfg.Subtitles.Style); err != nil {
		return services.Wrap(services.ErrProvider, "pipeline", "save",
			fmt.Sprintf("cannot write %s", t.OutputPath), err)
	}
	logger.Info("output written",
		logging.String("path", t.OutputPath),
		logging.String("layout", string(p.layout)),
		logging.Int("segments", transcript.Len()))

	// A follow-on task (e.g. burning into video) consumes a plain
	// single-layout SRT next to the video file. The intermediate split
	// file survives alongside it; subtitle-only tasks clean it up.
	if t.NextTask && t.VideoPath != "" {
		plain := plainSubtitlePath(t.VideoPath)
		if err := subtitle.WriteFile(transcript, plain, p.layout, ""); err != nil {
			return services.Wrap(services.ErrProvider, "pipeline", "save",
				fmt.Sprintf("cannot write %s", plain), err)
		}
		logger.Info("plain subtitle written for follow-on task", logging.String("path", plain))
	} else if splitPath != "" {
		if err := os.Remove(splitPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("intermediate split file not removed", logging.Error(err))
		}
	}
	return nil
}

// finish persists the terminal state. Cancellation is not treated as a
// failure: no error event fires and the task reads "terminated".
func (c *Controller) finish(ctx context.Context, t *task.Task, events Events, logger *slog.Logger, err error) error {
	if services.FailureStatus(err) == task.StatusCancelled {
		t.SetCancelled()
		c.persist(ctx, t)
		events.progress(int(t.ProgressPercent), "terminated")
		logger.Info("task cancelled")
		return err
	}

	message := err.Error()
	t.SetFailed(message)
	c.persist(ctx, t)
	if events.Error != nil {
		events.Error(message)
	}
	logger.Error("task failed", logging.Error(err))
	_ = c.notifier.NotifyError(context.WithoutCancel(ctx), err, "subtitle processing")
	return err
}

// setStatus records the stage transition and returns a context annotated
// with the new stage so downstream logs carry it.
func (c *Controller) setStatus(ctx context.Context, t *task.Task, events Events, status task.Status, percent int, message string) context.Context {
	t.Status = status
	ctx = services.WithStage(ctx, string(status))
	c.report(ctx, t, events, stageLabel(status), percent, message)
	return ctx
}

func (c *Controller) report(ctx context.Context, t *task.Task, events Events, stage string, percent int, message string) {
	t.SetProgress(stage, message, float64(percent))
	c.persist(ctx, t)
	events.progress(percent, message)
}

func (c *Controller) persist(ctx context.Context, t *task.Task) {
	if c.store == nil || t.ID == 0 {
		return
	}
	if err := c.store.Update(context.WithoutCancel(ctx), t); err != nil {
		c.logger.Warn("task update failed", logging.Error(err))
	}
}

func stageLabel(status task.Status) string {
	s := string(status)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func intermediateSplitPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".split" + ext
}

func plainSubtitlePath(videoPath string) string {
	ext := filepath.Ext(videoPath)
	return strings.TrimSuffix(videoPath, ext) + ".srt"
}
