package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"captioner/internal/logging"
	"captioner/internal/services"
)

// Batch is one unit of work handed to the process function. Index is the
// zero-based batch position, Offset the position of the first item within
// the full input.
type Batch[T any] struct {
	Index  int
	Offset int
	Items  []T
}

// ProcessFunc transforms one batch. It must return exactly one output item
// per input item, in input order. It should honour ctx cancellation between
// network calls.
type ProcessFunc[T any] func(ctx context.Context, batch Batch[T]) ([]T, error)

// Progress describes a monotonic progress update. Done and Total count
// items, Percent is Done*100/Total. Results holds the freshly completed
// batch's output with its offset, so callers can surface incremental
// updates.
type Progress[T any] struct {
	Done    int
	Total   int
	Percent int
	Offset  int
	Results []T
}

// ProgressFunc receives progress updates. Calls are serialized and Done
// never decreases.
type ProgressFunc[T any] func(Progress[T])

// Options tune a dispatcher run.
type Options struct {
	// Threads bounds the worker pool. Values below 1 mean 1.
	Threads int
	// BatchSize is the number of items per batch. Values below 1 mean 1.
	BatchSize int
	// RetryTimes is how often a batch is retried after a transient failure.
	RetryTimes int
	// Logger receives per-batch retry and failure logs. Nil disables logging.
	Logger *slog.Logger
}

// Dispatcher fans batches out to a bounded worker pool.
type Dispatcher[T any] struct {
	threads    int
	batchSize  int
	retryTimes int
	logger     *slog.Logger
}

// New constructs a dispatcher with the given options.
func New[T any](opts Options) *Dispatcher[T] {
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	retryTimes := opts.RetryTimes
	if retryTimes < 0 {
		retryTimes = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher[T]{
		threads:    threads,
		batchSize:  batchSize,
		retryTimes: retryTimes,
		logger:     logger,
	}
}

// Run processes all items and returns the merged output in input order.
// On failure the in-flight siblings are cancelled and the first error is
// returned; no partial output is produced.
func (d *Dispatcher[T]) Run(ctx context.Context, items []T, process ProcessFunc[T], progress ProgressFunc[T]) ([]T, error) {
	if process == nil {
		return nil, fmt.Errorf("dispatch: process function required")
	}
	if len(items) == 0 {
		if progress != nil {
			progress(Progress[T]{Done: 0, Total: 0, Percent: 100})
		}
		return nil, nil
	}

	batches := partition(items, d.batchSize)
	runID := uuid.NewString()
	logger := d.logger.With(
		logging.String("run_id", runID),
		logging.Int("batches", len(batches)),
		logging.Int("threads", d.threads),
	)
	logger.Debug("dispatch started", logging.Int("items", len(items)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := d.threads
	if workers > len(batches) {
		workers = len(batches)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	results := make([][]T, len(batches))
	queue := make(chan Batch[T])

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	complete := func(batch Batch[T], out []T) {
		mu.Lock()
		defer mu.Unlock()
		results[batch.Index] = out
		done += len(batch.Items)
		if progress != nil && firstErr == nil {
			progress(Progress[T]{
				Done:    done,
				Total:   len(items),
				Percent: done * 100 / len(items),
				Offset:  batch.Offset,
				Results: out,
			})
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range queue {
				// Do not start new work once a sibling failed or the
				// caller cancelled.
				if runCtx.Err() != nil {
					return
				}
				out, err := d.processWithRetry(runCtx, logger, batch, process)
				if err != nil {
					fail(err)
					return
				}
				complete(batch, out)
			}
		}()
	}

feed:
	for _, batch := range batches {
		select {
		case queue <- batch:
		case <-runCtx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		logger.Debug("dispatch aborted", logging.Error(err))
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, services.Wrap(services.ErrCancelled, "dispatch", "run", "cancelled", ctxErr)
	}

	merged := make([]T, 0, len(items))
	for _, part := range results {
		merged = append(merged, part...)
	}
	logger.Debug("dispatch finished", logging.Int("items", len(merged)))
	return merged, nil
}

func (d *Dispatcher[T]) processWithRetry(ctx context.Context, logger *slog.Logger, batch Batch[T], process ProcessFunc[T]) ([]T, error) {
	var lastErr error
	for attempt := 0; attempt <= d.retryTimes; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCancelled, "dispatch", "batch", "cancelled", err)
		}
		out, err := process(ctx, batch)
		if err == nil {
			if len(out) != len(batch.Items) {
				return nil, services.Wrap(services.ErrProvider, "dispatch", "batch",
					fmt.Sprintf("batch %d returned %d items for %d inputs", batch.Index, len(out), len(batch.Items)), nil)
			}
			return out, nil
		}
		lastErr = err
		if !services.IsRetryable(err) || attempt == d.retryTimes {
			break
		}
		logger.Warn("batch retry",
			logging.Int("batch", batch.Index),
			logging.Int("attempt", attempt+1),
			logging.Error(err),
		)
	}
	if services.IsRetryable(lastErr) {
		return nil, services.Wrap(services.ErrProvider, "dispatch", "batch",
			fmt.Sprintf("batch %d failed after %d attempts", batch.Index, d.retryTimes+1), lastErr)
	}
	return nil, lastErr
}

func partition[T any](items []T, size int) []Batch[T] {
	count := (len(items) + size - 1) / size
	batches := make([]Batch[T], 0, count)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch[T]{
			Index:  len(batches),
			Offset: i,
			Items:  items[i:end],
		})
	}
	return batches
}
