package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
)

const defaultBatchSize = 100

// Processor splits record sets into batches and writes each one with retries
type Processor struct {
	config config.BatchConfig
}

// NewProcessor creates a new batch processor
func NewProcessor(cfg config.BatchConfig) *Processor {
	return &Processor{config: cfg}
}

// Progress reports how far through a Process call the processor is
type Progress struct {
	TotalBatches     int
	ProcessedBatches int
	TotalItems       int
	ProcessedItems   int
}

// Process writes items in batches in order. It stops at the first batch that
// still fails after retries and returns the number of items written before it.
func Process[T any](ctx context.Context, p *Processor, items []T, fn func(ctx context.Context, batch []T) error, onProgress func(Progress)) (int, error) {
	total := len(items)
	if total == 0 {
		return 0, nil
	}

	size := p.config.Size
	if size <= 0 {
		size = defaultBatchSize
	}

	progress := Progress{
		TotalBatches: (total + size - 1) / size,
		TotalItems:   total,
	}

	for start := 0; start < total; start += size {
		if err := ctx.Err(); err != nil {
			return progress.ProcessedItems, err
		}

		end := start + size
		if end > total {
			end = total
		}

		batch := items[start:end]
		if err := p.processBatchWithRetry(ctx, func(ctx context.Context) error { return fn(ctx, batch) }); err != nil {
			return progress.ProcessedItems, err
		}

		progress.ProcessedBatches++
		progress.ProcessedItems += len(batch)
		if onProgress != nil {
			onProgress(progress)
		}
	}

	return progress.ProcessedItems, nil
}

// processBatchWithRetry runs fn, retrying with a linear backoff
func (p *Processor) processBatchWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for retry := 0; retry <= p.config.MaxRetries; retry++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if retry < p.config.MaxRetries {
			backoff := time.Duration(float64(p.config.RetryDelay) * float64(retry+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("failed to process batch after %d retries: %w", p.config.MaxRetries, lastErr)
}
