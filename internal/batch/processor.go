package batch

import (
	"context"
	"errors"
	"fmt"
)

// Batch size limits.
const (
	// DefaultBatchSize is the number of rows written per statement.
	DefaultBatchSize = 500

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1000
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000")
	ErrNilCallback      = errors.New("batch callback cannot be nil")
)

// Callback handles one chunk. batchIndex is 0-based.
type Callback[T any] func(ctx context.Context, chunk []T, batchIndex int) error

// ProgressCallback is invoked after each chunk completes.
type ProgressCallback func(progress Progress)

// Processor walks a slice in fixed-size chunks.
type Processor[T any] struct {
	batchSize  int
	onProgress ProgressCallback
}

// NewProcessor creates a processor with the given batch size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	return &Processor[T]{batchSize: batchSize}, nil
}

// NewProcessorWithDefaults creates a processor with DefaultBatchSize.
func NewProcessorWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{batchSize: DefaultBatchSize}
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// BatchSize returns the configured batch size.
func (p *Processor[T]) BatchSize() int {
	return p.batchSize
}

// Process calls callback for each chunk in order and stops on the first
// error. An empty slice is a no-op.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback Callback[T]) error {
	if callback == nil {
		return ErrNilCallback
	}
	if len(items) == 0 {
		return nil
	}

	bounds := p.CalculateBatches(len(items))
	progress := Progress{TotalItems: len(items), TotalBatches: len(bounds)}

	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := items[b[0]:b[1]]
		if err := callback(ctx, chunk, i); err != nil {
			return fmt.Errorf("batch %d failed: %w", i, err)
		}

		progress.ProcessedItems += len(chunk)
		progress.ProcessedBatches++
		if p.onProgress != nil {
			p.onProgress(progress)
		}
	}

	return nil
}

// CalculateBatches returns the [start, end) bounds of every chunk.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	if totalItems <= 0 {
		return nil
	}
	n := (totalItems + p.batchSize - 1) / p.batchSize
	out := make([][2]int, n)
	for i := 0; i < n; i++ {
		start := i * p.batchSize
		out[i] = [2]int{start, min(start+p.batchSize, totalItems)}
	}
	return out
}
