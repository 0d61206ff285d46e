// Package workerpool runs independent inference calls with bounded parallelism.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	// MaxConcurrent caps in-flight work items. Values below 1 mean sequential.
	MaxConcurrent int
}

// Pool bounds concurrent execution with a semaphore.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{config: config, logger: logger.Named("worker-pool")}
}

// MaxConcurrent reports the effective concurrency limit.
func (p *Pool) MaxConcurrent() int { return p.config.MaxConcurrent }

// WorkItem is one unit of work.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the outcome of a work item. Index is its submission position.
type WorkResult[T any] struct {
	ID     string
	Index  int
	Result T
	Err    error
}

// Process executes all items and returns their results in submission order.
// A failing or panicking item does not stop the others.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	done := make(chan int, len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item WorkItem[T]) {
			defer wg.Done()
			defer func() { done <- i }()
			results[i] = WorkResult[T]{ID: item.ID, Index: i}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}

			defer func() {
				if r := recover(); r != nil {
					pool.logger.Error("work item panicked", zap.String("id", item.ID), zap.Any("panic", r))
					results[i].Err = fmt.Errorf("work item %s panicked: %v", item.ID, r)
				}
			}()
			results[i].Result, results[i].Err = item.Execute(ctx)
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}
	return results
}
