package sync

import (
	stdsync "sync"
)

// chunkItems partitions items into batches of at most size.
func chunkItems[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]T
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		batches = append(batches, items[:n])
		items = items[n:]
	}
	return batches
}

// runWaves executes fn over every batch with bounded concurrency: up to
// width calls run together, and the whole wave is awaited before the next
// wave starts. This is the pipeline's only backpressure mechanism.
// Completion order within a wave is unspecified; fn must synchronize any
// shared state itself.
func runWaves[T any](batches [][]T, width int, fn func(batchIndex int, batch []T)) {
	if width <= 0 {
		width = 1
	}
	for start := 0; start < len(batches); start += width {
		end := start + width
		if end > len(batches) {
			end = len(batches)
		}

		var wg stdsync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				fn(idx, batches[idx])
			}(i)
		}
		wg.Wait()
	}
}
