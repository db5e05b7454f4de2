package impulse

import "sync"

// task calls fn on every item, split into one contiguous chunk per worker.
// fn may only write to its own item, or to slots indexed by i.
func task[T any](workersCount int, data []T, fn func(i int, item *T)) {
	dataSize := len(data)
	if workersCount <= 1 || dataSize < 2 {
		for i := range data {
			fn(i, &data[i])
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for start := 0; start < dataSize; start += chunkSize {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i, &data[i])
			}
		}(start, min(start+chunkSize, dataSize))
	}
	wg.Wait()
}
