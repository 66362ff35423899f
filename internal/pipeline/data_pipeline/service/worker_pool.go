package service

import (
	"context"
	"sync"
)

// ReduceWithWorkers spreads input over workerCount goroutines. Every worker
// folds the items it takes into its own partial from newPartial, so no partial
// is touched by two goroutines. The partials are returned once all workers
// have stopped; merging them is left to the caller.
func ReduceWithWorkers[
	inputType any,
	partialType any,
](
	ctx context.Context,
	input []inputType,
	newPartial func() partialType,
	fold func(ctx context.Context, partial partialType, input inputType),
	workerCount int,
) ([]partialType, error) {
	if workerCount > len(input) {
		workerCount = len(input)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	inputChannel := make(chan inputType, len(input))
	for _, item := range input {
		inputChannel <- item
	}
	close(inputChannel)

	var wg sync.WaitGroup
	wg.Add(workerCount)

	partials := make([]partialType, workerCount)
	for i := 0; i < workerCount; i++ {
		partials[i] = newPartial()
		go func(partial partialType) {
			defer wg.Done()
			for item := range inputChannel {
				if ctx.Err() != nil {
					return
				}
				fold(ctx, partial, item)
			}
		}(partials[i])
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return partials, nil
}
