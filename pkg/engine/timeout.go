package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/csgcloud/pkg/logging"
)

// DefaultTimeout is the limit for a single evaluation unless WithTimeout
// overrides it.
const DefaultTimeout = 5 * time.Second

// evalResult carries an evaluation outcome through a channel.
type evalResult struct {
	res *EvalResult
	err error
}

// waitWithTimeout waits for a result from ch, returning an error if the
// evaluation exceeds timeout, ctx ends, or a newer evaluation started
// meanwhile.
//
// On timeout the goroutine may still be running until the caller cancels
// its context; its result is dropped into the buffered channel.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	timeout time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*EvalResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			logging.Logger().Warn("discarding superseded evaluation", "generation", gen, "current", current)
			return nil, fmt.Errorf("evaluation superseded by newer request")
		}
		if r.err != nil {
			return nil, r.err
		}
		return r.res, nil

	case <-timer.C:
		return nil, fmt.Errorf("evaluation timed out after %s", timeout)

	case <-ctx.Done():
		return nil, fmt.Errorf("evaluation canceled: %w", context.Cause(ctx))
	}
}
