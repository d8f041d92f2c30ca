package crypto

import (
	"context"
	"crypto/ed25519"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchVerifyThreshold is the minimum batch size at which verification is
// fanned out across a worker pool instead of run inline. Smaller batches
// pay more in goroutine/semaphore overhead than they save.
const BatchVerifyThreshold = 8

// SignedMessage is one (public key, message, signature) triple to verify.
type SignedMessage struct {
	PublicKey ed25519.PublicKey
	Message   []byte
	Signature []byte
}

// BatchVerify verifies every entry in batch and returns a parallel slice of
// booleans, one per entry. For batches smaller than BatchVerifyThreshold it
// verifies inline; larger batches are split across a worker pool bounded by
// a semaphore sized to GOMAXPROCS, so CPU-bound verification never
// oversubscribes the machine regardless of how large the batch is.
//
// ctx cancellation stops dispatching new work; entries not yet verified when
// ctx is done are reported as false.
func BatchVerify(ctx context.Context, batch []SignedMessage) []bool {
	results := make([]bool, len(batch))

	if len(batch) < BatchVerifyThreshold {
		for i, m := range batch {
			results[i] = Verify(m.PublicKey, m.Message, m.Signature)
		}
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))

	var wg sync.WaitGroup
	for i := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: leave remaining results false and stop.
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			m := batch[i]
			results[i] = Verify(m.PublicKey, m.Message, m.Signature)
		}(i)
	}
	wg.Wait()
	return results
}
