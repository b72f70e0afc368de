package passthrough

import (
	"sync"

	"github.com/jamesprial/mcp-passthrough/internal/metrics"
)

// asyncTasks tracks continueAsync background continuations so Close can
// join them before returning (spec.md §5: "continueAsync background
// continuations are spawned as tracked goroutines owned by the context").
type asyncTasks struct {
	wg      sync.WaitGroup
	metrics *metrics.Recorder
}

// spawn starts fn in a tracked goroutine.
func (a *asyncTasks) spawn(fn func()) {
	a.wg.Add(1)
	a.metrics.AsyncStarted()
	go func() {
		defer a.wg.Done()
		defer a.metrics.AsyncFinished()
		fn()
	}()
}

// wait blocks until every spawned task has returned.
func (a *asyncTasks) wait() {
	a.wg.Wait()
}
