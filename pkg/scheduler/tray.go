package scheduler

import (
	"sync"
)

// tray is the shared result store. Workers put results, Await pops them.
// Each pending job has a done channel closed on completion so waiters never
// poll.
type tray struct {
	mu      sync.Mutex
	results map[string]*Result
	done    map[string]chan struct{}
}

func newTray() *tray {
	return &tray{
		results: make(map[string]*Result),
		done:    make(map[string]chan struct{}),
	}
}

// register creates the completion signal for a freshly submitted job.
func (t *tray) register(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.done[jobID]; !exists {
		t.done[jobID] = make(chan struct{})
	}
}

// put stores a result and signals waiters.
func (t *tray) put(jobID string, res *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[jobID] = res
	if ch, exists := t.done[jobID]; exists {
		close(ch)
	}
}

// waiter returns the completion signal for a pending job. The second return
// is false when the job is unknown or already consumed.
func (t *tray) waiter(jobID string) (<-chan struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, exists := t.done[jobID]
	return ch, exists
}

// take pops a result. Nil when absent; a result can be taken exactly once.
func (t *tray) take(jobID string) *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, exists := t.results[jobID]
	if !exists {
		return nil
	}
	delete(t.results, jobID)
	delete(t.done, jobID)
	return res
}
