// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"sync"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// progressTracker maintains one shared progress snapshot for a research run
// and notifies the caller after every change. Branch goroutines update it
// concurrently. A panicking callback is recovered so observer bugs cannot
// take down a run.
type progressTracker struct {
	mu       sync.Mutex
	progress types.ResearchProgress
	callback func(types.ResearchProgress)
}

func newProgressTracker(depth, breadth int, callback func(types.ResearchProgress)) *progressTracker {
	return &progressTracker{
		progress: types.ResearchProgress{
			CurrentDepth:   depth,
			TotalDepth:     depth,
			CurrentBreadth: breadth,
			TotalBreadth:   breadth,
		},
		callback: callback,
	}
}

// expanded records that one tree node generated n sub-queries, the first of
// which is now being researched.
func (t *progressTracker) expanded(n int, firstQuery string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.TotalQueries += n
	t.progress.CurrentQuery = firstQuery
	t.notify()
}

// branchDone records one completed sub-query and the depth and breadth the
// scheduler is moving to.
func (t *progressTracker) branchDone(newDepth, newBreadth int, query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.CompletedQueries++
	t.progress.CurrentDepth = newDepth
	t.progress.CurrentBreadth = newBreadth
	t.progress.CurrentQuery = query
	t.notify()
}

// notify invokes the callback with a copy of the current snapshot. Caller
// holds the lock.
func (t *progressTracker) notify() {
	if t.callback == nil {
		return
	}
	defer func() { recover() }()
	t.callback(t.progress)
}
