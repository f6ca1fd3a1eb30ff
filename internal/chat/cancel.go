// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager holds the cancel function of the in-flight turn, tagged with
// the turn's generation so a finished turn cannot cancel its successor.
type cancelManager struct {
	mu         sync.Mutex
	gen        uint64
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// set stores fn for turn gen. A previous function still held is cancelled
// first so its context is never leaked.
func (cm *cancelManager) set(gen uint64, fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.gen = gen
	cm.cancelFunc = fn
}

// cancel invokes and clears the function if it belongs to turn gen.
// Safe to call multiple times.
func (cm *cancelManager) cancel(gen uint64) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil || cm.gen != gen {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	return true
}
