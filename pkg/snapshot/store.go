// Package snapshot holds the most recently published snapshot.
package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// Store publishes whole snapshots atomically. Readers see either the
// previous or the new snapshot, never a mix. Published snapshots must not
// be modified afterwards.
type Store struct {
	current atomic.Pointer[model.Snapshot]

	mu   sync.Mutex
	subs []chan *model.Snapshot
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Publish makes s the current snapshot. A nil snapshot is ignored.
func (st *Store) Publish(s *model.Snapshot) {
	if s == nil {
		return
	}
	st.current.Store(s)

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, ch := range st.subs {
		// Latest wins: drop an undelivered older snapshot.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Current returns the current snapshot, or util.ErrNotReady before the
// first publish.
func (st *Store) Current() (*model.Snapshot, error) {
	s := st.current.Load()
	if s == nil {
		return nil, util.ErrNotReady
	}
	return s, nil
}

// Ready reports whether a snapshot has been published.
func (st *Store) Ready() bool {
	return st.current.Load() != nil
}

// Subscribe returns a channel receiving each published snapshot. The
// channel holds one element; a slow reader only sees the latest.
func (st *Store) Subscribe() <-chan *model.Snapshot {
	ch := make(chan *model.Snapshot, 1)
	st.mu.Lock()
	st.subs = append(st.subs, ch)
	st.mu.Unlock()
	return ch
}
