// Package daemon enforces that only one `river start` coordinator
// runs against a given state directory at a time.
//
// Built around the single mechanism this project actually needs: a
// gofrs/flock file lock. A socket-bind-and-resurrect pattern (dial a
// Unix socket, auto-respawn the process on the other end if it's
// gone) is deliberately not used here: jira-river's coordinator is a
// single long-lived process with no RPC surface for anything to dial
// (see DESIGN.md).
package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Singleton enforces that at most one process holds lockPath at a
// time (spec.md §5 "only one coordinator process should run at a
// time" via SPEC_FULL.md's CLI plan).
type Singleton struct {
	lock *flock.Flock
}

// NewSingleton builds a Singleton guarding lockPath.
func NewSingleton(lockPath string) *Singleton {
	return &Singleton{lock: flock.New(lockPath)}
}

// TryAcquire attempts to become the sole holder. ok is false when
// another process already holds the lock; this is not an error
// condition, just a "don't start a second coordinator" signal.
func (s *Singleton) TryAcquire() (ok bool, err error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire coordinator lock: %w", err)
	}
	return locked, nil
}

// Release gives up the lock. Safe to call even if TryAcquire was
// never called or did not win.
func (s *Singleton) Release() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}
