package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

// SyncFlights deduplicates concurrent syncs of the same source. The entry
// for a source is cleared when its sync settles, whether it succeeded,
// failed or panicked.
type SyncFlights struct {
	group singleflight.Group

	mu       sync.Mutex
	inFlight map[material.Source]bool
}

// NewSyncFlights creates an empty table.
func NewSyncFlights() *SyncFlights {
	return &SyncFlights{inFlight: make(map[material.Source]bool)}
}

// Start runs a.Sync unless one is already running for the same source and
// returns a channel that receives the shared outcome. The sync is detached
// from ctx cancellation so an impatient caller does not abort it for the
// others; ctx values such as the logger are kept.
func (f *SyncFlights) Start(ctx context.Context, a source.Adapter) <-chan singleflight.Result {
	id := a.Info().ID
	detached := context.WithoutCancel(ctx)

	return f.group.DoChan(string(id), func() (result any, err error) {
		f.setInFlight(id, true)
		defer f.setInFlight(id, false)
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("sync of %s panicked: %v", id, p)
				logging.FromContext(detached).Error().
					Ctx(detached).
					Str("component", "registry").
					Str("operation", "auto_sync").
					Str("source", string(id)).
					Interface("panic", p).
					Msg("sync panicked")
			}
		}()
		return a.Sync(detached)
	})
}

// InFlight reports whether a sync of src is running.
func (f *SyncFlights) InFlight(src material.Source) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight[src]
}

// Forget drops the handle of src so the next Start begins a new sync.
// Callers already waiting still receive the old outcome.
func (f *SyncFlights) Forget(src material.Source) {
	f.group.Forget(string(src))
}

func (f *SyncFlights) setInFlight(src material.Source, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v {
		f.inFlight[src] = true
		return
	}
	delete(f.inFlight, src)
}
