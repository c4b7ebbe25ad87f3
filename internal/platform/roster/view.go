package roster

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"gatekeeper/internal/database"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/store"
)

var ErrForbidden = errors.New("roster: viewer is not an administrator")

// View maintains the merged roster against live changes to both source
// collections. Each notification triggers a full recompute which replaces
// the derived slice atomically; a failed recompute keeps the previous
// snapshot. Close releases both subscriptions together.
type View struct {
	store store.IdentityStore

	mu      sync.RWMutex
	current []MergedUserView

	unsubscribe []func()
	closeOnce   sync.Once
}

// NewView requires the viewer's role up front: only administrators may
// hold a roster subscription.
func NewView(st store.IdentityStore, viewerRole string) (*View, error) {
	if viewerRole != database.RoleAdmin {
		return nil, ErrForbidden
	}

	v := &View{store: st}
	v.unsubscribe = append(v.unsubscribe,
		st.Subscribe(store.CollectionAllowList, v.recompute),
		st.Subscribe(store.CollectionActivity, v.recompute),
	)
	v.recompute()

	return v, nil
}

func (v *View) recompute() {
	ctx := context.Background()

	entries, err := v.store.AllowEntries(ctx)
	if err != nil {
		log.Errorf("roster recompute: %v", err)
		return
	}
	records, err := v.store.ActivityRecords(ctx)
	if err != nil {
		log.Errorf("roster recompute: %v", err)
		return
	}

	merged := Merge(entries, records)
	metrics.RosterRecomputeTotal.Inc()

	v.mu.Lock()
	v.current = merged
	v.mu.Unlock()
}

// Snapshot returns a copy of the current merged roster.
func (v *View) Snapshot() []MergedUserView {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snapshot := make([]MergedUserView, len(v.current))
	copy(snapshot, v.current)
	return snapshot
}

func (v *View) Close() {
	v.closeOnce.Do(func() {
		for _, unsubscribe := range v.unsubscribe {
			unsubscribe()
		}
	})
}
