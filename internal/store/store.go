package store

import (
	"context"
	"errors"
	"sync"

	"gatekeeper/internal/database"
)

type Collection string

const (
	CollectionAllowList Collection = "allowlist"
	CollectionActivity  Collection = "activity"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrUnavailable      = errors.New("store: backend unavailable")
	ErrPermissionDenied = errors.New("store: permission denied")
)

// IdentityStore is the persistence boundary for the allowlist and activity
// collections. Writes fire in-process change notifications so live views
// can recompute; Subscribe returns the unsubscribe handle, owned by the
// subscriber.
type IdentityStore interface {
	AllowEntryByKey(ctx context.Context, key string) (*database.AllowListEntry, error)
	AllowEntriesByEmail(ctx context.Context, email string, limit int) ([]database.AllowListEntry, error)
	AllowEntries(ctx context.Context) ([]database.AllowListEntry, error)
	PutAllowEntry(ctx context.Context, entry *database.AllowListEntry) error
	DeleteAllowEntry(ctx context.Context, key string) error

	ActivityByID(ctx context.Context, id string) (*database.ActivityRecord, error)
	ActivityByEmail(ctx context.Context, email string, limit int) ([]database.ActivityRecord, error)
	ActivityRecords(ctx context.Context) ([]database.ActivityRecord, error)
	PutActivity(ctx context.Context, record *database.ActivityRecord) error
	DeleteActivity(ctx context.Context, id string) error

	Subscribe(col Collection, onChange func()) (unsubscribe func())
}

// notifier fans out collection change events to registered observers.
// Callbacks run outside the lock; a callback may unsubscribe itself.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[Collection]map[int]func()
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[Collection]map[int]func())}
}

func (n *notifier) subscribe(col Collection, onChange func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[col] == nil {
		n.subs[col] = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[col][id] = onChange

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[col], id)
	}
}

func (n *notifier) publish(col Collection) {
	n.mu.Lock()
	callbacks := make([]func(), 0, len(n.subs[col]))
	for _, fn := range n.subs[col] {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
