package store

import (
	"context"
	"fmt"
	"sync"

	"gatekeeper/internal/database"
)

// MemoryStore is a mutex-guarded in-memory IdentityStore used by tests and
// the dev server mode. Scans return records in insertion order, matching
// the discovery-order guarantee the roster merge relies on.
type MemoryStore struct {
	mu            sync.RWMutex
	allowlist     map[string]database.AllowListEntry
	allowlistKeys []string
	activity      map[string]database.ActivityRecord
	activityIDs   []string
	notifier      *notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		allowlist: make(map[string]database.AllowListEntry),
		activity:  make(map[string]database.ActivityRecord),
		notifier:  newNotifier(),
	}
}

func (s *MemoryStore) AllowEntryByKey(ctx context.Context, key string) (*database.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.allowlist[key]
	if !ok {
		return nil, fmt.Errorf("allowlist get %q: %w", key, ErrNotFound)
	}
	return &entry, nil
}

func (s *MemoryStore) AllowEntriesByEmail(ctx context.Context, email string, limit int) ([]database.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []database.AllowListEntry
	for _, key := range s.allowlistKeys {
		entry := s.allowlist[key]
		if entry.Email == email {
			entries = append(entries, entry)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
	}
	return entries, nil
}

func (s *MemoryStore) AllowEntries(ctx context.Context) ([]database.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]database.AllowListEntry, 0, len(s.allowlistKeys))
	for _, key := range s.allowlistKeys {
		entries = append(entries, s.allowlist[key])
	}
	return entries, nil
}

func (s *MemoryStore) PutAllowEntry(ctx context.Context, entry *database.AllowListEntry) error {
	s.mu.Lock()
	if _, ok := s.allowlist[entry.Key]; !ok {
		s.allowlistKeys = append(s.allowlistKeys, entry.Key)
	}
	s.allowlist[entry.Key] = *entry
	s.mu.Unlock()

	s.notifier.publish(CollectionAllowList)
	return nil
}

func (s *MemoryStore) DeleteAllowEntry(ctx context.Context, key string) error {
	s.mu.Lock()
	if _, ok := s.allowlist[key]; ok {
		delete(s.allowlist, key)
		for i, k := range s.allowlistKeys {
			if k == key {
				s.allowlistKeys = append(s.allowlistKeys[:i], s.allowlistKeys[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.notifier.publish(CollectionAllowList)
	return nil
}

func (s *MemoryStore) ActivityByID(ctx context.Context, id string) (*database.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.activity[id]
	if !ok {
		return nil, fmt.Errorf("activity get %q: %w", id, ErrNotFound)
	}
	return &record, nil
}

func (s *MemoryStore) ActivityByEmail(ctx context.Context, email string, limit int) ([]database.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []database.ActivityRecord
	for _, id := range s.activityIDs {
		record := s.activity[id]
		if record.Email == email {
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
	}
	return records, nil
}

func (s *MemoryStore) ActivityRecords(ctx context.Context) ([]database.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]database.ActivityRecord, 0, len(s.activityIDs))
	for _, id := range s.activityIDs {
		records = append(records, s.activity[id])
	}
	return records, nil
}

func (s *MemoryStore) PutActivity(ctx context.Context, record *database.ActivityRecord) error {
	s.mu.Lock()
	if _, ok := s.activity[record.ID]; !ok {
		s.activityIDs = append(s.activityIDs, record.ID)
	}
	s.activity[record.ID] = *record
	s.mu.Unlock()

	s.notifier.publish(CollectionActivity)
	return nil
}

func (s *MemoryStore) DeleteActivity(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.activity[id]; ok {
		delete(s.activity, id)
		for i, k := range s.activityIDs {
			if k == id {
				s.activityIDs = append(s.activityIDs[:i], s.activityIDs[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.notifier.publish(CollectionActivity)
	return nil
}

func (s *MemoryStore) Subscribe(col Collection, onChange func()) func() {
	return s.notifier.subscribe(col, onChange)
}
