package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"gatekeeper/internal/database"
)

// GormStore persists both collections in Postgres through GORM. Change
// notifications are in-process only: writes performed by another instance
// are not observed until the next recompute triggered locally.
type GormStore struct {
	db       *gorm.DB
	notifier *notifier
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, notifier: newNotifier()}
}

// wrapErr maps backend failures onto the store error taxonomy so callers
// can tell a permission problem from a connectivity one.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%s: %v: %w", op, err, ErrPermissionDenied)
	}

	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}

func (s *GormStore) AllowEntryByKey(ctx context.Context, key string) (*database.AllowListEntry, error) {
	var entry database.AllowListEntry
	result := s.db.WithContext(ctx).First(&entry, "key = ?", key)
	if result.Error != nil {
		return nil, wrapErr("allowlist get", result.Error)
	}
	return &entry, nil
}

func (s *GormStore) AllowEntriesByEmail(ctx context.Context, email string, limit int) ([]database.AllowListEntry, error) {
	var entries []database.AllowListEntry
	result := s.db.WithContext(ctx).Limit(limit).Find(&entries, "email = ?", email)
	if result.Error != nil {
		return nil, wrapErr("allowlist query", result.Error)
	}
	return entries, nil
}

func (s *GormStore) AllowEntries(ctx context.Context) ([]database.AllowListEntry, error) {
	var entries []database.AllowListEntry
	result := s.db.WithContext(ctx).Find(&entries)
	if result.Error != nil {
		return nil, wrapErr("allowlist scan", result.Error)
	}
	return entries, nil
}

func (s *GormStore) PutAllowEntry(ctx context.Context, entry *database.AllowListEntry) error {
	result := s.db.WithContext(ctx).Save(entry)
	if result.Error != nil {
		return wrapErr("allowlist put", result.Error)
	}
	s.notifier.publish(CollectionAllowList)
	return nil
}

func (s *GormStore) DeleteAllowEntry(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Delete(&database.AllowListEntry{}, "key = ?", key)
	if result.Error != nil {
		return wrapErr("allowlist delete", result.Error)
	}
	s.notifier.publish(CollectionAllowList)
	return nil
}

func (s *GormStore) ActivityByID(ctx context.Context, id string) (*database.ActivityRecord, error) {
	var record database.ActivityRecord
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		return nil, wrapErr("activity get", result.Error)
	}
	return &record, nil
}

func (s *GormStore) ActivityByEmail(ctx context.Context, email string, limit int) ([]database.ActivityRecord, error) {
	var records []database.ActivityRecord
	result := s.db.WithContext(ctx).Limit(limit).Find(&records, "email = ?", email)
	if result.Error != nil {
		return nil, wrapErr("activity query", result.Error)
	}
	return records, nil
}

func (s *GormStore) ActivityRecords(ctx context.Context) ([]database.ActivityRecord, error) {
	var records []database.ActivityRecord
	result := s.db.WithContext(ctx).Find(&records)
	if result.Error != nil {
		return nil, wrapErr("activity scan", result.Error)
	}
	return records, nil
}

func (s *GormStore) PutActivity(ctx context.Context, record *database.ActivityRecord) error {
	result := s.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return wrapErr("activity put", result.Error)
	}
	s.notifier.publish(CollectionActivity)
	return nil
}

func (s *GormStore) DeleteActivity(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&database.ActivityRecord{}, "id = ?", id)
	if result.Error != nil {
		return wrapErr("activity delete", result.Error)
	}
	s.notifier.publish(CollectionActivity)
	return nil
}

func (s *GormStore) Subscribe(col Collection, onChange func()) func() {
	return s.notifier.subscribe(col, onChange)
}
