package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gatekeeper/internal/metrics"
	"gatekeeper/internal/store"
	"gatekeeper/pkg/utils"
)

// RemovalReport tells the caller exactly which steps succeeded. There is
// no rollback: steps that succeeded stay done even when others fail.
type RemovalReport struct {
	Email            string   `json:"email"`
	AllowListDeleted bool     `json:"allowlist_deleted"`
	DeletedIDs       []string `json:"deleted_ids"`
	FailedIDs        []string `json:"failed_ids"`
}

// RemoveCompletely deletes the allow-list entry for an email and every
// activity record attached to it. The caller's known ids are extended by a
// scan of the activity collection, since a caller's merged view may be
// stale relative to the live roster. All deletions run concurrently and
// independently; the returned error joins every step failure, and is nil
// only when every step succeeded.
func RemoveCompletely(ctx context.Context, st store.IdentityStore, email string, knownIDs []string) (*RemovalReport, error) {
	normalized := utils.NormalizeEmail(email)
	report := &RemovalReport{Email: normalized}

	ids := make([]string, 0, len(knownIDs))
	seen := make(map[string]struct{})
	for _, id := range knownIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	var errs []error

	// Safety net: a scan failure must not block deletion of the ids the
	// caller already knows about.
	records, err := st.ActivityRecords(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("scan activity for %s: %w", normalized, err))
	} else {
		for _, record := range records {
			if utils.NormalizeEmail(record.Email) != normalized {
				continue
			}
			if _, ok := seen[record.ID]; ok {
				continue
			}
			seen[record.ID] = struct{}{}
			ids = append(ids, record.ID)
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := st.DeleteAllowEntry(ctx, normalized)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			metrics.RemovalStepsTotal.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("delete allow-list entry %s: %w", normalized, err))
			return
		}
		metrics.RemovalStepsTotal.WithLabelValues("ok").Inc()
		report.AllowListDeleted = true
	}()

	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.DeleteActivity(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.RemovalStepsTotal.WithLabelValues("failed").Inc()
				report.FailedIDs = append(report.FailedIDs, id)
				errs = append(errs, fmt.Errorf("delete activity record %s: %w", id, err))
				return
			}
			metrics.RemovalStepsTotal.WithLabelValues("ok").Inc()
			report.DeletedIDs = append(report.DeletedIDs, id)
		}()
	}

	wg.Wait()

	return report, errors.Join(errs...)
}
