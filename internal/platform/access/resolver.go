package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/database"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/store"
	"gatekeeper/pkg/utils"
)

var ErrInvalidIdentity = errors.New("access: invalid identity")

// UnauthorizedError is the expected business outcome for an identity that
// is not on the allow list. The email travels with the error so the caller
// can surface it in the contact-administrator message.
type UnauthorizedError struct {
	Email string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("access denied for %s: not on the allow list", e.Email)
}

type Outcome struct {
	Authorized bool                     `json:"authorized"`
	Role       string                   `json:"role"`
	Record     *database.ActivityRecord `json:"record"`
}

type Resolver struct {
	store    store.IdentityStore
	provider identity.Provider
	now      func() time.Time
}

func NewResolver(st store.IdentityStore, provider identity.Provider) *Resolver {
	return &Resolver{store: st, provider: provider, now: time.Now}
}

// Authorize decides whether the signed-in identity may use the system and
// records the login on its activity record. A record found by subject id
// keeps its stored role even if the allow-list entry has since changed or
// been removed (grandfathering). Otherwise the allow list is consulted
// through an ordered chain of legacy key schemes; no match forces the
// identity session out.
func (r *Resolver) Authorize(ctx context.Context, ident identity.Identity) (*Outcome, error) {
	if ident.SubjectID == "" || ident.Email == "" {
		metrics.AuthorizeTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: missing subject id or email", ErrInvalidIdentity)
	}

	record, err := r.store.ActivityByID(ctx, ident.SubjectID)
	switch {
	case err == nil:
		// Re-authentication. The roster is intentionally not re-checked.
	case errors.Is(err, store.ErrNotFound):
		entry, err := r.findAllowEntry(ctx, ident.Email)
		if err != nil {
			metrics.AuthorizeTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if entry == nil {
			metrics.AuthorizeTotal.WithLabelValues("unauthorized").Inc()
			rejection := &UnauthorizedError{Email: ident.Email}
			if err := r.provider.SignOut(ctx, ident.SubjectID); err != nil {
				return nil, errors.Join(rejection, fmt.Errorf("force sign-out after rejection: %w", err))
			}
			return nil, rejection
		}
		record = newRecord(ident, entry)
	default:
		metrics.AuthorizeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load activity record: %w", err)
	}

	r.recordLogin(record, ident)

	if err := r.store.PutActivity(ctx, record); err != nil {
		metrics.AuthorizeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist activity record: %w", err)
	}

	metrics.AuthorizeTotal.WithLabelValues("authorized").Inc()
	return &Outcome{Authorized: true, Role: record.Role, Record: record}, nil
}

// findAllowEntry runs the backward-compatible lookup chain: entry keyed by
// normalized email, keyed by raw email, then entries whose email field
// matches either form. First hit wins. Returns nil without error when no
// scheme matches. New legacy key schemes get appended to this list.
func (r *Resolver) findAllowEntry(ctx context.Context, email string) (*database.AllowListEntry, error) {
	normalized := utils.NormalizeEmail(email)

	lookups := []func(context.Context) (*database.AllowListEntry, error){
		func(ctx context.Context) (*database.AllowListEntry, error) {
			return r.store.AllowEntryByKey(ctx, normalized)
		},
		func(ctx context.Context) (*database.AllowListEntry, error) {
			return r.store.AllowEntryByKey(ctx, email)
		},
		func(ctx context.Context) (*database.AllowListEntry, error) {
			return firstEntry(r.store.AllowEntriesByEmail(ctx, normalized, 1))
		},
		func(ctx context.Context) (*database.AllowListEntry, error) {
			return firstEntry(r.store.AllowEntriesByEmail(ctx, email, 1))
		},
	}

	for _, lookup := range lookups {
		entry, err := lookup(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("allow list lookup: %w", err)
		}
		if entry != nil {
			return entry, nil
		}
	}

	return nil, nil
}

func firstEntry(entries []database.AllowListEntry, err error) (*database.AllowListEntry, error) {
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func newRecord(ident identity.Identity, entry *database.AllowListEntry) *database.ActivityRecord {
	name := entry.Name
	if name == "" {
		name = ident.DisplayName
	}
	if name == "" {
		name = ident.Email
	}

	role := entry.Role
	if role == "" {
		role = database.RoleStaff
	}

	return &database.ActivityRecord{
		ID:    ident.SubjectID,
		Email: ident.Email,
		Name:  name,
		Role:  role,
	}
}

// recordLogin merges the login into the record without clobbering fields
// it does not own: created_at is preserved once set, login_count treats a
// missing value as zero, device metadata is overwritten.
func (r *Resolver) recordLogin(record *database.ActivityRecord, ident identity.Identity) {
	now := r.now()

	record.LastLogin = &now
	record.LastActive = &now
	record.LoginCount++
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	record.DisplayName = ident.DisplayName
	record.PhotoURL = ident.PhotoURL
	record.UserAgent = ident.Device.UserAgent
	record.Platform = ident.Device.Platform
	record.IPAddress = ident.Device.IPAddress
}
