package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatekeeper/internal/database"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/store"
)

type fakeProvider struct {
	signedOut []string
}

func (p *fakeProvider) Verify(ctx context.Context, rawToken string) (identity.Identity, error) {
	return identity.Identity{}, errors.New("not implemented")
}

func (p *fakeProvider) SignOut(ctx context.Context, subjectID string) error {
	p.signedOut = append(p.signedOut, subjectID)
	return nil
}

func newTestResolver(t *testing.T) (*Resolver, *store.MemoryStore, *fakeProvider) {
	t.Helper()
	st := store.NewMemoryStore()
	provider := &fakeProvider{}
	resolver := NewResolver(st, provider)
	resolver.now = func() time.Time {
		return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return resolver, st, provider
}

func TestAuthorizeInvalidIdentity(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	testCases := []struct {
		name  string
		ident identity.Identity
	}{
		{"missing email", identity.Identity{SubjectID: "u1"}},
		{"missing subject", identity.Identity{Email: "a@b.com"}},
		{"empty", identity.Identity{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Authorize(context.Background(), tc.ident)
			if !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("expected ErrInvalidIdentity, got %v", err)
			}
		})
	}
}

func TestAuthorizeUnauthorizedForcesSignOut(t *testing.T) {
	resolver, _, provider := newTestResolver(t)

	_, err := resolver.Authorize(context.Background(), identity.Identity{
		SubjectID: "u1",
		Email:     "stranger@example.com",
	})

	var rejection *UnauthorizedError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if rejection.Email != "stranger@example.com" {
		t.Errorf("rejection email = %q; want stranger@example.com", rejection.Email)
	}
	if len(provider.signedOut) != 1 || provider.signedOut[0] != "u1" {
		t.Errorf("expected forced sign-out of u1, got %v", provider.signedOut)
	}
}

func TestAuthorizeFirstLogin(t *testing.T) {
	resolver, st, _ := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutAllowEntry(ctx, &database.AllowListEntry{
		Key:   "a@b.com",
		Email: "a@b.com",
		Role:  database.RoleAdmin,
		Name:  "Alice",
	}); err != nil {
		t.Fatal(err)
	}

	outcome, err := resolver.Authorize(ctx, identity.Identity{
		SubjectID:   "u1",
		Email:       "  A@B.com ",
		DisplayName: "Alice B",
		Device:      identity.DeviceInfo{Platform: "web", UserAgent: "test", IPAddress: "10.0.0.1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !outcome.Authorized || outcome.Role != database.RoleAdmin {
		t.Errorf("outcome = %+v; want authorized admin", outcome)
	}

	record, err := st.ActivityByID(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if record.Name != "Alice" {
		t.Errorf("name = %q; want allow-list name", record.Name)
	}
	if record.LoginCount != 1 {
		t.Errorf("login count = %d; want 1", record.LoginCount)
	}
	if record.CreatedAt == nil || record.LastLogin == nil || record.LastActive == nil {
		t.Error("expected created_at, last_login and last_active to be set")
	}
	if record.Platform != "web" || record.IPAddress != "10.0.0.1" {
		t.Errorf("device metadata not recorded: %+v", record)
	}
}

func TestAuthorizeNameFallbacks(t *testing.T) {
	testCases := []struct {
		name        string
		entryName   string
		displayName string
		expected    string
	}{
		{"allow-list name wins", "Alice", "Other", "Alice"},
		{"display name fallback", "", "Alice B", "Alice B"},
		{"email fallback", "", "", "a@b.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolver, st, _ := newTestResolver(t)
			ctx := context.Background()

			if err := st.PutAllowEntry(ctx, &database.AllowListEntry{
				Key:   "a@b.com",
				Email: "a@b.com",
				Role:  database.RoleStaff,
				Name:  tc.entryName,
			}); err != nil {
				t.Fatal(err)
			}

			outcome, err := resolver.Authorize(ctx, identity.Identity{
				SubjectID:   "u1",
				Email:       "a@b.com",
				DisplayName: tc.displayName,
			})
			if err != nil {
				t.Fatal(err)
			}
			if outcome.Record.Name != tc.expected {
				t.Errorf("name = %q; want %q", outcome.Record.Name, tc.expected)
			}
		})
	}
}

func TestAuthorizeLookupChain(t *testing.T) {
	testCases := []struct {
		name  string
		entry database.AllowListEntry
	}{
		{"keyed by normalized email", database.AllowListEntry{Key: "a@b.com", Email: "a@b.com"}},
		{"keyed by raw email", database.AllowListEntry{Key: " A@B.com ", Email: "a@b.com"}},
		{"email field normalized, legacy key", database.AllowListEntry{Key: "legacy-17", Email: "a@b.com"}},
		{"email field raw, legacy key", database.AllowListEntry{Key: "legacy-18", Email: " A@B.com "}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolver, st, provider := newTestResolver(t)
			ctx := context.Background()

			entry := tc.entry
			entry.Role = database.RoleStaff
			if err := st.PutAllowEntry(ctx, &entry); err != nil {
				t.Fatal(err)
			}

			outcome, err := resolver.Authorize(ctx, identity.Identity{
				SubjectID: "u1",
				Email:     " A@B.com ",
			})
			if err != nil {
				t.Fatal(err)
			}
			if !outcome.Authorized {
				t.Error("expected authorization via fallback chain")
			}
			if len(provider.signedOut) != 0 {
				t.Errorf("unexpected sign-out: %v", provider.signedOut)
			}
		})
	}
}

func TestAuthorizeChainPrefersNormalizedKey(t *testing.T) {
	resolver, st, _ := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutAllowEntry(ctx, &database.AllowListEntry{
		Key: "legacy-1", Email: "a@b.com", Role: database.RoleStaff,
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutAllowEntry(ctx, &database.AllowListEntry{
		Key: "a@b.com", Email: "a@b.com", Role: database.RoleAdmin,
	}); err != nil {
		t.Fatal(err)
	}

	outcome, err := resolver.Authorize(ctx, identity.Identity{SubjectID: "u1", Email: "A@B.com"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Role != database.RoleAdmin {
		t.Errorf("role = %q; want the normalized-key entry to win", outcome.Role)
	}
}

func TestAuthorizeReauthenticationGrandfathers(t *testing.T) {
	resolver, st, provider := newTestResolver(t)
	ctx := context.Background()

	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := st.PutActivity(ctx, &database.ActivityRecord{
		ID:         "u1",
		Email:      "a@b.com",
		Role:       database.RoleAdmin,
		LoginCount: 4,
		CreatedAt:  &created,
	}); err != nil {
		t.Fatal(err)
	}

	// No allow-list entry at all: the revoked identity still gets in.
	outcome, err := resolver.Authorize(ctx, identity.Identity{SubjectID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Authorized || outcome.Role != database.RoleAdmin {
		t.Errorf("outcome = %+v; want grandfathered admin", outcome)
	}
	if len(provider.signedOut) != 0 {
		t.Errorf("unexpected sign-out on re-authentication: %v", provider.signedOut)
	}

	record, err := st.ActivityByID(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if record.LoginCount != 5 {
		t.Errorf("login count = %d; want 5", record.LoginCount)
	}
	if record.CreatedAt == nil || !record.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v; want preserved %v", record.CreatedAt, created)
	}
}
