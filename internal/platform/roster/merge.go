package roster

import (
	"sort"
	"time"

	"gatekeeper/internal/database"
	"gatekeeper/pkg/utils"
)

// MergedUserView reconciles an allow-list entry and every activity record
// sharing one normalized email into a single row. Derived, never persisted.
// Approved=false marks an orphan activity record with no allow-list entry;
// Active=false marks an allow-listed identity that never signed in. More
// than one entry in UserIDs means leftover records from a key migration,
// which the UI flags rather than hides.
type MergedUserView struct {
	Email      string     `json:"email"`
	Approved   bool       `json:"approved"`
	Active     bool       `json:"active"`
	Role       string     `json:"role"`
	Name       string     `json:"name"`
	CreatedAt  *time.Time `json:"created_at"`
	LastActive *time.Time `json:"last_active"`
	UserIDs    []string   `json:"user_ids"`
}

// Merge produces exactly one view per normalized email present in either
// input. Pure and deterministic: input order within each slice does not
// affect the sorted output. Admins sort first, ties break on email.
func Merge(allowList []database.AllowListEntry, activity []database.ActivityRecord) []MergedUserView {
	views := make(map[string]*MergedUserView)

	for _, entry := range allowList {
		email := utils.NormalizeEmail(entry.Email)
		if email == "" {
			continue
		}

		view, ok := views[email]
		if !ok {
			view = &MergedUserView{Email: email}
			views[email] = view
		}
		view.Approved = true
		if view.Role == "" {
			view.Role = entry.Role
		}
		if view.Name == "" {
			view.Name = entry.Name
		}
		if view.CreatedAt == nil && !entry.CreatedAt.IsZero() {
			createdAt := entry.CreatedAt
			view.CreatedAt = &createdAt
		}
	}

	for _, record := range activity {
		email := utils.NormalizeEmail(record.Email)
		if email == "" {
			continue
		}

		view, ok := views[email]
		if !ok {
			view = &MergedUserView{Email: email}
			views[email] = view
		}
		view.Active = true

		if view.Role == "" {
			view.Role = record.Role
		}
		if view.Role == "" {
			view.Role = database.RoleStaff
		}

		if view.Name == "" {
			view.Name = record.DisplayName
		}
		if view.Name == "" {
			view.Name = record.Name
		}

		if view.CreatedAt == nil && record.CreatedAt != nil {
			createdAt := *record.CreatedAt
			view.CreatedAt = &createdAt
		}

		if candidate := latestActivity(&record); candidate != nil {
			if view.LastActive == nil || candidate.After(*view.LastActive) {
				lastActive := *candidate
				view.LastActive = &lastActive
			}
		}

		if !containsID(view.UserIDs, record.ID) {
			view.UserIDs = append(view.UserIDs, record.ID)
		}
	}

	merged := make([]MergedUserView, 0, len(views))
	for _, view := range views {
		merged = append(merged, *view)
	}

	sort.Slice(merged, func(i, j int) bool {
		adminI := merged[i].Role == database.RoleAdmin
		adminJ := merged[j].Role == database.RoleAdmin
		if adminI != adminJ {
			return adminI
		}
		return merged[i].Email < merged[j].Email
	})

	return merged
}

// latestActivity picks the record's freshest timestamp, preferring
// last_active over last_login. A record with neither contributes nothing.
func latestActivity(record *database.ActivityRecord) *time.Time {
	if record.LastActive != nil {
		return record.LastActive
	}
	return record.LastLogin
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
