package database

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// AllowListEntry is an identity permitted to use the system. The storage
// key is ideally the normalized email, but legacy rows exist where key and
// email disagree; the access resolver carries a fallback chain for those.
type AllowListEntry struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	Email     string    `json:"email"`
	Role      string    `json:"role" gorm:"default:'staff'"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *AllowListEntry) TableName() string {
	return "access.allowlist"
}

// ActivityRecord tracks login activity per authenticated session identity.
// Keyed by the provider-issued subject id, not email: one email may map to
// several records after historical key migrations.
type ActivityRecord struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	PhotoURL    string     `json:"photo_url"`
	LastLogin   *time.Time `json:"last_login"`
	LastActive  *time.Time `json:"last_active"`
	LoginCount  int        `json:"login_count" gorm:"default:0"`
	CreatedAt   *time.Time `json:"created_at"`
	UserAgent   string     `json:"user_agent"`
	Platform    string     `json:"platform"`
	IPAddress   string     `json:"ip_address"`
}

func (r *ActivityRecord) TableName() string {
	return "access.activity"
}
