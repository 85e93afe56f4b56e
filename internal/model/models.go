// Package model defines the data models for the greeting card service.
package model

import "time"

// Role is the role of a selectable profile.
type Role string

// Profile roles.
const (
	RoleGuest Role = "guest"
	RoleOwner Role = "owner"
)

// DefaultAvatarExts are the avatar extensions tried when a profile lists none.
var DefaultAvatarExts = []string{"jpg", "png", "webp", "jpeg"}

// Profile is one selectable identity loaded from the manifest.
// Profiles are immutable once the registry has loaded them.
type Profile struct {
	Key                 string   `json:"key"`
	Label               string   `json:"label"`
	Pass                string   `json:"-"`
	Role                Role     `json:"role"`
	Exts                []string `json:"exts,omitempty"`
	Wishes              []string `json:"-"`
	FirstWish           string   `json:"-"`
	UseGlobalRandomOnly bool     `json:"-"`
	Suffix              string   `json:"-"`
	NameOverride        string   `json:"-"`
}

// IsOwner reports whether the profile has the owner role.
func (p *Profile) IsOwner() bool {
	return p != nil && p.Role == RoleOwner
}

// BankInfo is the bank name and account number a player leaves for the reward.
type BankInfo struct {
	BankName    string `json:"bankName"`
	BankAccount string `json:"bankAccount"`
}

// View is a view telemetry record: who opened whose card and for how long.
type View struct {
	ID          string     `db:"id" json:"id"`
	OwnerKey    string     `db:"owner_key" json:"ownerKey"`
	ViewerKey   string     `db:"viewer_key" json:"viewerKey"`
	ViewerLabel string     `db:"viewer_label" json:"viewerLabel"`
	TargetKey   string     `db:"target_key" json:"targetKey"`
	TargetLabel string     `db:"target_label" json:"targetLabel"`
	UserAgent   string     `db:"user_agent" json:"userAgent"`
	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	EndedAt     *time.Time `db:"ended_at" json:"endedAt"`
	DurationSec int64      `db:"duration_sec" json:"durationSec"`
}

// Wish is a message a viewer left for the card owner.
// FortuneAmount and the bank fields are only set on the copy saved at the
// end of the minigame.
type Wish struct {
	ID            string    `db:"id" json:"id"`
	OwnerKey      string    `db:"owner_key" json:"ownerKey"`
	ViewerKey     string    `db:"viewer_key" json:"viewerKey"`
	ViewerLabel   string    `db:"viewer_label" json:"viewerLabel"`
	TargetKey     string    `db:"target_key" json:"targetKey"`
	TargetLabel   string    `db:"target_label" json:"targetLabel"`
	Message       string    `db:"message" json:"message"`
	FortuneAmount int64     `db:"fortune_amount" json:"fortuneAmount"`
	BankName      string    `db:"bank_name" json:"bankName"`
	BankAccount   string    `db:"bank_account" json:"bankAccount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Fortune is a revealed reward amount together with the player's bank info.
type Fortune struct {
	ID          string    `db:"id" json:"id"`
	OwnerKey    string    `db:"owner_key" json:"ownerKey"`
	ViewerKey   string    `db:"viewer_key" json:"viewerKey"`
	ViewerLabel string    `db:"viewer_label" json:"viewerLabel"`
	Amount      int64     `db:"amount" json:"amount"`
	BankName    string    `db:"bank_name" json:"bankName"`
	BankAccount string    `db:"bank_account" json:"bankAccount"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// RecordKind names one of the three record collections shown on the dashboard.
type RecordKind string

// Record kinds.
const (
	KindViews     RecordKind = "views"
	KindWishes    RecordKind = "wishes"
	KindFortunes  RecordKind = "fortunes"
	DefaultListN             = 200
	MaxListN                 = 500
)

// ClampListN applies the dashboard listing default and cap.
func ClampListN(n int) int {
	if n <= 0 {
		return DefaultListN
	}
	if n > MaxListN {
		return MaxListN
	}
	return n
}
