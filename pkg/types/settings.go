package types

import "time"

// Feature flag keys seeded on first startup.
const (
	FlagMaintenanceMode = "maintenance_mode"
	FlagRegistration    = "registration_enabled"
	FlagDailyRewards    = "daily_rewards_enabled"
	FlagChapterComments = "chapter_comments_enabled"
	FlagAdsEnabled      = "ads_enabled"
)

// Setting is a key/value row in the settings table. Boolean flags are stored
// as "true" or "false"; use Engine.GetFlag and Engine.SetFlag for those.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Language is a reference row for content localisation.
type Language struct {
	Code       string // BCP-47 code, e.g. "en".
	Name       string
	NativeName string
	Active     bool
}

// RewardDay is one entry of the fixed daily reward cycle.
type RewardDay struct {
	Day    int
	Reward int64
	Bonus  bool
}

// AuditEntry is an administrative action handed to the engine for recording.
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	TargetID  string
	Details   string
	CreatedAt time.Time
}
