package model

import "time"

// User is an externally-synced identity. Balance and task counters are owned
// by the ledger and task workflows respectively; nothing else writes them.
type User struct {
	ID                  int64     `json:"-"`
	UserID              string    `json:"user_id"`
	DiscordUsername     string    `json:"discord_username"`
	DiscordTag          string    `json:"discord_tag,omitempty"`
	TikTokOpenID        string    `json:"tiktok_open_id,omitempty"`
	TikTokUsername      string    `json:"tiktok_username,omitempty"`
	TikTokDisplayName   string    `json:"tiktok_display_name,omitempty"`
	TikTokAvatarURL     string    `json:"tiktok_avatar_url,omitempty"`
	FollowersCount      int       `json:"followers_count"`
	FollowingCount      int       `json:"following_count"`
	Region              string    `json:"region,omitempty"`
	Email               string    `json:"email,omitempty"`
	Level               int       `json:"level"`
	Verified            bool      `json:"is_verified"`
	TotalPoints         int64     `json:"total_points"`
	TotalTasksCompleted int64     `json:"total_tasks_completed"`
	Categories          []string  `json:"categories"`
	LastLoginAt         time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UserStats aggregates a user's standing across the task and point workflows.
type UserStats struct {
	UserID              string `json:"user_id"`
	TotalPoints         int64  `json:"total_points"`
	Level               int    `json:"level"`
	TotalTasksCompleted int64  `json:"total_tasks_completed"`
	VerifiedTasks       int64  `json:"verified_tasks"`
	CompletedTasks      int64  `json:"completed_tasks"`
	PendingTasks        int64  `json:"pending_tasks"`
	TotalEarned         int64  `json:"total_earned"`
	TotalSpent          int64  `json:"total_spent"`
	TotalRedemptions    int64  `json:"total_redemptions"`
}

// RegionChange records a region switch; changes are rate limited to one per
// sixty days.
type RegionChange struct {
	UserID    string    `json:"user_id"`
	OldRegion string    `json:"old_region"`
	NewRegion string    `json:"new_region"`
	ChangedAt time.Time `json:"changed_at"`
}
