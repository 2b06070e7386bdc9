package model

import "time"

// TaskStatus is the closed set of task states. Transitions only move forward;
// the database layer enforces this with status-guarded updates.
type TaskStatus string

const (
	TaskAssigned  TaskStatus = "assigned"
	TaskCompleted TaskStatus = "completed"
	TaskVerified  TaskStatus = "verified"
	TaskRewarded  TaskStatus = "rewarded"
	TaskFailed    TaskStatus = "failed"
	TaskExpired   TaskStatus = "expired"
)

// CanTransition reports whether moving from s to next is a legal forward
// transition.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskAssigned:
		return next == TaskCompleted || next == TaskExpired
	case TaskCompleted:
		return next == TaskVerified || next == TaskFailed
	case TaskVerified:
		return next == TaskRewarded || next == TaskFailed
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskRewarded || s == TaskFailed || s == TaskExpired
}

// Task is one unit of assigned engagement work tied to a campaign video.
type Task struct {
	ID                 int64      `json:"-"`
	TaskID             string     `json:"task_id"`
	SessionID          string     `json:"session_id"`
	UserID             string     `json:"user_id"`
	CampaignID         string     `json:"campaign_id"`
	VideoID            string     `json:"video_id"`
	VideoURL           string     `json:"video_url,omitempty"`
	VideoTitle         string     `json:"title,omitempty"`
	Status             TaskStatus `json:"status"`
	CommentURL         string     `json:"comment_url,omitempty"`
	CommentText        string     `json:"comment_text,omitempty"`
	CommentID          string     `json:"comment_id,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CommentMaintained  *bool      `json:"is_comment_maintained,omitempty"`
	PointsAwarded      int64      `json:"points_awarded"`
	AssignedAt         time.Time  `json:"assigned_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FirstVerifiedAt    *time.Time `json:"first_verified_at,omitempty"`
	RecheckScheduledAt *time.Time `json:"recheck_scheduled_at,omitempty"`
	RecheckVerifiedAt  *time.Time `json:"recheck_verified_at,omitempty"`
	PointsAwardedAt    *time.Time `json:"points_awarded_at,omitempty"`
}

// SessionStatus covers the lifecycle of a task batch.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// TaskSession is a batch of tasks issued together, bounded by the assignment
// cooldown. At most one active session exists per user.
type TaskSession struct {
	ID             int64         `json:"-"`
	SessionID      string        `json:"session_id"`
	UserID         string        `json:"user_id"`
	AssignedCount  int           `json:"assigned_count"`
	CompletedCount int           `json:"completed_count"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	ExpiredAt      time.Time     `json:"expired_at"`
	Tasks          []*Task       `json:"tasks,omitempty"`
}

// VideoAssignment is a rolling-window tracker row. The count of rows for a
// video within the saturation window bounds its concurrent exposure.
type VideoAssignment struct {
	ID         int64     `json:"-"`
	VideoID    string    `json:"video_id"`
	UserID     string    `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
