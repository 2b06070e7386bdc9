package model

import "time"

// VerificationStatus is the closed set of states for a queued comment
// recheck. A given (task, comment) pair is reconciled at most once to
// completed.
type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "pending"
	VerificationProcessing VerificationStatus = "processing"
	VerificationCompleted  VerificationStatus = "completed"
	VerificationFailed     VerificationStatus = "failed"
)

// CommentVerification schedules a single comment for a persistence recheck
// seven days after it was first verified.
type CommentVerification struct {
	ID          int64              `json:"-"`
	TaskID      string             `json:"task_id"`
	UserID      string             `json:"user_id"`
	VideoID     string             `json:"video_id"`
	VideoURL    string             `json:"video_url"`
	CommentID   string             `json:"comment_id"`
	CommentText string             `json:"comment_text,omitempty"`
	PostedDate  time.Time          `json:"comment_posted_date"`
	ScheduledAt time.Time          `json:"scheduled_at"`
	Status      VerificationStatus `json:"status"`
	Maintained  *bool              `json:"is_maintained,omitempty"`
	RetryCount  int                `json:"retry_count"`
	LastError   string             `json:"last_error,omitempty"`
	VerifiedAt  *time.Time         `json:"verified_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SnapshotStatus marks whether a daily comment collection succeeded.
type SnapshotStatus string

const (
	SnapshotCompleted SnapshotStatus = "completed"
	SnapshotFailed    SnapshotStatus = "failed"
)

// SnapshotComment is one comment captured in a daily snapshot.
type SnapshotComment struct {
	CommentID string `json:"comment_id"`
	Text      string `json:"text,omitempty"`
}

// VideoCommentSnapshot is the full comment set of a video on a given date.
// One snapshot exists per (video, date); the seven-day diff between
// snapshots drives the batch reconciliation sweep.
type VideoCommentSnapshot struct {
	ID           int64             `json:"-"`
	VideoID      string            `json:"video_id"`
	VideoURL     string            `json:"video_url"`
	SnapshotDate time.Time         `json:"snapshot_date"`
	CommentCount int               `json:"comment_count"`
	Comments     []SnapshotComment `json:"comments,omitempty"`
	Status       SnapshotStatus    `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CollectedAt  time.Time         `json:"collected_at"`
}

// CommentIDSet returns the snapshot's comment ids as a set for diffing.
func (s *VideoCommentSnapshot) CommentIDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Comments))
	for _, c := range s.Comments {
		ids[c.CommentID] = struct{}{}
	}
	return ids
}
