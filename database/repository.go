/*
Copyright 2025 Taco Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"time"

	"github.com/tacolabs/nacho/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	user         // User profiles, regions and stats
	campaign     // Campaigns and their videos
	task         // Task sessions, allocation and lifecycle
	ledger       // Append-only point transactions
	redemption   // Voucher redemptions
	verification // Comment recheck queue and snapshots
	prediction   // Prediction events and votes
}

// user defines methods for handling users.
type user interface {
	CreateUser(ctx context.Context, usr *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, usr *model.User) error
	// ChangeUserRegion updates the region and records the change, refusing
	// when the previous change is inside the cooldown window.
	ChangeUserRegion(ctx context.Context, userID, newRegion string, cooldown time.Duration) error
	GetUserStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// campaign defines methods for handling campaigns and videos.
type campaign interface {
	CreateCampaign(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetCampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error)
	GetAllCampaigns(ctx context.Context, limit, offset int) ([]model.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error
	AddVideo(ctx context.Context, v *model.Video) (*model.Video, error)
	GetVideoByID(ctx context.Context, videoID string) (*model.Video, error)
	GetVideosByCampaign(ctx context.Context, campaignID string) ([]model.Video, error)
	UpdateVideoMetrics(ctx context.Context, videoID string, metrics model.VideoMetrics) error
	// GetActiveVideos returns videos of running campaigns, used by the
	// daily snapshot sweep.
	GetActiveVideos(ctx context.Context) ([]model.Video, error)
}

// task defines methods for task allocation and lifecycle.
type task interface {
	// GetLastSessionStart returns the newest session start time for the
	// user, or nil when the user has never had a session.
	GetLastSessionStart(ctx context.Context, userID string) (*time.Time, error)
	GetActiveSession(ctx context.Context, userID string) (*model.TaskSession, error)
	// SelectCandidateVideos picks assignable videos for a user: running
	// campaigns matching the user's region, one video per title, videos
	// under the saturation cap within the window, videos the user has no
	// open or rewarded task for. It fills categoryCount slots from the
	// user's categories and randomCount from the rest, topping up from
	// whichever side has spares.
	SelectCandidateVideos(ctx context.Context, userID, region string, categories []string, categoryCount, randomCount, saturationCap int, window time.Duration) ([]model.Video, error)
	// CreateSession writes the session, its tasks and the assignment
	// tracker rows in one transaction.
	CreateSession(ctx context.Context, session *model.TaskSession, tasks []*model.Task) error
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	GetSessionTasks(ctx context.Context, sessionID string) ([]*model.Task, error)
	GetUserTasks(ctx context.Context, userID string, status model.TaskStatus, limit, offset int) ([]*model.Task, error)
	// CompleteTask flips assigned to completed, guarded on current status
	// and on the session still being open.
	CompleteTask(ctx context.Context, taskID, commentURL, commentText, commentID string) (*model.Task, error)
	// VerifyTask flips completed to verified and enqueues the recheck in
	// the same transaction.
	VerifyTask(ctx context.Context, taskID string, scheduledAt time.Time) (*model.Task, error)
	FailTask(ctx context.Context, taskID, reason string) error
	// ExpireSession closes one overdue session and its open tasks without
	// waiting for the sweep.
	ExpireSession(ctx context.Context, sessionID string) error
	// SweepExpired expires overdue sessions and their open tasks, and
	// purges assignment tracker rows older than the retention period.
	SweepExpired(ctx context.Context, trackerRetention time.Duration) (sessions int64, tasks int64, err error)
}

// ledger defines methods for the append-only point ledger.
type ledger interface {
	// PostTransaction locks the user balance, applies the signed amount
	// and appends the ledger row in one transaction. Debits that would
	// take the balance negative are refused.
	PostTransaction(ctx context.Context, txn *model.PointTransaction) (*model.PointTransaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*model.PointTransaction, error)
	GetUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*model.PointTransaction, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// redemption defines methods for voucher redemptions.
type redemption interface {
	// CreateRedemption reserves the points (debit) and opens the pending
	// redemption in one transaction.
	CreateRedemption(ctx context.Context, r *model.Redemption) (*model.Redemption, error)
	GetRedemption(ctx context.Context, redemptionID string) (*model.Redemption, error)
	GetUserRedemptions(ctx context.Context, userID string, limit, offset int) ([]*model.Redemption, error)
	GetPendingRedemptions(ctx context.Context, limit, offset int) ([]*model.Redemption, error)
	// ReviewRedemption settles a pending redemption. Denials refund the
	// reserved amount in the same transaction.
	ReviewRedemption(ctx context.Context, redemptionID string, decision model.RedemptionStatus, reviewedBy, note, voucherLink, refundReason string) (*model.Redemption, error)
	// CancelRedemption is the user-initiated path; it refunds like a denial
	// but checks ownership.
	CancelRedemption(ctx context.Context, redemptionID, userID, refundReason string) (*model.Redemption, error)
}

// verification defines methods for the recheck queue and daily snapshots.
type verification interface {
	// ClaimDueVerifications moves due pending entries to processing and
	// returns them. Concurrent sweeps skip each other's claims.
	ClaimDueVerifications(ctx context.Context, batchSize int, now time.Time) ([]*model.CommentVerification, error)
	// CompleteVerification resolves a claimed entry and settles its task:
	// maintained pays the reward, lost fails the task. One transaction.
	CompleteVerification(ctx context.Context, taskID string, maintained bool, points int64) error
	// ReleaseVerification returns a claimed entry to pending after a
	// provider failure, pushing its due time out by retryDelay, or fails it
	// once retries are exhausted.
	ReleaseVerification(ctx context.Context, taskID, lastError string, maxRetries int, retryDelay time.Duration) error
	GetVerification(ctx context.Context, taskID string) (*model.CommentVerification, error)
	ListOpenVerificationsByVideo(ctx context.Context, videoID string) ([]*model.CommentVerification, error)
	UpsertSnapshot(ctx context.Context, s *model.VideoCommentSnapshot) error
	GetSnapshot(ctx context.Context, videoID string, date time.Time) (*model.VideoCommentSnapshot, error)
}

// prediction defines methods for prediction events.
type prediction interface {
	CreatePrediction(ctx context.Context, p *model.Prediction) (*model.Prediction, error)
	GetPrediction(ctx context.Context, predictionID string) (*model.Prediction, error)
	ListActivePredictions(ctx context.Context, now time.Time) ([]model.Prediction, error)
	// SubmitVote upserts the user's choice; the latest vote before the
	// deadline wins.
	SubmitVote(ctx context.Context, vote *model.UserPrediction) error
	// SettlePrediction grades every vote and pays winners in one
	// transaction. Settling twice is refused.
	SettlePrediction(ctx context.Context, predictionID string, actualValue *int64, correctAnswer string, points int64) (winners int64, err error)
	GetUserPredictions(ctx context.Context, userID string, limit, offset int) ([]model.UserPrediction, error)
}
