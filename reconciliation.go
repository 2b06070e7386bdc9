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

package nacho

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// commentPermalink rebuilds the platform URL for a tracked comment.
func commentPermalink(videoURL, commentID string) string {
	return fmt.Sprintf("%s?comment_id=%s", videoURL, commentID)
}

// ProcessDueVerifications claims a batch of due comment rechecks and settles
// each against live platform state. A provider failure releases the entry
// for a later sweep instead of aborting the batch.
func (n *Nacho) ProcessDueVerifications(ctx context.Context) (processed, failed int, err error) {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Processing due verifications")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return 0, 0, err
	}

	claimed, err := n.datasource.ClaimDueVerifications(ctx, cnf.Reconciliation.BatchSize, time.Now())
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range claimed {
		if err := n.settleVerification(ctx, entry, cnf); err != nil {
			failed++
			logrus.Errorf("recheck failed for task %s: %v", entry.TaskID, err)
			continue
		}
		processed++
	}
	return processed, failed, nil
}

// settleVerification resolves one claimed entry: asks the platform whether
// the comment is still live and settles the task accordingly.
func (n *Nacho) settleVerification(ctx context.Context, entry *model.CommentVerification, cnf *config.Configuration) error {
	check, err := n.evidence.CheckComment(ctx, commentPermalink(entry.VideoURL, entry.CommentID))
	if err != nil {
		retryDelay := time.Duration(cnf.Reconciliation.RetryDelayMinutes) * time.Minute
		if releaseErr := n.datasource.ReleaseVerification(ctx, entry.TaskID, err.Error(), cnf.Reconciliation.MaxRetries, retryDelay); releaseErr != nil {
			logrus.Errorf("failed to release verification for task %s: %v", entry.TaskID, releaseErr)
		}
		return err
	}

	return n.datasource.CompleteVerification(ctx, entry.TaskID, check.Exists, cnf.Tasks.RewardPoints)
}

// DrainDueVerifications runs sweep batches until the due backlog is empty.
// It stops as soon as a batch settles nothing, so a provider outage that
// only releases entries does not spin against their retry delays.
func (n *Nacho) DrainDueVerifications(ctx context.Context) (processed, failed int, err error) {
	for {
		batchProcessed, batchFailed, err := n.ProcessDueVerifications(ctx)
		processed += batchProcessed
		failed += batchFailed
		if err != nil {
			return processed, failed, err
		}
		if batchProcessed == 0 {
			return processed, failed, nil
		}
	}
}

// ProcessTaskRecheck settles a single pending recheck by task id. Used by the
// delayed queue task; the periodic sweep covers anything this path misses.
func (n *Nacho) ProcessTaskRecheck(ctx context.Context, taskID string) error {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Processing single recheck")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	entry, err := n.datasource.GetVerification(ctx, taskID)
	if err != nil {
		return err
	}
	if entry.Status != model.VerificationPending {
		return nil
	}
	if entry.ScheduledAt.After(time.Now()) {
		return nil
	}

	check, err := n.evidence.CheckComment(ctx, commentPermalink(entry.VideoURL, entry.CommentID))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrEvidenceUnavailable, "Platform unavailable for recheck", err)
	}
	return n.datasource.CompleteVerification(ctx, taskID, check.Exists, cnf.Tasks.RewardPoints)
}

// RecheckTask settles a verified task on demand. When the caller already
// knows whether the comment survived it passes evidencePersists; otherwise
// the platform is asked. The updated task is returned.
func (n *Nacho) RecheckTask(ctx context.Context, taskID string, evidencePersists *bool) (*model.Task, error) {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Rechecking task on demand")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	task, err := n.datasource.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskVerified {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Task '%s' is not awaiting recheck", taskID), nil)
	}

	var maintained bool
	if evidencePersists != nil {
		maintained = *evidencePersists
	} else {
		entry, err := n.datasource.GetVerification(ctx, taskID)
		if err != nil {
			return nil, err
		}
		check, err := n.evidence.CheckComment(ctx, commentPermalink(entry.VideoURL, entry.CommentID))
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrEvidenceUnavailable, "Platform unavailable for recheck", err)
		}
		maintained = check.Exists
	}

	if err := n.datasource.CompleteVerification(ctx, taskID, maintained, cnf.Tasks.RewardPoints); err != nil {
		return nil, err
	}
	return n.datasource.GetTask(ctx, taskID)
}

// CollectSnapshots captures the comment set of every active campaign video
// and settles due rechecks against it. Re-running the collection for the
// same day is idempotent: snapshots upsert and settlements are
// status-guarded.
func (n *Nacho) CollectSnapshots(ctx context.Context) error {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Collecting daily snapshots")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	videos, err := n.datasource.GetActiveVideos(ctx)
	if err != nil {
		return err
	}

	today := time.Now().Truncate(24 * time.Hour)
	for _, video := range videos {
		if err := n.snapshotVideo(ctx, video, today, cnf); err != nil {
			logrus.Errorf("snapshot failed for video %s: %v", video.VideoID, err)
		}
	}
	return nil
}

func (n *Nacho) snapshotVideo(ctx context.Context, video model.Video, today time.Time, cnf *config.Configuration) error {
	comments, err := n.evidence.ListComments(ctx, video.VideoURL)
	if err != nil {
		// record the failure; due entries for this video settle on a
		// later sweep
		return n.datasource.UpsertSnapshot(ctx, &model.VideoCommentSnapshot{
			VideoID:      video.VideoID,
			VideoURL:     video.VideoURL,
			SnapshotDate: today,
			Status:       model.SnapshotFailed,
			ErrorMessage: err.Error(),
		})
	}

	snapshot := &model.VideoCommentSnapshot{
		VideoID:      video.VideoID,
		VideoURL:     video.VideoURL,
		SnapshotDate: today,
		CommentCount: len(comments),
		Status:       model.SnapshotCompleted,
	}
	for _, c := range comments {
		snapshot.Comments = append(snapshot.Comments, model.SnapshotComment{CommentID: c.CommentID, Text: c.Text})
	}
	if err := n.datasource.UpsertSnapshot(ctx, snapshot); err != nil {
		return err
	}

	// settle due rechecks against the fresh capture without another
	// platform round trip
	live := snapshot.CommentIDSet()
	open, err := n.datasource.ListOpenVerificationsByVideo(ctx, video.VideoID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, entry := range open {
		if entry.ScheduledAt.After(now) {
			continue
		}
		_, maintained := live[entry.CommentID]
		if !maintained && !n.commentWasCaptured(ctx, video.VideoID, entry) {
			// the batch capture never listed this comment; the per-comment
			// recheck gets to judge it instead
			continue
		}
		if err := n.datasource.CompleteVerification(ctx, entry.TaskID, maintained, cnf.Tasks.RewardPoints); err != nil {
			logrus.Errorf("snapshot settlement failed for task %s: %v", entry.TaskID, err)
		}
	}
	return nil
}

// commentWasCaptured reports whether the baseline snapshot from the day the
// comment was posted listed it. A comment the collector never saw cannot be
// judged deleted by a later snapshot. No baseline at all means the video was
// not yet collected back then, and the live set alone decides.
func (n *Nacho) commentWasCaptured(ctx context.Context, videoID string, entry *model.CommentVerification) bool {
	baseline, err := n.datasource.GetSnapshot(ctx, videoID, entry.PostedDate)
	if err != nil {
		return true
	}
	_, captured := baseline.CommentIDSet()[entry.CommentID]
	return captured
}

// SweepExpired expires overdue sessions and tasks and prunes old assignment
// tracker rows.
func (n *Nacho) SweepExpired(ctx context.Context) error {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Sweeping expired sessions")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	retention := time.Duration(cnf.Tasks.TrackerRetentionDays) * 24 * time.Hour
	sessions, tasks, err := n.datasource.SweepExpired(ctx, retention)
	if err != nil {
		return err
	}
	if sessions > 0 || tasks > 0 {
		logrus.Infof("expired %d sessions and %d tasks", sessions, tasks)
	}
	return nil
}
