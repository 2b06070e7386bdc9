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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

const verificationColumns = `task_id, user_id, video_id, video_url, comment_id, comment_text, comment_posted_date, scheduled_at, status, is_maintained, retry_count, last_error, verified_at, created_at`

func scanVerification(row interface{ Scan(...interface{}) error }) (*model.CommentVerification, error) {
	v := &model.CommentVerification{}
	err := row.Scan(&v.TaskID, &v.UserID, &v.VideoID, &v.VideoURL, &v.CommentID, &v.CommentText, &v.PostedDate, &v.ScheduledAt, &v.Status, &v.Maintained, &v.RetryCount, &v.LastError, &v.VerifiedAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d Datasource) ClaimDueVerifications(ctx context.Context, batchSize int, now time.Time) ([]*model.CommentVerification, error) {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Claiming due comment verifications")
	defer span.End()

	// SKIP LOCKED lets concurrent sweeps claim disjoint batches
	rows, err := d.Conn.QueryContext(ctx, `
		UPDATE nacho.comment_verifications
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM nacho.comment_verifications
			WHERE status = 'pending' AND scheduled_at <= $1
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+verificationColumns+`
	`, now, batchSize)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim due verifications", err)
	}
	defer rows.Close()

	claimed := []*model.CommentVerification{}
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan verification", err)
		}
		claimed = append(claimed, v)
	}
	return claimed, nil
}

func (d Datasource) CompleteVerification(ctx context.Context, taskID string, maintained bool, points int64) error {
	ctx, span := otel.Tracer("nacho.reconciliation").Start(ctx, "Completing comment verification")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE nacho.comment_verifications
		SET status = 'completed', is_maintained = $2, verified_at = NOW()
		WHERE task_id = $1 AND status IN ('pending', 'processing')
	`, taskID, maintained)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve verification", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		// already resolved by another path; nothing to settle
		return nil
	}

	if maintained {
		if _, err := rewardTaskTx(ctx, tx, taskID, points); err != nil {
			return err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE nacho.tasks
			SET status = 'failed', rejection_reason = 'comment removed before recheck', is_comment_maintained = FALSE
			WHERE task_id = $1 AND status = 'verified'
		`, taskID)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail task", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit verification result", err)
	}
	return nil
}

func (d Datasource) ReleaseVerification(ctx context.Context, taskID, lastError string, maxRetries int, retryDelay time.Duration) error {
	// back to pending until retries run out, then failed for the operator
	// to look at; the task stays verified either way. Pushing scheduled_at
	// out keeps the next sweep from burning the remaining retries against
	// the same outage.
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nacho.comment_verifications
		SET retry_count = retry_count + 1,
			last_error = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN retry_count + 1 >= $3 THEN scheduled_at ELSE NOW() + make_interval(secs => $4) END
		WHERE task_id = $1 AND status = 'processing'
	`, taskID, lastError, maxRetries, retryDelay.Seconds())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release verification", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Verification for task '%s' is not processing", taskID), nil)
	}
	return nil
}

func (d Datasource) GetVerification(ctx context.Context, taskID string) (*model.CommentVerification, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+verificationColumns+` FROM nacho.comment_verifications WHERE task_id = $1
	`, taskID)

	v, err := scanVerification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Verification for task '%s' not found", taskID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve verification", err)
	}
	return v, nil
}

func (d Datasource) ListOpenVerificationsByVideo(ctx context.Context, videoID string) ([]*model.CommentVerification, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+verificationColumns+`
		FROM nacho.comment_verifications
		WHERE video_id = $1 AND status = 'pending'
		ORDER BY scheduled_at
	`, videoID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list open verifications", err)
	}
	defer rows.Close()

	open := []*model.CommentVerification{}
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan verification", err)
		}
		open = append(open, v)
	}
	return open, nil
}

func (d Datasource) UpsertSnapshot(ctx context.Context, s *model.VideoCommentSnapshot) error {
	commentsJSON, err := json.Marshal(s.Comments)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal snapshot comments", err)
	}
	if s.CollectedAt.IsZero() {
		s.CollectedAt = time.Now()
	}

	// re-running a collection for the same day overwrites its snapshot
	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.video_comment_snapshots (video_id, video_url, snapshot_date, comment_count, comments, status, error_message, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (video_id, snapshot_date)
		DO UPDATE SET comment_count = EXCLUDED.comment_count, comments = EXCLUDED.comments, status = EXCLUDED.status, error_message = EXCLUDED.error_message, collected_at = EXCLUDED.collected_at
	`, s.VideoID, s.VideoURL, s.SnapshotDate, s.CommentCount, commentsJSON, s.Status, s.ErrorMessage, s.CollectedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert snapshot", err)
	}
	return nil
}

func (d Datasource) GetSnapshot(ctx context.Context, videoID string, date time.Time) (*model.VideoCommentSnapshot, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT video_id, video_url, snapshot_date, comment_count, comments, status, error_message, collected_at
		FROM nacho.video_comment_snapshots
		WHERE video_id = $1 AND snapshot_date = $2::date
	`, videoID, date)

	s := &model.VideoCommentSnapshot{}
	var commentsJSON []byte
	err := row.Scan(&s.VideoID, &s.VideoURL, &s.SnapshotDate, &s.CommentCount, &commentsJSON, &s.Status, &s.ErrorMessage, &s.CollectedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Snapshot for video '%s' on %s not found", videoID, date.Format("2006-01-02")), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve snapshot", err)
	}

	if err := json.Unmarshal(commentsJSON, &s.Comments); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal snapshot comments", err)
	}
	return s, nil
}
