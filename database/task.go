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
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

func (d Datasource) GetLastSessionStart(ctx context.Context, userID string) (*time.Time, error) {
	var startedAt sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT MAX(started_at) FROM nacho.task_sessions WHERE user_id = $1
	`, userID).Scan(&startedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check session history", err)
	}
	if !startedAt.Valid {
		return nil, nil
	}
	return &startedAt.Time, nil
}

func (d Datasource) GetActiveSession(ctx context.Context, userID string) (*model.TaskSession, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT session_id, user_id, assigned_count, completed_count, status, started_at, expired_at
		FROM nacho.task_sessions
		WHERE user_id = $1 AND status = 'active'
	`, userID)

	session := &model.TaskSession{}
	err := row.Scan(&session.SessionID, &session.UserID, &session.AssignedCount, &session.CompletedCount, &session.Status, &session.StartedAt, &session.ExpiredAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve active session", err)
	}

	tasks, err := d.GetSessionTasks(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	session.Tasks = tasks
	return session, nil
}

type candidateVideo struct {
	video         model.Video
	categoryMatch bool
}

func (d Datasource) SelectCandidateVideos(ctx context.Context, userID, region string, categories []string, categoryCount, randomCount, saturationCap int, window time.Duration) ([]model.Video, error) {
	// One row per title keeps near-duplicate uploads from being assigned
	// twice in a batch. The HAVING clause enforces the saturation cap over
	// the rolling window; anti-joins drop videos the user already worked.
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT video_id, campaign_id, video_url, title, thumbnail_url, category, category_match FROM (
			SELECT DISTINCT ON (v.title)
				v.video_id, v.campaign_id, v.video_url, v.title, v.thumbnail_url, v.category,
				(v.category = ANY($3)) AS category_match
			FROM nacho.videos v
			INNER JOIN nacho.campaigns c ON c.campaign_id = v.campaign_id
			WHERE c.status = 'active'
				AND c.start_date <= NOW() AND c.end_date >= NOW()
				AND (c.country = 'global' OR c.country = $2)
				AND NOT EXISTS (
					SELECT 1 FROM nacho.tasks t
					WHERE t.video_id = v.video_id AND t.user_id = $1
						AND t.status IN ('assigned', 'completed', 'verified', 'rewarded')
				)
				AND (
					SELECT COUNT(va.id) FROM nacho.video_assignments va
					WHERE va.video_id = v.video_id AND va.assigned_at > NOW() - make_interval(secs => $4)
				) < $5
			ORDER BY v.title, v.created_at
		) candidates
		ORDER BY RANDOM()
	`, userID, region, pq.Array(categories), window.Seconds(), saturationCap)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to select candidate videos", err)
	}
	defer rows.Close()

	var matched, others []model.Video
	for rows.Next() {
		c := candidateVideo{}
		err = rows.Scan(&c.video.VideoID, &c.video.CampaignID, &c.video.VideoURL, &c.video.Title, &c.video.ThumbnailURL, &c.video.Category, &c.categoryMatch)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan candidate video", err)
		}
		if c.categoryMatch {
			matched = append(matched, c.video)
		} else {
			others = append(others, c.video)
		}
	}

	picked := make([]model.Video, 0, categoryCount+randomCount)
	take := func(from []model.Video, n int) []model.Video {
		if n > len(from) {
			n = len(from)
		}
		picked = append(picked, from[:n]...)
		return from[n:]
	}
	matched = take(matched, categoryCount)
	others = take(others, randomCount)

	// top up shortfalls from whichever side has spares
	if missing := categoryCount + randomCount - len(picked); missing > 0 {
		others = take(others, missing)
	}
	if missing := categoryCount + randomCount - len(picked); missing > 0 {
		take(matched, missing)
	}

	return picked, nil
}

func (d Datasource) CreateSession(ctx context.Context, session *model.TaskSession, tasks []*model.Task) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nacho.task_sessions (session_id, user_id, assigned_count, completed_count, status, started_at, expired_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
	`, session.SessionID, session.UserID, session.AssignedCount, session.Status, session.StartedAt, session.ExpiredAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			// partial unique index: another active session won the race
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("User '%s' already has an active session", session.UserID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create session", err)
	}

	for _, t := range tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nacho.tasks (task_id, session_id, user_id, campaign_id, video_id, status, assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.TaskID, t.SessionID, t.UserID, t.CampaignID, t.VideoID, t.Status, t.AssignedAt)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create task", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO nacho.video_assignments (video_id, user_id, assigned_at)
			VALUES ($1, $2, $3)
		`, t.VideoID, t.UserID, t.AssignedAt)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to track assignment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit session", err)
	}
	return nil
}

const taskColumns = `t.task_id, t.session_id, t.user_id, t.campaign_id, t.video_id, v.video_url, v.title, t.status, t.comment_url, t.comment_text, t.comment_id, t.rejection_reason, t.is_comment_maintained, t.points_awarded, t.assigned_at, t.completed_at, t.first_verified_at, t.recheck_scheduled_at, t.recheck_verified_at, t.points_awarded_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*model.Task, error) {
	t := &model.Task{}
	err := row.Scan(&t.TaskID, &t.SessionID, &t.UserID, &t.CampaignID, &t.VideoID, &t.VideoURL, &t.VideoTitle, &t.Status, &t.CommentURL, &t.CommentText, &t.CommentID, &t.RejectionReason, &t.CommentMaintained, &t.PointsAwarded, &t.AssignedAt, &t.CompletedAt, &t.FirstVerifiedAt, &t.RecheckScheduledAt, &t.RecheckVerifiedAt, &t.PointsAwardedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d Datasource) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM nacho.tasks t
		INNER JOIN nacho.videos v ON v.video_id = t.video_id
		WHERE t.task_id = $1
	`, taskID)

	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Task with ID '%s' not found", taskID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve task", err)
	}
	return t, nil
}

func (d Datasource) GetSessionTasks(ctx context.Context, sessionID string) ([]*model.Task, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM nacho.tasks t
		INNER JOIN nacho.videos v ON v.video_id = t.video_id
		WHERE t.session_id = $1
		ORDER BY t.assigned_at
	`, sessionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve session tasks", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (d Datasource) GetUserTasks(ctx context.Context, userID string, status model.TaskStatus, limit, offset int) ([]*model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM nacho.tasks t
		INNER JOIN nacho.videos v ON v.video_id = t.video_id
		WHERE t.user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND t.status = $2 ORDER BY t.assigned_at DESC LIMIT $3 OFFSET $4`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY t.assigned_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user tasks", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*model.Task, error) {
	tasks := []*model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan task", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (d Datasource) CompleteTask(ctx context.Context, taskID, commentURL, commentText, commentID string) (*model.Task, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// status-guarded update: only an assigned task inside an open session
	// can complete
	result, err := tx.ExecContext(ctx, `
		UPDATE nacho.tasks t
		SET status = 'completed', comment_url = $2, comment_text = $3, comment_id = $4, completed_at = NOW()
		FROM nacho.task_sessions s
		WHERE t.task_id = $1 AND t.status = 'assigned'
			AND s.session_id = t.session_id AND s.status = 'active' AND s.expired_at > NOW()
	`, taskID, commentURL, commentText, commentID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete task", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Task '%s' is not open for completion", taskID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.task_sessions
		SET completed_count = completed_count + 1
		WHERE session_id = (SELECT session_id FROM nacho.tasks WHERE task_id = $1)
	`, taskID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update session progress", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit task completion", err)
	}

	return d.GetTask(ctx, taskID)
}

func (d Datasource) VerifyTask(ctx context.Context, taskID string, scheduledAt time.Time) (*model.Task, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE nacho.tasks
		SET status = 'verified', first_verified_at = NOW(), recheck_scheduled_at = $2
		WHERE task_id = $1 AND status = 'completed'
	`, taskID, scheduledAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to verify task", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Task '%s' is not awaiting verification", taskID), nil)
	}

	// enqueue the recheck with the same commit
	_, err = tx.ExecContext(ctx, `
		INSERT INTO nacho.comment_verifications (task_id, user_id, video_id, video_url, comment_id, comment_text, comment_posted_date, scheduled_at, status, created_at)
		SELECT t.task_id, t.user_id, t.video_id, v.video_url, t.comment_id, t.comment_text, t.completed_at, $2, 'pending', NOW()
		FROM nacho.tasks t
		INNER JOIN nacho.videos v ON v.video_id = t.video_id
		WHERE t.task_id = $1
	`, taskID, scheduledAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to schedule comment recheck", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit task verification", err)
	}

	return d.GetTask(ctx, taskID)
}

func (d Datasource) FailTask(ctx context.Context, taskID, reason string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nacho.tasks
		SET status = 'failed', rejection_reason = $2
		WHERE task_id = $1 AND status IN ('completed', 'verified')
	`, taskID, reason)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail task", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Task '%s' cannot be failed from its current status", taskID), nil)
	}

	return nil
}

// ExpireSession closes one session past its deadline along with its still
// assigned tasks. The expired_at guard keeps a racing assignment from
// expiring a session that is still open.
func (d Datasource) ExpireSession(ctx context.Context, sessionID string) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.task_sessions
		SET status = 'expired'
		WHERE session_id = $1 AND status = 'active' AND expired_at <= NOW()
	`, sessionID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire session", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.tasks t
		SET status = 'expired'
		FROM nacho.task_sessions s
		WHERE t.session_id = s.session_id AND t.status = 'assigned'
			AND s.session_id = $1 AND s.status = 'expired'
	`, sessionID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire session tasks", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit session expiry", err)
	}
	return nil
}

func (d Datasource) SweepExpired(ctx context.Context, trackerRetention time.Duration) (int64, int64, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	sessionResult, err := tx.ExecContext(ctx, `
		UPDATE nacho.task_sessions
		SET status = 'expired'
		WHERE status = 'active' AND expired_at <= NOW()
	`)
	if err != nil {
		return 0, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire sessions", err)
	}
	sessions, _ := sessionResult.RowsAffected()

	taskResult, err := tx.ExecContext(ctx, `
		UPDATE nacho.tasks t
		SET status = 'expired'
		FROM nacho.task_sessions s
		WHERE t.session_id = s.session_id AND t.status = 'assigned' AND s.status = 'expired'
	`)
	if err != nil {
		return 0, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire tasks", err)
	}
	tasks, _ := taskResult.RowsAffected()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM nacho.video_assignments WHERE assigned_at < NOW() - make_interval(secs => $1)
	`, trackerRetention.Seconds())
	if err != nil {
		return 0, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to purge assignment trackers", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit sweep", err)
	}
	return sessions, tasks, nil
}
