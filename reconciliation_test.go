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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/internal/evidence"
	"github.com/tacolabs/nacho/model"
)

var verificationTestColumns = []string{
	"task_id", "user_id", "video_id", "video_url", "comment_id", "comment_text",
	"comment_posted_date", "scheduled_at", "status", "is_maintained", "retry_count",
	"last_error", "verified_at", "created_at",
}

func verificationRow(taskID, userID, commentID string, scheduledAt time.Time, status string) *sqlmock.Rows {
	return sqlmock.NewRows(verificationTestColumns).AddRow(
		taskID, userID, "vid_1", "https://tiktok.com/v/1", commentID, "great taco",
		time.Now().AddDate(0, 0, -7), scheduledAt, status, nil, 0, "", nil, time.Now().AddDate(0, 0, -7),
	)
}

// expectMaintainedSettlement covers the full settlement transaction for a
// comment that is still live: resolve the verification, flip the task to
// rewarded and pay the points.
func expectMaintainedSettlement(mock sqlmock.Sqlmock, taskID, userID string) {
	mock.ExpectBegin()
	mock.ExpectExec("SET status = 'completed'").
		WithArgs(taskID, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SET status = 'rewarded'").
		WithArgs(taskID, int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID))
	expectPosting(mock, userID, 40)
	mock.ExpectExec("total_tasks_completed").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestProcessDueVerificationsMaintained(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Exists: true}}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "processing"))
	expectMaintainedSettlement(mock, taskID, userID)

	processed, failed, err := n.ProcessDueVerifications(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestProcessDueVerificationsCommentRemoved(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Exists: false}}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "processing"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET status = 'failed'").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	processed, failed, err := n.ProcessDueVerifications(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestProcessDueVerificationsReleasesOnProviderError(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{err: errors.New("tiktok returned 503")}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "processing"))
	// the release pushes the due time 30 minutes out so the next sweep
	// does not burn another retry against the same outage
	mock.ExpectExec("scheduled_at = CASE").
		WithArgs(taskID, "tiktok returned 503", 3, float64(1800)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	processed, failed, err := n.ProcessDueVerifications(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, failed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// A sweep batch where every entry fails must not start another batch; the
// released entries are not due again until their retry delay passes.
func TestDrainDueVerificationsStopsOnFailedBatch(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{err: errors.New("tiktok returned 503")}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "processing"))
	mock.ExpectExec("scheduled_at = CASE").
		WithArgs(taskID, "tiktok returned 503", 3, float64(1800)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	processed, failed, err := n.DrainDueVerifications(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, failed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestDrainDueVerificationsEmptiesBacklog(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Exists: true}}

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "processing"))
	expectMaintainedSettlement(mock, taskID, userID)

	// the follow-up batch comes back empty and ends the drain
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows(verificationTestColumns))

	processed, failed, err := n.DrainDueVerifications(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestProcessTaskRecheckSkipsEarlyEntry(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	// the delayed queue task fired but the entry is not due yet
	mock.ExpectQuery("FROM nacho.comment_verifications").
		WithArgs(taskID).
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(48*time.Hour), "pending"))

	err := n.ProcessTaskRecheck(context.Background(), taskID)
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRecheckTaskRefusesUnverifiedTask(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskAssigned))

	task, err := n.RecheckTask(context.Background(), taskID, nil)
	assert.Error(t, err)
	assert.Nil(t, task)
	assert.Equal(t, apierror.ErrInvalidState, apierror.Code(err))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// A caller that already judged the comment settles without a platform round
// trip; the stub would error if the provider were consulted.
func TestRecheckTaskHonorsCallerVerdict(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{err: errors.New("provider should not be consulted")}

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskVerified))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET status = 'failed'").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskFailed))

	persists := false
	task, err := n.RecheckTask(context.Background(), taskID, &persists)
	assert.NoError(t, err)
	assert.Equal(t, model.TaskFailed, task.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRecheckTaskAsksPlatformWithoutVerdict(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Exists: true}}

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskVerified))
	mock.ExpectQuery("FROM nacho.comment_verifications").
		WithArgs(taskID).
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "pending"))

	expectMaintainedSettlement(mock, taskID, userID)

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskRewarded))

	task, err := n.RecheckTask(context.Background(), taskID, nil)
	assert.NoError(t, err)
	assert.Equal(t, model.TaskRewarded, task.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCollectSnapshotsSettlesDueEntries(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{comments: []evidence.Comment{
		{CommentID: "7301", Text: "great taco"},
		{CommentID: "7302", Text: "nice"},
	}}

	mock.ExpectQuery("FROM nacho.videos v").WillReturnRows(snapshotVideoRows())

	mock.ExpectExec("INSERT INTO nacho.video_comment_snapshots").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// one due entry whose comment survives in the capture
	mock.ExpectQuery("FROM nacho.comment_verifications").
		WithArgs("vid_1").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "pending"))
	expectMaintainedSettlement(mock, taskID, userID)

	err := n.CollectSnapshots(context.Background())
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// snapshotVideoRows is the active-video result used by the snapshot tests.
func snapshotVideoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"video_id", "campaign_id", "video_url", "title", "thumbnail_url", "category",
		"initial_views", "initial_likes", "initial_comments", "initial_shares",
		"current_views", "current_likes", "current_comments", "current_shares",
		"metrics_updated_at", "created_at",
	}).AddRow("vid_1", "cmp_1", "https://tiktok.com/v/1", "clip one", "", "gaming",
		int64(100), int64(10), int64(2), int64(1), int64(500), int64(50), int64(9), int64(3),
		time.Now(), time.Now())
}

func baselineSnapshotRow(commentsJSON string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"video_id", "video_url", "snapshot_date", "comment_count", "comments",
		"status", "error_message", "collected_at",
	}).AddRow("vid_1", "https://tiktok.com/v/1", time.Now().AddDate(0, 0, -7), 1,
		[]byte(commentsJSON), "completed", "", time.Now().AddDate(0, 0, -7))
}

// A comment gone from the live capture but present in the baseline from its
// posting day was deleted, and the batch settles it as lost.
func TestCollectSnapshotsSettlesDeletedComment(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{comments: []evidence.Comment{{CommentID: "7302", Text: "nice"}}}

	mock.ExpectQuery("FROM nacho.videos v").WillReturnRows(snapshotVideoRows())
	mock.ExpectExec("INSERT INTO nacho.video_comment_snapshots").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("FROM nacho.comment_verifications").
		WithArgs("vid_1").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "pending"))
	mock.ExpectQuery("FROM nacho.video_comment_snapshots").
		WillReturnRows(baselineSnapshotRow(`[{"comment_id":"7301"}]`))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET status = 'failed'").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := n.CollectSnapshots(context.Background())
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// A comment the baseline never listed cannot be judged by the batch; the
// entry stays for its per-comment recheck.
func TestCollectSnapshotsLeavesUncapturedComment(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()
	userID := "usr_" + gofakeit.UUID()

	n.evidence = &stubEvidence{comments: []evidence.Comment{{CommentID: "7302", Text: "nice"}}}

	mock.ExpectQuery("FROM nacho.videos v").WillReturnRows(snapshotVideoRows())
	mock.ExpectExec("INSERT INTO nacho.video_comment_snapshots").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("FROM nacho.comment_verifications").
		WithArgs("vid_1").
		WillReturnRows(verificationRow(taskID, userID, "7301", time.Now().Add(-time.Hour), "pending"))
	mock.ExpectQuery("FROM nacho.video_comment_snapshots").
		WillReturnRows(baselineSnapshotRow(`[{"comment_id":"9999"}]`))

	err := n.CollectSnapshots(context.Background())
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepExpired(t *testing.T) {
	n, mock := newTestNacho(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.task_sessions").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE nacho.tasks t").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM nacho.video_assignments").
		WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectCommit()

	err := n.SweepExpired(context.Background())
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
