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

var taskTestColumns = []string{
	"task_id", "session_id", "user_id", "campaign_id", "video_id", "video_url", "title",
	"status", "comment_url", "comment_text", "comment_id", "rejection_reason",
	"is_comment_maintained", "points_awarded", "assigned_at", "completed_at",
	"first_verified_at", "recheck_scheduled_at", "recheck_verified_at", "points_awarded_at",
}

func taskRow(taskID, userID string, status model.TaskStatus) *sqlmock.Rows {
	return sqlmock.NewRows(taskTestColumns).AddRow(
		taskID, "ses_"+gofakeit.UUID(), userID, "cmp_1", "vid_1",
		"https://tiktok.com/v/1", "clip one", string(status), "", "", "", "",
		nil, int64(0), time.Now(), nil, nil, nil, nil, nil,
	)
}

func TestCompleteTask(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()
	commentURL := "https://tiktok.com/v/1?comment_id=7301"

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Text: "great taco", Exists: true}}

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskAssigned))

	mock.ExpectBegin()
	mock.ExpectExec("SET status = 'completed'").
		WithArgs(taskID, commentURL, "great taco", "7301").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET completed_count").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskCompleted))

	task, err := n.CompleteTask(context.Background(), taskID, userID, commentURL, "great taco")
	assert.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, task.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCompleteTaskCommentNotFound(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()

	n.evidence = &stubEvidence{check: &evidence.CommentCheck{CommentID: "7301", Exists: false}}

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskAssigned))

	task, err := n.CompleteTask(context.Background(), taskID, userID, "https://tiktok.com/v/1?comment_id=7301", "great taco")
	assert.Error(t, err)
	assert.Nil(t, task)
	assert.Equal(t, apierror.ErrInvalidInput, apierror.Code(err))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCompleteTaskEvidenceUnavailable(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()

	n.evidence = &stubEvidence{err: errors.New("tiktok returned 503")}

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskAssigned))

	_, err := n.CompleteTask(context.Background(), taskID, userID, "https://tiktok.com/v/1?comment_id=7301", "great taco")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrEvidenceUnavailable, apierror.Code(err))
}

func TestCompleteTaskWrongOwner(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, "usr_owner", model.TaskAssigned))

	_, err := n.CompleteTask(context.Background(), taskID, "usr_other", "https://tiktok.com/v/1?comment_id=7301", "great taco")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, apierror.Code(err))
}

func TestCompleteTaskAlreadyCompleted(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskCompleted))

	_, err := n.CompleteTask(context.Background(), taskID, userID, "https://tiktok.com/v/1?comment_id=7301", "great taco")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInvalidState, apierror.Code(err))
}

func TestVerifyTaskSchedulesRecheck(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectBegin()
	mock.ExpectExec("SET status = 'verified'").
		WithArgs(taskID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO nacho.comment_verifications").
		WithArgs(taskID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, userID, model.TaskVerified))

	task, err := n.VerifyTask(context.Background(), taskID)
	assert.NoError(t, err)
	assert.Equal(t, model.TaskVerified, task.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRejectTask(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectExec("SET status = 'failed'").
		WithArgs(taskID, "comment does not mention the product").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := n.RejectTask(context.Background(), taskID, "comment does not mention the product")
	assert.NoError(t, err)
}

func TestRejectTaskFromTerminalStatus(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectExec("SET status = 'failed'").
		WithArgs(taskID, "late rejection").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := n.RejectTask(context.Background(), taskID, "late rejection")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInvalidState, apierror.Code(err))
}
