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
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

var userColumns = []string{
	"user_id", "discord_username", "discord_tag", "tiktok_open_id", "tiktok_username",
	"tiktok_display_name", "tiktok_avatar_url", "followers_count", "following_count",
	"region", "email", "level", "is_verified", "total_points", "total_tasks_completed",
	"categories", "last_login_at", "created_at", "updated_at",
}

func userRow(userID, region string, categories string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(
		userID, gofakeit.Username(), "", "", "", "", "", 120, 80,
		region, gofakeit.Email(), 1, true, int64(0), int64(0),
		categories, now, now, now,
	)
}

func expectGetUser(mock sqlmock.Sqlmock, userID, region, categories string) {
	mock.ExpectQuery("SELECT user_id, discord_username").
		WithArgs(userID).
		WillReturnRows(userRow(userID, region, categories))
}

func TestAssignTasksCreatesSession(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	expectGetUser(mock, userID, "US", "{gaming,food}")

	// no open session, no previous session to cool down from
	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT MAX\(started_at\)`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	candidates := sqlmock.NewRows([]string{"video_id", "campaign_id", "video_url", "title", "thumbnail_url", "category", "category_match"}).
		AddRow("vid_1", "cmp_1", "https://tiktok.com/v/1", "clip one", "", "gaming", true).
		AddRow("vid_2", "cmp_1", "https://tiktok.com/v/2", "clip two", "", "travel", false)
	mock.ExpectQuery(`ORDER BY RANDOM\(\)`).WillReturnRows(candidates)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nacho.task_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO nacho.tasks").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO nacho.video_assignments").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	session, err := n.AssignTasks(context.Background(), userID, 2)
	assert.NoError(t, err)
	assert.NotNil(t, session)
	assert.Contains(t, session.SessionID, "ses_")
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Len(t, session.Tasks, 2)
	for _, task := range session.Tasks {
		assert.Contains(t, task.TaskID, "tsk_")
		assert.Equal(t, model.TaskAssigned, task.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAssignTasksRefusedDuringCooldown(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	expectGetUser(mock, userID, "US", "{gaming}")

	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)

	// last session started 10 minutes ago against a 30 minute cooldown
	lastStart := time.Now().Add(-10 * time.Minute)
	mock.ExpectQuery(`SELECT MAX\(started_at\)`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(lastStart))

	session, err := n.AssignTasks(context.Background(), userID, 5)
	assert.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, apierror.ErrRateLimited, apierror.Code(err))
	assert.Contains(t, err.Error(), "20 minutes")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAssignTasksRefusedWhileSessionOpen(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	sessionID := "ses_" + gofakeit.UUID()

	expectGetUser(mock, userID, "US", "{gaming}")

	// session started 10 minutes ago and is still open
	sessionRows := sqlmock.NewRows([]string{"session_id", "user_id", "assigned_count", "completed_count", "status", "started_at", "expired_at"}).
		AddRow(sessionID, userID, 5, 1, "active", time.Now().Add(-10*time.Minute), time.Now().Add(20*time.Minute))
	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnRows(sessionRows)
	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows(taskTestColumns))

	session, err := n.AssignTasks(context.Background(), userID, 5)
	assert.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, apierror.ErrRateLimited, apierror.Code(err))
	assert.Contains(t, err.Error(), "20 minutes")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAssignTasksExpiresStaleSession(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	staleID := "ses_" + gofakeit.UUID()

	expectGetUser(mock, userID, "US", "{gaming}")

	// the previous session ran its full 30 minutes and is a minute past
	// its deadline; the sweep has not caught it yet
	sessionRows := sqlmock.NewRows([]string{"session_id", "user_id", "assigned_count", "completed_count", "status", "started_at", "expired_at"}).
		AddRow(staleID, userID, 5, 2, "active", time.Now().Add(-31*time.Minute), time.Now().Add(-1*time.Minute))
	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnRows(sessionRows)
	mock.ExpectQuery("FROM nacho.tasks t").
		WithArgs(staleID).
		WillReturnRows(sqlmock.NewRows(taskTestColumns))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.task_sessions").
		WithArgs(staleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE nacho.tasks t").
		WithArgs(staleID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT MAX\(started_at\)`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(time.Now().Add(-31 * time.Minute)))

	candidates := sqlmock.NewRows([]string{"video_id", "campaign_id", "video_url", "title", "thumbnail_url", "category", "category_match"}).
		AddRow("vid_1", "cmp_1", "https://tiktok.com/v/1", "clip one", "", "gaming", true)
	mock.ExpectQuery(`ORDER BY RANDOM\(\)`).WillReturnRows(candidates)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nacho.task_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO nacho.tasks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO nacho.video_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	session, err := n.AssignTasks(context.Background(), userID, 1)
	assert.NoError(t, err)
	assert.NotNil(t, session)
	assert.NotEqual(t, staleID, session.SessionID)
	assert.Equal(t, model.SessionActive, session.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAssignTasksCategorySplitRoundsDown(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	expectGetUser(mock, userID, "US", "{gaming}")

	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT MAX\(started_at\)`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	// plenty of both kinds; a 0.7 ratio over five slots gives three
	// category picks and two random ones
	candidates := sqlmock.NewRows([]string{"video_id", "campaign_id", "video_url", "title", "thumbnail_url", "category", "category_match"})
	for i := 1; i <= 5; i++ {
		candidates.AddRow(fmt.Sprintf("vid_m%d", i), "cmp_1", fmt.Sprintf("https://tiktok.com/v/m%d", i), fmt.Sprintf("match %d", i), "", "gaming", true)
	}
	for i := 1; i <= 5; i++ {
		candidates.AddRow(fmt.Sprintf("vid_o%d", i), "cmp_1", fmt.Sprintf("https://tiktok.com/v/o%d", i), fmt.Sprintf("other %d", i), "", "travel", false)
	}
	mock.ExpectQuery(`ORDER BY RANDOM\(\)`).WillReturnRows(candidates)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nacho.task_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < 5; i++ {
		mock.ExpectExec("INSERT INTO nacho.tasks").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO nacho.video_assignments").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	session, err := n.AssignTasks(context.Background(), userID, 5)
	assert.NoError(t, err)
	assert.Len(t, session.Tasks, 5)

	var matched, others int
	for _, task := range session.Tasks {
		if strings.HasPrefix(task.VideoID, "vid_m") {
			matched++
		} else {
			others++
		}
	}
	assert.Equal(t, 3, matched)
	assert.Equal(t, 2, others)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAssignTasksNoCandidates(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	expectGetUser(mock, userID, "DE", "{music}")

	mock.ExpectQuery("SELECT session_id, user_id, assigned_count").
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT MAX\(started_at\)`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(`ORDER BY RANDOM\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"video_id", "campaign_id", "video_url", "title", "thumbnail_url", "category", "category_match"}))

	session, err := n.AssignTasks(context.Background(), userID, 5)
	assert.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, apierror.ErrNoCandidates, apierror.Code(err))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
