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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// expectPosting covers the shared ledger posting path: lock the balance,
// apply the new total, append the entry.
func expectPosting(mock sqlmock.Sqlmock, userID string, balance int64) {
	mock.ExpectQuery("SELECT total_points FROM nacho.users").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"total_points"}).AddRow(balance))
	mock.ExpectExec("UPDATE nacho.users SET total_points").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO nacho.point_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestGrantPoints(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	mock.ExpectBegin()
	expectPosting(mock, userID, 100)
	mock.ExpectCommit()

	txn, err := n.GrantPoints(context.Background(), userID, 50, "event bonus", "admin_1")
	assert.NoError(t, err)
	assert.Contains(t, txn.TransactionID, "txn_")
	assert.Equal(t, int64(150), txn.BalanceAfter)
	assert.Equal(t, model.TypeAdminGrant, txn.Type)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGrantPointsRejectsNonPositiveAmount(t *testing.T) {
	n, _ := newTestNacho(t)

	_, err := n.GrantPoints(context.Background(), "usr_1", 0, "noop", "admin_1")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInvalidInput, apierror.Code(err))

	_, err = n.DeductPoints(context.Background(), "usr_1", -5, "noop", "admin_1")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInvalidInput, apierror.Code(err))
}

func TestDeductPointsInsufficientBalance(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_points FROM nacho.users").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"total_points"}).AddRow(int64(30)))
	mock.ExpectRollback()

	txn, err := n.DeductPoints(context.Background(), userID, 100, "penalty", "admin_1")
	assert.Error(t, err)
	assert.Nil(t, txn)
	assert.Equal(t, apierror.ErrInsufficientBalance, apierror.Code(err))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCompleteVerificationRewardsTask(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SET status = 'rewarded'").
		WithArgs(taskID, int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID))
	expectPosting(mock, userID, 0)
	mock.ExpectExec("total_tasks_completed").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := n.datasource.CompleteVerification(context.Background(), taskID, true, 20)
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// A second delivery misses the verification status guard and must be a
// silent no-op with no ledger activity.
func TestCompleteVerificationDuplicateDelivery(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := n.datasource.CompleteVerification(context.Background(), taskID, true, 20)
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// The verification resolves but the task already left verified; the
// resolution still commits without paying twice.
func TestCompleteVerificationTaskAlreadySettled(t *testing.T) {
	n, mock := newTestNacho(t)
	taskID := "tsk_" + gofakeit.UUID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE nacho.comment_verifications").
		WithArgs(taskID, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SET status = 'rewarded'").
		WithArgs(taskID, int64(20)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	err := n.datasource.CompleteVerification(context.Background(), taskID, true, 20)
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetPointHistoryServesRepeatReadsFromCache(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"transaction_id", "user_id", "amount", "balance_after",
		"transaction_type", "reference_id", "reason", "created_by", "created_at",
	}).AddRow("txn_1", userID, int64(20), int64(20), "task_reward", "tsk_1", "task reward", "", now)
	mock.ExpectQuery("FROM nacho.point_transactions").
		WithArgs(userID, 50, 0).
		WillReturnRows(rows)

	first, err := n.GetPointHistory(context.Background(), userID, 50, 0)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	// the repeat read has no query expectation; hitting the database
	// again would fail the test
	second, err := n.GetPointHistory(context.Background(), userID, 50, 0)
	assert.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, first[0].TransactionID, second[0].TransactionID)
	assert.Equal(t, first[0].BalanceAfter, second[0].BalanceAfter)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetBalance(t *testing.T) {
	n, mock := newTestNacho(t)
	userID := "usr_" + gofakeit.UUID()

	mock.ExpectQuery("SELECT total_points FROM nacho.users").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"total_points"}).AddRow(int64(740)))

	balance, err := n.GetBalance(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(740), balance)
}
