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
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// postPointsTx is the single posting path for the ledger. It locks the user
// row, applies the signed amount and appends the ledger entry. Every workflow
// that moves points goes through this helper so the balance invariant holds
// in one place.
func postPointsTx(ctx context.Context, tx *sql.Tx, txn *model.PointTransaction) (*model.PointTransaction, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `
		SELECT total_points FROM nacho.users WHERE user_id = $1 FOR UPDATE
	`, txn.UserID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", txn.UserID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock user balance", err)
	}

	newBalance := balance + txn.Amount
	if newBalance < 0 {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientBalance, fmt.Sprintf("Balance %d is insufficient for a debit of %d", balance, -txn.Amount), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.users SET total_points = $2, updated_at = NOW() WHERE user_id = $1
	`, txn.UserID, newBalance)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}

	txn.BalanceAfter = newBalance
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO nacho.point_transactions (transaction_id, user_id, amount, balance_after, transaction_type, reference_id, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, txn.TransactionID, txn.UserID, txn.Amount, txn.BalanceAfter, txn.Type, txn.ReferenceID, txn.Reason, txn.CreatedBy, txn.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			// the partial unique index on (type, reference) already holds a
			// credit for this workflow reference
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("A '%s' entry for reference '%s' already exists", txn.Type, txn.ReferenceID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to append ledger entry", err)
	}

	return txn, nil
}

func (d Datasource) PostTransaction(ctx context.Context, txn *model.PointTransaction) (*model.PointTransaction, error) {
	ctx, span := otel.Tracer("nacho.ledger").Start(ctx, "Posting point transaction")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	posted, err := postPointsTx(ctx, tx, txn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit point transaction", err)
	}
	return posted, nil
}

// rewardTaskTx pays out a verified task inside the caller's transaction. The
// status guard makes a duplicate delivery a no-op, returning (nil, nil).
func rewardTaskTx(ctx context.Context, tx *sql.Tx, taskID string, points int64) (*model.PointTransaction, error) {
	var userID string
	err := tx.QueryRowContext(ctx, `
		UPDATE nacho.tasks
		SET status = 'rewarded', points_awarded = $2, points_awarded_at = NOW(), recheck_verified_at = NOW(), is_comment_maintained = TRUE
		WHERE task_id = $1 AND status = 'verified'
		RETURNING user_id
	`, taskID, points).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark task rewarded", err)
	}

	txn := &model.PointTransaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		UserID:        userID,
		Amount:        points,
		Type:          model.TypeTaskReward,
		ReferenceID:   taskID,
		Reason:        "task reward",
	}
	posted, err := postPointsTx(ctx, tx, txn)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.users SET total_tasks_completed = total_tasks_completed + 1 WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update task counter", err)
	}

	return posted, nil
}

func (d Datasource) GetTransaction(ctx context.Context, transactionID string) (*model.PointTransaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT transaction_id, user_id, amount, balance_after, transaction_type, reference_id, reason, created_by, created_at
		FROM nacho.point_transactions
		WHERE transaction_id = $1
	`, transactionID)

	txn := &model.PointTransaction{}
	err := row.Scan(&txn.TransactionID, &txn.UserID, &txn.Amount, &txn.BalanceAfter, &txn.Type, &txn.ReferenceID, &txn.Reason, &txn.CreatedBy, &txn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", transactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*model.PointTransaction, error) {
	ctx, span := otel.Tracer("nacho.ledger").Start(ctx, "Fetching point history with pagination")
	defer span.End()

	cacheKey := fmt.Sprintf("transactions:user:%s:%d:%d", userID, limit, offset)

	var transactions []*model.PointTransaction
	if d.Cache != nil {
		err := d.Cache.Get(ctx, cacheKey, &transactions)
		if err == nil && len(transactions) > 0 {
			return transactions, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT transaction_id, user_id, amount, balance_after, transaction_type, reference_id, reason, created_by, created_at
		FROM nacho.point_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	transactions = []*model.PointTransaction{}
	for rows.Next() {
		txn := model.PointTransaction{}
		err = rows.Scan(&txn.TransactionID, &txn.UserID, &txn.Amount, &txn.BalanceAfter, &txn.Type, &txn.ReferenceID, &txn.Reason, &txn.CreatedBy, &txn.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, &txn)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating transactions", err)
	}

	if d.Cache != nil && len(transactions) > 0 {
		if err = d.Cache.Set(ctx, cacheKey, transactions, 5*time.Minute); err != nil {
			// a failed cache write never fails the read
			span.RecordError(err)
		}
	}

	return transactions, nil
}

func (d Datasource) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT total_points FROM nacho.users WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balance", err)
	}
	return balance, nil
}
