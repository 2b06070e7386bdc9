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

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

func (d Datasource) CreateRedemption(ctx context.Context, r *model.Redemption) (*model.Redemption, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	r.Status = model.RedemptionPending
	r.RequestedAt = time.Now()

	// reserve the points up front; the debit and the pending row commit
	// together
	txn := &model.PointTransaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		UserID:        r.UserID,
		Amount:        -r.AmountNacho,
		Type:          model.TypeRedemptionDeduct,
		ReferenceID:   r.RedemptionID,
		Reason:        fmt.Sprintf("redemption of voucher %s", r.VoucherID),
	}
	if _, err := postPointsTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nacho.redemptions (redemption_id, user_id, voucher_id, voucher_name, amount_nacho, amount_usd, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.RedemptionID, r.UserID, r.VoucherID, r.VoucherName, r.AmountNacho, r.AmountUSD, r.Status, r.RequestedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create redemption", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit redemption", err)
	}
	return r, nil
}

const redemptionColumns = `redemption_id, user_id, voucher_id, voucher_name, amount_nacho, amount_usd, status, reviewed_by, review_note, voucher_link, requested_at, reviewed_at, delivered_at`

func scanRedemption(row interface{ Scan(...interface{}) error }) (*model.Redemption, error) {
	r := &model.Redemption{}
	err := row.Scan(&r.RedemptionID, &r.UserID, &r.VoucherID, &r.VoucherName, &r.AmountNacho, &r.AmountUSD, &r.Status, &r.ReviewedBy, &r.ReviewNote, &r.VoucherLink, &r.RequestedAt, &r.ReviewedAt, &r.DeliveredAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d Datasource) GetRedemption(ctx context.Context, redemptionID string) (*model.Redemption, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+redemptionColumns+` FROM nacho.redemptions WHERE redemption_id = $1
	`, redemptionID)

	r, err := scanRedemption(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Redemption with ID '%s' not found", redemptionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve redemption", err)
	}
	return r, nil
}

func (d Datasource) GetUserRedemptions(ctx context.Context, userID string, limit, offset int) ([]*model.Redemption, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+redemptionColumns+`
		FROM nacho.redemptions
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve redemptions", err)
	}
	defer rows.Close()

	return collectRedemptions(rows)
}

func (d Datasource) GetPendingRedemptions(ctx context.Context, limit, offset int) ([]*model.Redemption, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+redemptionColumns+`
		FROM nacho.redemptions
		WHERE status = 'pending'
		ORDER BY requested_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pending redemptions", err)
	}
	defer rows.Close()

	return collectRedemptions(rows)
}

func collectRedemptions(rows *sql.Rows) ([]*model.Redemption, error) {
	redemptions := []*model.Redemption{}
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan redemption", err)
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, nil
}

func (d Datasource) ReviewRedemption(ctx context.Context, redemptionID string, decision model.RedemptionStatus, reviewedBy, note, voucherLink, refundReason string) (*model.Redemption, error) {
	if !model.RedemptionPending.CanTransition(decision) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("'%s' is not a valid redemption decision", decision), nil)
	}
	return d.settleRedemption(ctx, redemptionID, "", decision, reviewedBy, note, voucherLink, refundReason)
}

func (d Datasource) CancelRedemption(ctx context.Context, redemptionID, userID, refundReason string) (*model.Redemption, error) {
	return d.settleRedemption(ctx, redemptionID, userID, model.RedemptionCancelled, userID, "cancelled by user", "", refundReason)
}

// settleRedemption flips a pending redemption to its terminal status. When
// ownerID is set the row must belong to that user. Denials and cancellations
// refund the reserved amount in the same transaction.
func (d Datasource) settleRedemption(ctx context.Context, redemptionID, ownerID string, decision model.RedemptionStatus, reviewedBy, note, voucherLink, refundReason string) (*model.Redemption, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE nacho.redemptions
		SET status = $2, reviewed_by = $3, review_note = $4, voucher_link = $5, reviewed_at = NOW(),
			delivered_at = CASE WHEN $2 = 'approved' THEN NOW() ELSE delivered_at END
		WHERE redemption_id = $1 AND status = 'pending'`
	args := []interface{}{redemptionID, decision, reviewedBy, note, voucherLink}
	if ownerID != "" {
		query += ` AND user_id = $6`
		args = append(args, ownerID)
	}
	query += ` RETURNING user_id, amount_nacho`

	var userID string
	var amount int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&userID, &amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Redemption '%s' is not pending", redemptionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to settle redemption", err)
	}

	if decision == model.RedemptionDenied || decision == model.RedemptionCancelled {
		txn := &model.PointTransaction{
			TransactionID: model.GenerateUUIDWithSuffix("txn"),
			UserID:        userID,
			Amount:        amount,
			Type:          model.TypeRedemptionRefund,
			ReferenceID:   redemptionID,
			Reason:        refundReason,
			CreatedBy:     reviewedBy,
		}
		if _, err := postPointsTx(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit redemption settlement", err)
	}

	return d.GetRedemption(ctx, redemptionID)
}
