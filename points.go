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

	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// GrantPoints credits a user outside the task flow, e.g. an event bonus.
func (n *Nacho) GrantPoints(ctx context.Context, userID string, amount int64, reason, createdBy string) (*model.PointTransaction, error) {
	ctx, span := otel.Tracer("nacho.points").Start(ctx, "Granting points")
	defer span.End()

	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Grant amount must be positive", nil)
	}
	txn := &model.PointTransaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		UserID:        userID,
		Amount:        amount,
		Type:          model.TypeAdminGrant,
		Reason:        reason,
		CreatedBy:     createdBy,
	}
	return n.datasource.PostTransaction(ctx, txn)
}

// DeductPoints debits a user outside the task flow. The posting refuses a
// debit that would take the balance negative.
func (n *Nacho) DeductPoints(ctx context.Context, userID string, amount int64, reason, createdBy string) (*model.PointTransaction, error) {
	ctx, span := otel.Tracer("nacho.points").Start(ctx, "Deducting points")
	defer span.End()

	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Deduction amount must be positive", nil)
	}
	txn := &model.PointTransaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		UserID:        userID,
		Amount:        -amount,
		Type:          model.TypeAdminDeduct,
		Reason:        reason,
		CreatedBy:     createdBy,
	}
	return n.datasource.PostTransaction(ctx, txn)
}

func (n *Nacho) GetBalance(ctx context.Context, userID string) (int64, error) {
	return n.datasource.GetBalance(ctx, userID)
}

func (n *Nacho) GetPointHistory(ctx context.Context, userID string, limit, offset int) ([]*model.PointTransaction, error) {
	return n.datasource.GetUserTransactions(ctx, userID, limit, offset)
}

func (n *Nacho) GetPointTransaction(ctx context.Context, transactionID string) (*model.PointTransaction, error) {
	return n.datasource.GetTransaction(ctx, transactionID)
}
