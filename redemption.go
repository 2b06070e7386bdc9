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

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// RequestRedemption reserves the points and opens a pending redemption.
func (n *Nacho) RequestRedemption(ctx context.Context, userID, voucherID, voucherName string, amountNacho int64, amountUSD float64) (*model.Redemption, error) {
	ctx, span := otel.Tracer("nacho.redemption").Start(ctx, "Requesting redemption")
	defer span.End()

	if amountNacho <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Redemption amount must be positive", nil)
	}

	r := &model.Redemption{
		RedemptionID: model.GenerateUUIDWithSuffix("red"),
		UserID:       userID,
		VoucherID:    voucherID,
		VoucherName:  voucherName,
		AmountNacho:  amountNacho,
		AmountUSD:    amountUSD,
	}
	return n.datasource.CreateRedemption(ctx, r)
}

// ReviewRedemption settles a pending redemption from the admin side.
// Denials refund the reserved points.
func (n *Nacho) ReviewRedemption(ctx context.Context, redemptionID string, decision model.RedemptionStatus, reviewedBy, note, voucherLink string) (*model.Redemption, error) {
	ctx, span := otel.Tracer("nacho.redemption").Start(ctx, "Reviewing redemption")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return n.datasource.ReviewRedemption(ctx, redemptionID, decision, reviewedBy, note, voucherLink, cnf.Redemption.RefundReason)
}

// CancelRedemption is the user-side withdrawal of a pending redemption; the
// reserved points come back.
func (n *Nacho) CancelRedemption(ctx context.Context, redemptionID, userID string) (*model.Redemption, error) {
	ctx, span := otel.Tracer("nacho.redemption").Start(ctx, "Cancelling redemption")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return n.datasource.CancelRedemption(ctx, redemptionID, userID, cnf.Redemption.RefundReason)
}

func (n *Nacho) GetRedemption(ctx context.Context, redemptionID string) (*model.Redemption, error) {
	return n.datasource.GetRedemption(ctx, redemptionID)
}

func (n *Nacho) GetUserRedemptions(ctx context.Context, userID string, limit, offset int) ([]*model.Redemption, error) {
	return n.datasource.GetUserRedemptions(ctx, userID, limit, offset)
}

func (n *Nacho) GetPendingRedemptions(ctx context.Context, limit, offset int) ([]*model.Redemption, error) {
	return n.datasource.GetPendingRedemptions(ctx, limit, offset)
}
