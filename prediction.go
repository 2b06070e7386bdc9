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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// CreatePrediction opens a guessing game on a video's future metrics.
func (n *Nacho) CreatePrediction(ctx context.Context, p *model.Prediction) (*model.Prediction, error) {
	if p.Deadline.Before(time.Now()) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Prediction deadline must be in the future", nil)
	}
	if p.Format == model.FormatRange && len(p.RangeOptions) < 2 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Range predictions need at least two options", nil)
	}
	p.PredictionID = model.GenerateUUIDWithSuffix("prd")
	return n.datasource.CreatePrediction(ctx, p)
}

// SubmitPrediction records the user's choice. Votes close at the deadline;
// re-voting before then replaces the earlier choice.
func (n *Nacho) SubmitPrediction(ctx context.Context, userID, predictionID, choice string) error {
	ctx, span := otel.Tracer("nacho.prediction").Start(ctx, "Submitting prediction vote")
	defer span.End()

	p, err := n.datasource.GetPrediction(ctx, predictionID)
	if err != nil {
		return err
	}
	if p.Status != model.PredictionActive {
		return apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Prediction '%s' is already settled", predictionID), nil)
	}
	if time.Now().After(p.Deadline) {
		return apierror.NewAPIError(apierror.ErrInvalidState, "Voting closed at the deadline", nil)
	}

	return n.datasource.SubmitVote(ctx, &model.UserPrediction{
		UserID:       userID,
		PredictionID: predictionID,
		Choice:       choice,
	})
}

// SettlePrediction grades every vote against the outcome and pays winners
// through the ledger. Payout tier follows the prediction format.
func (n *Nacho) SettlePrediction(ctx context.Context, predictionID string, actualValue *int64, correctAnswer string) (int64, error) {
	ctx, span := otel.Tracer("nacho.prediction").Start(ctx, "Settling prediction")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}

	p, err := n.datasource.GetPrediction(ctx, predictionID)
	if err != nil {
		return 0, err
	}

	points := cnf.Predictions.SimplePoints
	if p.Format == model.FormatRange {
		points = cnf.Predictions.RangePoints
	}
	return n.datasource.SettlePrediction(ctx, predictionID, actualValue, correctAnswer, points)
}

func (n *Nacho) GetPrediction(ctx context.Context, predictionID string) (*model.Prediction, error) {
	return n.datasource.GetPrediction(ctx, predictionID)
}

func (n *Nacho) ListActivePredictions(ctx context.Context) ([]model.Prediction, error) {
	return n.datasource.ListActivePredictions(ctx, time.Now())
}

func (n *Nacho) GetUserPredictions(ctx context.Context, userID string, limit, offset int) ([]model.UserPrediction, error) {
	return n.datasource.GetUserPredictions(ctx, userID, limit, offset)
}
