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

func (d Datasource) CreatePrediction(ctx context.Context, p *model.Prediction) (*model.Prediction, error) {
	p.CreatedAt = time.Now()
	if p.Status == "" {
		p.Status = model.PredictionActive
	}
	if p.Format == "" {
		p.Format = model.FormatSimple
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.predictions (prediction_id, video_url, title, prediction_type, prediction_format, target_value, range_options, deadline, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.PredictionID, p.VideoURL, p.Title, p.Type, p.Format, p.TargetValue, pq.Array(p.RangeOptions), p.Deadline, p.Status, p.CreatedBy, p.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Prediction with ID '%s' already exists", p.PredictionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create prediction", err)
	}

	return p, nil
}

const predictionColumns = `prediction_id, video_url, title, prediction_type, prediction_format, target_value, range_options, deadline, status, actual_value, correct_answer, created_by, settled_at, created_at`

func scanPrediction(row interface{ Scan(...interface{}) error }) (*model.Prediction, error) {
	p := &model.Prediction{}
	err := row.Scan(&p.PredictionID, &p.VideoURL, &p.Title, &p.Type, &p.Format, &p.TargetValue, pq.Array(&p.RangeOptions), &p.Deadline, &p.Status, &p.ActualValue, &p.CorrectAnswer, &p.CreatedBy, &p.SettledAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d Datasource) GetPrediction(ctx context.Context, predictionID string) (*model.Prediction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+predictionColumns+` FROM nacho.predictions WHERE prediction_id = $1
	`, predictionID)

	p, err := scanPrediction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Prediction with ID '%s' not found", predictionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve prediction", err)
	}
	return p, nil
}

func (d Datasource) ListActivePredictions(ctx context.Context, now time.Time) ([]model.Prediction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM nacho.predictions
		WHERE status = 'active' AND deadline > $1
		ORDER BY deadline
	`, now)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list predictions", err)
	}
	defer rows.Close()

	predictions := []model.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan prediction", err)
		}
		predictions = append(predictions, *p)
	}
	return predictions, nil
}

func (d Datasource) SubmitVote(ctx context.Context, vote *model.UserPrediction) error {
	vote.VotedAt = time.Now()

	// latest vote before the deadline wins
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.user_predictions (user_id, prediction_id, choice, voted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, prediction_id)
		DO UPDATE SET choice = EXCLUDED.choice, voted_at = EXCLUDED.voted_at
	`, vote.UserID, vote.PredictionID, vote.Choice, vote.VotedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23503" {
			return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Prediction with ID '%s' not found", vote.PredictionID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to submit vote", err)
	}
	return nil
}

func (d Datasource) SettlePrediction(ctx context.Context, predictionID string, actualValue *int64, correctAnswer string, points int64) (int64, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE nacho.predictions
		SET status = 'settled', actual_value = $2, correct_answer = $3, settled_at = NOW()
		WHERE prediction_id = $1 AND status = 'active'
	`, predictionID, actualValue, correctAnswer)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to settle prediction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return 0, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Prediction '%s' is not active", predictionID), nil)
	}

	// grade every vote, then pay the winners through the ledger
	rows, err := tx.QueryContext(ctx, `
		UPDATE nacho.user_predictions
		SET is_correct = (choice = $2), points_awarded = CASE WHEN choice = $2 THEN $3::bigint ELSE 0 END
		WHERE prediction_id = $1
		RETURNING id, user_id, is_correct
	`, predictionID, correctAnswer, points)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to grade votes", err)
	}

	type winner struct {
		id     int64
		userID string
	}
	var winners []winner
	for rows.Next() {
		var id int64
		var userID string
		var correct sql.NullBool
		if err := rows.Scan(&id, &userID, &correct); err != nil {
			rows.Close()
			return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan graded vote", err)
		}
		if correct.Valid && correct.Bool {
			winners = append(winners, winner{id: id, userID: userID})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating graded votes", err)
	}

	for _, w := range winners {
		txn := &model.PointTransaction{
			TransactionID: model.GenerateUUIDWithSuffix("txn"),
			UserID:        w.userID,
			Amount:        points,
			Type:          model.TypePredictionWin,
			ReferenceID:   fmt.Sprintf("%s:%d", predictionID, w.id),
			Reason:        "prediction win",
		}
		if _, err := postPointsTx(ctx, tx, txn); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit prediction settlement", err)
	}
	return int64(len(winners)), nil
}

func (d Datasource) GetUserPredictions(ctx context.Context, userID string, limit, offset int) ([]model.UserPrediction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, user_id, prediction_id, choice, is_correct, points_awarded, voted_at
		FROM nacho.user_predictions
		WHERE user_id = $1
		ORDER BY voted_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user votes", err)
	}
	defer rows.Close()

	votes := []model.UserPrediction{}
	for rows.Next() {
		v := model.UserPrediction{}
		err := rows.Scan(&v.ID, &v.UserID, &v.PredictionID, &v.Choice, &v.Correct, &v.PointsAwarded, &v.VotedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan vote", err)
		}
		votes = append(votes, v)
	}
	return votes, nil
}
