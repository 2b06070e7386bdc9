package model

import "time"

// PredictionStatus is the closed set of prediction states.
type PredictionStatus string

const (
	PredictionActive  PredictionStatus = "active"
	PredictionSettled PredictionStatus = "settled"
)

// PredictionFormat selects the payout tier on settlement.
type PredictionFormat string

const (
	FormatSimple PredictionFormat = "simple"
	FormatRange  PredictionFormat = "range"
)

// Prediction is a guessing game tied to a video's future metrics.
type Prediction struct {
	ID            int64            `json:"-"`
	PredictionID  string           `json:"prediction_id"`
	VideoURL      string           `json:"video_url"`
	Title         string           `json:"title"`
	Type          string           `json:"prediction_type"`
	Format        PredictionFormat `json:"prediction_format"`
	TargetValue   int64            `json:"target_value,omitempty"`
	RangeOptions  []string         `json:"range_options,omitempty"`
	Deadline      time.Time        `json:"deadline"`
	Status        PredictionStatus `json:"status"`
	ActualValue   *int64           `json:"actual_value,omitempty"`
	CorrectAnswer string           `json:"correct_answer,omitempty"`
	CreatedBy     string           `json:"created_by,omitempty"`
	SettledAt     *time.Time       `json:"settled_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// UserPrediction is a user's vote; one per (user, prediction), the latest
// vote before the deadline wins.
type UserPrediction struct {
	ID            int64     `json:"-"`
	UserID        string    `json:"user_id"`
	PredictionID  string    `json:"prediction_id"`
	Choice        string    `json:"choice"`
	Correct       *bool     `json:"is_correct,omitempty"`
	PointsAwarded int64     `json:"points_awarded"`
	VotedAt       time.Time `json:"voted_at"`
}
