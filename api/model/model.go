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

package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tacolabs/nacho/model"
)

type AssignTasksRequest struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

func (r *AssignTasksRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Count, validation.Required, validation.Min(1), validation.Max(20)),
	)
}

type CompleteTaskRequest struct {
	UserID      string `json:"user_id"`
	CommentURL  string `json:"comment_url"`
	CommentText string `json:"comment_text"`
}

func (r *CompleteTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.CommentURL, validation.Required),
	)
}

type RecheckTaskRequest struct {
	// EvidencePersists, when set, is the caller's verdict on whether the
	// comment survived; left nil the platform is consulted.
	EvidencePersists *bool `json:"evidence_persists"`
}

type RejectTaskRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
	)
}

type PointAdjustmentRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

func (r *PointAdjustmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(1)),
		validation.Field(&r.Reason, validation.Required),
	)
}

type CreateRedemptionRequest struct {
	UserID      string  `json:"user_id"`
	VoucherID   string  `json:"voucher_id"`
	VoucherName string  `json:"voucher_name"`
	AmountNacho int64   `json:"amount_nacho"`
	AmountUSD   float64 `json:"amount_usd"`
}

func (r *CreateRedemptionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.VoucherID, validation.Required),
		validation.Field(&r.AmountNacho, validation.Required, validation.Min(1)),
	)
}

type ReviewRedemptionRequest struct {
	ReviewedBy  string `json:"reviewed_by"`
	Note        string `json:"note"`
	VoucherLink string `json:"voucher_link"`
}

func (r *ReviewRedemptionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ReviewedBy, validation.Required),
	)
}

type CancelRedemptionRequest struct {
	UserID string `json:"user_id"`
}

func (r *CancelRedemptionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
	)
}

type CreateUser struct {
	UserID            string   `json:"user_id"`
	DiscordUsername   string   `json:"discord_username"`
	DiscordTag        string   `json:"discord_tag"`
	TikTokOpenID      string   `json:"tiktok_open_id"`
	TikTokUsername    string   `json:"tiktok_username"`
	TikTokDisplayName string   `json:"tiktok_display_name"`
	TikTokAvatarURL   string   `json:"tiktok_avatar_url"`
	FollowersCount    int      `json:"followers_count"`
	FollowingCount    int      `json:"following_count"`
	Region            string   `json:"region"`
	Email             string   `json:"email"`
	Categories        []string `json:"categories"`
}

func (r *CreateUser) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DiscordUsername, validation.Required),
	)
}

func (r *CreateUser) ToUser() *model.User {
	return &model.User{
		UserID:            r.UserID,
		DiscordUsername:   r.DiscordUsername,
		DiscordTag:        r.DiscordTag,
		TikTokOpenID:      r.TikTokOpenID,
		TikTokUsername:    r.TikTokUsername,
		TikTokDisplayName: r.TikTokDisplayName,
		TikTokAvatarURL:   r.TikTokAvatarURL,
		FollowersCount:    r.FollowersCount,
		FollowingCount:    r.FollowingCount,
		Region:            r.Region,
		Email:             r.Email,
		Categories:        r.Categories,
	}
}

type UpdateCategoriesRequest struct {
	Categories []string `json:"categories"`
}

func (r *UpdateCategoriesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Categories, validation.Required, validation.Length(1, 10)),
	)
}

type ChangeRegionRequest struct {
	Region string `json:"region"`
}

func (r *ChangeRegionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Region, validation.Required),
	)
}

type CreateCampaign struct {
	Name            string    `json:"campaign_name"`
	Category        string    `json:"category"`
	Country         string    `json:"country"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	TargetTaskCount int       `json:"target_task_count"`
	CreatedBy       string    `json:"created_by"`
}

func (r *CreateCampaign) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.EndDate, validation.Required),
	)
}

func (r *CreateCampaign) ToCampaign() *model.Campaign {
	return &model.Campaign{
		Name:            r.Name,
		Category:        r.Category,
		Country:         r.Country,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		TargetTaskCount: r.TargetTaskCount,
		CreatedBy:       r.CreatedBy,
	}
}

type UpdateCampaignRequest struct {
	Status string `json:"status"`
}

func (r *UpdateCampaignRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In("active", "paused", "ended")),
	)
}

type AddVideoRequest struct {
	VideoURL     string `json:"video_url"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	Category     string `json:"category"`
}

func (r *AddVideoRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.VideoURL, validation.Required),
		validation.Field(&r.Title, validation.Required),
	)
}

type CreatePredictionRequest struct {
	VideoURL     string    `json:"video_url"`
	Title        string    `json:"title"`
	Type         string    `json:"prediction_type"`
	Format       string    `json:"prediction_format"`
	TargetValue  int64     `json:"target_value"`
	RangeOptions []string  `json:"range_options"`
	Deadline     time.Time `json:"deadline"`
	CreatedBy    string    `json:"created_by"`
}

func (r *CreatePredictionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.VideoURL, validation.Required),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Deadline, validation.Required),
		validation.Field(&r.Format, validation.In("", "simple", "range")),
	)
}

func (r *CreatePredictionRequest) ToPrediction() *model.Prediction {
	return &model.Prediction{
		VideoURL:     r.VideoURL,
		Title:        r.Title,
		Type:         r.Type,
		Format:       model.PredictionFormat(r.Format),
		TargetValue:  r.TargetValue,
		RangeOptions: r.RangeOptions,
		Deadline:     r.Deadline,
		CreatedBy:    r.CreatedBy,
	}
}

type VoteRequest struct {
	UserID string `json:"user_id"`
	Choice string `json:"choice"`
}

func (r *VoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Choice, validation.Required),
	)
}

type SettlePredictionRequest struct {
	ActualValue   *int64 `json:"actual_value"`
	CorrectAnswer string `json:"correct_answer"`
}

func (r *SettlePredictionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CorrectAnswer, validation.Required),
	)
}
