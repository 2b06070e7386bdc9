package model

import "time"

// CampaignStatus is the closed set of campaign states.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
	CampaignEnded  CampaignStatus = "ended"
)

// GlobalCountry marks a campaign as eligible for every region.
const GlobalCountry = "global"

// Campaign groups videos eligible for task assignment within a date range
// and region.
type Campaign struct {
	ID              int64          `json:"-"`
	CampaignID      string         `json:"campaign_id"`
	Name            string         `json:"campaign_name"`
	Category        string         `json:"category"`
	Country         string         `json:"country"`
	Status          CampaignStatus `json:"status"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	TargetTaskCount int            `json:"target_task_count"`
	CreatedBy       string         `json:"created_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// VideoMetrics holds engagement counters scraped from the platform.
type VideoMetrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// Video is a campaign video that tasks reference.
type Video struct {
	ID               int64        `json:"-"`
	VideoID          string       `json:"video_id"`
	CampaignID       string       `json:"campaign_id"`
	VideoURL         string       `json:"video_url"`
	Title            string       `json:"title"`
	ThumbnailURL     string       `json:"thumbnail_url,omitempty"`
	Category         string       `json:"category,omitempty"`
	Initial          VideoMetrics `json:"initial_metrics"`
	Current          VideoMetrics `json:"current_metrics"`
	MetricsUpdatedAt *time.Time   `json:"metrics_updated_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}
