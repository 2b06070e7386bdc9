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

func (d Datasource) CreateCampaign(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = model.CampaignActive
	}
	if c.Country == "" {
		c.Country = model.GlobalCountry
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.campaigns (campaign_id, campaign_name, category, country, status, start_date, end_date, target_task_count, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.CampaignID, c.Name, c.Category, c.Country, c.Status, c.StartDate, c.EndDate, c.TargetTaskCount, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Campaign with ID '%s' already exists", c.CampaignID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create campaign", err)
	}

	return c, nil
}

func (d Datasource) GetCampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT campaign_id, campaign_name, category, country, status, start_date, end_date, target_task_count, created_by, created_at, updated_at
		FROM nacho.campaigns
		WHERE campaign_id = $1
	`, campaignID)

	c := &model.Campaign{}
	err := row.Scan(&c.CampaignID, &c.Name, &c.Category, &c.Country, &c.Status, &c.StartDate, &c.EndDate, &c.TargetTaskCount, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Campaign with ID '%s' not found", campaignID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve campaign", err)
	}

	return c, nil
}

func (d Datasource) GetAllCampaigns(ctx context.Context, limit, offset int) ([]model.Campaign, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT campaign_id, campaign_name, category, country, status, start_date, end_date, target_task_count, created_by, created_at, updated_at
		FROM nacho.campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve campaigns", err)
	}
	defer rows.Close()

	campaigns := []model.Campaign{}
	for rows.Next() {
		c := model.Campaign{}
		err = rows.Scan(&c.CampaignID, &c.Name, &c.Category, &c.Country, &c.Status, &c.StartDate, &c.EndDate, &c.TargetTaskCount, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan campaign", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}

func (d Datasource) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nacho.campaigns SET status = $2, updated_at = NOW() WHERE campaign_id = $1
	`, campaignID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update campaign status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Campaign with ID '%s' not found", campaignID), nil)
	}

	return nil
}

func (d Datasource) AddVideo(ctx context.Context, v *model.Video) (*model.Video, error) {
	v.CreatedAt = time.Now()
	v.Current = v.Initial

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.videos (video_id, campaign_id, video_url, title, thumbnail_url, category, initial_views, initial_likes, initial_comments, initial_shares, current_views, current_likes, current_comments, current_shares, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, v.VideoID, v.CampaignID, v.VideoURL, v.Title, v.ThumbnailURL, v.Category, v.Initial.Views, v.Initial.Likes, v.Initial.Comments, v.Initial.Shares, v.Current.Views, v.Current.Likes, v.Current.Comments, v.Current.Shares, v.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code {
			case "23505":
				return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Video with ID '%s' already exists", v.VideoID), err)
			case "23503":
				return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Campaign with ID '%s' not found", v.CampaignID), err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to add video", err)
	}

	return v, nil
}

func (d Datasource) GetVideoByID(ctx context.Context, videoID string) (*model.Video, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT video_id, campaign_id, video_url, title, thumbnail_url, category, initial_views, initial_likes, initial_comments, initial_shares, current_views, current_likes, current_comments, current_shares, metrics_updated_at, created_at
		FROM nacho.videos
		WHERE video_id = $1
	`, videoID)

	v := &model.Video{}
	err := row.Scan(&v.VideoID, &v.CampaignID, &v.VideoURL, &v.Title, &v.ThumbnailURL, &v.Category, &v.Initial.Views, &v.Initial.Likes, &v.Initial.Comments, &v.Initial.Shares, &v.Current.Views, &v.Current.Likes, &v.Current.Comments, &v.Current.Shares, &v.MetricsUpdatedAt, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Video with ID '%s' not found", videoID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve video", err)
	}

	return v, nil
}

func (d Datasource) GetVideosByCampaign(ctx context.Context, campaignID string) ([]model.Video, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT video_id, campaign_id, video_url, title, thumbnail_url, category, initial_views, initial_likes, initial_comments, initial_shares, current_views, current_likes, current_comments, current_shares, metrics_updated_at, created_at
		FROM nacho.videos
		WHERE campaign_id = $1
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve videos", err)
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (d Datasource) UpdateVideoMetrics(ctx context.Context, videoID string, metrics model.VideoMetrics) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nacho.videos
		SET current_views = $2, current_likes = $3, current_comments = $4, current_shares = $5, metrics_updated_at = NOW()
		WHERE video_id = $1
	`, videoID, metrics.Views, metrics.Likes, metrics.Comments, metrics.Shares)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update video metrics", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Video with ID '%s' not found", videoID), nil)
	}

	return nil
}

func (d Datasource) GetActiveVideos(ctx context.Context) ([]model.Video, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT v.video_id, v.campaign_id, v.video_url, v.title, v.thumbnail_url, v.category, v.initial_views, v.initial_likes, v.initial_comments, v.initial_shares, v.current_views, v.current_likes, v.current_comments, v.current_shares, v.metrics_updated_at, v.created_at
		FROM nacho.videos v
		INNER JOIN nacho.campaigns c ON c.campaign_id = v.campaign_id
		WHERE c.status = 'active' AND c.start_date <= NOW() AND c.end_date >= NOW()
		ORDER BY v.created_at
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve active videos", err)
	}
	defer rows.Close()

	return scanVideos(rows)
}

func scanVideos(rows *sql.Rows) ([]model.Video, error) {
	videos := []model.Video{}
	for rows.Next() {
		v := model.Video{}
		err := rows.Scan(&v.VideoID, &v.CampaignID, &v.VideoURL, &v.Title, &v.ThumbnailURL, &v.Category, &v.Initial.Views, &v.Initial.Likes, &v.Initial.Comments, &v.Initial.Shares, &v.Current.Views, &v.Current.Likes, &v.Current.Comments, &v.Current.Shares, &v.MetricsUpdatedAt, &v.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan video", err)
		}
		videos = append(videos, v)
	}
	return videos, nil
}
