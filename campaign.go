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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

func (n *Nacho) CreateCampaign(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if c.EndDate.Before(c.StartDate) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Campaign end date is before its start date", nil)
	}
	c.CampaignID = model.GenerateUUIDWithSuffix("cmp")
	return n.datasource.CreateCampaign(ctx, c)
}

// AddVideo registers a campaign video, capturing its engagement counters as
// the baseline when the platform answers.
func (n *Nacho) AddVideo(ctx context.Context, v *model.Video) (*model.Video, error) {
	ctx, span := otel.Tracer("nacho.campaign").Start(ctx, "Adding campaign video")
	defer span.End()

	v.VideoID = model.GenerateUUIDWithSuffix("vid")

	metrics, err := n.evidence.VideoMetrics(ctx, v.VideoURL)
	if err != nil {
		// baseline stays zero; the next metrics refresh fills it
		logrus.Errorf("could not capture baseline metrics for %s: %v", v.VideoURL, err)
	} else {
		v.Initial = model.VideoMetrics{Views: metrics.Views, Likes: metrics.Likes, Comments: metrics.Comments, Shares: metrics.Shares}
	}

	return n.datasource.AddVideo(ctx, v)
}

// RefreshVideoMetrics re-reads a video's engagement counters from the
// platform.
func (n *Nacho) RefreshVideoMetrics(ctx context.Context, videoID string) (*model.Video, error) {
	ctx, span := otel.Tracer("nacho.campaign").Start(ctx, "Refreshing video metrics")
	defer span.End()

	video, err := n.datasource.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	metrics, err := n.evidence.VideoMetrics(ctx, video.VideoURL)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrEvidenceUnavailable, "Platform metrics unavailable", err)
	}

	m := model.VideoMetrics{Views: metrics.Views, Likes: metrics.Likes, Comments: metrics.Comments, Shares: metrics.Shares}
	if err := n.datasource.UpdateVideoMetrics(ctx, videoID, m); err != nil {
		return nil, err
	}
	return n.datasource.GetVideoByID(ctx, videoID)
}

func (n *Nacho) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	return n.datasource.GetCampaignByID(ctx, campaignID)
}

func (n *Nacho) GetAllCampaigns(ctx context.Context, limit, offset int) ([]model.Campaign, error) {
	return n.datasource.GetAllCampaigns(ctx, limit, offset)
}

func (n *Nacho) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	return n.datasource.UpdateCampaignStatus(ctx, campaignID, status)
}

func (n *Nacho) GetCampaignVideos(ctx context.Context, campaignID string) ([]model.Video, error) {
	return n.datasource.GetVideosByCampaign(ctx, campaignID)
}
