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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/tacolabs/nacho/api/model"
	"github.com/tacolabs/nacho/model"
)

func (a Api) CreateCampaign(c *gin.Context) {
	var req model2.CreateCampaign
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	campaign, err := a.nacho.CreateCampaign(c.Request.Context(), req.ToCampaign())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (a Api) GetCampaign(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	campaign, err := a.nacho.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (a Api) GetAllCampaigns(c *gin.Context) {
	limit, offset := pagination(c)

	campaigns, err := a.nacho.GetAllCampaigns(c.Request.Context(), limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

func (a Api) UpdateCampaign(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.nacho.UpdateCampaignStatus(c.Request.Context(), id, model.CampaignStatus(req.Status)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "campaign updated"})
}

func (a Api) GetCampaignVideos(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	videos, err := a.nacho.GetCampaignVideos(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (a Api) AddVideo(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.AddVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	video, err := a.nacho.AddVideo(c.Request.Context(), &model.Video{
		CampaignID:   id,
		VideoURL:     req.VideoURL,
		Title:        req.Title,
		ThumbnailURL: req.ThumbnailURL,
		Category:     req.Category,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// RefreshVideoMetrics re-reads a video's engagement counters from the
// platform and stores the result.
func (a Api) RefreshVideoMetrics(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	video, err := a.nacho.RefreshVideoMetrics(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}
