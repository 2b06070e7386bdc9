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
)

func (a Api) CreatePrediction(c *gin.Context) {
	var req model2.CreatePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	p, err := a.nacho.CreatePrediction(c.Request.Context(), req.ToPrediction())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a Api) GetPrediction(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	p, err := a.nacho.GetPrediction(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a Api) ListActivePredictions(c *gin.Context) {
	predictions, err := a.nacho.ListActivePredictions(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, predictions)
}

func (a Api) SubmitPrediction(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.nacho.SubmitPrediction(c.Request.Context(), req.UserID, id, req.Choice); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "vote recorded"})
}

func (a Api) SettlePrediction(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.SettlePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	winners, err := a.nacho.SettlePrediction(c.Request.Context(), id, req.ActualValue, req.CorrectAnswer)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prediction_id": id, "winners": winners})
}

func (a Api) GetUserPredictions(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	limit, offset := pagination(c)

	votes, err := a.nacho.GetUserPredictions(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, votes)
}
