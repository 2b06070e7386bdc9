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

func (a Api) CreateRedemption(c *gin.Context) {
	var req model2.CreateRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	r, err := a.nacho.RequestRedemption(c.Request.Context(), req.UserID, req.VoucherID, req.VoucherName, req.AmountNacho, req.AmountUSD)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a Api) GetRedemption(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	r, err := a.nacho.GetRedemption(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a Api) GetUserRedemptions(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	limit, offset := pagination(c)

	redemptions, err := a.nacho.GetUserRedemptions(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, redemptions)
}

func (a Api) GetPendingRedemptions(c *gin.Context) {
	limit, offset := pagination(c)

	redemptions, err := a.nacho.GetPendingRedemptions(c.Request.Context(), limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, redemptions)
}

func (a Api) ApproveRedemption(c *gin.Context) {
	a.reviewRedemption(c, model.RedemptionApproved)
}

func (a Api) DenyRedemption(c *gin.Context) {
	a.reviewRedemption(c, model.RedemptionDenied)
}

func (a Api) reviewRedemption(c *gin.Context, decision model.RedemptionStatus) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.ReviewRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	r, err := a.nacho.ReviewRedemption(c.Request.Context(), id, decision, req.ReviewedBy, req.Note, req.VoucherLink)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a Api) CancelRedemption(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.CancelRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	r, err := a.nacho.CancelRedemption(c.Request.Context(), id, req.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
