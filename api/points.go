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

func (a Api) GrantPoints(c *gin.Context) {
	var req model2.PointAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.nacho.GrantPoints(c.Request.Context(), req.UserID, req.Amount, req.Reason, req.CreatedBy)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) DeductPoints(c *gin.Context) {
	var req model2.PointAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.nacho.DeductPoints(c.Request.Context(), req.UserID, req.Amount, req.Reason, req.CreatedBy)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) GetBalance(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	balance, err := a.nacho.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "balance": balance})
}

func (a Api) GetTransactions(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	limit, offset := pagination(c)

	transactions, err := a.nacho.GetPointHistory(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (a Api) GetTransaction(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	txn, err := a.nacho.GetPointTransaction(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
