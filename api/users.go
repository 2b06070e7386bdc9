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

func (a Api) CreateUser(c *gin.Context) {
	var req model2.CreateUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	usr, err := a.nacho.RegisterUser(c.Request.Context(), req.ToUser())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, usr)
}

func (a Api) GetUser(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	usr, err := a.nacho.GetUser(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, usr)
}

// UpdateUserCategories replaces the user's interest categories.
func (a Api) UpdateUserCategories(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.UpdateCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	usr, err := a.nacho.GetUser(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	usr.Categories = req.Categories
	if err := a.nacho.UpdateUserProfile(c.Request.Context(), usr); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, usr)
}

func (a Api) ChangeUserRegion(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.ChangeRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.nacho.ChangeUserRegion(c.Request.Context(), id, req.Region); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "region updated"})
}

func (a Api) GetUserStats(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	stats, err := a.nacho.GetUserStats(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
