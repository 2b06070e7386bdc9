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
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/tacolabs/nacho/api/model"
	"github.com/tacolabs/nacho/model"
)

func (a Api) AssignTasks(c *gin.Context) {
	var req model2.AssignTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	session, err := a.nacho.AssignTasks(c.Request.Context(), req.UserID, req.Count)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (a Api) GetTask(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	task, err := a.nacho.GetTask(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a Api) GetSessionTasks(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	tasks, err := a.nacho.GetSessionTasks(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (a Api) GetActiveSession(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	session, err := a.nacho.GetActiveSession(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a Api) GetUserTasks(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	limit, offset := pagination(c)
	status := model.TaskStatus(c.Query("status"))

	tasks, err := a.nacho.GetUserTasks(c.Request.Context(), id, status, limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (a Api) CompleteTask(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.CompleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	task, err := a.nacho.CompleteTask(c.Request.Context(), id, req.UserID, req.CommentURL, req.CommentText)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a Api) VerifyTask(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	task, err := a.nacho.VerifyTask(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a Api) RejectTask(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.RejectTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.nacho.RejectTask(c.Request.Context(), id, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task rejected"})
}

// RecheckTask forces the persistence recheck for a verified task, the same
// settlement the queue runs at the scheduled time. The body is optional: a
// caller that already knows the comment's fate passes evidence_persists.
func (a Api) RecheckTask(c *gin.Context) {
	id, passed := pathID(c)
	if !passed {
		return
	}
	var req model2.RecheckTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	task, err := a.nacho.RecheckTask(c.Request.Context(), id, req.EvidencePersists)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
