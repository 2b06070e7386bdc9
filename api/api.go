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

	"github.com/tacolabs/nacho"
	"github.com/tacolabs/nacho/api/middleware"
	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
)

type Api struct {
	nacho  *nacho.Nacho
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/tasks/assign", a.AssignTasks)
	router.GET("/tasks/sessions/:id", a.GetSessionTasks)
	router.GET("/tasks/:id", a.GetTask)
	router.POST("/tasks/:id/complete", a.CompleteTask)
	router.POST("/tasks/:id/verify", a.VerifyTask)
	router.POST("/tasks/:id/reject", a.RejectTask)
	router.POST("/tasks/:id/recheck", a.RecheckTask)

	router.POST("/users", a.CreateUser)
	router.GET("/users/:id", a.GetUser)
	router.PUT("/users/:id/categories", a.UpdateUserCategories)
	router.PUT("/users/:id/region", a.ChangeUserRegion)
	router.GET("/users/:id/stats", a.GetUserStats)
	router.GET("/users/:id/tasks", a.GetUserTasks)
	router.GET("/users/:id/session", a.GetActiveSession)
	router.GET("/users/:id/balance", a.GetBalance)
	router.GET("/users/:id/transactions", a.GetTransactions)
	router.GET("/users/:id/redemptions", a.GetUserRedemptions)
	router.GET("/users/:id/predictions", a.GetUserPredictions)

	router.POST("/points/grant", a.GrantPoints)
	router.POST("/points/deduct", a.DeductPoints)
	router.GET("/transactions/:id", a.GetTransaction)

	router.POST("/redemptions", a.CreateRedemption)
	router.GET("/redemptions/pending", a.GetPendingRedemptions)
	router.GET("/redemptions/:id", a.GetRedemption)
	router.POST("/redemptions/:id/approve", a.ApproveRedemption)
	router.POST("/redemptions/:id/deny", a.DenyRedemption)
	router.POST("/redemptions/:id/cancel", a.CancelRedemption)

	router.POST("/campaigns", a.CreateCampaign)
	router.GET("/campaigns", a.GetAllCampaigns)
	router.GET("/campaigns/:id", a.GetCampaign)
	router.PUT("/campaigns/:id", a.UpdateCampaign)
	router.GET("/campaigns/:id/videos", a.GetCampaignVideos)
	router.POST("/campaigns/:id/videos", a.AddVideo)
	router.PUT("/videos/:id/metrics", a.RefreshVideoMetrics)

	router.POST("/predictions", a.CreatePrediction)
	router.GET("/predictions/active", a.ListActivePredictions)
	router.GET("/predictions/:id", a.GetPrediction)
	router.POST("/predictions/:id/vote", a.SubmitPrediction)
	router.POST("/predictions/:id/settle", a.SettlePrediction)

	return a.router
}

func NewAPI(n *nacho.Nacho) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{nacho: n, router: r}
}

// respondErr writes the error with the status its code maps to.
func respondErr(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

// pathID returns the :id route parameter or fails the request.
func pathID(c *gin.Context) (string, bool) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return "", false
	}
	return id, true
}
