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
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	redlock "github.com/tacolabs/nacho/internal/lock"
	"github.com/tacolabs/nacho/model"
)

// acquireUserLock takes the per-user advisory lock that serializes
// allocation. The cooldown and saturation checks read then write; without
// the lock two concurrent assignment calls could both pass the checks.
func (n *Nacho) acquireUserLock(ctx context.Context, userID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(n.redis, fmt.Sprintf("allocator:%s", userID), model.GenerateUUIDWithSuffix("loc"))
	err := locker.Lock(ctx, time.Minute)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

// AssignTasks opens a new task session for the user with up to count tasks.
// A user on cooldown or with an open session is refused with the minutes
// remaining; a session already past its expiry is expired in place so the
// replacement can be created.
func (n *Nacho) AssignTasks(ctx context.Context, userID string, count int) (*model.TaskSession, error) {
	ctx, span := otel.Tracer("nacho.allocator").Start(ctx, "Assigning tasks")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	usr, err := n.datasource.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	locker, err := n.acquireUserLock(ctx, userID)
	if err != nil {
		logrus.Error("lock error", err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Another assignment for this user is in progress", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("unlock error", err)
		}
	}(locker, ctx)

	cooldown := time.Duration(cnf.Tasks.CooldownMinutes) * time.Minute

	active, err := n.datasource.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.ExpiredAt.After(time.Now()) {
			remaining := int(math.Ceil((cooldown - time.Since(active.StartedAt)).Minutes()))
			if remaining < 1 {
				remaining = 1
			}
			return nil, apierror.NewAPIError(apierror.ErrRateLimited, fmt.Sprintf("Next tasks available in %d minutes", remaining), nil)
		}
		// the sweep has not caught this one yet; expire it here so the
		// unique index does not refuse the replacement session
		if err := n.datasource.ExpireSession(ctx, active.SessionID); err != nil {
			return nil, err
		}
	}

	lastStart, err := n.datasource.GetLastSessionStart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lastStart != nil {
		elapsed := time.Since(*lastStart)
		if elapsed < cooldown {
			remaining := int(math.Ceil((cooldown - elapsed).Minutes()))
			return nil, apierror.NewAPIError(apierror.ErrRateLimited, fmt.Sprintf("Next tasks available in %d minutes", remaining), nil)
		}
	}

	categoryCount := int(math.Floor(float64(count) * cnf.Tasks.CategoryRatio))
	randomCount := count - categoryCount
	window := time.Duration(cnf.Tasks.SaturationWindowMinutes) * time.Minute

	videos, err := n.datasource.SelectCandidateVideos(ctx, userID, usr.Region, usr.Categories, categoryCount, randomCount, cnf.Tasks.SaturationCap, window)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNoCandidates, "No assignable videos right now, try again later", nil)
	}

	now := time.Now()
	session := &model.TaskSession{
		SessionID:     model.GenerateUUIDWithSuffix("ses"),
		UserID:        userID,
		AssignedCount: len(videos),
		Status:        model.SessionActive,
		StartedAt:     now,
		ExpiredAt:     now.Add(time.Duration(cnf.Tasks.SessionExpiryMinutes) * time.Minute),
	}

	tasks := make([]*model.Task, 0, len(videos))
	for _, v := range videos {
		tasks = append(tasks, &model.Task{
			TaskID:     model.GenerateUUIDWithSuffix("tsk"),
			SessionID:  session.SessionID,
			UserID:     userID,
			CampaignID: v.CampaignID,
			VideoID:    v.VideoID,
			VideoURL:   v.VideoURL,
			VideoTitle: v.Title,
			Status:     model.TaskAssigned,
			AssignedAt: now,
		})
	}

	if err := n.datasource.CreateSession(ctx, session, tasks); err != nil {
		return nil, err
	}
	session.Tasks = tasks
	return session, nil
}

// GetActiveSession returns the user's open session with its tasks, or nil.
func (n *Nacho) GetActiveSession(ctx context.Context, userID string) (*model.TaskSession, error) {
	return n.datasource.GetActiveSession(ctx, userID)
}
