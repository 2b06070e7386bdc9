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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// CompleteTask records the user's comment against an assigned task. The
// submitted comment URL must belong to the task's video.
func (n *Nacho) CompleteTask(ctx context.Context, taskID, userID, commentURL, commentText string) (*model.Task, error) {
	ctx, span := otel.Tracer("nacho.lifecycle").Start(ctx, "Completing task")
	defer span.End()

	task, err := n.datasource.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Task with ID '%s' not found", taskID), nil)
	}
	if !task.Status.CanTransition(model.TaskCompleted) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Task '%s' is %s, not assigned", taskID, task.Status), nil)
	}

	check, err := n.evidence.CheckComment(ctx, commentURL)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrEvidenceUnavailable, "Could not verify the comment right now, try again shortly", err)
	}
	if !check.Exists {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "The submitted comment was not found on the video", nil)
	}

	return n.datasource.CompleteTask(ctx, taskID, commentURL, commentText, check.CommentID)
}

// VerifyTask approves a completed task and schedules its persistence recheck
// at the end of the retention horizon.
func (n *Nacho) VerifyTask(ctx context.Context, taskID string) (*model.Task, error) {
	ctx, span := otel.Tracer("nacho.lifecycle").Start(ctx, "Verifying task")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	scheduledAt := time.Now().AddDate(0, 0, cnf.Tasks.RecheckHorizonDays)
	task, err := n.datasource.VerifyTask(ctx, taskID, scheduledAt)
	if err != nil {
		return nil, err
	}

	if err := n.queue.queueRecheck(taskID, scheduledAt); err != nil {
		// the periodic due sweep picks it up regardless
		logrus.Errorf("failed to queue recheck for %s: %v", taskID, err)
	}

	return task, nil
}

// RejectTask fails a completed or verified task with a reason. No points
// move; a verified task's pending recheck resolves as a no-op later.
func (n *Nacho) RejectTask(ctx context.Context, taskID, reason string) error {
	return n.datasource.FailTask(ctx, taskID, reason)
}

func (n *Nacho) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return n.datasource.GetTask(ctx, taskID)
}

func (n *Nacho) GetUserTasks(ctx context.Context, userID string, status model.TaskStatus, limit, offset int) ([]*model.Task, error) {
	return n.datasource.GetUserTasks(ctx, userID, status, limit, offset)
}

func (n *Nacho) GetSessionTasks(ctx context.Context, sessionID string) ([]*model.Task, error) {
	return n.datasource.GetSessionTasks(ctx, sessionID)
}
