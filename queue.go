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
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tacolabs/nacho/config"
	redis_db "github.com/tacolabs/nacho/internal/redis-db"
)

// Task type names shared between the queue, the scheduler and the workers.
const (
	TaskTypeRecheck         = "reconciliation:recheck"
	TaskTypeDueSweep        = "reconciliation:due_sweep"
	TaskTypeSnapshotCollect = "reconciliation:snapshots"
	TaskTypeCleanupSweep    = "reconciliation:cleanup"
)

// Queue wraps the asynq client used to schedule reconciliation work.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// RecheckPayload carries the task id of a comment due for its recheck.
type RecheckPayload struct {
	TaskID string `json:"task_id"`
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueRecheck schedules a one-shot recheck for a task at its due time. The
// task id doubles as the asynq id, so re-verifying the same task does not
// enqueue a second recheck. The periodic due sweep remains the backstop for
// anything the delayed task misses.
func (q *Queue) queueRecheck(taskID string, dueAt time.Time) error {
	payload, err := json.Marshal(RecheckPayload{TaskID: taskID})
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(TaskTypeRecheck),
		asynq.ProcessIn(time.Until(dueAt)),
		asynq.MaxRetry(3),
	}
	task := asynq.NewTask(TaskTypeRecheck, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}
	log.Printf("queued recheck: id=%s queue=%s process_at=%s", info.ID, info.Queue, info.NextProcessAt)
	return nil
}
