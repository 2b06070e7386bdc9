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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/tacolabs/nacho"
	"github.com/tacolabs/nacho/config"
	redis_db "github.com/tacolabs/nacho/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processRecheck handles the one-shot comment recheck scheduled when a task is
// verified. The task stays claimable by the periodic due sweep, so a failure
// here only delays settlement rather than losing it.
func (b *nachoInstance) processRecheck(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("nacho.reconciliation.worker").Start(ctx, "Process Comment Recheck From Redis Queue")
	defer span.End()

	var payload nacho.RecheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.nacho.ProcessTaskRecheck(ctx, payload.TaskID); err != nil {
		logrus.Infof("Recheck for task %s pushed back for retry due to error: %v", payload.TaskID, err)
		return err
	}

	log.Println(" [*] Recheck Processed", payload.TaskID)
	return nil
}

// processDueSweep drains the verification queue in batches until no due
// entries remain.
func (b *nachoInstance) processDueSweep(ctx context.Context, _ *asynq.Task) error {
	ctx, span := otel.Tracer("nacho.reconciliation.worker").Start(ctx, "Process Due Verification Sweep")
	defer span.End()

	processed, failed, err := b.nacho.DrainDueVerifications(ctx)
	if err != nil {
		return err
	}
	if processed > 0 || failed > 0 {
		log.Printf(" [*] Verification sweep done: processed=%d failed=%d", processed, failed)
	}
	return nil
}

func (b *nachoInstance) processSnapshots(ctx context.Context, _ *asynq.Task) error {
	ctx, span := otel.Tracer("nacho.reconciliation.worker").Start(ctx, "Collect Video Comment Snapshots")
	defer span.End()

	if err := b.nacho.CollectSnapshots(ctx); err != nil {
		return err
	}
	log.Println(" [*] Snapshots Collected")
	return nil
}

func (b *nachoInstance) processCleanup(ctx context.Context, _ *asynq.Task) error {
	ctx, span := otel.Tracer("nacho.reconciliation.worker").Start(ctx, "Sweep Expired Sessions")
	defer span.End()

	if err := b.nacho.SweepExpired(ctx); err != nil {
		return err
	}
	log.Println(" [*] Expired Sessions Swept")
	return nil
}

func initializeQueues() map[string]int {
	queues := make(map[string]int)
	queues[nacho.TaskTypeRecheck] = 3
	queues[nacho.TaskTypeDueSweep] = 2
	queues[nacho.TaskTypeSnapshotCollect] = 1
	queues[nacho.TaskTypeCleanupSweep] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *nachoInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(nacho.TaskTypeRecheck, b.processRecheck)
	mux.HandleFunc(nacho.TaskTypeDueSweep, b.processDueSweep)
	mux.HandleFunc(nacho.TaskTypeSnapshotCollect, b.processSnapshots)
	mux.HandleFunc(nacho.TaskTypeCleanupSweep, b.processCleanup)
}

// initializeScheduler registers the periodic reconciliation entries: the daily
// snapshot collection, the due verification sweep and the expiry cleanup.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	entries := []struct {
		cron     string
		taskType string
	}{
		{conf.Reconciliation.SnapshotCron, nacho.TaskTypeSnapshotCollect},
		{conf.Reconciliation.DueCheckCron, nacho.TaskTypeDueSweep},
		{conf.Reconciliation.CleanupCron, nacho.TaskTypeCleanupSweep},
	}
	for _, e := range entries {
		entryID, err := scheduler.Register(e.cron, asynq.NewTask(e.taskType, nil), asynq.Queue(e.taskType))
		if err != nil {
			return nil, fmt.Errorf("error registering %s: %v", e.taskType, err)
		}
		log.Printf("Scheduled %s (%s) as entry %s", e.taskType, e.cron, entryID)
	}

	return scheduler, nil
}

// workerCommands defines the "workers" command that runs the reconciliation
// worker pool, the cron scheduler and the asynqmon monitoring server.
func workerCommands(b *nachoInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start nacho workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx)
			if err != nil {
				log.Printf("Tracing initialization error: %v", err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			go func() {
				if err := scheduler.Run(); err != nil {
					log.Fatalf("could not run scheduler: %v", err)
				}
			}()

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Server.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
