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
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/database"
	"github.com/tacolabs/nacho/internal/evidence"
	redis_db "github.com/tacolabs/nacho/internal/redis-db"
)

// Nacho is the main service struct wiring the datasource, the queue, redis
// and the platform evidence provider.
type Nacho struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	evidence   evidence.Provider
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewNacho initializes the service with the provided datasource. It fetches
// the configuration and builds the redis client, queue and evidence provider.
func NewNacho(db database.IDataSource) (*Nacho, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	provider := evidence.NewTikTokProvider(evidence.Options{
		UserAgent:  configuration.Reconciliation.EvidenceUserAgent,
		Timeout:    time.Duration(configuration.Reconciliation.EvidenceTimeoutSec) * time.Second,
		Throttle:   time.Duration(configuration.Reconciliation.ThrottleMs) * time.Millisecond,
		MaxRetries: uint64(configuration.Reconciliation.MaxRetries),
	})

	return &Nacho{datasource: db, queue: newQueue, redis: redisClient.Client(), evidence: provider}, nil
}
