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
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/database"
	"github.com/tacolabs/nacho/internal/cache"
	"github.com/tacolabs/nacho/internal/evidence"
)

func newTestDataSource() (database.IDataSource, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	newCache, err := cache.NewCache()
	if err != nil {
		log.Printf("an error '%s' was not expected", err)
	}
	return &database.Datasource{Conn: db, Cache: newCache}, mock, nil
}

// newTestNacho spins up a miniredis-backed service over a sqlmock datasource.
func newTestNacho(t *testing.T) (*Nacho, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	datasource, mock, err := newTestDataSource()
	if err != nil {
		t.Fatalf("Error creating test data source: %s", err)
	}

	n, err := NewNacho(datasource)
	if err != nil {
		t.Fatalf("Error creating Nacho instance: %s", err)
	}
	return n, mock
}

// stubEvidence replaces the platform provider in tests.
type stubEvidence struct {
	check    *evidence.CommentCheck
	comments []evidence.Comment
	metrics  *evidence.Metrics
	err      error
}

func (s *stubEvidence) CheckComment(_ context.Context, _ string) (*evidence.CommentCheck, error) {
	return s.check, s.err
}

func (s *stubEvidence) ListComments(_ context.Context, _ string) ([]evidence.Comment, error) {
	return s.comments, s.err
}

func (s *stubEvidence) VideoMetrics(_ context.Context, _ string) (*evidence.Metrics, error) {
	return s.metrics, s.err
}
