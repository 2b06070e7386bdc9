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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"NACHO_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"NACHO_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"NACHO_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"NACHO_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"NACHO_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"NACHO_SERVER_PORT"`
	// MonitoringPort serves the asynqmon dashboard in the workers process.
	MonitoringPort string `json:"monitoring_port" envconfig:"NACHO_SERVER_MONITORING_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"NACHO_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"NACHO_REDIS_DNS"`
}

// TasksConfig governs allocation and the task lifecycle.
type TasksConfig struct {
	// CooldownMinutes is the minimum gap between task sessions per user.
	CooldownMinutes int `json:"cooldown_minutes" envconfig:"NACHO_TASKS_COOLDOWN_MINUTES"`
	// SaturationCap is the maximum assignments per video inside the window.
	SaturationCap           int     `json:"saturation_cap" envconfig:"NACHO_TASKS_SATURATION_CAP"`
	SaturationWindowMinutes int     `json:"saturation_window_minutes" envconfig:"NACHO_TASKS_SATURATION_WINDOW_MINUTES"`
	CategoryRatio           float64 `json:"category_ratio" envconfig:"NACHO_TASKS_CATEGORY_RATIO"`
	SessionExpiryMinutes    int     `json:"session_expiry_minutes" envconfig:"NACHO_TASKS_SESSION_EXPIRY_MINUTES"`
	RewardPoints            int64   `json:"reward_points" envconfig:"NACHO_TASKS_REWARD_POINTS"`
	RecheckHorizonDays      int     `json:"recheck_horizon_days" envconfig:"NACHO_TASKS_RECHECK_HORIZON_DAYS"`
	TrackerRetentionDays    int     `json:"tracker_retention_days" envconfig:"NACHO_TASKS_TRACKER_RETENTION_DAYS"`
}

// ReconciliationConfig governs the verification queue and snapshot sweep.
type ReconciliationConfig struct {
	BatchSize          int    `json:"batch_size" envconfig:"NACHO_RECONCILIATION_BATCH_SIZE"`
	MaxRetries         int    `json:"max_retries" envconfig:"NACHO_RECONCILIATION_MAX_RETRIES"`
	RetryDelayMinutes  int    `json:"retry_delay_minutes" envconfig:"NACHO_RECONCILIATION_RETRY_DELAY_MINUTES"`
	ThrottleMs         int    `json:"throttle_ms" envconfig:"NACHO_RECONCILIATION_THROTTLE_MS"`
	SnapshotCron       string `json:"snapshot_cron" envconfig:"NACHO_RECONCILIATION_SNAPSHOT_CRON"`
	DueCheckCron       string `json:"due_check_cron" envconfig:"NACHO_RECONCILIATION_DUE_CHECK_CRON"`
	CleanupCron        string `json:"cleanup_cron" envconfig:"NACHO_RECONCILIATION_CLEANUP_CRON"`
	EvidenceUserAgent  string `json:"evidence_user_agent" envconfig:"NACHO_EVIDENCE_USER_AGENT"`
	EvidenceTimeoutSec int    `json:"evidence_timeout_sec" envconfig:"NACHO_EVIDENCE_TIMEOUT_SEC"`
}

// RedemptionConfig governs voucher redemptions.
type RedemptionConfig struct {
	RefundReason string `json:"refund_reason" envconfig:"NACHO_REDEMPTION_REFUND_REASON"`
}

// PredictionsConfig governs prediction event payouts.
type PredictionsConfig struct {
	SimplePoints int64 `json:"simple_points" envconfig:"NACHO_PREDICTIONS_SIMPLE_POINTS"`
	RangePoints  int64 `json:"range_points" envconfig:"NACHO_PREDICTIONS_RANGE_POINTS"`
}

type UsersConfig struct {
	RegionChangeCooldownDays int `json:"region_change_cooldown_days" envconfig:"NACHO_USERS_REGION_CHANGE_COOLDOWN_DAYS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"NACHO_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"NACHO_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"NACHO_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"NACHO_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Tasks          TasksConfig          `json:"tasks"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Redemption     RedemptionConfig     `json:"redemption"`
	Predictions    PredictionsConfig    `json:"predictions"`
	Users          UsersConfig          `json:"users"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("nacho", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called nacho.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Nacho Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}
	if cnf.Server.MonitoringPort == "" {
		cnf.Server.MonitoringPort = "5001"
	}

	cnf.applyDomainDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) applyDomainDefaults() {
	t := &cnf.Tasks
	if t.CooldownMinutes <= 0 {
		t.CooldownMinutes = 30
	}
	if t.SaturationCap <= 0 {
		t.SaturationCap = 10
	}
	if t.SaturationWindowMinutes <= 0 {
		t.SaturationWindowMinutes = 60
	}
	if t.CategoryRatio <= 0 || t.CategoryRatio > 1 {
		t.CategoryRatio = 0.7
	}
	if t.SessionExpiryMinutes <= 0 {
		t.SessionExpiryMinutes = 30
	}
	if t.RewardPoints <= 0 {
		t.RewardPoints = 20
	}
	if t.RecheckHorizonDays <= 0 {
		t.RecheckHorizonDays = 7
	}
	if t.TrackerRetentionDays <= 0 {
		t.TrackerRetentionDays = 60
	}

	r := &cnf.Reconciliation
	if r.BatchSize <= 0 {
		r.BatchSize = 50
	}
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelayMinutes <= 0 {
		r.RetryDelayMinutes = 30
	}
	if r.ThrottleMs <= 0 {
		r.ThrottleMs = 2000
	}
	if r.SnapshotCron == "" {
		r.SnapshotCron = "0 6 * * *"
	}
	if r.DueCheckCron == "" {
		r.DueCheckCron = "*/10 * * * *"
	}
	if r.CleanupCron == "" {
		r.CleanupCron = "*/15 * * * *"
	}
	if r.EvidenceTimeoutSec <= 0 {
		r.EvidenceTimeoutSec = 10
	}

	if cnf.Redemption.RefundReason == "" {
		cnf.Redemption.RefundReason = "redemption refund"
	}
	if cnf.Predictions.SimplePoints <= 0 {
		cnf.Predictions.SimplePoints = 10
	}
	if cnf.Predictions.RangePoints <= 0 {
		cnf.Predictions.RangePoints = 15
	}
	if cnf.Users.RegionChangeCooldownDays <= 0 {
		cnf.Users.RegionChangeCooldownDays = 60
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyDomainDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
