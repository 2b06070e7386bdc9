package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{
			Dns: "",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{
			Dns: "postgres://localhost:5432",
		},
		Redis: RedisConfig{
			Dns: "",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource: DataSourceConfig{
			Dns: "some-dns",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
}

func TestDomainDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}

	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cnf.Tasks.CooldownMinutes != 30 {
		t.Errorf("Expected cooldown default 30, got %d", cnf.Tasks.CooldownMinutes)
	}
	if cnf.Tasks.SaturationCap != 10 {
		t.Errorf("Expected saturation cap default 10, got %d", cnf.Tasks.SaturationCap)
	}
	if cnf.Tasks.CategoryRatio != 0.7 {
		t.Errorf("Expected category ratio default 0.7, got %f", cnf.Tasks.CategoryRatio)
	}
	if cnf.Tasks.RewardPoints != 20 {
		t.Errorf("Expected reward points default 20, got %d", cnf.Tasks.RewardPoints)
	}
	if cnf.Reconciliation.BatchSize != 50 {
		t.Errorf("Expected batch size default 50, got %d", cnf.Reconciliation.BatchSize)
	}
	if cnf.Reconciliation.MaxRetries != 3 {
		t.Errorf("Expected max retries default 3, got %d", cnf.Reconciliation.MaxRetries)
	}
	if cnf.Reconciliation.SnapshotCron != "0 6 * * *" {
		t.Errorf("Expected snapshot cron default, got %s", cnf.Reconciliation.SnapshotCron)
	}
	if cnf.Users.RegionChangeCooldownDays != 60 {
		t.Errorf("Expected region change cooldown default 60, got %d", cnf.Users.RegionChangeCooldownDays)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "nacho.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource: DataSourceConfig{
			Dns: "temp-dns",
		},
		Redis: RedisConfig{
			Dns: "temp-redis",
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("NACHO_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("NACHO_PROJECT_NAME")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected env override, got %s", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected file value temp-dns, got %s", loadedConfig.DataSource.Dns)
	}
}
