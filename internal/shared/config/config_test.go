package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_DEMO_SECRET", "test-demo-secret")
	t.Setenv("VAULT_SECRET", "test-vault-secret")
	t.Setenv("CONFIG_FILE", "")
	os.Unsetenv("CONFIG_FILE")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Insights.Model != "gemini-2.0-flash" {
		t.Errorf("Insights.Model = %q", cfg.Insights.Model)
	}
	if len(cfg.Scheduler.ScheduleTimes) != 4 {
		t.Errorf("ScheduleTimes = %v, want four entries", cfg.Scheduler.ScheduleTimes)
	}
	if cfg.Scheduler.JobDelay.Seconds() != 1 {
		t.Errorf("Scheduler.JobDelay = %v, want 1s", cfg.Scheduler.JobDelay)
	}
}

func TestLoad_MissingAuth(t *testing.T) {
	t.Setenv("VAULT_SECRET", "test-vault-secret")
	os.Unsetenv("AUTH_DEMO_SECRET")
	os.Unsetenv("AUTH_JWKS_URL")
	os.Unsetenv("CONFIG_FILE")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error without any auth configuration, got nil")
	}
}

func TestLoad_MissingVaultKeyMaterial(t *testing.T) {
	t.Setenv("AUTH_DEMO_SECRET", "test-demo-secret")
	os.Unsetenv("VAULT_SECRET")
	os.Unsetenv("VAULT_KMS_KEY_NAME")
	os.Unsetenv("CONFIG_FILE")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error without vault key material, got nil")
	}
}

func TestLoad_InvalidDBPort(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("DB_PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid DB_PORT, got nil")
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TLS_ENABLED", "true")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without cert path, got nil")
	}
}

func TestLoad_InvalidScheduleTime(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SCHEDULER_TIMES", "05:00,25:99")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for malformed schedule time, got nil")
	}
}

func TestLoad_AllowedHosts(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com, localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Server.AllowedHosts) != 3 {
		t.Errorf("AllowedHosts length = %d, want 3", len(cfg.Server.AllowedHosts))
	}
	if cfg.Server.AllowedHosts[1] != "api.example.com" {
		t.Errorf("AllowedHosts[1] = %q, want trimmed entry", cfg.Server.AllowedHosts[1])
	}
}

func TestLoad_ConfigFileLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moneta.toml")
	content := `
[server]
port = "9090"
host = "127.0.0.1"

[auth]
demo_secret = "file-secret"
audiences = ["moneta-app"]

[vault]
secret = "file-vault-secret"

[scheduler]
worker_count = 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070") // env wins over the file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q, want the env override 7070", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want the file value", cfg.Server.Host)
	}
	if cfg.Auth.DemoSecret != "file-secret" {
		t.Errorf("Auth.DemoSecret = %q, want the file value", cfg.Auth.DemoSecret)
	}
	if len(cfg.Auth.Audiences) != 1 || cfg.Auth.Audiences[0] != "moneta-app" {
		t.Errorf("Auth.Audiences = %v", cfg.Auth.Audiences)
	}
	if cfg.Scheduler.WorkerCount != 2 {
		t.Errorf("Scheduler.WorkerCount = %d, want 2", cfg.Scheduler.WorkerCount)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, defaults should survive partial files", cfg.Database.Port)
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_WORKERS", "10")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "true")
	t.Setenv("SCHEDULER_JOB_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled should be false")
	}
	if cfg.Scheduler.WorkerCount != 10 {
		t.Errorf("Scheduler.WorkerCount = %d, want 10", cfg.Scheduler.WorkerCount)
	}
	if !cfg.Scheduler.RunOnStartup {
		t.Error("Scheduler.RunOnStartup should be true")
	}
	if cfg.Scheduler.JobDelay.Milliseconds() != 250 {
		t.Errorf("Scheduler.JobDelay = %v, want 250ms", cfg.Scheduler.JobDelay)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if got := cfg.ConnectionString(); got != expected {
		t.Errorf("ConnectionString() = %q, want %q", got, expected)
	}
}
