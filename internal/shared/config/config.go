package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is assembled in three layers: built-in defaults, an optional
// TOML file named by CONFIG_FILE, then environment variables. Later
// layers win.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Auth       AuthConfig       `toml:"auth"`
	Vault      VaultConfig      `toml:"vault"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	TLS        TLSConfig        `toml:"tls"`
	Firebase   FirebaseConfig   `toml:"firebase"`
	Insights   InsightsConfig   `toml:"insights"`
	Messages   MessagesConfig   `toml:"messages"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

type ServerConfig struct {
	Port         string   `toml:"port"`
	Host         string   `toml:"host"`
	AllowedHosts []string `toml:"allowed_hosts"`
	RateLimitRPS float64  `toml:"rate_limit_rps"`
	RateBurst    int      `toml:"rate_burst"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

type AuthConfig struct {
	JWKSURL          string   `toml:"jwks_url"`
	Audiences        []string `toml:"audiences"`
	Issuer           string   `toml:"issuer"`
	DemoSecret       string   `toml:"demo_secret"`
	DecryptionKeyPEM string   `toml:"decryption_key_pem"`
}

type VaultConfig struct {
	Secret     string `toml:"secret"`
	KMSKeyName string `toml:"kms_key_name"`
}

type AggregatorConfig struct {
	BaseURL  string `toml:"base_url"`
	ClientID string `toml:"client_id"`
	Secret   string `toml:"secret"`
}

type SchedulerConfig struct {
	Enabled       bool          `toml:"enabled"`
	ScheduleTimes []string      `toml:"schedule_times"`
	WorkerCount   int           `toml:"worker_count"`
	JobDelay      time.Duration `toml:"-"`
	JobDelayRaw   string        `toml:"job_delay"`
	QueueSize     int           `toml:"queue_size"`
	RunOnStartup  bool          `toml:"run_on_startup"`
}

type TLSConfig struct {
	Enabled      bool   `toml:"enabled"`
	CertPath     string `toml:"cert_path"`
	KeyPath      string `toml:"key_path"`
	RedirectHTTP bool   `toml:"redirect_http"`
}

type FirebaseConfig struct {
	CredentialsFile string `toml:"credentials_file"`
}

type InsightsConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type MessagesConfig struct {
	Path string `toml:"path"`
}

type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	ServiceName  string `toml:"service_name"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Host:         "0.0.0.0",
			RateLimitRPS: 1,
			RateBurst:    5,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "moneta",
			DBName:  "moneta",
			SSLMode: "disable",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			ScheduleTimes: []string{"05:00", "11:00", "17:00", "23:00"},
			WorkerCount:   5,
			JobDelayRaw:   "1s",
			QueueSize:     100,
		},
		Insights: InsightsConfig{
			Model: "gemini-2.0-flash",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "moneta-api",
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// TOML file and the environment, in that order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	delay, err := time.ParseDuration(cfg.Scheduler.JobDelayRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler job delay %q: %w", cfg.Scheduler.JobDelayRaw, err)
	}
	cfg.Scheduler.JobDelay = delay

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Host, "HOST")
	setStringList(&cfg.Server.AllowedHosts, "ALLOWED_HOSTS")
	if err := setFloat(&cfg.Server.RateLimitRPS, "RATE_LIMIT_RPS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Server.RateBurst, "RATE_BURST"); err != nil {
		return err
	}

	setString(&cfg.Database.Host, "DB_HOST")
	if err := setInt(&cfg.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	setString(&cfg.Auth.JWKSURL, "AUTH_JWKS_URL")
	setStringList(&cfg.Auth.Audiences, "AUTH_AUDIENCES")
	setString(&cfg.Auth.Issuer, "AUTH_ISSUER")
	setString(&cfg.Auth.DemoSecret, "AUTH_DEMO_SECRET")
	setString(&cfg.Auth.DecryptionKeyPEM, "AUTH_DECRYPTION_KEY_PEM")

	setString(&cfg.Vault.Secret, "VAULT_SECRET")
	setString(&cfg.Vault.KMSKeyName, "VAULT_KMS_KEY_NAME")

	setString(&cfg.Aggregator.BaseURL, "AGGREGATOR_BASE_URL")
	setString(&cfg.Aggregator.ClientID, "AGGREGATOR_CLIENT_ID")
	setString(&cfg.Aggregator.Secret, "AGGREGATOR_SECRET")

	setBool(&cfg.Scheduler.Enabled, "SCHEDULER_ENABLED")
	setStringList(&cfg.Scheduler.ScheduleTimes, "SCHEDULER_TIMES")
	if err := setInt(&cfg.Scheduler.WorkerCount, "SCHEDULER_WORKERS"); err != nil {
		return err
	}
	setString(&cfg.Scheduler.JobDelayRaw, "SCHEDULER_JOB_DELAY")
	if err := setInt(&cfg.Scheduler.QueueSize, "SCHEDULER_QUEUE_SIZE"); err != nil {
		return err
	}
	setBool(&cfg.Scheduler.RunOnStartup, "SCHEDULER_RUN_ON_STARTUP")

	setBool(&cfg.TLS.Enabled, "TLS_ENABLED")
	setString(&cfg.TLS.CertPath, "TLS_CERT_PATH")
	setString(&cfg.TLS.KeyPath, "TLS_KEY_PATH")
	setBool(&cfg.TLS.RedirectHTTP, "TLS_REDIRECT_HTTP")

	setString(&cfg.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")

	setString(&cfg.Insights.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Insights.Model, "GEMINI_MODEL")

	setString(&cfg.Messages.Path, "MESSAGES_FILE")

	setBool(&cfg.Telemetry.Enabled, "OTEL_ENABLED")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_ENDPOINT")

	return nil
}

func validate(cfg *Config) error {
	if cfg.Auth.JWKSURL == "" && cfg.Auth.DemoSecret == "" {
		return fmt.Errorf("either AUTH_JWKS_URL or AUTH_DEMO_SECRET is required")
	}
	if cfg.Vault.Secret == "" && cfg.Vault.KMSKeyName == "" {
		return fmt.Errorf("either VAULT_SECRET or VAULT_KMS_KEY_NAME is required")
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS is enabled")
		}
	}
	for _, at := range cfg.Scheduler.ScheduleTimes {
		if _, err := time.Parse("15:04", strings.TrimSpace(at)); err != nil {
			return fmt.Errorf("invalid schedule time %q: want HH:MM", at)
		}
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setStringList(dst *[]string, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setFloat(dst *float64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}
