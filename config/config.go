package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/* Config is loaded from an optional .env file plus the environment
 * Getters apply defaults so a zero Config is usable in tests
 */

type Config struct {
	Port            string `mapstructure:"PORT"`
	QueueDriver     string `mapstructure:"QUEUE_DRIVER"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	NatsURL         string `mapstructure:"NATS_URL"`
	QueuesFile      string `mapstructure:"QUEUES_FILE"`
	WorkerID        string `mapstructure:"WORKER_ID"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	MetaVerifyToken string `mapstructure:"META_VERIFY_TOKEN"`
	AgentURL        string `mapstructure:"AGENT_SERVICE_URL"`
	MessageURL      string `mapstructure:"MESSAGE_SERVICE_URL"`
	EmailURL        string `mapstructure:"EMAIL_SERVICE_URL"`
	HaltDisabled    bool   `mapstructure:"HALT_DISABLED_WORKFLOWS"`
	SchedulerEvery  string `mapstructure:"SCHEDULER_INTERVAL"`
	Concurrency     int    `mapstructure:"WORKER_CONCURRENCY"`
	JobTimeout      string `mapstructure:"JOB_TIMEOUT"`
	MaxHops         int    `mapstructure:"MAX_HOPS"`
	AlertFailures   int    `mapstructure:"ALERT_FAILURE_THRESHOLD"`
	AlertQueueLen   int64  `mapstructure:"ALERT_QUEUE_THRESHOLD"`
	AlertWindow     string `mapstructure:"ALERT_WINDOW"`
	MetricsAddr     string `mapstructure:"METRICS_ADDR"`

	lookup func(string) (string, bool)
}

var keys = []string{
	"PORT", "QUEUE_DRIVER", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "DATABASE_URL", "NATS_URL",
	"QUEUES_FILE", "WORKER_ID", "LOG_LEVEL", "META_VERIFY_TOKEN", "AGENT_SERVICE_URL",
	"MESSAGE_SERVICE_URL", "EMAIL_SERVICE_URL", "HALT_DISABLED_WORKFLOWS", "SCHEDULER_INTERVAL",
	"WORKER_CONCURRENCY", "JOB_TIMEOUT", "MAX_HOPS", "ALERT_FAILURE_THRESHOLD",
	"ALERT_QUEUE_THRESHOLD", "ALERT_WINDOW", "METRICS_ADDR",
}

func GetConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("QUEUE_DRIVER", "redis")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("QUEUES_FILE", "queues.yaml")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SCHEDULER_INTERVAL", "10s")
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("JOB_TIMEOUT", "30s")
	v.SetDefault("MAX_HOPS", 100)
	v.SetDefault("ALERT_FAILURE_THRESHOLD", 10)
	v.SetDefault("ALERT_QUEUE_THRESHOLD", 1000)
	v.SetDefault("ALERT_WINDOW", "5m")
	// AutomaticEnv only resolves keys viper knows about
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	config.lookup = func(key string) (string, bool) {
		if !v.IsSet(key) {
			if val, ok := os.LookupEnv(key); ok {
				return val, true
			}
			return "", false
		}
		return v.GetString(key), true
	}
	return &config, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.GetQueueDriver() {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid QUEUE_DRIVER: %s (must be 'redis' or 'memory')", c.QueueDriver)
	}
	for key, raw := range map[string]string{
		"SCHEDULER_INTERVAL": c.SchedulerEvery,
		"JOB_TIMEOUT":        c.JobTimeout,
		"ALERT_WINDOW":       c.AlertWindow,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", key, raw)
		}
	}
	return nil
}

func (c *Config) GetPort() string {
	if c.Port == "" {
		return "8080"
	}
	return c.Port
}

func (c *Config) GetQueueDriver() string {
	if c.QueueDriver == "" {
		return "redis"
	}
	return strings.ToLower(c.QueueDriver)
}

func (c *Config) GetRedisAddr() string {
	if c.RedisAddr == "" {
		return "localhost:6379"
	}
	return c.RedisAddr
}

func (c *Config) GetQueuesFile() string {
	if c.QueuesFile == "" {
		return "queues.yaml"
	}
	return c.QueuesFile
}

// GetWorkerID falls back to the hostname
func (c *Config) GetWorkerID() string {
	if c.WorkerID != "" {
		return c.WorkerID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return parseDuration(c.SchedulerEvery, 10*time.Second)
}

func (c *Config) GetWorkerConcurrency() int {
	if c.Concurrency < 1 {
		return 5
	}
	return c.Concurrency
}

func (c *Config) GetJobTimeout() time.Duration {
	return parseDuration(c.JobTimeout, 30*time.Second)
}

func (c *Config) GetMaxHops() int {
	if c.MaxHops < 1 {
		return 100
	}
	return c.MaxHops
}

func (c *Config) GetAlertFailureThreshold() int {
	if c.AlertFailures < 1 {
		return 10
	}
	return c.AlertFailures
}

func (c *Config) GetAlertQueueThreshold() int64 {
	if c.AlertQueueLen < 1 {
		return 1000
	}
	return c.AlertQueueLen
}

func (c *Config) GetAlertWindow() time.Duration {
	return parseDuration(c.AlertWindow, 5*time.Minute)
}

/* SecretFor resolves the signing secret of a tenant's provider
 * Lookup order: {PROVIDER}_WEBHOOK_SECRET_{TENANT}, then {PROVIDER}_WEBHOOK_SECRET
 */
func (c *Config) SecretFor(tenantID, provider string) (string, bool) {
	base := envKey(provider) + "_WEBHOOK_SECRET"
	if tenantID != "" {
		if s, ok := c.get(base + "_" + envKey(tenantID)); ok && s != "" {
			return s, true
		}
	}
	if s, ok := c.get(base); ok && s != "" {
		return s, true
	}
	return "", false
}

// Set overrides a dynamic key such as a provider secret
func (c *Config) Set(key, value string) {
	prev := c.lookup
	c.lookup = func(k string) (string, bool) {
		if k == key {
			return value, true
		}
		if prev == nil {
			return "", false
		}
		return prev(k)
	}
}

func (c *Config) get(key string) (string, bool) {
	if c.lookup == nil {
		return os.LookupEnv(key)
	}
	return c.lookup(key)
}

func envKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
