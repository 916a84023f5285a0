package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxConcurrency = 5
	DefaultLookbackDays   = 365
	DefaultTopK           = 5
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled"`
		Path          string        `yaml:"path"`
		SlowThreshold time.Duration `yaml:"slow_threshold"`
	} `yaml:"metrics"`
	Scheduler struct {
		MaxConcurrency int `yaml:"max_concurrency"`
		LookbackDays   int `yaml:"lookback_days"`
		TopK           int `yaml:"top_k"`
	} `yaml:"scheduler"`
	Providers struct {
		Eastmoney ProviderConfig `yaml:"eastmoney"`
		Yahoo     ProviderConfig `yaml:"yahoo"`
		Cache     struct {
			Enabled bool          `yaml:"enabled"`
			Backend string        `yaml:"backend"` // memory or redis
			TTL     time.Duration `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"providers"`
	Narrative struct {
		Provider    string        `yaml:"provider"` // openai, gemini, claude, none
		APIURL      string        `yaml:"api_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
	} `yaml:"narrative"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		FragmentTopic    string   `yaml:"fragment_topic"`
		ScanRequestTopic string   `yaml:"scan_request_topic"`
		LogTopic         string   `yaml:"log_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	ScanSchedule struct {
		Jobs []ScanJob `yaml:"jobs"`
	} `yaml:"scan_schedule"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit int           `yaml:"rps"`
	Retries   int           `yaml:"retries"`
}

// ScanJob is a batch scan run on a cron spec.
type ScanJob struct {
	Name     string   `yaml:"name"`
	Spec     string   `yaml:"spec"`
	Symbols  []string `yaml:"symbols"`
	Market   string   `yaml:"market"`
	MinScore int      `yaml:"min_score"`
	Stream   bool     `yaml:"stream"`
}

var (
	narrativeProviders = []string{"openai", "gemini", "claude", "none"}
	markets            = []string{"A", "HK", "US", "ETF", "LOF"}
)

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("NARRATIVE_API_KEY"); v != "" {
		c.Narrative.APIKey = v
	}
	if v := getenv("NARRATIVE_API_URL"); v != "" {
		c.Narrative.APIURL = v
	}
	if v := getenv("NARRATIVE_PROVIDER"); v != "" {
		c.Narrative.Provider = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Scheduler.MaxConcurrency <= 0 {
		c.Scheduler.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Scheduler.LookbackDays <= 0 {
		c.Scheduler.LookbackDays = DefaultLookbackDays
	}
	if c.Scheduler.TopK <= 0 {
		c.Scheduler.TopK = DefaultTopK
	}
	if c.Providers.Cache.Backend == "" {
		c.Providers.Cache.Backend = "memory"
	}
	if c.Providers.Cache.TTL == 0 {
		c.Providers.Cache.TTL = 10 * time.Minute
	}
	if c.Narrative.Provider == "" {
		c.Narrative.Provider = "openai"
	}
	if c.Narrative.Timeout == 0 {
		c.Narrative.Timeout = 60 * time.Second
	}
	if c.Narrative.MaxTokens == 0 {
		c.Narrative.MaxTokens = 1024
	}
	if c.Kafka.FragmentTopic == "" {
		c.Kafka.FragmentTopic = "stockpulse.fragments"
	}
	if c.Kafka.ScanRequestTopic == "" {
		c.Kafka.ScanRequestTopic = "stockpulse.scan-requests"
	}
	if c.Kafka.LogTopic == "" {
		c.Kafka.LogTopic = "stockpulse.logs"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "stockpulse"
	}
	for i := range c.ScanSchedule.Jobs {
		if c.ScanSchedule.Jobs[i].Market == "" {
			c.ScanSchedule.Jobs[i].Market = "A"
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if !contains(narrativeProviders, c.Narrative.Provider) {
		return fmt.Errorf("narrative.provider must be one of %v, got '%s'", narrativeProviders, c.Narrative.Provider)
	}
	if c.Providers.Cache.Backend != "memory" && c.Providers.Cache.Backend != "redis" {
		return fmt.Errorf("providers.cache.backend must be 'memory' or 'redis', got '%s'", c.Providers.Cache.Backend)
	}
	if c.Providers.Cache.Enabled && c.Providers.Cache.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when the redis cache backend is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	for i, job := range c.ScanSchedule.Jobs {
		if job.Spec == "" {
			return fmt.Errorf("scan_schedule.jobs[%d].spec is required", i)
		}
		if len(job.Symbols) == 0 {
			return fmt.Errorf("scan_schedule.jobs[%d].symbols cannot be empty", i)
		}
		if !contains(markets, job.Market) {
			return fmt.Errorf("scan_schedule.jobs[%d].market must be one of %v, got '%s'", i, markets, job.Market)
		}
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
