package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"StockWatch/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Notion struct {
		Token      string        `yaml:"token"`
		DatabaseID string        `yaml:"database_id"`
		BaseURL    string        `yaml:"base_url"`
		Version    string        `yaml:"version"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"notion"`
	MarketData struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		MaxRPS  float64       `yaml:"max_rps"`
	} `yaml:"market_data"`
	Discord struct {
		Enabled    bool          `yaml:"enabled"`
		WebhookURL string        `yaml:"webhook_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"discord"`
	Watcher struct {
		Job         string        `yaml:"job"`
		Keep        int           `yaml:"keep"`
		Workers     int           `yaml:"workers"`
		CallTimeout time.Duration `yaml:"call_timeout"`
		RunTimeout  time.Duration `yaml:"run_timeout"`
		QuoteTTL    time.Duration `yaml:"quote_ttl"`
	} `yaml:"watcher"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			BatchBytes   int           `yaml:"batch_bytes"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
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
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		LockKey  string        `yaml:"lock_key"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Credentials are expected from the environment in CI/scheduler setups.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("NOTION_TOKEN"); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID"); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Discord.WebhookURL = v
		c.Discord.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("WATCH_JOB"); v != "" {
		c.Watcher.Job = v
	}
	if v := os.Getenv("WATCH_KEEP"); v != "" {
		c.Watcher.Keep = util.ParseIntDefault(v, c.Watcher.Keep)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Notion.Timeout <= 0 {
		c.Notion.Timeout = 15 * time.Second
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 10 * time.Second
	}
	if c.MarketData.MaxRPS <= 0 {
		c.MarketData.MaxRPS = 5
	}
	if c.Discord.Timeout <= 0 {
		c.Discord.Timeout = 10 * time.Second
	}
	if c.Watcher.Workers <= 0 {
		c.Watcher.Workers = 4
	}
	if c.Watcher.Keep <= 0 {
		c.Watcher.Keep = 30
	}
	if c.Watcher.CallTimeout <= 0 {
		c.Watcher.CallTimeout = 15 * time.Second
	}
	if c.Watcher.RunTimeout <= 0 {
		c.Watcher.RunTimeout = 5 * time.Minute
	}
	if c.Watcher.QuoteTTL <= 0 {
		c.Watcher.QuoteTTL = time.Minute
	}
	if c.Redis.LockKey == "" {
		c.Redis.LockKey = "stockwatch:run_lock"
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 10 * time.Minute
	}
}

// Validate checks if the configuration is valid. A failure here is fatal
// and stops the process before the engine touches any collaborator.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Notion.Token == "" {
		return fmt.Errorf("notion.token is required")
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion.database_id is required")
	}
	if c.Watcher.Job == "" {
		return fmt.Errorf("watcher.job is required")
	}
	if c.Watcher.Keep < 1 {
		return fmt.Errorf("watcher.keep must be >= 1, got %d", c.Watcher.Keep)
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	return nil
}
