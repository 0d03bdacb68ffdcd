// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Crawler, Search, Persistence, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Crawler     CrawlerConfig     `yaml:"crawler"`
	Search      SearchConfig      `yaml:"search"`
	Rank        RankConfig        `yaml:"rank"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	SearchTimeout   time.Duration `yaml:"searchTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CrawlRatePerMinute caps POST /post requests per client address. Zero
	// disables the limit.
	CrawlRatePerMinute int `yaml:"crawlRatePerMinute"`
}

// CrawlerConfig controls the crawl scheduler, politeness gate and fetcher.
type CrawlerConfig struct {
	Workers       int           `yaml:"workers"`
	Limit         int           `yaml:"limit"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout"`
	PolicyTimeout time.Duration `yaml:"policyTimeout"`
	UserAgent     string        `yaml:"userAgent"`
	MaxBodyBytes  int64         `yaml:"maxBodyBytes"`
	// HostRate is the number of page requests per second allowed against a
	// single host. Zero disables pacing.
	HostRate  float64  `yaml:"hostRate"`
	HostBurst int      `yaml:"hostBurst"`
	Seeds     []string `yaml:"seeds"`
	// CrawlOnStartup runs one crawl pass over Seeds before the server accepts
	// traffic.
	CrawlOnStartup bool `yaml:"crawlOnStartup"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	MaxResults int `yaml:"maxResults"`
}

// RankConfig tunes the link-authority iteration run after every crawl.
type RankConfig struct {
	Damping       float64 `yaml:"damping"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"maxIterations"`
}

// PersistenceConfig selects the snapshot backend: "file", "postgres" or
// "sqlite".
type PersistenceConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig holds the database file location for the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
	CrawlEvents  string `yaml:"crawlEvents"`
}

// AnalyticsConfig toggles event collection and tunes the crawl event batcher.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// SnapshotInterval is how often the analytics consumer stores its
	// aggregated stats in Postgres.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for crawl runs.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects configurations the crawler cannot run with.
func (c *Config) Validate() error {
	if c.Crawler.Workers < 1 {
		return fmt.Errorf("crawler.workers must be positive, got %d", c.Crawler.Workers)
	}
	if c.Crawler.Limit < 1 {
		return fmt.Errorf("crawler.limit must be positive, got %d", c.Crawler.Limit)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.maxResults must be positive, got %d", c.Search.MaxResults)
	}
	if c.Rank.Damping <= 0 || c.Rank.Damping >= 1 {
		return fmt.Errorf("rank.damping must be in (0,1), got %g", c.Rank.Damping)
	}
	if c.Rank.MaxIterations < 1 {
		return fmt.Errorf("rank.maxIterations must be positive, got %d", c.Rank.MaxIterations)
	}
	switch c.Persistence.Backend {
	case "file", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	return nil
}

// defaultConfig returns a Config with the defaults used for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               3000,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       10 * time.Minute,
			SearchTimeout:      10 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			CrawlRatePerMinute: 6,
		},
		Crawler: CrawlerConfig{
			Workers:       10,
			Limit:         50,
			FetchTimeout:  5 * time.Second,
			PolicyTimeout: 5 * time.Second,
			UserAgent:     "crawlsearch/1.0",
			MaxBodyBytes:  10 * 1024 * 1024,
			HostRate:      0,
			HostBurst:     1,
			Seeds: []string{
				"https://www.wikipedia.org/",
				"https://www.bbc.com/news",
				"https://news.ycombinator.com/",
			},
			CrawlOnStartup: true,
		},
		Search: SearchConfig{
			MaxResults: 50,
		},
		Rank: RankConfig{
			Damping:       0.85,
			Tolerance:     1e-6,
			MaxIterations: 100,
		},
		Persistence: PersistenceConfig{
			Backend: "file",
			Path:    "web_crawler_data.json",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "crawlsearch",
			User:            "crawlsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "crawlsearch.db",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "crawlsearch-group",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
				CrawlEvents:  "crawl-events",
			},
		},
		Analytics: AnalyticsConfig{
			Enabled:          false,
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SE_CRAWLER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.Workers = n
		}
	}
	if v := os.Getenv("SE_CRAWLER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.Limit = n
		}
	}
	if v := os.Getenv("SE_CRAWLER_SEEDS"); v != "" {
		cfg.Crawler.Seeds = strings.Split(v, ",")
	}
	if v := os.Getenv("SE_CRAWLER_USER_AGENT"); v != "" {
		cfg.Crawler.UserAgent = v
	}
	if v := os.Getenv("SE_CRAWLER_CRAWL_ON_STARTUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Crawler.CrawlOnStartup = b
		}
	}
	if v := os.Getenv("SE_PERSISTENCE_BACKEND"); v != "" {
		cfg.Persistence.Backend = v
	}
	if v := os.Getenv("SE_PERSISTENCE_PATH"); v != "" {
		cfg.Persistence.Path = v
	}
	if v := os.Getenv("SE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SE_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("SE_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SE_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
	if v := os.Getenv("SE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
