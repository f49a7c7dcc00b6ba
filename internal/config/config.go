package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "NEWSPIPE_CONFIG"
	mongoURIEnv         = "MONGODB_URI"
	mongoDBNameEnv      = "MONGODB_DB_NAME"
	mongoCollectionEnv  = "MONGODB_COLLECTION_ARTICLES"
	postgresURIEnv      = "POSTGRESQL_DB_URI"
	sentimentTableEnv   = "POSTGRESQL_SENTIMENT_ANALYSIS_TABLE"
	pollIntervalEnv     = "POLL_INTERVAL_SECONDS"
	crawlIntervalEnv    = "CRAWL_INTERVAL_SECONDS"
	consumerStrategyEnv = "CONSUMER_STRATEGY"
	inferenceURLEnv     = "INFERENCE_URL"
	inferenceAPIKeyEnv  = "INFERENCE_API_KEY"
	tokenStoreEnv       = "RESUME_TOKEN_STORE"
	redisAddrEnv        = "REDIS_ADDR"
	redisPasswordEnv    = "REDIS_PASSWORD"
	metricsAddrEnv      = "METRICS_ADDR"
	logLevelEnv         = "LOG_LEVEL"
	logFormatEnv        = "LOG_FORMAT"
	maxEventAttemptsEnv = "CHANGEFEED_MAX_ATTEMPTS"
)

// Consumer strategies.
const (
	StrategyPoll         = "poll"
	StrategyChangeStream = "changestream"
)

// Resume token backends.
const (
	TokenStoreMongo = "mongo"
	TokenStoreRedis = "redis"
)

// Config holds high-level settings required across both processes.
type Config struct {
	Mongo     MongoConfig     `yaml:"mongo"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Inference InferenceConfig `yaml:"inference"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// MongoConfig describes the article document store.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// PostgresConfig describes the sentiment fact store.
type PostgresConfig struct {
	URI            string `yaml:"uri"`
	SentimentTable string `yaml:"sentimentTable"`
}

// DSN strips the JDBC prefix older deployments still carry.
func (p PostgresConfig) DSN() string {
	return strings.TrimPrefix(p.URI, "jdbc:")
}

// ConsumerConfig selects how unanalyzed articles are discovered.
type ConsumerConfig struct {
	Strategy            string `yaml:"strategy"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	TokenStore          string `yaml:"tokenStore"`
	CheckpointName      string `yaml:"checkpointName"`
	// MaxEventAttempts bounds retries of one change event before its token is saved anyway.
	MaxEventAttempts    int    `yaml:"maxEventAttempts"`
}

// PollInterval is the sleep between batches and the reconnect backoff.
func (c ConsumerConfig) PollInterval() time.Duration {
	return seconds(c.PollIntervalSeconds)
}

// CrawlConfig carries the default crawl cadence.
type CrawlConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
}

// InferenceConfig points at the NER and sentiment model service.
type InferenceConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

// RedisConfig is only needed when resume tokens live in Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig describes a single crawl source and its strategy kind.
type SourceConfig struct {
	Name            string            `yaml:"name"`
	Kind            string            `yaml:"kind"`
	IntervalSeconds int               `yaml:"intervalSeconds"`
	Options         map[string]string `yaml:"options"`
}

// Interval falls back to the global crawl cadence.
func (s SourceConfig) Interval(fallback int) time.Duration {
	if s.IntervalSeconds > 0 {
		return seconds(s.IntervalSeconds)
	}
	return seconds(fallback)
}

// Load reads .env files, YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path taking precedence over NEWSPIPE_CONFIG.
func LoadFile(path string) Config {
	loadEnvFiles()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func loadEnvFiles() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("config: cannot load %s: %v", envFile, err)
		}
		return
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			log.Printf("config: cannot load %s: %v", name, err)
		}
	}
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Mongo.URI, mongoURIEnv)
	setString(&c.Mongo.Database, mongoDBNameEnv)
	setString(&c.Mongo.Collection, mongoCollectionEnv)
	setString(&c.Postgres.URI, postgresURIEnv)
	setString(&c.Postgres.SentimentTable, sentimentTableEnv)
	setInt(&c.Consumer.PollIntervalSeconds, pollIntervalEnv)
	setInt(&c.Crawl.IntervalSeconds, crawlIntervalEnv)
	setInt(&c.Consumer.MaxEventAttempts, maxEventAttemptsEnv)
	setString(&c.Consumer.Strategy, consumerStrategyEnv)
	setString(&c.Consumer.TokenStore, tokenStoreEnv)
	setString(&c.Inference.URL, inferenceURLEnv)
	setString(&c.Inference.APIKey, inferenceAPIKeyEnv)
	setString(&c.Redis.Addr, redisAddrEnv)
	setString(&c.Redis.Password, redisPasswordEnv)
	setString(&c.Metrics.Addr, metricsAddrEnv)
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.Format, logFormatEnv)
}

func (c *Config) normalize() {
	defaults := defaultConfig()

	c.Consumer.Strategy = strings.ToLower(strings.TrimSpace(c.Consumer.Strategy))
	if c.Consumer.Strategy != StrategyPoll && c.Consumer.Strategy != StrategyChangeStream {
		log.Printf("config: unknown consumer strategy %q, reverting to %s", c.Consumer.Strategy, StrategyPoll)
		c.Consumer.Strategy = StrategyPoll
	}

	c.Consumer.TokenStore = strings.ToLower(strings.TrimSpace(c.Consumer.TokenStore))
	if c.Consumer.TokenStore != TokenStoreMongo && c.Consumer.TokenStore != TokenStoreRedis {
		c.Consumer.TokenStore = TokenStoreMongo
	}

	if c.Consumer.PollIntervalSeconds <= 0 {
		c.Consumer.PollIntervalSeconds = defaults.Consumer.PollIntervalSeconds
	}
	if c.Consumer.MaxEventAttempts <= 0 {
		c.Consumer.MaxEventAttempts = defaults.Consumer.MaxEventAttempts
	}
	if c.Crawl.IntervalSeconds <= 0 {
		c.Crawl.IntervalSeconds = defaults.Crawl.IntervalSeconds
	}
	if len(c.Sources) == 0 {
		c.Sources = defaults.Sources
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Mongo.URI, override.Mongo.URI)
	mergeString(&base.Mongo.Database, override.Mongo.Database)
	mergeString(&base.Mongo.Collection, override.Mongo.Collection)

	mergeString(&base.Postgres.URI, override.Postgres.URI)
	mergeString(&base.Postgres.SentimentTable, override.Postgres.SentimentTable)

	mergeString(&base.Consumer.Strategy, override.Consumer.Strategy)
	mergeString(&base.Consumer.TokenStore, override.Consumer.TokenStore)
	mergeString(&base.Consumer.CheckpointName, override.Consumer.CheckpointName)
	if override.Consumer.PollIntervalSeconds > 0 {
		base.Consumer.PollIntervalSeconds = override.Consumer.PollIntervalSeconds
	}
	if override.Consumer.MaxEventAttempts > 0 {
		base.Consumer.MaxEventAttempts = override.Consumer.MaxEventAttempts
	}
	if override.Crawl.IntervalSeconds > 0 {
		base.Crawl.IntervalSeconds = override.Crawl.IntervalSeconds
	}

	mergeString(&base.Inference.URL, override.Inference.URL)
	mergeString(&base.Inference.APIKey, override.Inference.APIKey)
	mergeString(&base.Redis.Addr, override.Redis.Addr)
	mergeString(&base.Redis.Password, override.Redis.Password)
	mergeString(&base.Metrics.Addr, override.Metrics.Addr)
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017/",
			Database:   "stock_analysis",
			Collection: "articles",
		},
		Postgres: PostgresConfig{
			URI:            "postgres://localhost:5432/stock_analysis?sslmode=disable",
			SentimentTable: "sentiment_analysis",
		},
		Consumer: ConsumerConfig{
			Strategy:            StrategyPoll,
			PollIntervalSeconds: 5,
			TokenStore:          TokenStoreMongo,
			CheckpointName:      "article-enrichment",
			MaxEventAttempts:    3,
		},
		Crawl:     CrawlConfig{IntervalSeconds: 60},
		Inference: InferenceConfig{URL: "http://localhost:8000"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Sources: []SourceConfig{
			{Name: "coindesk", Kind: "coindesk"},
			{Name: "vietstock", Kind: "vietstock"},
		},
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config: %s=%q is not an integer, ignoring", env, v)
		return
	}
	*dst = n
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
