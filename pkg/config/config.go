package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"CandleSync/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Collector struct {
			Enabled  bool          `yaml:"enabled"`
			Interval time.Duration `yaml:"interval" default:"1m"`
			MaxItems int           `yaml:"max_items" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Sync struct {
		Cron        string        `yaml:"cron" default:"*/15 * * * *" validate:"required"`
		RunOnStart  bool          `yaml:"run_on_start" default:"true"`
		Parallelism int           `yaml:"parallelism" default:"5" validate:"gt=0"`
		MaxRetry    int           `yaml:"max_retry" default:"3" validate:"gt=0"`
		AsyncInsert bool          `yaml:"async_insert"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"30m"`
		// Series maps each symbol to the period keys synchronized for it.
		Series map[string][]string `yaml:"series"`
	} `yaml:"sync"`
	Source struct {
		Type  string `yaml:"type" default:"huobi" validate:"oneof=huobi binance"`
		Huobi struct {
			BaseURL   string        `yaml:"base_url" default:"https://api.huobi.pro" validate:"url"`
			Timeout   time.Duration `yaml:"timeout" default:"10s"`
			RateLimit int           `yaml:"rate_limit" default:"10"`
			Burst     int           `yaml:"burst" default:"10"`
		} `yaml:"huobi"`
		Binance struct {
			APIKey    string        `yaml:"api_key"`
			SecretKey string        `yaml:"secret_key"`
			BaseURL   string        `yaml:"base_url"`
			Timeout   time.Duration `yaml:"timeout" default:"10s"`
			RateLimit int           `yaml:"rate_limit" default:"20"`
			Burst     int           `yaml:"burst" default:"20"`
		} `yaml:"binance"`
	} `yaml:"source"`
	Store struct {
		Type string `yaml:"type" default:"mongo" validate:"oneof=mongo clickhouse"`
	} `yaml:"store"`
	Mongo struct {
		URI            string        `yaml:"uri" default:"mongodb://localhost:27017"`
		Database       string        `yaml:"database" default:"crypto"`
		Collection     string        `yaml:"collection" default:"candles"`
		UseSSL         bool          `yaml:"use_ssl"`
		CreateIndexes  bool          `yaml:"create_indexes" default:"true"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	} `yaml:"mongo"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"crypto"`
		Table            string        `yaml:"table" default:"candles"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"candlesync.runs"`
		LogTopic     string   `yaml:"log_topic" default:"candlesync.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"candlesync:"`
	} `yaml:"redis"`
}

// DefaultSeries is used when the configuration names no series.
func DefaultSeries() map[string][]string {
	periods := []string{"1d", "4h", "1h", "15m", "5m", "1m"}
	out := make(map[string][]string)
	for _, base := range []string{"btc", "ltc", "eth", "eos", "xtz", "trx", "xrp", "bch", "bsv", "dash", "ht"} {
		out[base+"usdt"] = append([]string(nil), periods...)
	}
	return out
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path yields the defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("NOSQL_CONNECTION_STRING"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Mongo.Database = v
		c.ClickHouse.Database = v
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		c.Mongo.Collection = v
		c.ClickHouse.Table = v
	}
	c.Sync.Parallelism = util.ParseIntDefault(os.Getenv("EX_API_PARALLEL_TASKS"), c.Sync.Parallelism)
	c.Sync.MaxRetry = util.ParseIntDefault(os.Getenv("EX_API_MAX_RETRY"), c.Sync.MaxRetry)
	c.Sync.AsyncInsert = util.ParseBoolDefault(os.Getenv("ALLOW_ASYNC_INSERT"), c.Sync.AsyncInsert)
	c.Mongo.UseSSL = util.ParseBoolDefault(os.Getenv("USE_SSL"), c.Mongo.UseSSL)
	c.Mongo.CreateIndexes = util.ParseBoolDefault(os.Getenv("CREATE_DEFAULT_INDEXES"), c.Mongo.CreateIndexes)
	if v := os.Getenv("SYNC_CRON"); v != "" {
		c.Sync.Cron = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("QUOTE_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := util.SplitList(os.Getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.Kafka.Brokers = v
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	// defaults go first so explicit zero values in the file survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(c.Sync.Series) == 0 {
		c.Sync.Series = DefaultSeries()
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for sym, periods := range c.Sync.Series {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("sync.series: empty symbol")
		}
		if len(periods) == 0 {
			return fmt.Errorf("sync.series.%s: no periods", sym)
		}
	}
	if c.Store.Type == "mongo" && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required when store.type is 'mongo'")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
