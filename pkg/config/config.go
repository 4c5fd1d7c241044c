package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. NIFTYPULSE_MODE.
const EnvPrefix = "NIFTYPULSE"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	// Mode selects the ingestion engine: poll or live.
	Mode string `yaml:"mode" default:"poll" validate:"oneof=poll live"`

	Log struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
	} `yaml:"log"`

	Server struct {
		Enabled         *bool         `yaml:"enabled" default:"true"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"5"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"10"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`

	Instruments []Instrument `yaml:"instruments" validate:"required,min=1,dive"`

	Ingestion struct {
		Interval     string        `yaml:"interval" default:"1m" validate:"oneof=1m 5m 15m"`
		Venue        string        `yaml:"venue" default:"NSE"`
		PollInterval time.Duration `yaml:"poll_interval" default:"10s"`
		RunDuration  time.Duration `yaml:"run_duration"`
		CycleTimeout time.Duration `yaml:"cycle_timeout" default:"8s"`
		QueueSize    int           `yaml:"queue_size" default:"64" validate:"gt=0"`
		Retry        struct {
			MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
			MinBackoff  time.Duration `yaml:"min_backoff" default:"200ms"`
			MaxBackoff  time.Duration `yaml:"max_backoff" default:"2s"`
		} `yaml:"retry"`
	} `yaml:"ingestion"`

	Feed struct {
		Provider       string        `yaml:"provider" default:"upstox" validate:"oneof=upstox kite"`
		Mode           string        `yaml:"mode" default:"full"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"feed"`

	Upstox struct {
		BaseURL     string        `yaml:"base_url" default:"https://api.upstox.com"`
		AccessToken string        `yaml:"access_token"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
		RPS         float64       `yaml:"rps" default:"10"`
		Burst       int           `yaml:"burst" default:"5"`
	} `yaml:"upstox"`

	Kite struct {
		APIKey      string `yaml:"api_key"`
		AccessToken string `yaml:"access_token"`
	} `yaml:"kite"`

	Sentiment struct {
		// Provider "chain" derives sentiment locally, "http" calls BaseURL.
		Provider string        `yaml:"provider" default:"chain" validate:"oneof=chain http"`
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"sentiment"`

	Oscillator struct {
		Window  int     `yaml:"window" default:"14" validate:"gte=2"`
		Epsilon float64 `yaml:"epsilon" default:"0.001" validate:"gt=0"`
	} `yaml:"oscillator"`

	Structure struct {
		Lookback int `yaml:"lookback" default:"10" validate:"gte=4"`
	} `yaml:"structure"`

	Signal struct {
		EdgeTrigger *bool         `yaml:"edge_trigger" default:"true"`
		Cooldown    time.Duration `yaml:"cooldown"`
		TickSize    float64       `yaml:"tick_size" default:"0.05" validate:"gte=0"`
	} `yaml:"signal"`

	Storage struct {
		// Backend receives closed bars: clickhouse, postgres, kafka or none.
		Backend     string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse postgres kafka none"`
		BufferSize  int    `yaml:"buffer_size" default:"1024"`
		MaxAttempts int    `yaml:"max_attempts" default:"3"`
		// ReadFrom is the BarStore behind the read API and the kafka sink.
		ReadFrom string `yaml:"read_from" default:"clickhouse" validate:"oneof=clickhouse postgres"`
	} `yaml:"storage"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"bars"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`

	Postgres struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"5432"`
		User     string `yaml:"user" default:"postgres"`
		Password string `yaml:"password"`
		Database string `yaml:"database" default:"niftypulse"`
		PoolMax  int    `yaml:"pool_max" default:"8"`
	} `yaml:"postgres"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Bars    string `yaml:"bars" default:"niftypulse.bars"`
			Intents string `yaml:"intents" default:"niftypulse.intents"`
			Events  string `yaml:"events" default:"niftypulse.events"`
			Logs    string `yaml:"logs" default:"niftypulse.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"niftypulse-bars"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		Prefix   string        `yaml:"prefix" default:"niftypulse"`
		LockTTL  time.Duration `yaml:"lock_ttl" default:"30s"`
	} `yaml:"redis"`

	Cache struct {
		ChainTTL  time.Duration `yaml:"chain_ttl" default:"5s"`
		RegimeTTL time.Duration `yaml:"regime_ttl" default:"12h"`
	} `yaml:"cache"`

	Journal struct {
		Path string `yaml:"path" default:"data/journal.db"`
	} `yaml:"journal"`

	Backfill struct {
		Workers    int           `yaml:"workers" default:"1"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"backfill"`
}

// Instrument is one underlying with its key on each provider.
type Instrument struct {
	Ticker    string `yaml:"ticker" validate:"required"`
	UpstoxKey string `yaml:"upstox_key"`
	KiteToken string `yaml:"kite_token"`
	// Expiry pins the option expiry (YYYY-MM-DD); empty resolves the nearest.
	Expiry string `yaml:"expiry" validate:"omitempty,datetime=2006-01-02"`
}

// Overrides are the environment variables read after the file. Secrets
// belong here rather than in YAML.
type Overrides struct {
	Mode               string   `envconfig:"MODE"`
	LogLevel           string   `envconfig:"LOG_LEVEL"`
	FeedProvider       string   `envconfig:"FEED_PROVIDER"`
	StorageBackend     string   `envconfig:"STORAGE_BACKEND"`
	UpstoxAccessToken  string   `envconfig:"UPSTOX_ACCESS_TOKEN"`
	KiteAPIKey         string   `envconfig:"KITE_API_KEY"`
	KiteAccessToken    string   `envconfig:"KITE_ACCESS_TOKEN"`
	ClickHousePassword string   `envconfig:"CLICKHOUSE_PASSWORD"`
	PostgresPassword   string   `envconfig:"POSTGRES_PASSWORD"`
	RedisPassword      string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables, reading an optional .env first.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	var o Overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.apply(o)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) apply(o Overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Mode, o.Mode)
	set(&c.Log.Level, o.LogLevel)
	set(&c.Feed.Provider, o.FeedProvider)
	set(&c.Storage.Backend, o.StorageBackend)
	set(&c.Upstox.AccessToken, o.UpstoxAccessToken)
	set(&c.Kite.APIKey, o.KiteAPIKey)
	set(&c.Kite.AccessToken, o.KiteAccessToken)
	set(&c.ClickHouse.Password, o.ClickHousePassword)
	set(&c.Postgres.Password, o.PostgresPassword)
	set(&c.Redis.Password, o.RedisPassword)
	if len(o.KafkaBrokers) > 0 {
		c.Kafka.Brokers = o.KafkaBrokers
	}
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, in := range c.Instruments {
		if seen[in.Ticker] {
			return fmt.Errorf("instruments: duplicate ticker %s", in.Ticker)
		}
		seen[in.Ticker] = true
		// Option chains always come from Upstox.
		if in.UpstoxKey == "" {
			return fmt.Errorf("instruments: %s needs upstox_key", in.Ticker)
		}
		if c.Feed.Provider == "kite" && in.KiteToken == "" {
			return fmt.Errorf("instruments: %s needs kite_token for provider kite", in.Ticker)
		}
	}
	if c.Feed.Provider == "kite" && c.Kite.APIKey == "" {
		return fmt.Errorf("kite.api_key is required for provider kite")
	}
	if c.Storage.Backend == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("storage.backend kafka requires kafka.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.Sentiment.Provider == "http" && c.Sentiment.BaseURL == "" {
		return fmt.Errorf("sentiment.base_url is required for provider http")
	}
	if c.Ingestion.Retry.MaxBackoff < c.Ingestion.Retry.MinBackoff {
		return fmt.Errorf("ingestion.retry.max_backoff below min_backoff")
	}
	return nil
}

// EdgeTriggered reports the signal.edge_trigger setting.
func (c *Config) EdgeTriggered() bool {
	return c.Signal.EdgeTrigger == nil || *c.Signal.EdgeTrigger
}

// ServerEnabled reports whether the HTTP API should be started.
func (c *Config) ServerEnabled() bool {
	return c.Server.Enabled == nil || *c.Server.Enabled
}
