package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type RateLimitPolicy struct {
	Max    int           `yaml:"max" validate:"gte=1"`
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

type Product struct {
	Price    float64 `yaml:"price" validate:"gt=0"`
	Category string  `yaml:"category" validate:"required"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	DataDir     string `yaml:"data_dir" default:"data" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		Topic  string `yaml:"topic" default:"simecon.logs"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Simulation struct {
		DayLength           time.Duration `yaml:"day_length" default:"20m" validate:"gt=0"`
		TickInterval        time.Duration `yaml:"tick_interval" default:"1s" validate:"gt=0"`
		FlushInterval       time.Duration `yaml:"flush_interval" default:"30s" validate:"gt=0"`
		RotationInterval    time.Duration `yaml:"rotation_interval" default:"1h" validate:"gt=0"`
		CleanupInterval     time.Duration `yaml:"cleanup_interval" default:"5m" validate:"gt=0"`
		RaidDecayInterval   time.Duration `yaml:"raid_decay_interval" default:"1m" validate:"gt=0"`
		MoneySupplyInterval time.Duration `yaml:"money_supply_interval" default:"5m" validate:"gt=0"`
		EventRefresh        time.Duration `yaml:"event_refresh_interval" default:"30s" validate:"gt=0"`
		Seed                int64         `yaml:"seed"`
	} `yaml:"simulation"`
	Ledger struct {
		OverdraftFloor     float64 `yaml:"overdraft_floor" validate:"lte=0"`
		MaxBalance         float64 `yaml:"max_balance" default:"1000000000" validate:"gt=0"`
		JournalMaxPerActor int     `yaml:"journal_max_per_actor" default:"1000" validate:"gte=1"`
		RetentionDays      int     `yaml:"retention_days" default:"90" validate:"gte=1"`
		Shards             int     `yaml:"shards" default:"64" validate:"gte=1"`
	} `yaml:"ledger"`
	RateLimit struct {
		Backend  string          `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Transfer RateLimitPolicy `yaml:"transfer"`
		Command  RateLimitPolicy `yaml:"command"`
		IdleTTL  time.Duration   `yaml:"idle_ttl" default:"10m" validate:"gt=0"`
	} `yaml:"rate_limit"`
	Pricing struct {
		AbsoluteMin   float64            `yaml:"absolute_min" default:"0.01" validate:"gt=0"`
		AbsoluteMax   float64            `yaml:"absolute_max" default:"1000000" validate:"gtfield=AbsoluteMin"`
		InflationHigh float64            `yaml:"inflation_high" default:"0.05"`
		DeflationHigh float64            `yaml:"deflation_high" default:"-0.02"`
		QuoteCacheTTL time.Duration      `yaml:"quote_cache_ttl" default:"5s"`
		QuoteCacheMax int                `yaml:"quote_cache_max" default:"10000" validate:"gte=1"`
		Products      map[string]Product `yaml:"products" validate:"dive"`
	} `yaml:"pricing"`
	Credit struct {
		MinBalance float64 `yaml:"min_balance" default:"1000" validate:"gte=0"`
	} `yaml:"credit"`
	Tax struct {
		PropertyPerChunk float64 `yaml:"property_per_chunk" default:"50" validate:"gte=0"`
		PeriodDays       int     `yaml:"period_days" default:"7" validate:"gte=1"`
	} `yaml:"tax"`
	Overdraft struct {
		Enabled    bool    `yaml:"enabled"`
		Limit      float64 `yaml:"limit" default:"-5000" validate:"lt=0"`
		Warning    float64 `yaml:"warning" default:"-2500" validate:"lte=0"`
		WeeklyRate float64 `yaml:"weekly_rate" default:"0.25" validate:"gte=0,lte=1"`
	} `yaml:"overdraft"`
	Savings struct {
		MinDeposit   float64 `yaml:"min_deposit" default:"1000" validate:"gt=0"`
		MaxPerActor  float64 `yaml:"max_per_actor" default:"100000" validate:"gtfield=MinDeposit"`
		WeeklyRate   float64 `yaml:"weekly_rate" default:"0.05" validate:"gte=0,lte=1"`
		LockDays     int     `yaml:"lock_days" default:"28" validate:"gte=0"`
		EarlyPenalty float64 `yaml:"early_penalty" default:"0.10" validate:"gte=0,lte=1"`
	} `yaml:"savings"`
	Relay struct {
		Backend      string        `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		BufferSize   int           `yaml:"buffer_size" default:"10000" validate:"gte=1"`
		BatchSize    int           `yaml:"batch_size" default:"500" validate:"gte=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s" validate:"gt=0"`
	} `yaml:"relay"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"simecon.transactions"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			PricingEvents string `yaml:"pricing_events" default:"simecon.pricing-events"`
			Enforcement   string `yaml:"enforcement" default:"simecon.enforcement"`
			Market        string `yaml:"market" default:"simecon.market"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"1000"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"simecon"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"simecon.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"simecon"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		Archive          bool          `yaml:"archive"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"simecon"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s" validate:"gt=0"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Load reads a YAML configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, fmt.Errorf("defaults config: %w", err)
	}
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
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	// zero-valued nested policies get the stock limits
	if c.RateLimit.Transfer.Max == 0 {
		c.RateLimit.Transfer = RateLimitPolicy{Max: 10, Window: time.Second}
	}
	if c.RateLimit.Command.Max == 0 {
		c.RateLimit.Command = RateLimitPolicy{Max: 10, Window: time.Minute}
	}
	if c.Overdraft.Enabled && c.Ledger.OverdraftFloor == 0 {
		c.Ledger.OverdraftFloor = c.Overdraft.Limit
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SIMECON_DATA_DIR"); v != "" {
		c.DataDir = v
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
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Overdraft.Enabled && c.Overdraft.Warning < c.Overdraft.Limit {
		return fmt.Errorf("overdraft.warning must be above overdraft.limit")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Relay.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("relay.backend kafka requires kafka.brokers")
	}
	return nil
}
