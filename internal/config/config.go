package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// TrustedProxies may set X-Forwarded-For; empty means the peer address is the client.
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN               string
	MaxOpen           int
	MaxIdle           int
	ConnMaxLifetime   time.Duration
	ConnectTimeout    time.Duration
	HealthCheckPeriod time.Duration
	StatementTimeout  time.Duration
	AutoMigrate       bool
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

type SecurityConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	HashConcurrency int
	LoginAttempts   int
	LoginWindow     time.Duration
}

type EventsConfig struct {
	Timezone      string
	MaxImageBytes int64
}

type DescriberConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type JobsConfig struct {
	SessionSweep string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Queue            QueueConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Events           EventsConfig
	Describer        DescriberConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

// Location resolves Events.Timezone; an empty or unknown zone falls back to time.Local.
func (c *AppConfig) Location() *time.Location {
	if c.Events.Timezone == "" || strings.EqualFold(c.Events.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Events.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Mode names the process loading the config; each validates only the
// settings it uses.
type Mode string

const (
	ModeAPI     Mode = "api"
	ModeWorker  Mode = "worker"
	ModeMigrate Mode = "migrate"
)

func Load(mode Mode) (*AppConfig, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("EVENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate(mode Mode) error {
	var errs []error
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}

	switch mode {
	case ModeAPI:
		if strings.TrimSpace(c.Security.JWTSecret) == "" {
			errs = append(errs, errors.New("security.jwtsecret is required"))
		}
		if c.Security.BcryptCost < 10 {
			errs = append(errs, fmt.Errorf("security.bcryptcost must be at least 10, got %d", c.Security.BcryptCost))
		}
		if c.Security.TokenTTL <= 0 {
			errs = append(errs, errors.New("security.tokenttl must be positive"))
		}
	case ModeWorker:
		if c.Queue.Stream == "" || c.Queue.Group == "" {
			errs = append(errs, errors.New("queue.stream and queue.group are required"))
		}
	case ModeMigrate:
	default:
		errs = append(errs, fmt.Errorf("unknown config mode %q", mode))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("allowcorsorigins", []string{})

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "10s")
	v.SetDefault("http.maxbodybytes", 6<<20)
	v.SetDefault("http.trustedproxies", []string{})

	// empty defaults register the keys so AutomaticEnv can fill them
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.connecttimeout", "5s")
	v.SetDefault("postgres.healthcheckperiod", "30s")
	v.SetDefault("postgres.statementtimeout", "8s")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "3s")
	v.SetDefault("redis.readtimeout", "2s")
	v.SetDefault("redis.writetimeout", "2s")

	v.SetDefault("queue.stream", "eventhub:tasks")
	v.SetDefault("queue.group", "eventhub-workers")
	v.SetDefault("queue.consumer", "")
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.bucket", "eventhub-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.publicurl", "")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.tokenttl", "24h")
	v.SetDefault("security.bcryptcost", 12)
	v.SetDefault("security.hashconcurrency", runtime.GOMAXPROCS(0))
	v.SetDefault("security.loginattempts", 10)
	v.SetDefault("security.loginwindow", "1m")

	v.SetDefault("events.timezone", "Local")
	v.SetDefault("events.maximagebytes", 5<<20)

	v.SetDefault("describer.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("describer.apikey", "")
	v.SetDefault("describer.model", "gemini-1.5-flash")
	v.SetDefault("describer.timeout", "10s")

	v.SetDefault("jobs.sessionsweep", "0 0 * * * *")

	v.SetDefault("logging.level", "")
}
