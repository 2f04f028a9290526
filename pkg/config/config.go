package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "KMWF"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Reservation  ReservationConfig
	Razorpay     RazorpayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KMWF_APP_ENV" required:"true"`
	Port         string `envconfig:"KMWF_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"KMWF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KMWF_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KMWF_DB_DSN"`
	Driver string `envconfig:"KMWF_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KMWF_DB_HOST"`
	Port     int    `envconfig:"KMWF_DB_PORT" default:"5432"`
	User     string `envconfig:"KMWF_DB_USER"`
	Password string `envconfig:"KMWF_DB_PASSWORD"`
	Name     string `envconfig:"KMWF_DB_NAME"`
	SSLMode  string `envconfig:"KMWF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KMWF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KMWF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KMWF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KMWF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KMWF_REDIS_URL"`
	Address      string        `envconfig:"KMWF_REDIS_ADDR"`
	Password     string        `envconfig:"KMWF_REDIS_PASSWORD"`
	DB           int           `envconfig:"KMWF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KMWF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KMWF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KMWF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KMWF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KMWF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KMWF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KMWF_JWT_ISSUER" default:"khadimemillat"`
	ExpirationMinutes int    `envconfig:"KMWF_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ReservationConfig holds the tunables of the hold lifecycle. Every value
// here is a documented constant of the engine, not a hidden magic number.
type ReservationConfig struct {
	TTL            time.Duration `envconfig:"KMWF_RESERVATION_TTL" default:"15m"`
	SweepInterval  time.Duration `envconfig:"KMWF_RESERVATION_SWEEP_INTERVAL" default:"30s"`
	SweepBatch     int           `envconfig:"KMWF_RESERVATION_SWEEP_BATCH" default:"200"`
	AcquireRetries int           `envconfig:"KMWF_RESERVATION_ACQUIRE_RETRIES" default:"3"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"KMWF_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"KMWF_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"KMWF_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	BaseURL       string        `envconfig:"KMWF_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Timeout       time.Duration `envconfig:"KMWF_RAZORPAY_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"KMWF_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"KMWF_PUBSUB_DOMAIN_TOPIC" default:"kmwf-domain-events"`
	DomainSubscription string `envconfig:"KMWF_PUBSUB_DOMAIN_SUBSCRIPTION"`
	ChatTopic          string `envconfig:"KMWF_PUBSUB_CHAT_TOPIC" default:"kmwf-chat-markers"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KMWF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KMWF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KMWF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KMWF_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		"KMWF_DB_HOST": db.Host,
		"KMWF_DB_USER": db.User,
		"KMWF_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either KMWF_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
