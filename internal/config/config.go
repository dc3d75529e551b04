package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/config"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/pubsub"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Room     RoomConfig
	Sweeper  SweeperConfig
	Events   EventsConfig
	Auth     AuthConfig
	Log      LogConfig
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

type RoomConfig struct {
	LeaseLength       time.Duration `mapstructure:"lease_length"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	IDStrategy        string        `mapstructure:"id_strategy"`
	MaxCreateAttempts int           `mapstructure:"max_create_attempts"`
}

type SweeperConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	PublishConcurrency int           `mapstructure:"publish_concurrency"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
}

type EventsConfig struct {
	pubsub.Config  `mapstructure:",squash"`
	Channel        string        `mapstructure:"channel"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type AuthConfig struct {
	PublicKeyPath  string `mapstructure:"public_key_path"`
	PublicKey      string `mapstructure:"public_key"`
	UserServiceURL string `mapstructure:"user_service_url"`
	CookieName     string `mapstructure:"cookie_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// IsProduction reports whether development-only features must be disabled.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), "production")
}

// DatabaseConfig converts the database block for pkg/database.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		DBName:          c.Database.DBName,
		SSLMode:         c.Database.SSLMode,
		FilePath:        c.Database.FilePath,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		SlowThreshold:   c.Database.SlowThreshold,
	}
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	ps := pubsub.DefaultConfig()

	// Set defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9003)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "peerprep_room")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/rooms.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("room.lease_length", "5m")
	v.SetDefault("room.store_timeout", "5s")
	v.SetDefault("room.id_strategy", "uuid")
	v.SetDefault("room.max_create_attempts", 5)
	v.SetDefault("sweeper.interval", "30s")
	v.SetDefault("sweeper.publish_concurrency", 8)
	v.SetDefault("sweeper.metrics_addr", "")
	v.SetDefault("events.driver", ps.Driver)
	v.SetDefault("events.channel", pubsub.DefaultChannel)
	v.SetDefault("events.publish_timeout", "5s")
	v.SetDefault("events.redis.address", ps.Redis.Address)
	v.SetDefault("events.redis.pool_size", ps.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", ps.Redis.ReadTimeout)
	v.SetDefault("events.redis.write_timeout", ps.Redis.WriteTimeout)
	v.SetDefault("events.kafka.brokers", ps.Kafka.Brokers)
	v.SetDefault("events.kafka.partitions", ps.Kafka.Partitions)
	v.SetDefault("events.kafka.replication_factor", ps.Kafka.ReplicationFactor)
	v.SetDefault("events.kafka.acks", ps.Kafka.Acks)
	v.SetDefault("events.amqp.url", ps.AMQP.URL)
	v.SetDefault("events.amqp.channels", ps.AMQP.Channels)
	v.SetDefault("events.nats.url", ps.NATS.URL)
	v.SetDefault("events.nats.jetstream", ps.NATS.JetStream)
	v.SetDefault("events.nats.max_age", ps.NATS.MaxAge)
	v.SetDefault("auth.cookie_name", "access-token")
	v.SetDefault("log.level", "info")

	// Bind environment variables
	v.BindEnv("app.env", "APP_ENV", "NODE_ENV")
	v.BindEnv("server.port", "PORT", "SERVICE_PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST", "DATABASE_HOST")
	v.BindEnv("database.port", "DB_PORT", "DATABASE_PORT")
	v.BindEnv("database.user", "DB_USER", "DATABASE_USER")
	v.BindEnv("database.password", "DB_PASSWORD", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME", "DATABASE_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	v.BindEnv("database.connect_timeout", "DB_CONNECT_TIMEOUT")
	v.BindEnv("database.slow_threshold", "DB_SLOW_THRESHOLD")
	v.BindEnv("room.lease_length", "ROOM_LEASE_LENGTH")
	v.BindEnv("room.store_timeout", "ROOM_STORE_TIMEOUT")
	v.BindEnv("room.id_strategy", "ROOM_ID_STRATEGY")
	v.BindEnv("room.max_create_attempts", "ROOM_MAX_CREATE_ATTEMPTS")
	v.BindEnv("sweeper.interval", "SWEEPER_INTERVAL")
	v.BindEnv("sweeper.publish_concurrency", "SWEEPER_PUBLISH_CONCURRENCY")
	v.BindEnv("sweeper.metrics_addr", "SWEEPER_METRICS_ADDR")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.channel", "EVENTS_CHANNEL")
	v.BindEnv("events.publish_timeout", "EVENTS_PUBLISH_TIMEOUT")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.redis.db", "REDIS_DB")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.amqp.url", "AMQP_URL", "BROKER_URL")
	v.BindEnv("events.amqp.channels", "AMQP_CHANNELS")
	v.BindEnv("events.nats.url", "NATS_URL")
	v.BindEnv("events.nats.jetstream", "NATS_JETSTREAM")
	v.BindEnv("auth.public_key_path", "AUTH_PUBLIC_KEY_PATH")
	v.BindEnv("auth.public_key", "AUTH_PUBLIC_KEY")
	v.BindEnv("auth.user_service_url", "USER_SERVICE_URL")
	v.BindEnv("auth.cookie_name", "AUTH_COOKIE_NAME")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := applyLegacyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Room.LeaseLength <= 0 {
		return fmt.Errorf("room.lease_length must be positive, got %s", c.Room.LeaseLength)
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive, got %s", c.Sweeper.Interval)
	}
	return nil
}

// applyLegacyEnv honours the millisecond variables older deployments set.
func applyLegacyEnv(cfg *Config) error {
	lease, ok, err := pkgconfig.MillisEnv("ROOM_EXPIRE_MILLIS")
	if err != nil {
		return err
	}
	if ok {
		cfg.Room.LeaseLength = lease
	}

	interval, ok, err := pkgconfig.MillisEnv("ROOM_DELETION_INTERVAL_MILLIS")
	if err != nil {
		return err
	}
	if ok {
		cfg.Sweeper.Interval = interval
	}
	return nil
}
