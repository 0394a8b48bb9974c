// Ininicializing common application configuration
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Likes     LikesConfig     `mapstructure:"likes"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	AppVersion     string        `mapstructure:"app_version"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout int           `mapstructure:"request_timeout"` // в секундах
	Env            string        `mapstructure:"environment"`
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | pgx | memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type QueueConfig struct {
	Prefix       string        `mapstructure:"prefix"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
}

type BrokerConfig struct {
	Kind         string `mapstructure:"kind"` // rabbitmq | kafka | log
	RabbitMQURL  string `mapstructure:"rabbitmq_url"`
	Exchange     string `mapstructure:"exchange"`
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
}

type AdmissionConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type LifecycleConfig struct {
	OwnerLeadTime time.Duration `mapstructure:"owner_lead_time"`
	AdminLeadTime time.Duration `mapstructure:"admin_lead_time"`
}

type StatsConfig struct {
	App       string `mapstructure:"app"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LikesConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
}

type WorkerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath(GetEnv("CONFIG_PATH", "./config"))
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()

	if err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.log_level", "info")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	// Queue defaults
	v.SetDefault("queue.prefix", "ewm")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.base_delay", 5*time.Second)
	v.SetDefault("queue.queue_timeout", 5*time.Second)

	// Broker defaults
	v.SetDefault("broker.kind", "log")
	v.SetDefault("broker.exchange", "ewm.events")
	v.SetDefault("broker.kafka_topic", "ewm-events")

	// Admission defaults
	v.SetDefault("admission.lock_timeout", 5*time.Second)
	v.SetDefault("admission.max_attempts", 3)
	v.SetDefault("admission.base_delay", 20*time.Millisecond)

	// Lifecycle defaults
	v.SetDefault("lifecycle.owner_lead_time", 2*time.Hour)
	v.SetDefault("lifecycle.admin_lead_time", time.Hour)

	// Stats defaults
	v.SetDefault("stats.app", "ewm-main-service")
	v.SetDefault("stats.key_prefix", "ewm:stats")

	// Likes defaults
	v.SetDefault("likes.key_prefix", "ewm:likes")

	// Worker defaults
	v.SetDefault("worker.reconcile_interval", 10*time.Minute)
	v.SetDefault("worker.batch_size", 100)
}
