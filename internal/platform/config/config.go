// Package config loads the server configuration from defaults, an optional
// YAML file and GRIEVANCE_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSigningKey = "dev-secret-key-change-in-production"
)

// Server captures every runtime setting of the API process.
type Server struct {
	Addr         string        `mapstructure:"addr"`
	Environment  string        `mapstructure:"environment"`
	LogLevel     string        `mapstructure:"log_level"`
	MemoryMode   bool          `mapstructure:"memory_mode"`
	SweepEvery   time.Duration `mapstructure:"sweep_every"`
	PublicOrigin string        `mapstructure:"public_origin"`

	Auth         AuthConfig         `mapstructure:"auth"`
	Complaint    ComplaintConfig    `mapstructure:"complaint"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Mail         MailConfig         `mapstructure:"mail"`
	Push         PushConfig         `mapstructure:"push"`
	Notification NotificationConfig `mapstructure:"notification"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
}

type AuthConfig struct {
	JWTSigningKey   string        `mapstructure:"jwt_signing_key"`
	JWTIssuer       string        `mapstructure:"jwt_issuer"`
	AccessTTL       time.Duration `mapstructure:"access_ttl"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
}

type ComplaintConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type KafkaConfig struct {
	// Brokers is a comma separated seed list. Empty disables the relay.
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type StorageConfig struct {
	Driver     string        `mapstructure:"driver"`
	LocalDir   string        `mapstructure:"local_dir"`
	Endpoint   string        `mapstructure:"endpoint"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Bucket     string        `mapstructure:"bucket"`
	Region     string        `mapstructure:"region"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PushConfig struct {
	ProjectID       string  `mapstructure:"project_id"`
	CredentialsFile string  `mapstructure:"credentials_file"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
}

type NotificationConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type RateLimitConfig struct {
	PolicyFile     string        `mapstructure:"policy_file"`
	BlockThreshold int           `mapstructure:"block_threshold"`
	BlockWindow    time.Duration `mapstructure:"block_window"`
	BlockDuration  time.Duration `mapstructure:"block_duration"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("memory_mode", false)
	v.SetDefault("sweep_every", time.Minute)
	v.SetDefault("public_origin", "http://localhost:8080")

	v.SetDefault("auth.jwt_signing_key", devJWTSigningKey)
	v.SetDefault("auth.jwt_issuer", "grievance")
	v.SetDefault("auth.access_ttl", 60*time.Minute)
	v.SetDefault("auth.refresh_ttl", 14*24*time.Hour)
	v.SetDefault("auth.verification_ttl", 60*time.Minute)

	v.SetDefault("complaint.lock_ttl", 30*time.Minute)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "grievance.audit")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./var/uploads")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "grievance")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.presign_ttl", 15*time.Minute)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@grievance.local")

	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.rate_per_second", 10.0)

	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.queue_size", 256)

	v.SetDefault("ratelimit.policy_file", "")
	v.SetDefault("ratelimit.block_threshold", 100)
	v.SetDefault("ratelimit.block_window", 10*time.Minute)
	v.SetDefault("ratelimit.block_duration", time.Hour)
}

// Load reads configuration. file may be empty.
func Load(file string) (Server, error) {
	return LoadWithFlags(file, nil)
}

// flagKeys maps command line flags onto config keys. A flag only overrides
// the key when it was set explicitly.
var flagKeys = map[string]string{
	"addr":   "addr",
	"memory": "memory_mode",
}

// LoadWithFlags is Load with command line flags taking precedence over the
// environment and the file.
func LoadWithFlags(file string, flags *pflag.FlagSet) (Server, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Server{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix("GRIEVANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return Server{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would make the server unsafe or unusable.
func (c Server) Validate() error {
	if c.Environment == EnvProduction && c.Auth.JWTSigningKey == devJWTSigningKey {
		return fmt.Errorf("auth.jwt_signing_key must be set in production")
	}
	if !c.MemoryMode && c.Database.URL == "" {
		return fmt.Errorf("database.url is required unless memory_mode is enabled")
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.driver must be local or minio, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "minio" && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for the minio driver")
	}
	return nil
}

// IsProduction reports whether the environment is "production".
func (c Server) IsProduction() bool {
	return c.Environment == EnvProduction
}
