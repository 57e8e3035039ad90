package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
	MaxBodyBytes   int64
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

const (
	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	PublicBaseURL string
}

type StorageConfig struct {
	Driver       string
	LocalRoot    string
	PublicPrefix string
	TmpDir       string
	Minio        MinioConfig
}

type SecurityConfig struct {
	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int
}

type AuthConfig struct {
	RegistrationStatus string
	LoginAttempts      int
	LoginWindow        time.Duration
}

type SeedConfig struct {
	AdminEmail    string
	AdminPhone    string
	AdminPassword string
}

type AppConfig struct {
	Environment  string
	HTTP         HTTPConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Security     SecurityConfig
	Auth         AuthConfig
	Cleanup      CleanupConfig
	Seed         SeedConfig
	AllowOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func Load() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("ATAR")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwtsecret is required"))
	}
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("security.bcryptcost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.Auth.RegistrationStatus {
	case "active", "pending":
	default:
		errs = append(errs, fmt.Errorf("auth.registrationstatus must be active or pending, got %q", c.Auth.RegistrationStatus))
	}
	switch c.Storage.Driver {
	case StorageDriverLocal, StorageDriverMinio:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be local or minio, got %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.maxuploadbytes", 5<<20)
	v.SetDefault("http.maxbodybytes", 20<<20)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.localroot", "public/uploads")
	v.SetDefault("storage.publicprefix", "/uploads")
	v.SetDefault("storage.tmpdir", "tmp/uploads")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.accesskey", "")
	v.SetDefault("storage.minio.secretkey", "")
	v.SetDefault("storage.minio.bucket", "atar-profiles")
	v.SetDefault("storage.minio.usessl", false)
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.publicbaseurl", "")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "168h") // 7 days
	v.SetDefault("security.bcryptcost", 12)

	v.SetDefault("auth.registrationstatus", "active")
	v.SetDefault("auth.loginattempts", 10)
	v.SetDefault("auth.loginwindow", "15m")

	v.SetDefault("seed.adminemail", "admin@ataryouth.org")
	v.SetDefault("seed.adminphone", "+211912345678")
	v.SetDefault("seed.adminpassword", "")

	v.SetDefault("alloworigins", "http://localhost:3000")

	setCleanupDefaults(v)
}
