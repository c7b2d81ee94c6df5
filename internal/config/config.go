// Package config reads settings from flags, the environment, an optional
// .env file and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	validDBDrivers     = []string{"mysql", "postgres", "sqlite"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validStorageTypes  = []string{"local", "s3"}
	validSessionStores = []string{"cookie", "redis"}
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBDSN         string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	SessionStore  string
	GinMode       string
	HTTPPort      int
	LogLevel      string
	CORSOrigins   []string

	StorageType       string
	StorageRoot       string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	SeedFile string
}

// Load builds the configuration. args are the command line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("taskboard", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a config file (toml, yaml or json)")
	envFile := flags.String("env-file", ".env", "path to a dotenv file")
	flags.Int("port", 8080, "HTTP port to listen on")
	flags.String("seed-file", "", "path to a YAML seed file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil && flags.Changed("env-file") {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.BindPFlag("http.port", flags.Lookup("port"))
	v.BindPFlag("seed.file", flags.Lookup("seed-file"))

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	cfg := &Config{
		DBDriver:      v.GetString("db.driver"),
		DBHost:        v.GetString("db.host"),
		DBPort:        v.GetString("db.port"),
		DBUser:        v.GetString("db.user"),
		DBPassword:    v.GetString("db.password"),
		DBName:        v.GetString("db.name"),
		DBDSN:         v.GetString("db.dsn"),
		RedisHost:     v.GetString("redis.host"),
		RedisPort:     v.GetString("redis.port"),
		SessionSecret: v.GetString("session.secret"),
		SessionStore:  v.GetString("session.store"),
		GinMode:       v.GetString("gin.mode"),
		HTTPPort:      v.GetInt("http.port"),
		LogLevel:      v.GetString("log.level"),
		CORSOrigins:   splitList(v.GetString("cors.origins")),

		StorageType:       v.GetString("storage.type"),
		StorageRoot:       v.GetString("storage.root"),
		S3Bucket:          v.GetString("s3.bucket"),
		S3Region:          v.GetString("s3.region"),
		S3Endpoint:        v.GetString("s3.endpoint"),
		S3AccessKeyID:     v.GetString("s3.access_key_id"),
		S3SecretAccessKey: v.GetString("s3.secret_access_key"),

		SeedFile: v.GetString("seed.file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "taskuser")
	v.SetDefault("db.password", "taskpassword")
	v.SetDefault("db.name", "task_management")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("session.secret", "default-secret-key-change-me")
	v.SetDefault("session.store", "cookie")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("http.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "http://localhost:5173")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("s3.region", "auto")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.host", "DB_HOST")
	v.BindEnv("db.port", "DB_PORT")
	v.BindEnv("db.user", "DB_USER")
	v.BindEnv("db.password", "DB_PASSWORD")
	v.BindEnv("db.name", "DB_NAME")
	v.BindEnv("db.dsn", "DB_DSN")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")

	v.BindEnv("session.secret", "SESSION_SECRET")
	v.BindEnv("session.store", "SESSION_STORE")

	v.BindEnv("gin.mode", "GIN_MODE")
	v.BindEnv("http.port", "HTTP_PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("cors.origins", "CORS_ORIGINS")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.root", "STORAGE_ROOT")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")

	v.BindEnv("seed.file", "SEED_FILE")
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	if !slices.Contains(validDBDrivers, c.DBDriver) {
		return fmt.Errorf("invalid db driver %q", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DBDSN == "" && c.DBName == "" {
		return errors.New("sqlite requires db.dsn or db.name")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if !slices.Contains(validSessionStores, c.SessionStore) {
		return fmt.Errorf("invalid session store %q", c.SessionStore)
	}
	if c.HTTPPort <= 0 {
		return errors.New("invalid port provided")
	}
	if c.SessionSecret == "" {
		return errors.New("session secret can't be empty")
	}

	switch c.StorageType {
	case "local":
		if c.StorageRoot == "" {
			return errors.New("storage root can't be empty")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("bucket can't be empty")
		}
	default:
		return fmt.Errorf("invalid storage type %q", c.StorageType)
	}
	if !slices.Contains(validStorageTypes, c.StorageType) {
		return errors.New("invalid storage type provided")
	}

	return nil
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// RedisAddr is the host:port of the session redis.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
