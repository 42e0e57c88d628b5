package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
	StaticDir string `mapstructure:"static_dir"`
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
}

type AuthConfig struct {
	// RecordingsPassword may be plaintext or a bcrypt hash.
	RecordingsPassword string        `mapstructure:"recordings_password"`
	SetupSecret        string        `mapstructure:"setup_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	Whitelist          []string      `mapstructure:"whitelist" validate:"dive,email"`
}

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=sqlite memory"`
	Path          string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type SessionsConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=sql redis"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
}

type StorageConfig struct {
	Backend      string        `mapstructure:"backend" validate:"oneof=local s3"`
	Bucket       string        `mapstructure:"bucket" validate:"required"`
	LocalDir     string        `mapstructure:"local_dir" validate:"required_if=Backend local"`
	SigningKey   string        `mapstructure:"signing_key"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl" validate:"gt=0"`
	S3Region     string        `mapstructure:"s3_region"`
	S3Endpoint   string        `mapstructure:"s3_endpoint" validate:"omitempty,url"`
	S3AccessKey  string        `mapstructure:"s3_access_key"`
	S3SecretKey  string        `mapstructure:"s3_secret_key"`
}

type ClientConfig struct {
	APIURL        string        `mapstructure:"api_url" validate:"required,url"`
	StateFile     string        `mapstructure:"state_file"`
	Gate          string        `mapstructure:"gate" validate:"oneof=token flag whitelist"`
	PauseMode     string        `mapstructure:"pause_mode" validate:"oneof=visual capture"`
	CompleteDelay time.Duration `mapstructure:"complete_delay" validate:"gte=0"`
	Formats       []string      `mapstructure:"formats" validate:"min=1,dive,required"`
	UploadRetries int           `mapstructure:"upload_retries" validate:"gte=0"`
	UploadBackoff time.Duration `mapstructure:"upload_backoff" validate:"gte=0"`
	UploadWorkers int           `mapstructure:"upload_workers" validate:"gte=1"`
	Email         string        `mapstructure:"email" validate:"omitempty,email"`
	DeviceName    string        `mapstructure:"device"`
	SampleRate    int           `mapstructure:"sample_rate" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("auth.recordings_password", "")
	v.SetDefault("auth.setup_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.sweep_interval", time.Hour)
	v.SetDefault("auth.whitelist", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/vox.db")
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("sessions.backend", "sql")
	v.SetDefault("sessions.redis_addr", "")
	v.SetDefault("sessions.redis_password", "")
	v.SetDefault("sessions.redis_db", 0)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.bucket", "recordings")
	v.SetDefault("storage.local_dir", "data/blobs")
	v.SetDefault("storage.signing_key", "")
	v.SetDefault("storage.signed_url_ttl", 60*time.Second)
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")

	v.SetDefault("client.api_url", "http://localhost:8080")
	v.SetDefault("client.state_file", "")
	v.SetDefault("client.gate", "token")
	v.SetDefault("client.pause_mode", "visual")
	v.SetDefault("client.complete_delay", 4*time.Second)
	v.SetDefault("client.formats", []string{"audio/wav", "audio/basic", "audio/x-alaw-basic"})
	v.SetDefault("client.upload_retries", 3)
	v.SetDefault("client.upload_backoff", 500*time.Millisecond)
	v.SetDefault("client.upload_workers", 2)
	v.SetDefault("client.email", "")
	v.SetDefault("client.device", "default")
	v.SetDefault("client.sample_rate", 16000)
}

// Load reads the optional config file at path, overlays VOX_* environment
// variables (server.addr => VOX_SERVER_ADDR) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
