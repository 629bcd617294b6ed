package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type CompletionConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	CacheTTL    time.Duration
}

type ImageGenConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	ImageSize    string
	Timeout      time.Duration
	AllowedHosts []string
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type SecurityConfig struct {
	JWTAccessSecret string
}

type GalleryConfig struct {
	ImageTTL time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Completion       CompletionConfig
	ImageGen         ImageGenConfig
	Queue            QueueConfig
	Security         SecurityConfig
	Gallery          GalleryConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("FLUXGALLERY")
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

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	// No write deadline: /api/v1/events holds SSE streams open indefinitely.
	v.SetDefault("http.writetimeout", "0")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "fluxgallery-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("completion.baseurl", "https://api.openai.com/v1")
	v.SetDefault("completion.model", "gpt-4o")
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.maxtokens", 300)
	v.SetDefault("completion.timeout", "30s")
	v.SetDefault("completion.cachettl", "24h")

	v.SetDefault("imagegen.baseurl", "https://fal.run")
	v.SetDefault("imagegen.model", "fal-ai/flux/dev")
	v.SetDefault("imagegen.imagesize", "square_hd")
	v.SetDefault("imagegen.timeout", "120s")
	v.SetDefault("imagegen.allowedhosts", "fal.media,v3.fal.media")

	v.SetDefault("queue.stream", "generate:jobs")
	v.SetDefault("queue.group", "generators")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "60s")

	// 0 disables expiry; gallery images are kept until the user deletes them.
	v.SetDefault("gallery.imagettl", "0")
}
