package config

import (
	"fmt"
	"strings"
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
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	PublicBaseURL string
}

type SecurityConfig struct {
	JWTSecret    string
	SessionTTL   time.Duration
	MaxSessions  int
	CookieName   string
	CookieSecure bool
}

type IdentityConfig struct {
	Issuer        string
	ClientID      string
	VerifyTimeout time.Duration
	CacheTTL      time.Duration
}

type CaptchaConfig struct {
	Endpoint        string
	Secret          string
	AllowTestTokens bool
	Timeout         time.Duration
}

type ThrottleConfig struct {
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Identity         IdentityConfig
	Captcha          CaptchaConfig
	Throttle         ThrottleConfig
	AvatarMaxBytes   int64
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("SAASBOARD")
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

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("security.jwtsecret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Credential-bearing keys default empty so environment overrides
	// bind; values only ever come from configuration.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.clientid", "")
	v.SetDefault("captcha.secret", "")
	v.SetDefault("captcha.allowtesttokens", false)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketavatars", "saasboard-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.sessionttl", "720h") // 30 days
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.cookiename", "saasboard_session")
	v.SetDefault("security.cookiesecure", true)

	v.SetDefault("identity.verifytimeout", "5s")
	v.SetDefault("identity.cachettl", "5m")

	v.SetDefault("captcha.endpoint", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("captcha.timeout", "5s")

	v.SetDefault("throttle.loginmaxattempts", 10)
	v.SetDefault("throttle.loginwindow", "5m")

	v.SetDefault("avatarmaxbytes", 2<<20)
}
