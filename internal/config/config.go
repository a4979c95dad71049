package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig                `mapstructure:"http" yaml:"http"`
	Postgres    PostgresConfig            `mapstructure:"postgres" yaml:"postgres"`
	Redis       RedisConfig               `mapstructure:"redis" yaml:"redis"`
	Credentials CredentialsConfig         `mapstructure:"credentials" yaml:"credentials"`
	Polling     PollingConfig             `mapstructure:"polling" yaml:"polling"`
	Gmail       GmailConfig               `mapstructure:"gmail" yaml:"gmail"`
	Webhooks    WebhooksConfig            `mapstructure:"webhooks" yaml:"webhooks"`
	Durable     DurableConfig             `mapstructure:"durable" yaml:"durable"`
	OAuth       map[string]OAuthAppConfig `mapstructure:"oauth" yaml:"oauth"`
	APIBaseURLs map[string]string         `mapstructure:"api_base_urls" yaml:"api_base_urls"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// KeyPrefix namespaces the durable queue and push dedupe keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

type CredentialsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

type PollingConfig struct {
	DefaultInterval time.Duration            `mapstructure:"default_interval" yaml:"default_interval"`
	Intervals       map[string]time.Duration `mapstructure:"intervals" yaml:"intervals"`
}

// IntervalFor returns the provider's polling interval, falling back to the
// default.
func (c PollingConfig) IntervalFor(provider string) time.Duration {
	if interval, ok := c.Intervals[provider]; ok && interval > 0 {
		return interval
	}

	return c.DefaultInterval
}

type GmailConfig struct {
	PubSubTopic     string        `mapstructure:"pubsub_topic" yaml:"pubsub_topic"`
	PushToken       string        `mapstructure:"push_token" yaml:"push_token"`
	RenewalInterval time.Duration `mapstructure:"renewal_interval" yaml:"renewal_interval"`
	RenewalWindow   time.Duration `mapstructure:"renewal_window" yaml:"renewal_window"`
}

type WebhooksConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl" yaml:"dedupe_ttl"`
}

type DurableConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	Retention      time.Duration `mapstructure:"retention" yaml:"retention"`
}

type OAuthAppConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
}

// Load reads automations.yaml when present, then applies AUTOMATIONS_*
// environment overrides, e.g. AUTOMATIONS_POSTGRES_DSN.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AUTOMATIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("automations")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.automations")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "automations")
	v.SetDefault("credentials.encryption_key", "")
	v.SetDefault("polling.default_interval", time.Minute)
	v.SetDefault("gmail.pubsub_topic", "")
	v.SetDefault("gmail.push_token", "")
	v.SetDefault("gmail.renewal_interval", 6*time.Hour)
	v.SetDefault("gmail.renewal_window", 24*time.Hour)
	v.SetDefault("webhooks.jwt_secret", "")
	v.SetDefault("webhooks.dedupe_ttl", 24*time.Hour)
	v.SetDefault("durable.max_attempts", 3)
	v.SetDefault("durable.initial_backoff", 5*time.Second)
	v.SetDefault("durable.run_timeout", 5*time.Minute)
	v.SetDefault("durable.retention", 7*24*time.Hour)
}

// Validate reports every missing or invalid key at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Postgres.DSN == "" {
		problems = append(problems, "postgres.dsn is required")
	}

	if c.Credentials.EncryptionKey != "" && len(c.Credentials.EncryptionKey) < 16 {
		problems = append(problems, "credentials.encryption_key must be at least 16 bytes")
	}

	if c.Polling.DefaultInterval <= 0 {
		problems = append(problems, "polling.default_interval must be positive")
	}

	for provider, interval := range c.Polling.Intervals {
		if interval <= 0 {
			problems = append(problems, fmt.Sprintf("polling.intervals.%s must be positive", provider))
		}
	}

	if c.Durable.MaxAttempts < 1 {
		problems = append(problems, "durable.max_attempts must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

func (c *Config) OAuthApp(provider string) OAuthAppConfig {
	return c.OAuth[provider]
}

func (c *Config) APIBaseURL(provider string) string {
	return c.APIBaseURLs[provider]
}

const redacted = "[redacted]"

// Redacted returns a copy with secrets replaced, safe to print.
func (c Config) Redacted() Config {
	out := c

	out.Postgres.DSN = redactDSN(c.Postgres.DSN)
	out.Redis.Password = redactValue(c.Redis.Password)
	out.Credentials.EncryptionKey = redactValue(c.Credentials.EncryptionKey)
	out.Gmail.PushToken = redactValue(c.Gmail.PushToken)
	out.Webhooks.JWTSecret = redactValue(c.Webhooks.JWTSecret)

	if c.OAuth != nil {
		out.OAuth = make(map[string]OAuthAppConfig, len(c.OAuth))
		for provider, app := range c.OAuth {
			app.ClientSecret = redactValue(app.ClientSecret)
			out.OAuth[provider] = app
		}
	}

	return out
}

// YAML renders the configuration in the same shape Load reads.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return out, nil
}

func redactValue(value string) string {
	if value == "" {
		return ""
	}

	return redacted
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}

	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), redacted)
	}

	return parsed.String()
}
