// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Auth      AuthConfig      `koanf:"auth"`
	Mail      MailConfig      `koanf:"mail"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	URL         string `koanf:"url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	Name            string        `koanf:"name"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

const (
	AlgorithmHS256 = "HS256"
	AlgorithmES256 = "ES256"

	minSecretLength = 32
)

type JWTConfig struct {
	Algorithm         string        `koanf:"algorithm"`
	Secret            string        `koanf:"secret"`
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type AuthConfig struct {
	Scheme        string        `koanf:"scheme"`
	ResetTokenTTL time.Duration `koanf:"reset_token_ttl"`
}

const (
	MailProviderNone     = ""
	MailProviderSMTP     = "smtp"
	MailProviderMailtrap = "mailtrap"
	MailProviderSendGrid = "sendgrid"
)

type MailConfig struct {
	Provider        string        `koanf:"provider"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	TLS             bool          `koanf:"tls"`
	Timeout         time.Duration `koanf:"timeout"`
	FromEmail       string        `koanf:"from_email"`
	FromName        string        `koanf:"from_name"`
	ResetSubject    string        `koanf:"reset_subject"`
	RequireDelivery bool          `koanf:"require_delivery"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load layers defaults, the optional YAML file at configPath and the process
// environment, then validates the result.
func Load(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Go Auth API",
		"app.version":     "1.0.0",
		"app.environment": EnvDevelopment,
		"app.url":         "http://localhost:3000",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.driver":             DriverMongo,
		"database.name":               "auth",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.algorithm":           AlgorithmHS256,
		"jwt.access_token_expire": "1h",
		"jwt.issuer":              "go-auth-api",
		"jwt.audience":            "go-auth-api-clients",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"auth.scheme":          "bearer",
		"auth.reset_token_ttl": "1h",

		"mail.port":          587,
		"mail.tls":           true,
		"mail.timeout":       "10s",
		"mail.from_email":    "no-reply@localhost",
		"mail.from_name":     "Go Auth API",
		"mail.reset_subject": "Password recovery",

		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.auth_requests": 10,
		"rate_limit.auth_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "go-auth-api",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_DRIVER":             "database.driver",
	"DATABASE_URL":                "database.url",
	"DATABASE_NAME":               "database.name",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"APP_URL":                     "app.url",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_ALGORITHM":               "jwt.algorithm",
	"JWT_SECRET":                  "jwt.secret",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"AUTH_SCHEME":                 "auth.scheme",
	"RESET_TOKEN_TTL":             "auth.reset_token_ttl",
	"MAIL_PROVIDER":               "mail.provider",
	"MAIL_HOST":                   "mail.host",
	"MAIL_PORT":                   "mail.port",
	"MAIL_USERNAME":               "mail.username",
	"MAIL_PASSWORD":               "mail.password",
	"MAIL_TLS":                    "mail.tls",
	"MAIL_FROM_EMAIL":             "mail.from_email",
	"MAIL_FROM_NAME":              "mail.from_name",
	"MAIL_REQUIRE_DELIVERY":       "mail.require_delivery",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_AUTH_REQUESTS":    "rate_limit.auth_requests",
	"RATE_LIMIT_AUTH_BURST":       "rate_limit.auth_burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

// validate reports every problem at once rather than stopping at the first.
func (c *Config) validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Database.validate(c.App.IsProduction()),
		c.JWT.validate(),
		c.Auth.validate(),
		c.Mail.validate(),
		c.CORS.validate(),
		c.Otel.validate(c.App.IsProduction()),
	)
}

func (s ServerConfig) validate() error {
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return errors.New("server read and write timeouts must be positive")
	}
	return nil
}

func (d DatabaseConfig) validate(production bool) error {
	switch d.Driver {
	case DriverMongo:
		if d.Name == "" {
			return errors.New("DATABASE_NAME is required for mongo")
		}
		fallthrough
	case DriverPostgres:
		if d.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", d.Driver)
		}
	case DriverMemory:
		if production {
			return fmt.Errorf("database driver %q is not allowed in production", DriverMemory)
		}
	default:
		return fmt.Errorf("unknown database driver %q", d.Driver)
	}
	return nil
}

func (j JWTConfig) validate() error {
	var errs []error

	switch j.Algorithm {
	case AlgorithmHS256:
		if len(j.Secret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes for %s", minSecretLength, AlgorithmHS256))
		}
	case AlgorithmES256:
		if j.PrivateKeyPath == "" || j.PublicKeyPath == "" {
			errs = append(errs, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH are required for %s", AlgorithmES256))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported jwt algorithm %q", j.Algorithm))
	}

	if j.AccessTokenExpire <= 0 {
		errs = append(errs, errors.New("jwt.access_token_expire must be positive"))
	}
	return errors.Join(errs...)
}

func (a AuthConfig) validate() error {
	var errs []error
	if strings.TrimSpace(a.Scheme) == "" {
		errs = append(errs, errors.New("auth.scheme must not be empty"))
	}
	if a.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.reset_token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func (m MailConfig) validate() error {
	switch m.Provider {
	case MailProviderNone:
		if m.RequireDelivery {
			return errors.New("mail.require_delivery needs a mail.provider")
		}
	case MailProviderSMTP:
		if m.Host == "" {
			return fmt.Errorf("MAIL_HOST is required for provider %q", m.Provider)
		}
	case MailProviderMailtrap, MailProviderSendGrid:
		if m.Password == "" {
			return fmt.Errorf("MAIL_PASSWORD is required for provider %q", m.Provider)
		}
	default:
		return fmt.Errorf("unknown mail provider %q", m.Provider)
	}
	return nil
}

func (c CORSConfig) validate() error {
	if c.AllowCredentials && slices.Contains(c.AllowedOrigins, "*") {
		return errors.New("cors wildcard origin cannot be combined with allow_credentials")
	}
	return nil
}

func (o OtelConfig) validate(production bool) error {
	if production && o.Enabled && o.Insecure {
		return errors.New("OTEL_INSECURE must be false in production")
	}
	return nil
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == EnvProduction
}

// IsTest gates behavior that only automated suites may see, such as echoing
// recovery tokens in responses.
func (c *Config) IsTest() bool {
	return c.App.Environment == EnvTest
}
