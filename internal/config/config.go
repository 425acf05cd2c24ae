// Package config loads the service configuration.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, environment variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the complete service configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Cache    CacheConfig    `koanf:"cache"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	S3       S3Config       `koanf:"s3"`
	Log      LogConfig      `koanf:"log"`

	// PublicBaseURL prefixes links placed in outgoing email
	PublicBaseURL string `koanf:"public_base_url"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AuthConfig covers hashing, token signing and the credential flows
type AuthConfig struct {
	SecretKey        string        `koanf:"secret_key"`
	Algorithm        string        `koanf:"algorithm"`
	AccessTTL        time.Duration `koanf:"access_ttl"`
	RefreshTTL       time.Duration `koanf:"refresh_ttl"`
	EmailVerifyTTL   time.Duration `koanf:"email_verify_ttl"`
	PasswordResetTTL time.Duration `koanf:"password_reset_ttl"`

	HashAlgorithm string `koanf:"hash_algorithm"`
	BcryptCost    int    `koanf:"bcrypt_cost"`

	AutoVerify       bool          `koanf:"auto_verify"`
	AdminEmails      []string      `koanf:"admin_emails"`
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LoginLockout     time.Duration `koanf:"login_lockout"`

	// Deadline for each directory, cache and notifier call
	Timeout time.Duration `koanf:"timeout"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type CacheConfig struct {
	Backend    string        `koanf:"backend"` // redis or memory
	DefaultTTL time.Duration `koanf:"default_ttl"`
	AllowClear bool          `koanf:"allow_clear"`
	KeyPrefix  string        `koanf:"key_prefix"`
}

// SMTPConfig enables email delivery when Host is set. Without it, messages
// are written to the log.
type SMTPConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	From        string `koanf:"from"`
	ImplicitTLS bool   `koanf:"implicit_tls"`
}

// S3Config enables avatar uploads when Bucket is set
type S3Config struct {
	Endpoint      string `koanf:"endpoint"`
	Region        string `koanf:"region"`
	Bucket        string `koanf:"bucket"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	PublicBaseURL string `koanf:"public_base_url"`
	UsePathStyle  bool   `koanf:"use_path_style"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Supported token signing algorithms
var signingAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

var defaults = map[string]any{
	"server.host":            "0.0.0.0",
	"server.port":            8080,
	"server.allowed_origins": []string{"*"},

	"auth.algorithm":          "HS256",
	"auth.access_ttl":         30 * time.Minute,
	"auth.refresh_ttl":        7 * 24 * time.Hour,
	"auth.email_verify_ttl":   24 * time.Hour,
	"auth.password_reset_ttl": 60 * time.Minute,
	"auth.hash_algorithm":     "bcrypt",
	"auth.bcrypt_cost":        10,
	"auth.max_login_attempts": 5,
	"auth.login_lockout":      15 * time.Minute,
	"auth.timeout":            5 * time.Second,

	"redis.host": "localhost",
	"redis.port": 6379,

	"cache.backend":     "redis",
	"cache.default_ttl": 5 * time.Minute,
	"cache.key_prefix":  "authcore:",

	"smtp.port": 587,

	"s3.region": "us-east-1",

	"log.level":  "info",
	"log.format": "json",

	"public_base_url": "http://localhost:8080",
}

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
	envList
	envMinutes
	envHours
	envDays
)

type envBinding struct {
	key  string
	kind envKind
}

// envBindings maps environment variables onto configuration keys
var envBindings = map[string]envBinding{
	"SECRET_KEY":                          {"auth.secret_key", envString},
	"ALGORITHM":                           {"auth.algorithm", envString},
	"ACCESS_TOKEN_EXPIRE_MINUTES":         {"auth.access_ttl", envMinutes},
	"REFRESH_TOKEN_EXPIRE_DAYS":           {"auth.refresh_ttl", envDays},
	"EMAIL_VERIFY_TOKEN_EXPIRE_HOURS":     {"auth.email_verify_ttl", envHours},
	"PASSWORD_RESET_TOKEN_EXPIRE_MINUTES": {"auth.password_reset_ttl", envMinutes},
	"PASSWORD_HASH_ALGORITHM":             {"auth.hash_algorithm", envString},
	"BCRYPT_COST":                         {"auth.bcrypt_cost", envInt},
	"AUTO_VERIFY_EMAIL":                   {"auth.auto_verify", envBool},
	"ADMIN_EMAILS":                        {"auth.admin_emails", envList},
	"MAX_LOGIN_ATTEMPTS":                  {"auth.max_login_attempts", envInt},
	"LOGIN_LOCKOUT_MINUTES":               {"auth.login_lockout", envMinutes},

	"DATABASE_URL": {"database.url", envString},

	"REDIS_URL":      {"redis.url", envString},
	"REDIS_HOST":     {"redis.host", envString},
	"REDIS_PORT":     {"redis.port", envInt},
	"REDIS_PASSWORD": {"redis.password", envString},
	"REDIS_DB":       {"redis.db", envInt},

	"CACHE_BACKEND":              {"cache.backend", envString},
	"REDIS_CACHE_EXPIRE_MINUTES": {"cache.default_ttl", envMinutes},
	"CACHE_ALLOW_CLEAR":          {"cache.allow_clear", envBool},

	"SMTP_HOST":         {"smtp.host", envString},
	"SMTP_PORT":         {"smtp.port", envInt},
	"SMTP_USER":         {"smtp.username", envString},
	"SMTP_PASSWORD":     {"smtp.password", envString},
	"SMTP_IMPLICIT_TLS": {"smtp.implicit_tls", envBool},
	"MAIL_FROM":         {"smtp.from", envString},

	"S3_ENDPOINT":        {"s3.endpoint", envString},
	"S3_REGION":          {"s3.region", envString},
	"S3_BUCKET":          {"s3.bucket", envString},
	"S3_ACCESS_KEY":      {"s3.access_key", envString},
	"S3_SECRET_KEY":      {"s3.secret_key", envString},
	"S3_PUBLIC_BASE_URL": {"s3.public_base_url", envString},
	"S3_USE_PATH_STYLE":  {"s3.use_path_style", envBool},

	"PUBLIC_BASE_URL": {"public_base_url", envString},
	"HOST":            {"server.host", envString},
	"PORT":            {"server.port", envInt},
	"ALLOWED_ORIGINS": {"server.allowed_origins", envList},
	"LOG_LEVEL":       {"log.level", envString},
	"LOG_FORMAT":      {"log.format", envString},
}

// flagKeys maps command-line flag names onto configuration keys
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// RegisterFlags adds the configuration flags understood by Load to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("host", "0.0.0.0", "HTTP listen host")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json or text)")
}

// Load builds the configuration. path and fs are optional.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	return load(path, fs, os.LookupEnv)
}

func load(path string, fs *pflag.FlagSet, lookup func(string) (string, bool)) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := loadEnv(k, lookup); err != nil {
		return nil, err
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Auth.Algorithm = strings.ToUpper(cfg.Auth.Algorithm)
	for i, e := range cfg.Auth.AdminEmails {
		cfg.Auth.AdminEmails[i] = strings.ToLower(strings.TrimSpace(e))
	}

	return &cfg, nil
}

func loadEnv(k *koanf.Koanf, lookup func(string) (string, bool)) error {
	for name, b := range envBindings {
		raw, ok := lookup(name)
		if !ok || raw == "" {
			continue
		}

		val, err := parseEnv(raw, b.kind)
		if err != nil {
			return fmt.Errorf("environment variable %s: %w", name, err)
		}
		if err := k.Set(b.key, val); err != nil {
			return fmt.Errorf("set %s: %w", b.key, err)
		}
	}
	return nil
}

func parseEnv(raw string, kind envKind) (any, error) {
	switch kind {
	case envInt:
		return strconv.Atoi(raw)
	case envBool:
		return strconv.ParseBool(raw)
	case envList:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case envMinutes, envHours, envDays:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		unit := map[envKind]time.Duration{envMinutes: time.Minute, envHours: time.Hour, envDays: 24 * time.Hour}[kind]
		return time.Duration(n) * unit, nil
	}
	return raw, nil
}

// Validate checks the configuration can start the service
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key (SECRET_KEY) is required")
	}
	if !signingAlgorithms[c.Auth.Algorithm] {
		return fmt.Errorf("auth.algorithm must be HS256, HS384 or HS512, got %q", c.Auth.Algorithm)
	}

	ttls := map[string]time.Duration{
		"auth.access_ttl":         c.Auth.AccessTTL,
		"auth.refresh_ttl":        c.Auth.RefreshTTL,
		"auth.email_verify_ttl":   c.Auth.EmailVerifyTTL,
		"auth.password_reset_ttl": c.Auth.PasswordResetTTL,
		"auth.timeout":            c.Auth.Timeout,
	}
	for name, d := range ttls {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	switch c.Auth.HashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("auth.hash_algorithm must be bcrypt or argon2id, got %q", c.Auth.HashAlgorithm)
	}

	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.backend must be redis or memory, got %q", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache.default_ttl must not be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from (MAIL_FROM) is required when smtp.host is set")
	}
	return nil
}
