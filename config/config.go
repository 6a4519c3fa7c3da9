package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbolis/quick-forms/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "QF"

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool
	AutoMigrate bool

	LogLevel  string
	LogFormat string
	LogFile   string

	CORSOrigins []string

	// take the client IP from X-Forwarded-For / X-Real-IP, only behind a
	// reverse proxy that sets them
	TrustProxy bool

	// public submissions allowed per second and per client IP
	SubmitRate  float64
	SubmitBurst int

	ShutdownTimeout time.Duration
}

// flag name -> config key
var flagKeys = map[string]string{
	"host":         "host",
	"port":         "port",
	"db-url":       "db_url",
	"token-secret": "token_secret",
	"token-ttl":    "token_ttl",
	"debug":        "debug",
	"auto-migrate": "auto_migrate",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"trust-proxy":  "trust_proxy",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 80)
	v.SetDefault("db_url", "sqlite://quickforms.sqlite")
	v.SetDefault("token_ttl", "120s")
	v.SetDefault("debug", false)
	v.SetDefault("auto_migrate", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("submit.rate", 1.0)
	v.SetDefault("submit.burst", 5)
	v.SetDefault("shutdown_timeout", "10s")
}

// Load reads the configuration. Precedence, lowest first: defaults, config
// file at path (optional), .env file, environment (QF_*), flags.
//
// The token secret must not be stored in the config file.
func Load(path string, flags *pflag.FlagSet) (cfg Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err = v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if v.InConfig("token_secret") {
			return cfg, fmt.Errorf("token_secret is not allowed in config files (use %s_TOKEN_SECRET)", EnvPrefix)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err = v.BindPFlag(key, f); err != nil {
					return cfg, err
				}
			}
		}
	}

	port := v.GetInt("port")
	cfg = Config{
		Addr:            net.JoinHostPort(v.GetString("host"), strconv.Itoa(port)),
		DBUrl:           v.GetString("db_url"),
		TokenSecret:     v.GetString("token_secret"),
		TokenTTL:        v.GetDuration("token_ttl"),
		Debug:           v.GetBool("debug"),
		AutoMigrate:     v.GetBool("auto_migrate"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		LogFile:         v.GetString("log.file"),
		CORSOrigins:     v.GetStringSlice("cors.origins"),
		TrustProxy:      v.GetBool("trust_proxy"),
		SubmitRate:      v.GetFloat64("submit.rate"),
		SubmitBurst:     v.GetInt("submit.burst"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	switch {
	case port <= 0 || port > 65535:
		err = fmt.Errorf("port must be between 1 and 65535, got %d", port)
	case cfg.TokenTTL <= 0:
		err = fmt.Errorf("token_ttl must be positive, got %v", cfg.TokenTTL)
	case cfg.SubmitRate <= 0 || cfg.SubmitBurst <= 0:
		err = errors.New("submit.rate and submit.burst must be positive")
	default:
		if _, lerr := log.ParseLevel(cfg.LogLevel); lerr != nil {
			err = fmt.Errorf("log.level: %w", lerr)
		}
	}
	return
}

// RequireTokenSecret fails when no token secret was configured.
func (cfg Config) RequireTokenSecret() error {
	if cfg.TokenSecret == "" {
		return fmt.Errorf("missing token secret (set %s_TOKEN_SECRET or --token-secret)", EnvPrefix)
	}
	return nil
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
