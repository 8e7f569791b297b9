package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither -config nor APP_CONFIG names a file.
const DefaultPath = "/etc/mktvis/config.yml"

const (
	defaultAPIPort    = 8728
	defaultAPISSLPort = 8729
)

type Config struct {
	ListenPort     string        `yaml:"listen_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	RouterAddress   string        `yaml:"routerboard_address"` // host, port is separate
	RouterPort      int           `yaml:"routerboard_port"`
	RouterUser      string        `yaml:"routerboard_user"`
	RouterPassword  string        `yaml:"routerboard_password"`
	RouterUseSSL    bool          `yaml:"routerboard_use_ssl"`
	RouterSSLVerify bool          `yaml:"routerboard_ssl_certificate_verify"`
	RouterSSLCAPath string        `yaml:"routerboard_ssl_certificate_path"`
	RouterTimeout   time.Duration `yaml:"routerboard_timeout"`

	CityDBPath string `yaml:"city_db_path"`
	ASNDBPath  string `yaml:"asn_db_path"`
	GeoWorkers int    `yaml:"geo_lookup_workers"`

	RedisAddr     string        `yaml:"redis_address"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func defaults() Config {
	return Config{
		ListenPort:      "8080",
		RequestTimeout:  10 * time.Second,
		RouterSSLVerify: true,
		RouterTimeout:   6 * time.Second,
		GeoWorkers:      8,
		RedisTTL:        24 * time.Hour,
		LogLevel:        "info",
	}
}

// ResolvePath picks the config file: the flag value, then APP_CONFIG, then
// DefaultPath if it exists. An empty result means environment only.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	if st, err := os.Stat(DefaultPath); err == nil && !st.IsDir() {
		return DefaultPath
	}
	return ""
}

// Load reads the YAML file at path (if any), applies APP_* environment
// overrides and validates the result. Unknown YAML keys are errors.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setSeconds := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Second
		}
	}

	setString("APP_HTTP_PORT", &cfg.ListenPort)
	setSeconds("APP_REQUEST_SECONDS", &cfg.RequestTimeout)

	setString("APP_MIKROTIK_ADDR", &cfg.RouterAddress)
	setInt("APP_MIKROTIK_PORT", &cfg.RouterPort)
	setString("APP_MIKROTIK_USER", &cfg.RouterUser)
	setString("APP_MIKROTIK_PASSWORD", &cfg.RouterPassword)
	setBool("APP_MIKROTIK_TLS", &cfg.RouterUseSSL)
	setBool("APP_MIKROTIK_TLS_VERIFY", &cfg.RouterSSLVerify)
	setString("APP_MIKROTIK_TLS_CA", &cfg.RouterSSLCAPath)
	setSeconds("APP_MIKROTIK_SECONDS", &cfg.RouterTimeout)

	setString("APP_CITY_DB", &cfg.CityDBPath)
	setString("APP_ASN_DB", &cfg.ASNDBPath)
	setInt("APP_GEO_WORKERS", &cfg.GeoWorkers)

	setString("APP_REDIS_ADDR", &cfg.RedisAddr)
	setString("APP_REDIS_PASSWORD", &cfg.RedisPassword)
	setInt("APP_REDIS_DB", &cfg.RedisDB)
	setSeconds("APP_REDIS_TTL_SECONDS", &cfg.RedisTTL)

	setString("APP_LOG_LEVEL", &cfg.LogLevel)
	setString("APP_LOG_FILE", &cfg.LogFile)

	return errors.Join(errs...)
}

// Validate reports every invalid or missing field at once.
func (c Config) Validate() error {
	var errs []error
	if c.RouterAddress == "" {
		errs = append(errs, errors.New("routerboard_address is required"))
	}
	if c.RouterPort < 0 || c.RouterPort > 65535 {
		errs = append(errs, fmt.Errorf("routerboard_port %d out of range", c.RouterPort))
	}
	if c.CityDBPath == "" {
		errs = append(errs, errors.New("city_db_path is required"))
	}
	if c.ListenPort == "" {
		errs = append(errs, errors.New("listen_port is required"))
	} else if n, err := strconv.Atoi(c.ListenPort); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("listen_port %q is not a valid port", c.ListenPort))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.RouterTimeout <= 0 {
		errs = append(errs, errors.New("routerboard_timeout must be positive"))
	}
	if c.GeoWorkers <= 0 {
		errs = append(errs, errors.New("geo_lookup_workers must be positive"))
	}
	if c.RedisAddr != "" && c.RedisTTL <= 0 {
		errs = append(errs, errors.New("redis_ttl must be positive when redis_address is set"))
	}
	return errors.Join(errs...)
}

// RouterAddr returns host:port for the RouterOS API, choosing the API or
// API-SSL default port when none is configured.
func (c Config) RouterAddr() string {
	port := c.RouterPort
	if port == 0 {
		port = defaultAPIPort
		if c.RouterUseSSL {
			port = defaultAPISSLPort
		}
	}
	return net.JoinHostPort(c.RouterAddress, strconv.Itoa(port))
}
