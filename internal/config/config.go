package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"framegate/internal/registry"
	"framegate/internal/upstream"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Upstream UpstreamConfig        `yaml:"upstream"`
	Cache    CacheConfig           `yaml:"cache"`
	Admin    AdminConfig           `yaml:"admin"`
	Log      LogConfig             `yaml:"log"`
	Games    []registry.GameConfig `yaml:"games"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"         env:"FRAMEGATE_ADDRESS"`
	TLS             TLSConfig     `yaml:"tls"`
	IPBlockCIDRs    []string      `yaml:"ipBlockCIDRs"    env:"FRAMEGATE_IP_BLOCK_CIDRS" envSeparator:","`
	TrustProxy      bool          `yaml:"trustProxy"      env:"FRAMEGATE_TRUST_PROXY"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     env:"FRAMEGATE_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    env:"FRAMEGATE_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"FRAMEGATE_SHUTDOWN_TIMEOUT"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"  env:"FRAMEGATE_TLS_ENABLED"`
	CertFile string `yaml:"certFile" env:"FRAMEGATE_TLS_CERT_FILE"`
	KeyFile  string `yaml:"keyFile"  env:"FRAMEGATE_TLS_KEY_FILE"`

	// RedirectAddress, when set, gets a plain HTTP listener that redirects to
	// the TLS address.
	RedirectAddress string `yaml:"redirectAddress" env:"FRAMEGATE_TLS_REDIRECT_ADDRESS"`
}

type UpstreamConfig struct {
	// BaseURLs are interchangeable mirrors of the FAT constants tree.
	BaseURLs           []string             `yaml:"baseURLs"           env:"FRAMEGATE_UPSTREAM_BASE_URLS"  envSeparator:","`
	Timeout            time.Duration        `yaml:"timeout"            env:"FRAMEGATE_UPSTREAM_TIMEOUT"`
	MaxBodyBytes       int64                `yaml:"maxBodyBytes"       env:"FRAMEGATE_UPSTREAM_MAX_BODY_BYTES"`
	UserAgent          string               `yaml:"userAgent"          env:"FRAMEGATE_UPSTREAM_USER_AGENT"`
	InsecureSkipVerify bool                 `yaml:"insecureSkipVerify" env:"FRAMEGATE_UPSTREAM_INSECURE_SKIP_VERIFY"`
	HealthCheck        HealthCheckConfig    `yaml:"healthCheck"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuitBreaker"`
}

type HealthCheckConfig struct {
	Enabled            bool          `yaml:"enabled"  env:"FRAMEGATE_HEALTHCHECK_ENABLED"`
	Path               string        `yaml:"path"     env:"FRAMEGATE_HEALTHCHECK_PATH"`
	Interval           time.Duration `yaml:"interval" env:"FRAMEGATE_HEALTHCHECK_INTERVAL"`
	Timeout            time.Duration `yaml:"timeout"  env:"FRAMEGATE_HEALTHCHECK_TIMEOUT"`
	UnhealthyThreshold int           `yaml:"unhealthyThreshold"`
	HealthyThreshold   int           `yaml:"healthyThreshold"`
}

// CircuitBreakerConfig is off while ConsecutiveFailures is zero.
type CircuitBreakerConfig struct {
	ConsecutiveFailures int           `yaml:"consecutiveFailures" env:"FRAMEGATE_CB_FAILURES"`
	Cooldown            time.Duration `yaml:"cooldown"            env:"FRAMEGATE_CB_COOLDOWN"`
}

type CacheConfig struct {
	Backend      string        `yaml:"backend"      env:"FRAMEGATE_CACHE_BACKEND"`
	ResponseTTL  time.Duration `yaml:"responseTTL"  env:"FRAMEGATE_CACHE_RESPONSE_TTL"`
	MaxEntries   int           `yaml:"maxEntries"   env:"FRAMEGATE_CACHE_MAX_ENTRIES"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes" env:"FRAMEGATE_CACHE_MAX_BODY_BYTES"`

	// DataTTL of zero keeps fetched game data until restart or an admin refresh.
	DataTTL time.Duration `yaml:"dataTTL" env:"FRAMEGATE_CACHE_DATA_TTL"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"      env:"FRAMEGATE_REDIS_ADDR"`
	Password  string `yaml:"password"  env:"FRAMEGATE_REDIS_PASSWORD"`
	DB        int    `yaml:"db"        env:"FRAMEGATE_REDIS_DB"`
	KeyPrefix string `yaml:"keyPrefix" env:"FRAMEGATE_REDIS_KEY_PREFIX"`
}

type AdminConfig struct {
	Enabled bool `yaml:"enabled" env:"FRAMEGATE_ADMIN_ENABLED"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"FRAMEGATE_LOG_LEVEL"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path, or starts from Default when path is
// empty, then applies FRAMEGATE_* environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	// Games come from the file only.
	for _, section := range []any{&cfg.Server, &cfg.Upstream, &cfg.Cache, &cfg.Admin, &cfg.Log} {
		if err := env.Parse(section); err != nil {
			return nil, fmt.Errorf("parse env: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}

	if len(cfg.Upstream.BaseURLs) == 0 {
		cfg.Upstream.BaseURLs = []string{upstream.DefaultBaseURL}
	}
	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = upstream.DefaultTimeout
	}
	if cfg.Upstream.MaxBodyBytes <= 0 {
		cfg.Upstream.MaxBodyBytes = upstream.DefaultMaxBodyBytes
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = BackendMemory
	}
	if cfg.Cache.ResponseTTL <= 0 {
		cfg.Cache.ResponseTTL = time.Hour
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Cache.MaxBodyBytes <= 0 {
		cfg.Cache.MaxBodyBytes = 4 << 20 // 4 MiB
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if len(cfg.Games) == 0 {
		cfg.Games = registry.DefaultGames()
	}
}

// Validate reports every problem found, joined.
func (cfg *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
		errs = append(errs, fmt.Errorf("server.address %q: %w", cfg.Server.Address, err))
	}
	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls: certFile and keyFile are required when enabled"))
	}
	if cfg.Server.TLS.RedirectAddress != "" && !cfg.Server.TLS.Enabled {
		errs = append(errs, errors.New("server.tls.redirectAddress requires tls to be enabled"))
	}
	for _, cidr := range cfg.Server.IPBlockCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("server.ipBlockCIDRs: %w", err))
		}
	}

	for _, raw := range cfg.Upstream.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("upstream.baseURLs: %w", err))
			continue
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("upstream.baseURLs: %q is not an absolute http(s) URL", raw))
		}
	}
	if cfg.Upstream.CircuitBreaker.ConsecutiveFailures < 0 {
		errs = append(errs, errors.New("upstream.circuitBreaker.consecutiveFailures must not be negative"))
	}

	switch cfg.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q: want %q or %q", cfg.Cache.Backend, BackendMemory, BackendRedis))
	}
	if cfg.Cache.DataTTL < 0 {
		errs = append(errs, errors.New("cache.dataTTL must not be negative"))
	}

	if _, err := registry.New(cfg.Games); err != nil {
		errs = append(errs, fmt.Errorf("games: %w", err))
	}

	return errors.Join(errs...)
}
