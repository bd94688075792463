package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration loaded from YAML and env.
type Config struct {
	ServerName    string
	ServerVersion string

	CacheBackend    string // "in_memory" or "memcached"
	CacheWindow     time.Duration
	CacheMaxEntries int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	GeocodingURL    string
	WeatherURL      string
	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	UpstreamBurst   int

	MaxCityLength int

	WarmCities []string

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the listener entirely; stdio stays the only surface.
	MetricsAddr string
}

type fileConfig struct {
	Server struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"server"`

	Cache struct {
		Backend    string `yaml:"backend"`
		Window     string `yaml:"window"`
		MaxEntries int    `yaml:"max_entries"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Upstream struct {
		GeocodingURL   string  `yaml:"geocoding_url"`
		WeatherURL     string  `yaml:"weather_url"`
		Timeout        string  `yaml:"timeout"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"upstream"`

	Validation struct {
		MaxCityLength int `yaml:"max_city_length"`
	} `yaml:"validation"`

	Warming struct {
		Cities []string `yaml:"cities"`
	} `yaml:"warming"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev),
// applying env overrides on top. A missing file is not an error: every field
// has a working default, so the server runs with no config at all. A .env
// file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerName = fc.Server.Name
	if cfg.ServerName == "" {
		cfg.ServerName = "openmeteo-mcp"
	}
	cfg.ServerVersion = fc.Server.Version
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheWindow = parseDuration(fc.Cache.Window, 30*time.Minute)
	cfg.CacheMaxEntries = fc.Cache.MaxEntries
	if cfg.CacheMaxEntries < 0 {
		cfg.CacheMaxEntries = 0
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.GeocodingURL = strings.TrimSpace(os.Getenv("GEOCODING_URL"))
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = strings.TrimSpace(fc.Upstream.GeocodingURL)
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	cfg.WeatherURL = strings.TrimSpace(os.Getenv("WEATHER_URL"))
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = strings.TrimSpace(fc.Upstream.WeatherURL)
	}
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 10*time.Second)
	cfg.UpstreamRPS = fc.Upstream.RateLimitRPS
	if cfg.UpstreamRPS <= 0 {
		cfg.UpstreamRPS = 5
	}
	cfg.UpstreamBurst = fc.Upstream.RateLimitBurst
	if cfg.UpstreamBurst <= 0 {
		cfg.UpstreamBurst = 10
	}

	cfg.MaxCityLength = fc.Validation.MaxCityLength
	if cfg.MaxCityLength <= 0 {
		cfg.MaxCityLength = 100
	}

	cfg.WarmCities = fc.Warming.Cities

	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = strings.TrimSpace(fc.Metrics.Addr)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	for _, city := range cfg.WarmCities {
		if strings.TrimSpace(city) == "" {
			return fmt.Errorf("warming.cities must not contain blank entries")
		}
	}
	return nil
}
