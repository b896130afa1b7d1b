// Package config assembles the read-only settings of a download job.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/ripfetch/internal/downloaders/s3"
	"github.com/tanq16/ripfetch/internal/utils"
)

const EnvPrefix = "RIPFETCH"

type Config struct {
	Retries          int           `yaml:"retries" envconfig:"RETRIES" validate:"gte=0"`
	RetrySleep       time.Duration `yaml:"retry_sleep" envconfig:"RETRY_SLEEP" validate:"gte=0"`
	RateLimitRetries int           `yaml:"rate_limit_retries" envconfig:"RATE_LIMIT_RETRIES" validate:"gte=0"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" validate:"gt=0"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`

	Overwrite         bool     `yaml:"overwrite" envconfig:"OVERWRITE"`
	MaxPerDomain      int      `yaml:"max_per_domain" envconfig:"MAX_PER_DOMAIN" validate:"gte=1"`
	MaxDownloads      int      `yaml:"max_downloads" envconfig:"MAX_DOWNLOADS" validate:"gte=0"`
	MinFileSize       int64    `yaml:"min_file_size" envconfig:"MIN_FILE_SIZE" validate:"gte=0"`
	SkipNotFound      bool     `yaml:"skip_not_found" envconfig:"SKIP_NOT_FOUND"`
	NotFoundMaskHosts []string `yaml:"not_found_mask_hosts" envconfig:"NOT_FOUND_MASK_HOSTS" validate:"dive,hostname_rfc1123"`
	TestMode          bool     `yaml:"test_mode" envconfig:"TEST_MODE"`
	TestModeMaxBytes  int64    `yaml:"test_mode_max_bytes" envconfig:"TEST_MODE_MAX_BYTES" validate:"gte=0"`

	UserAgent     string            `yaml:"user_agent" envconfig:"USER_AGENT"`
	Headers       map[string]string `yaml:"headers" envconfig:"HEADERS"`
	ProxyURL      string            `yaml:"proxy_url" envconfig:"PROXY_URL" validate:"omitempty,url"`
	ProxyUsername string            `yaml:"proxy_username" envconfig:"PROXY_USERNAME"`
	ProxyPassword string            `yaml:"proxy_password" envconfig:"PROXY_PASSWORD"`
	BearerToken   string            `yaml:"bearer_token" envconfig:"BEARER_TOKEN"`

	S3 S3Config `yaml:"s3" envconfig:"S3"`

	DedupDB     string `yaml:"dedup_db" envconfig:"DEDUP_DB"`
	DedupScope  string `yaml:"dedup_scope" envconfig:"DEDUP_SCOPE" validate:"required_with=DedupDB"`
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	Debug       bool   `yaml:"debug" envconfig:"DEBUG"`
}

type S3Config struct {
	Profile   string `yaml:"profile" envconfig:"PROFILE"`
	Region    string `yaml:"region" envconfig:"REGION"`
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
}

func Default() Config {
	return Config{
		Retries:           3,
		RetrySleep:        2 * time.Second,
		RateLimitRetries:  10,
		ConnectTimeout:    30 * time.Second,
		ReadTimeout:       60 * time.Second,
		MaxPerDomain:      10,
		MinFileSize:       100,
		NotFoundMaskHosts: []string{"imgur.com"},
		TestModeMaxBytes:  10 * 1024 * 1024,
		DedupScope:        "default",
	}
}

// Load layers a YAML file (optional), a dotenv file (optional) and RIPFETCH_*
// environment variables over the defaults, then validates the result.
// Variables already in the environment win over the dotenv file.
func Load(yamlFile, envFile string) (*Config, error) {
	cfg := Default()
	if yamlFile != "" {
		data, err := os.ReadFile(yamlFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// HTTPClientConfig moves credentials embedded in the proxy URL into the
// username and password fields unless those are set explicitly.
func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	hc := utils.HTTPClientConfig{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		ProxyURL:       c.ProxyURL,
		ProxyUsername:  c.ProxyUsername,
		ProxyPassword:  c.ProxyPassword,
		UserAgent:      c.UserAgent,
		BearerToken:    c.BearerToken,
		Headers:        c.Headers,
	}
	parsed, err := url.Parse(c.ProxyURL)
	if err == nil && parsed.User != nil && hc.ProxyUsername == "" {
		hc.ProxyUsername = parsed.User.Username()
		if password, set := parsed.User.Password(); set {
			hc.ProxyPassword = password
		}
		parsed.User = nil
		hc.ProxyURL = parsed.String()
	}
	return hc
}

func (c *Config) DownloadOptions() utils.DownloadOptions {
	return utils.DownloadOptions{
		Retries:           c.Retries,
		RetrySleep:        c.RetrySleep,
		RateLimitRetries:  c.RateLimitRetries,
		Overwrite:         c.Overwrite,
		MinFileSize:       c.MinFileSize,
		SkipNotFound:      c.SkipNotFound,
		NotFoundMaskHosts: c.NotFoundMaskHosts,
		TestMode:          c.TestMode,
		TestModeMaxBytes:  c.TestModeMaxBytes,
	}
}

// S3Options maps the object store settings; SDK attempts follow Retries.
func (c *Config) S3Options() s3.ClientOptions {
	return s3.ClientOptions{
		Profile:     c.S3.Profile,
		Region:      c.S3.Region,
		Endpoint:    c.S3.Endpoint,
		AccessKey:   c.S3.AccessKey,
		SecretKey:   c.S3.SecretKey,
		MaxAttempts: c.Retries + 1,
	}
}
