package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Resolution strategies.
const (
	MethodAPI       = "api"
	MethodExtractor = "extractor"
	MethodHybrid    = "hybrid"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheMongo  = "mongo"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
	StorageNone       = "none"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Resolve  ResolveConfig  `yaml:"resolve"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
	Embed    EmbedConfig    `yaml:"embed"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// AppConfig holds presentation values surfaced in rendered pages.
type AppConfig struct {
	Name    string `yaml:"name" envconfig:"APP_NAME" default:"TwitFix"`
	Repo    string `yaml:"repo" envconfig:"APP_REPO" default:"https://github.com/robinuniverse/twitfix"`
	BaseURL string `yaml:"base_url" envconfig:"APP_BASE_URL" default:"https://fxtwitter.com"`
	Color   string `yaml:"color" envconfig:"APP_COLOR" default:"#43B581"`
}

// ResolveConfig selects the upstream resolution strategy.
type ResolveConfig struct {
	Method string `yaml:"method" envconfig:"RESOLVE_METHOD" default:"hybrid"`
}

// TwitterConfig holds structured-API credentials.
type TwitterConfig struct {
	APIKey       string `yaml:"api_key" envconfig:"TWITTER_API_KEY"`
	APISecret    string `yaml:"api_secret" envconfig:"TWITTER_API_SECRET"`
	AccessToken  string `yaml:"access_token" envconfig:"TWITTER_ACCESS_TOKEN"`
	AccessSecret string `yaml:"access_secret" envconfig:"TWITTER_ACCESS_SECRET"`
}

// CacheConfig selects and configures the link cache backend.
type CacheConfig struct {
	Backend       string `yaml:"backend" envconfig:"CACHE_BACKEND" default:"file"`
	FilePath      string `yaml:"file_path" envconfig:"CACHE_FILE_PATH" default:"links.json"`
	SQLitePath    string `yaml:"sqlite_path" envconfig:"CACHE_SQLITE_PATH" default:"links.db"`
	MongoURI      string `yaml:"mongo_uri" envconfig:"CACHE_MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" envconfig:"CACHE_MONGO_DATABASE" default:"TwitFix"`
}

// StorageConfig selects and configures the media store backend.
type StorageConfig struct {
	Backend  string   `yaml:"backend" envconfig:"STORAGE_BACKEND" default:"none"`
	BasePath string   `yaml:"base_path" envconfig:"STORAGE_BASE_PATH" default:"./static"`
	S3       S3Config `yaml:"s3"`
}

// S3Config holds object-storage connection settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" envconfig:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" envconfig:"S3_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"S3_USE_SSL" default:"true"`
}

// DownloadConfig holds media download configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"5s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"60s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// EmbedConfig holds the allow-list of user-agents that receive rendered
// embeds; everything else gets a redirect. Kept as data rather than
// scattered string comparisons.
type EmbedConfig struct {
	UserAgents []string `yaml:"user_agents" envconfig:"EMBED_USER_AGENTS"`
}

// DefaultEmbedUserAgents are the link-unfurling clients known to fetch
// embeds: Discord, Telegram, Slack, Facebook, the two Steam clients, and
// the Revolt image proxy.
var DefaultEmbedUserAgents = []string{
	"facebookexternalhit/1.1",
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/31.0.1650.57 Safari/537.36",
	"Mozilla/5.0 (Windows; U; Windows NT 10.0; en-US; Valve Steam Client/default/1596241936; ) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.117 Safari/537.36",
	"Mozilla/5.0 (Windows; U; Windows NT 10.0; en-US; Valve Steam Client/default/0; ) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.117 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_1) AppleWebKit/601.2.4 (KHTML, like Gecko) Version/9.0.1 Safari/601.2.4 facebookexternalhit/1.1 Facebot Twitterbot/1.0",
	"Mozilla/5.0 (Windows; U; Windows NT 6.1; en-US; Valve Steam FriendsUI Tenfoot/0; ) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/84.0.4147.105 Safari/537.36",
	"Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.10; rv:38.0) Gecko/20100101 Firefox/38.0",
	"Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)",
	"TelegramBot (like TwitterBot)",
	"Mozilla/5.0 (compatible; January/1.0; +https://gitlab.insrt.uk/revolt/january)",
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if len(cfg.Embed.UserAgents) == 0 {
		cfg.Embed.UserAgents = DefaultEmbedUserAgents
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are consistent.
func (c *Config) Validate() error {
	switch c.Resolve.Method {
	case MethodAPI, MethodExtractor, MethodHybrid:
	default:
		return fmt.Errorf("resolve method must be %q, %q or %q, got %q",
			MethodAPI, MethodExtractor, MethodHybrid, c.Resolve.Method)
	}

	if c.Resolve.Method != MethodExtractor && c.Twitter.APIKey == "" {
		return fmt.Errorf("TWITTER_API_KEY is required for the %q resolve method", c.Resolve.Method)
	}

	switch c.Cache.Backend {
	case CacheFile, CacheSQLite:
	case CacheMongo:
		if c.Cache.MongoURI == "" {
			return fmt.Errorf("CACHE_MONGO_URI is required for the mongo cache backend")
		}
	default:
		return fmt.Errorf("unrecognized cache backend %q", c.Cache.Backend)
	}

	switch c.Storage.Backend {
	case StorageNone:
	case StorageFilesystem:
		if c.Storage.BasePath == "" {
			return fmt.Errorf("STORAGE_BASE_PATH is required for the filesystem storage backend")
		}
	case StorageS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unrecognized storage backend %q", c.Storage.Backend)
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
