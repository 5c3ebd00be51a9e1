package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers for response and tab rows.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TeamTTL  string `yaml:"teamTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	DynamoDB struct {
		Table    string `yaml:"table"`
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"dynamodb"`
	Questions struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"questions"`
	Bot struct {
		AppID          string `yaml:"appId"`
		AppPassword    string `yaml:"appPassword"`
		TenantID       string `yaml:"tenantId"`
		ManifestID     string `yaml:"manifestId"`
		TokenURL       string `yaml:"tokenUrl"`
		MaxRetries     int    `yaml:"maxRetries"`
		RetryDelay     string `yaml:"retryDelay"`
		MaxRetryDelay  string `yaml:"maxRetryDelay"`
		MaxElapsed     string `yaml:"maxElapsed"`
		TaskQueueSize  int    `yaml:"taskQueueSize"`
		MembersPerPage int    `yaml:"membersPerPage"`
	} `yaml:"bot"`
	Graph struct {
		BaseURL string `yaml:"baseUrl"`
	} `yaml:"graph"`
	Bing struct {
		APIURL        string `yaml:"apiUrl"`
		APIKey        string `yaml:"apiKey"`
		SafeSearch    string `yaml:"safeSearch"`
		DefaultMarket string `yaml:"defaultMarket"`
	} `yaml:"bing"`
	Auth struct {
		SigningKey string `yaml:"signingKey"`
		Issuer     string `yaml:"issuer"`
	} `yaml:"auth"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
	RateLimit struct {
		PerSecond float64 `yaml:"perSecond"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rateLimit"`
	Secrets struct {
		SSMPrefix string `yaml:"ssmPrefix"`
	} `yaml:"secrets"`
}

// Load reads YAML config from path. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes YAML config, applying environment expansion and defaults.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the environment if it exists.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Bot.TokenURL == "" {
		c.Bot.TokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	}
	if c.Bot.MaxRetries == 0 {
		c.Bot.MaxRetries = 2
	}
	if c.Bing.APIURL == "" {
		c.Bing.APIURL = "https://api.bing.microsoft.com/v7.0/search"
	}
	if c.Bing.SafeSearch == "" {
		c.Bing.SafeSearch = "Strict"
	}
	if c.Bing.DefaultMarket == "" {
		c.Bing.DefaultMarket = "en-US"
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("storage driver %q requires postgres.url", c.Storage.Driver)
		}
	case DriverDynamoDB:
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("storage driver %q requires dynamodb.table", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Bot.MaxRetries < 0 {
		return fmt.Errorf("bot.maxRetries must not be negative")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
