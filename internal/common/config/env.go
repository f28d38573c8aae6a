package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Token sources
const (
	TokenSourceEnv            = "env"
	TokenSourceSecretsManager = "secretsmanager"
)

// Config represents the application configuration
type Config struct {
	// Remote banking API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Environment and region info
	Environment string
	Region      string
	LogLevel    string

	// Local cache
	StoreBackend string
	SQLitePath   string
	// Partition of the session item when the backend is DynamoDB
	ProfileID string

	// AWS-specific configuration
	AWSRegion         string
	DynamoDBTableName string

	// Credentials
	TokenSource   string
	AccessToken   string
	TokenSecretID string
	TokenCache    bool

	// Sync and local API
	SyncInterval time.Duration
	ListenAddr   string

	// Lambda detection flag (cached)
	isLambda bool
}

// LoadFromEnv loads the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	var problems []error

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("API_BASE_URL"))

	cfg.Environment = getenv("ENVIRONMENT", "dev")
	cfg.LogLevel = getenv("LOG_LEVEL", "info")

	cfg.Region = getenv("REGION", "jp")
	cfg.AWSRegion = os.Getenv("AWS_REGION")
	if cfg.AWSRegion == "" {
		// Default AWS regions based on our region code
		switch cfg.Region {
		case "us":
			cfg.AWSRegion = "us-west-2"
		case "eu":
			cfg.AWSRegion = "eu-west-1"
		default:
			cfg.AWSRegion = "ap-northeast-1"
		}
	}

	cfg.isLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	cfg.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", BackendSQLite))
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	if cfg.SQLitePath == "" {
		if cfg.isLambda {
			cfg.SQLitePath = "/tmp/pocketbank.db" // only /tmp is writable
		} else {
			cfg.SQLitePath = "./data/pocketbank.db"
		}
	}
	cfg.ProfileID = getenv("PROFILE_ID", "default")
	cfg.DynamoDBTableName = os.Getenv("DYNAMODB_TABLE_NAME")

	cfg.TokenSource = strings.ToLower(getenv("TOKEN_SOURCE", TokenSourceEnv))
	cfg.AccessToken = os.Getenv("ACCESS_TOKEN")
	cfg.TokenSecretID = os.Getenv("TOKEN_SECRET_ID")
	if v := os.Getenv("TOKEN_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Errorf("TOKEN_CACHE must be a boolean: %q", v))
		}
		cfg.TokenCache = b
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		problems = append(problems, err)
	}
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", 5*time.Minute); err != nil {
		problems = append(problems, err)
	}
	cfg.ListenAddr = getenv("LISTEN_ADDR", ":8080")

	if err := errors.Join(append(problems, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var problems []error

	if c.APIBaseURL == "" {
		problems = append(problems, errors.New("API_BASE_URL environment variable is required"))
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, errors.New("SQLITE_PATH must not be empty"))
		}
	case BackendDynamoDB:
		if c.DynamoDBTableName == "" {
			problems = append(problems, errors.New("DYNAMODB_TABLE_NAME environment variable is required for the dynamodb backend"))
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.TokenSource {
	case TokenSourceEnv:
	case TokenSourceSecretsManager:
		if c.TokenSecretID == "" {
			problems = append(problems, errors.New("TOKEN_SECRET_ID environment variable is required for the secretsmanager token source"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown TOKEN_SOURCE %q", c.TokenSource))
	}

	if c.HTTPTimeout <= 0 {
		problems = append(problems, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.SyncInterval <= 0 {
		problems = append(problems, errors.New("SYNC_INTERVAL must be positive"))
	}

	return errors.Join(problems...)
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsLambda returns true if the application is running in AWS Lambda
func (c *Config) IsLambda() bool {
	return c.isLambda
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration: %q", key, v)
	}
	return d, nil
}
