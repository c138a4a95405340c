package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	uberconfig "go.uber.org/config"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Monitor MonitorConfig `yaml:"monitor"`
	Social  SocialConfig  `yaml:"social"`
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
	Auth    AuthConfig    `yaml:"auth"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type          string      `yaml:"type"` // "dynamodb", "mongodb", "postgresql", "sqlite"
	Region        string      `yaml:"region"`
	Endpoint      string      `yaml:"endpoint"` // Custom endpoint for local testing
	Tables        TableConfig `yaml:"tables"`
	MongoDBURI    string      `yaml:"mongodb_uri"`
	MongoDatabase string      `yaml:"mongodb_database"`
	PostgresURI   string      `yaml:"postgres_uri"`
	SQLitePath    string      `yaml:"sqlite_path"`
}

// TableConfig names the five logical tables
type TableConfig struct {
	RiskAnalysis  string `yaml:"risk_analysis"`
	EmotionLogs   string `yaml:"emotion_logs"`
	HealthData    string `yaml:"health_data"`
	HabitProgress string `yaml:"habit_progress"`
	Users         string `yaml:"users"`
}

// CacheConfig configures the optional Redis read-through cache. Empty Addr disables it.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MonitorConfig drives the periodic risk poll
type MonitorConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Account    string        `yaml:"account"`
	Interval   time.Duration `yaml:"interval"`
	Window     time.Duration `yaml:"window"`
	MaxResults int           `yaml:"max_results"`
	Threshold  float64       `yaml:"threshold"`
}

// SocialConfig holds the social-media read API settings
type SocialConfig struct {
	BaseURL     string        `yaml:"base_url"`
	BearerToken string        `yaml:"bearer_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LLMConfig selects and configures the hosted text-generation model
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // "gemini" or "openai"
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ChatConfig holds the retrieval-augmented chat endpoint settings
type ChatConfig struct {
	RAGEndpoint string        `yaml:"rag_endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AuthConfig holds token signing settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// NotifyConfig configures alert publishing. No brokers disables it.
type NotifyConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	Topic        string   `yaml:"topic"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Storage: StorageConfig{
			Type:   "dynamodb",
			Region: "ap-south-1",
			Tables: TableConfig{
				RiskAnalysis:  "TweetRiskAnalysis",
				EmotionLogs:   "UserEmotionLogs",
				HealthData:    "UserHealthData",
				HabitProgress: "HabitFlowProgress",
				Users:         "UserAuth",
			},
			MongoDatabase: "moodmate",
			SQLitePath:    "./data/moodmate.db",
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Monitor: MonitorConfig{
			Enabled:    true,
			Interval:   17 * time.Minute,
			Window:     24 * time.Hour,
			MaxResults: 10,
			Threshold:  0.85,
		},
		Social: SocialConfig{
			BaseURL: "https://api.twitter.com/2",
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 100,
			Timeout:         60 * time.Second,
		},
		Chat: ChatConfig{
			Timeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Topic: "risk-alerts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the YAML file named by CONFIG_PATH (if present),
// layered over defaults, then applies environment variable overrides.
func Load() (*Config, error) {
	configPath := getEnv("CONFIG_PATH", "./config/config.yaml")

	cfg, err := loadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()

	options := []uberconfig.YAMLOption{uberconfig.Static(cfg)}
	if _, err := os.Stat(path); err == nil {
		options = append(options, uberconfig.File(path), uberconfig.Expand(os.LookupEnv))
	}

	provider, err := uberconfig.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	if err := provider.Get(uberconfig.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("failed to populate config: %w", err)
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables if present
func (c *Config) overrideFromEnv() {
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.Region = getEnv("AWS_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnv("DYNAMODB_ENDPOINT", c.Storage.Endpoint)
	c.Storage.MongoDBURI = getEnv("MONGODB_URI", c.Storage.MongoDBURI)
	c.Storage.MongoDatabase = getEnv("MONGODB_DATABASE", c.Storage.MongoDatabase)
	c.Storage.PostgresURI = getEnv("POSTGRES_URI", c.Storage.PostgresURI)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)

	c.Cache.Addr = getEnv("REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnv("REDIS_PASSWORD", c.Cache.Password)
	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)

	c.Monitor.Enabled = getEnvBool("MONITOR_ENABLED", c.Monitor.Enabled)
	c.Monitor.Account = getEnv("MONITOR_ACCOUNT", c.Monitor.Account)
	c.Monitor.Interval = getEnvDuration("MONITOR_INTERVAL", c.Monitor.Interval)
	c.Monitor.Window = getEnvDuration("MONITOR_WINDOW", c.Monitor.Window)
	c.Monitor.MaxResults = getEnvInt("MONITOR_MAX_RESULTS", c.Monitor.MaxResults)
	c.Monitor.Threshold = getEnvFloat("MONITOR_THRESHOLD", c.Monitor.Threshold)

	c.Social.BaseURL = getEnv("TWITTER_API_URL", c.Social.BaseURL)
	c.Social.BearerToken = getEnv("TWITTER_BEARER_TOKEN", c.Social.BearerToken)
	c.Social.Timeout = getEnvDuration("TWITTER_TIMEOUT", c.Social.Timeout)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)

	c.Chat.RAGEndpoint = getEnv("RAG_ENDPOINT", c.Chat.RAGEndpoint)
	c.Chat.Timeout = getEnvDuration("RAG_TIMEOUT", c.Chat.Timeout)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getEnvDuration("JWT_TTL", c.Auth.TokenTTL)

	c.Notify.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.Notify.KafkaBrokers)
	c.Notify.Topic = getEnv("KAFKA_ALERT_TOPIC", c.Notify.Topic)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Monitor.Enabled {
		if c.Monitor.Account == "" {
			errs = append(errs, errors.New("monitor account is required when monitoring is enabled"))
		}
		if c.Monitor.Interval <= 0 {
			errs = append(errs, errors.New("monitor interval must be positive"))
		}
	}
	if c.Monitor.Window <= 0 {
		errs = append(errs, errors.New("monitor window must be positive"))
	}
	if c.Monitor.MaxResults <= 0 {
		errs = append(errs, errors.New("monitor max results must be positive"))
	}
	if c.Monitor.Threshold < 0 || c.Monitor.Threshold > 1 {
		errs = append(errs, fmt.Errorf("monitor threshold %.2f must be within [0, 1]", c.Monitor.Threshold))
	}

	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
