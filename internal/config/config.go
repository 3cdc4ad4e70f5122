package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Advisory providers
const (
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	Debug       bool              `yaml:"debug"` // Enable debug logging
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Verify      VerifyConfig      `yaml:"verify"`
	Advisory    AdvisoryConfig    `yaml:"advisory"`
	Triggers    TriggerConfig     `yaml:"triggers"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Web         WebConfig         `yaml:"web"`
	Database    DatabaseConfig    `yaml:"database"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// CoordinatorConfig bounds the verification gate and the advisory queue
type CoordinatorConfig struct {
	QueueCapacity    int           `yaml:"queue_capacity"`
	ExclusiveTimeout time.Duration `yaml:"exclusive_timeout"` // e.g. "5m"
	QueuedTimeout    time.Duration `yaml:"queued_timeout"`
}

// VerifyConfig points at the remote attendance checker
type VerifyConfig struct {
	APIURL      string `yaml:"api_url"`
	APIURLEnv   string `yaml:"api_url_env"`
	Username    string `yaml:"username"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"` // never stored in the file
}

// AdvisoryConfig represents the language model provider configuration
type AdvisoryConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"` // OpenAI-compatible endpoint, deepseek only
	APIKey       string `yaml:"api_key"`  // Direct API key (takes precedence over api_key_env)
	APIKeyEnv    string `yaml:"api_key_env"`
	SystemPrompt string `yaml:"system_prompt"`
}

// TriggerConfig holds the chat phrases that start tasks
type TriggerConfig struct {
	Verify   string `yaml:"verify"`   // matched anywhere in the message, case-insensitive
	Advisory string `yaml:"advisory"` // message prefix, the rest is the question
}

// TelegramConfig represents the Telegram bot transport
type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Token        string  `yaml:"token"`
	TokenEnv     string  `yaml:"token_env"`
	AllowedChats []int64 `yaml:"allowed_chats"` // empty allows every chat
	PollTimeout  int     `yaml:"poll_timeout"`  // long-poll seconds
	APIURL       string  `yaml:"api_url"`
}

// WebConfig represents the HTTP server
type WebConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AuthHeader  string `yaml:"auth_header"` // set by an authenticating proxy
	APIToken    string `yaml:"api_token"`   // bearer token for the /api endpoints
	APITokenEnv string `yaml:"api_token_env"`
}

// DatabaseConfig selects the task history store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// NotifyConfig represents the attendance email digest
type NotifyConfig struct {
	Enabled        bool     `yaml:"enabled"`
	DryRun         bool     `yaml:"dry_run"`
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`     // Direct API key
	SendGridKeyEnv string   `yaml:"sendgrid_api_key_env"` // Environment variable name
	FromEmail      string   `yaml:"from_email"`
	FromName       string   `yaml:"from_name"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Recipients     []string `yaml:"recipients"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.local/share/presensi",
		Coordinator: CoordinatorConfig{
			QueueCapacity:    5,
			ExclusiveTimeout: 5 * time.Minute,
			QueuedTimeout:    60 * time.Second,
		},
		Verify: VerifyConfig{
			APIURLEnv:   "API_URL",
			UsernameEnv: "UGM_USERNAME",
			PasswordEnv: "UGM_PASSWORD",
		},
		Advisory: AdvisoryConfig{
			Provider:  ProviderDeepSeek,
			Model:     "deepseek-chat",
			BaseURL:   "https://api.deepseek.com",
			APIKeyEnv: "DEEPSEEK_API_KEY",
		},
		Triggers: TriggerConfig{
			Verify:   "ancis presensi kkn",
			Advisory: "ancis tanya",
		},
		Telegram: TelegramConfig{
			TokenEnv:    "TELEGRAM_BOT_TOKEN",
			PollTimeout: 30,
			APIURL:      "https://api.telegram.org",
		},
		Web: WebConfig{
			Enabled:     true,
			Host:        "localhost",
			Port:        8080,
			AuthHeader:  "X-Forwarded-Email",
			APITokenEnv: "PRESENSI_WEB_TOKEN",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Notify: NotifyConfig{
			SendGridKeyEnv: "SENDGRID_API_KEY",
			FromEmail:      "presensi@example.com",
			FromName:       "Presensi Bot",
			SubjectPrefix:  "[Presensi]",
		},
	}
}

// Load loads configuration from the specified path, falling back to defaults.
// Environment overrides are applied on top of the file.
func Load(configPath string) (*Config, error) {
	// If no path specified, use default location
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "presensi", "config.yaml")
	}

	configPath = expandPath(configPath)
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.DataDir = expandPath(cfg.DataDir)

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PRESENSI_QUEUE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PRESENSI_QUEUE_CAPACITY %q: %w", v, err)
		}
		c.Coordinator.QueueCapacity = n
	}
	if v := os.Getenv("PRESENSI_EXCLUSIVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PRESENSI_EXCLUSIVE_TIMEOUT %q: %w", v, err)
		}
		c.Coordinator.ExclusiveTimeout = d
	}
	if v := os.Getenv("PRESENSI_QUEUED_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PRESENSI_QUEUED_TIMEOUT %q: %w", v, err)
		}
		c.Coordinator.QueuedTimeout = d
	}
	return nil
}

// Validate checks the settings the bot cannot run without
func (c *Config) Validate() error {
	if c.Coordinator.QueueCapacity < 1 {
		return fmt.Errorf("coordinator.queue_capacity must be positive, got %d", c.Coordinator.QueueCapacity)
	}
	if c.Coordinator.ExclusiveTimeout <= 0 {
		return fmt.Errorf("coordinator.exclusive_timeout must be positive, got %s", c.Coordinator.ExclusiveTimeout)
	}
	if c.Coordinator.QueuedTimeout <= 0 {
		return fmt.Errorf("coordinator.queued_timeout must be positive, got %s", c.Coordinator.QueuedTimeout)
	}
	switch c.Advisory.Provider {
	case ProviderDeepSeek, ProviderGemini:
	default:
		return fmt.Errorf("unknown advisory provider: %q", c.Advisory.Provider)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	if c.Triggers.Verify == "" || c.Triggers.Advisory == "" {
		return fmt.Errorf("triggers.verify and triggers.advisory must be set")
	}
	return nil
}

// expandPath expands ~ to home directory in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return homeDir
		}
		return filepath.Join(homeDir, path[1:])
	}

	return path
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// lookup returns direct when set, otherwise the value of the env variable
func lookup(direct, env string) string {
	if direct != "" {
		return direct
	}
	if env != "" {
		return os.Getenv(env)
	}
	return ""
}

// GetAPIURL returns the checker URL, checking the direct value first then env var
func (c *Config) GetAPIURL() string {
	return lookup(c.Verify.APIURL, c.Verify.APIURLEnv)
}

// GetCredentials returns the checker username and password
func (c *Config) GetCredentials() (string, string) {
	return lookup(c.Verify.Username, c.Verify.UsernameEnv), lookup("", c.Verify.PasswordEnv)
}

// GetAdvisoryAPIKey returns the model provider API key
func (c *Config) GetAdvisoryAPIKey() string {
	return lookup(c.Advisory.APIKey, c.Advisory.APIKeyEnv)
}

// GetTelegramToken returns the Telegram bot token
func (c *Config) GetTelegramToken() string {
	return lookup(c.Telegram.Token, c.Telegram.TokenEnv)
}

// GetSendGridAPIKey returns the SendGrid API key, checking direct key first then env var
func (c *Config) GetSendGridAPIKey() string {
	return lookup(c.Notify.SendGridAPIKey, c.Notify.SendGridKeyEnv)
}

// GetDatabaseDSN returns the connection string for the configured driver.
// Without an explicit DSN the sqlite database lives in the data directory.
func (c *Config) GetDatabaseDSN() string {
	if dsn := lookup(c.Database.DSN, c.Database.DSNEnv); dsn != "" {
		return dsn
	}
	if c.Database.Driver == DriverSQLite {
		return filepath.Join(expandPath(c.DataDir), "presensi.db")
	}
	return ""
}

// GetWebAddr returns the listen address of the HTTP server
func (c *Config) GetWebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// GetWebAPIToken returns the bearer token protecting the /api endpoints.
// An empty token leaves them open.
func (c *Config) GetWebAPIToken() string {
	return lookup(c.Web.APIToken, c.Web.APITokenEnv)
}

// ChatAllowed reports whether the Telegram chat may use the bot
func (c *Config) ChatAllowed(chatID int64) bool {
	if len(c.Telegram.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}
