package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSMTP     = "smtp"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Seed      SeedConfig      `yaml:"seed"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`      // HTTP API
	GRPCPort            int    `yaml:"grpc_port"` // health + reflection
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Database               string `yaml:"database"`
	SSLMode                string `yaml:"ssl_mode"`
	LockTimeoutMs          int    `yaml:"lock_timeout_ms"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `yaml:"auto_migrate"`
}

// EmailConfig contains delivery and queue settings. Provider is
// "sendgrid" (default) or "smtp".
type EmailConfig struct {
	Enabled        bool       `yaml:"enabled"`
	Provider       string     `yaml:"provider"`
	SendGridAPIKey string     `yaml:"sendgrid_api_key"`
	SMTP           SMTPConfig `yaml:"smtp"`
	FromAddress    string     `yaml:"from_address"`
	FromName       string     `yaml:"from_name"`
	LoginURL       string     `yaml:"login_url"`
	QueueSize      int        `yaml:"queue_size"`
	Workers        int        `yaml:"workers"`
	MaxRetries     int        `yaml:"max_retries"`
}

// SMTPConfig contains SMTP relay settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SeedConfig describes the reference data written on startup
type SeedConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	// Extra roles beyond the membership tiers; slugs derive from names.
	Roles []RoleSeedConfig `yaml:"roles"`
}

type RoleSeedConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// WorkflowConfig tunes the decision workflow. The tier to role mapping
// lives in domain.MembershipType.RoleSlug.
type WorkflowConfig struct {
	BcryptCost         int `yaml:"bcrypt_cost"`
	TempPasswordLength int `yaml:"temp_password_length"`
}

// SchedulerConfig contains cron schedule settings (six fields, seconds
// first). "off" disables a job.
type SchedulerConfig struct {
	PendingDigest          string `yaml:"pending_digest"`
	CallReminders          string `yaml:"call_reminders"`
	PendingDigestAfterDays int    `yaml:"pending_digest_after_days"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("WORKFLOW_LOCK_TIMEOUT_MS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.LockTimeoutMs)
	}

	// Email
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("SENDGRID_FROM"); val != "" {
		c.Email.FromAddress = val
	}
	if val := os.Getenv("EMAIL_PROVIDER"); val != "" {
		c.Email.Provider = val
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.Email.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Email.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.Email.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.Email.SMTP.Password = val
	}
	if val := os.Getenv("EMAIL_ENABLED"); val != "" {
		c.Email.Enabled = val == "true" || val == "1"
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Seed
	if val := os.Getenv("SEED_ADMIN_EMAIL"); val != "" {
		c.Seed.AdminEmail = val
	}
	if val := os.Getenv("SEED_ADMIN_PASSWORD"); val != "" {
		c.Seed.AdminPassword = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.LockTimeoutMs < 0 {
		return fmt.Errorf("invalid lock timeout: %dms", c.Database.LockTimeoutMs)
	}
	if c.Database.LockTimeoutMs == 0 {
		c.Database.LockTimeoutMs = 5000
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeMinutes == 0 {
		c.Database.ConnMaxLifetimeMinutes = 30
	}

	// Email validation
	if c.Email.Provider == "" {
		c.Email.Provider = EmailProviderSendGrid
	}
	if c.Email.Provider != EmailProviderSendGrid && c.Email.Provider != EmailProviderSMTP {
		return fmt.Errorf("unknown email provider: %s", c.Email.Provider)
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Email.Enabled {
		switch c.Email.Provider {
		case EmailProviderSendGrid:
			if c.Email.SendGridAPIKey == "" {
				return fmt.Errorf("SendGrid API key is required when email is enabled")
			}
		case EmailProviderSMTP:
			if c.Email.SMTP.Host == "" {
				return fmt.Errorf("SMTP host is required when email is enabled")
			}
			if c.Email.SMTP.Port < 0 || c.Email.SMTP.Port > 65535 {
				return fmt.Errorf("invalid SMTP port: %d", c.Email.SMTP.Port)
			}
		}
		if c.Email.FromAddress == "" {
			return fmt.Errorf("email from address is required when email is enabled")
		}
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Voluntia"
	}
	if c.Email.QueueSize == 0 {
		c.Email.QueueSize = 100
	}
	if c.Email.Workers == 0 {
		c.Email.Workers = 3
	}
	if c.Email.MaxRetries == 0 {
		c.Email.MaxRetries = 3
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "voluntia-backend"
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Seed validation
	if c.Seed.Enabled && c.Seed.AdminEmail != "" && len(c.Seed.AdminPassword) < 8 {
		return fmt.Errorf("seed admin password must be at least 8 characters")
	}
	if c.Seed.AdminName == "" {
		c.Seed.AdminName = "Administrator"
	}

	// Workflow defaults
	if c.Workflow.BcryptCost == 0 {
		c.Workflow.BcryptCost = 12
	}
	if c.Workflow.BcryptCost < 4 || c.Workflow.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", c.Workflow.BcryptCost)
	}
	if c.Workflow.TempPasswordLength == 0 {
		c.Workflow.TempPasswordLength = 12
	}
	if c.Workflow.TempPasswordLength < 8 {
		return fmt.Errorf("temporary password length must be at least 8")
	}

	// Scheduler defaults
	if c.Scheduler.PendingDigest == "" {
		c.Scheduler.PendingDigest = "0 0 8 * * *" // Daily at 8 AM UTC
	}
	if c.Scheduler.CallReminders == "" {
		c.Scheduler.CallReminders = "0 0 * * * *" // Hourly
	}
	if c.Scheduler.PendingDigestAfterDays == 0 {
		c.Scheduler.PendingDigestAfterDays = 3
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP API address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the health server address; empty when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Database.LockTimeoutMs) * time.Millisecond
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}
