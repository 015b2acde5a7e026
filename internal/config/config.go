package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auction        AuctionConfig        `yaml:"auction"`
	Auth           AuthConfig           `yaml:"auth"`
	WebSocket      WebSocketConfig      `yaml:"websocket"`
	NATS           NATSConfig           `yaml:"nats"`
	Discord        DiscordConfig        `yaml:"discord"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	HealthPort      int           `yaml:"health_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DatabaseConfig holds ledger store settings.
type DatabaseConfig struct {
	Driver    string `yaml:"driver"`     // "postgres" or "memory"
	SQLDriver string `yaml:"sql_driver"` // "pq" or "pgx"
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	SSLMode   string `yaml:"sslmode"`
	Migrate   bool   `yaml:"migrate"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// AuctionConfig holds the auction rules that are not chosen per lot.
type AuctionConfig struct {
	// DefaultDuration is the countdown restored after settlement and on
	// every accepted bid.
	DefaultDuration time.Duration `yaml:"default_duration"`
	// DefaultIncrement is used when a lot is started without an increment.
	DefaultIncrement int64 `yaml:"default_increment"`
	// TickInterval is the length of one countdown second.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// WebSocketConfig holds real-time channel settings.
type WebSocketConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// NATSConfig holds settings for relaying auction events to JetStream.
type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Stream        string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// DiscordConfig holds settings for the lot result announcer.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
	// GuildID scopes the read-only slash commands. Empty registers them globally.
	GuildID string `yaml:"guild_id"`
}

// Enabled reports whether announcements should be posted.
func (d DiscordConfig) Enabled() bool {
	return d.Token != "" && d.ChannelID != ""
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	// OTLPEndpoint enables export when set; otherwise logs go to stdout as JSON.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Defaults returns the configuration used for any key the file omits.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            5000,
			HealthPort:      8080,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:    "postgres",
			SQLDriver: "pq",
			Host:      "localhost",
			Port:      5432,
			SSLMode:   "disable",
			Migrate:   true,
		},
		Auction: AuctionConfig{
			DefaultDuration:  30 * time.Second,
			DefaultIncrement: 10000,
			TickInterval:     time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 1024,
			SendBuffer:     256,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Stream:        "AUCTION_EVENTS",
			SubjectPrefix: "auction.events",
			MaxAge:        7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path. Secrets may be
// supplied through the environment instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("AUCTIOND_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := getenv("AUCTIOND_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := getenv("AUCTIOND_DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\" or \"memory\"", c.Database.Driver)
	}
	switch c.Database.SQLDriver {
	case "pq", "pgx":
	default:
		return fmt.Errorf("unsupported sql driver %q: must be \"pq\" or \"pgx\"", c.Database.SQLDriver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auction.DefaultDuration < time.Second {
		return fmt.Errorf("auction.default_duration must be at least 1s, got %s", c.Auction.DefaultDuration)
	}
	if c.Auction.DefaultIncrement <= 0 {
		return fmt.Errorf("auction.default_increment must be positive")
	}
	if c.Auction.TickInterval <= 0 {
		return fmt.Errorf("auction.tick_interval must be positive")
	}
	ws := c.WebSocket
	switch {
	case ws.WriteTimeout <= 0:
		return fmt.Errorf("websocket.write_timeout must be positive, got %s", ws.WriteTimeout)
	case ws.ReadTimeout <= 0:
		return fmt.Errorf("websocket.read_timeout must be positive, got %s", ws.ReadTimeout)
	case ws.PingInterval <= 0:
		return fmt.Errorf("websocket.ping_interval must be positive, got %s", ws.PingInterval)
	case ws.PingInterval >= ws.ReadTimeout:
		return fmt.Errorf("websocket.ping_interval (%s) must be shorter than websocket.read_timeout (%s)", ws.PingInterval, ws.ReadTimeout)
	case ws.MaxMessageSize <= 0:
		return fmt.Errorf("websocket.max_message_size must be positive, got %d", ws.MaxMessageSize)
	case ws.SendBuffer <= 0:
		return fmt.Errorf("websocket.send_buffer must be positive, got %d", ws.SendBuffer)
	}
	return nil
}
