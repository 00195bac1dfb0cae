package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Letter LetterConfig `mapstructure:"letter"`
	Email  EmailConfig  `mapstructure:"email"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadBytes bounds the multipart form size (template + spreadsheet)
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	// AllowedOrigins is the CORS allow-list for the browser front-end
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the host:port listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LetterConfig holds letter generation configuration
type LetterConfig struct {
	// OutputRoot is the directory under which per-run
	// generated_letters_<timestamp> directories are created
	OutputRoot string `mapstructure:"output_root"`
	// Subject is the subject line used for every appointment email
	Subject string `mapstructure:"subject"`
	// ConvertToPDF enables fixed-layout conversion of each rendered letter
	ConvertToPDF bool `mapstructure:"convert_to_pdf"`
	// SofficeBin is the LibreOffice binary used for conversion
	SofficeBin string `mapstructure:"soffice_bin"`
	// ConvertTimeout bounds a single conversion
	ConvertTimeout time.Duration `mapstructure:"convert_timeout"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider selects the sender implementation: "smtp" or "gmail".
	// SMTP credentials always come from the request; gmail uses the
	// static configuration below.
	Provider string `mapstructure:"provider"`
	// SessionTimeout bounds the SMTP connection and session
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	// Gmail holds Gmail API configuration
	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/letterdrop")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("LETTERDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(32<<20))
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Letter defaults
	v.SetDefault("letter.output_root", ".")
	v.SetDefault("letter.subject", "Job Appointment Letter")
	v.SetDefault("letter.convert_to_pdf", false)
	v.SetDefault("letter.soffice_bin", "soffice")
	v.SetDefault("letter.convert_timeout", 2*time.Minute)

	// Email defaults
	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.session_timeout", 30*time.Second)
}
