package config

import (
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type Config struct {
	// Database
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string

	// Security
	JWTSecret string

	// Server
	Port           string
	TrustedProxies []string
	FrontendURL    string

	// Snapshot store
	RedisURL string

	// Messaging (optional)
	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQRouting  string

	// Email
	SendGridAPIKey string
	EmailFromName  string
	EmailFromAddr  string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

func Load() *Config {
	// .env is optional; env vars win.
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded configuration from .env file")
	}

	cfg := &Config{
		DBUser:             getEnv("DB_USER", "root"),
		DBPassword:         getEnv("DB_PASSWORD", "password"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "3306"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-here"),
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "barangay.reports"),
		RabbitMQRouting:    getEnv("RABBITMQ_ROUTING_KEY", "report.events"),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Barangay Portal"),
		EmailFromAddr:      getEnv("EMAIL_FROM_ADDR", "no-reply@barangay.local"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
	}

	if cfg.JWTSecret == "your-secret-key-here" {
		log.Warn("Using default JWT secret. Set JWT_SECRET for production.")
	}

	trustedProxies := os.Getenv("TRUSTED_PROXIES")
	if trustedProxies != "" {
		cfg.TrustedProxies = strings.Split(trustedProxies, ",")
		for i, proxy := range cfg.TrustedProxies {
			cfg.TrustedProxies[i] = strings.TrimSpace(proxy)
		}
	}

	return cfg
}

// GoogleOAuthConfig builds the oauth2 config for Google sign-in, nil when
// not configured.
func (c *Config) GoogleOAuthConfig() *oauth2.Config {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
