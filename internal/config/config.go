package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	FirmName           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	AdminJWTSecret     string
	AdminJWTIssuer     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Email acknowledgement
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESConfigSet      string
	LeadNotifyEmails  []string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Analytics delivery
	AnalyticsSink     string
	AnalyticsQueueURL string
	AnalyticsTable    string
	OutboxInterval    time.Duration

	// Inbound webhook
	WebhookArchiveBucket string

	// Submission intake
	GeolocationURL      string
	GeolocationTimeout  time.Duration
	WebhookRelayTimeout time.Duration
	MinFillTime         time.Duration

	// Form registry cache
	FormsRefreshInterval time.Duration
	FormsRetryInterval   time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FirmName:           getEnv("FIRM_NAME", "Escritório de Advocacia"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminJWTIssuer:     getEnv("ADMIN_JWT_ISSUER", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", ""),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),
		LeadNotifyEmails:  getEnvAsList("LEAD_NOTIFY_EMAILS", nil),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AnalyticsSink:     strings.ToLower(strings.TrimSpace(getEnv("ANALYTICS_SINK", "log"))),
		AnalyticsQueueURL: getEnv("ANALYTICS_QUEUE_URL", ""),
		AnalyticsTable:    getEnv("ANALYTICS_TABLE", "conversion_events"),
		OutboxInterval:    getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),

		WebhookArchiveBucket: getEnv("WEBHOOK_ARCHIVE_BUCKET", ""),

		GeolocationURL:      getEnv("GEOLOCATION_URL", ""),
		GeolocationTimeout:  getEnvAsDuration("GEOLOCATION_TIMEOUT", 2*time.Second),
		WebhookRelayTimeout: getEnvAsDuration("WEBHOOK_RELAY_TIMEOUT", 5*time.Second),
		MinFillTime:         getEnvAsDuration("MIN_FILL_TIME", 3*time.Second),

		FormsRefreshInterval: getEnvAsDuration("FORMS_REFRESH_INTERVAL", 30*time.Second),
		FormsRetryInterval:   getEnvAsDuration("FORMS_RETRY_INTERVAL", 5*time.Second),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
