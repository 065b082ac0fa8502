// Package config defines the global configuration structure for the MealTrack
// backend. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"mealtrack/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the MealTrack backend.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"mealtrack-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Razorpay RazorpayConfig
	Stripe   StripeConfig
	Vision   VisionConfig
	AWS      AWSConfig
	Security SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	// RequestTimeout must exceed the vision client timeout; analysis requests
	// block on the model call.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// AuthConfig holds bearer token verification settings. Tokens are issued by
// the identity provider (Supabase) and verified locally with the shared
// HS256 secret.
type AuthConfig struct {
	JWTSecret   SecretString `envconfig:"SUPABASE_JWT_SECRET" validate:"required,min=32"`
	JWTAudience string       `envconfig:"JWT_AUDIENCE" default:"authenticated"`
}

// RazorpayConfig holds Razorpay payment integration credentials.
// KeyID is publishable and returned to clients with created orders;
// KeySecret signs order verification HMACs and must never leave the server.
type RazorpayConfig struct {
	KeyID     string       `envconfig:"RAZORPAY_KEY_ID" validate:"required"`
	KeySecret SecretString `envconfig:"RAZORPAY_KEY_SECRET" validate:"required"`
	BaseURL   string       `envconfig:"RAZORPAY_BASE_URL"` // Override for testing; empty means production API
}

// StripeConfig holds Stripe checkout webhook credentials. Stripe is an
// alternate purchase path crediting the same ledger as Razorpay.
type StripeConfig struct {
	WebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// VisionConfig holds the vision-model provider settings for meal analysis.
type VisionConfig struct {
	OpenAIAPIKey SecretString  `envconfig:"OPENAI_API_KEY" validate:"required"`
	Model        string        `envconfig:"VISION_MODEL" default:"gpt-4o"`
	Timeout      time.Duration `envconfig:"VISION_TIMEOUT" default:"45s"`
	BaseURL      string        `envconfig:"OPENAI_BASE_URL"` // Override for testing
}

// AWSConfig holds AWS resource identifiers for the pending-credit retry queue.
// PendingCreditQueue may be empty in local development; the verifier then
// surfaces storage failures directly without queueing.
type AWSConfig struct {
	Region             string `envconfig:"AWS_REGION" default:"ap-south-1"`
	PendingCreditQueue string `envconfig:"SQS_PENDING_CREDITS"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
