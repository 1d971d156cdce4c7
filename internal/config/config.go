package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"        validate:"required"`
	Messenger     MessengerConfig     `mapstructure:"messenger"     validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"      validate:"required"`
	Redis         RedisConfig         `mapstructure:"redis"         validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription" validate:"required"`
	Payment       PaymentConfig       `mapstructure:"payment"       validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	// Port is assigned by the platform at deploy time; the web process must
	// bind to it and never to a hardcoded port.
	Port        int    `mapstructure:"port"        validate:"required,gt=0,lt=65536"`
	BaseURL     string `mapstructure:"base_url"    validate:"required,url"`
	Environment string `mapstructure:"environment" validate:"required,oneof=development production"`
	LogLevel    string `mapstructure:"log_level"   validate:"required,oneof=debug info warn error"`
}

// IsDevelopment reports whether the server runs in development mode.
// Development mode switches external integrations to their sandboxes.
func (c ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// MessengerConfig contains the messaging-platform credentials used for
// webhook verification and for sending messages via the Graph API.
type MessengerConfig struct {
	PageAccessToken string `mapstructure:"page_access_token" validate:"required"`
	VerifyToken     string `mapstructure:"verify_token"      validate:"required"`
	AppID           string `mapstructure:"app_id"            validate:"required"`
	AppSecret       string `mapstructure:"app_secret"        validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URI string `mapstructure:"uri" validate:"required"`
}

// RedisConfig contains the cache/broker connection settings shared by the
// web and worker processes.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// TranscriptionConfig selects the transcription backend behavior.
type TranscriptionConfig struct {
	OpenAIAPIKey string `mapstructure:"openai_api_key" validate:"required"`
	// WhisperModel selects the model size tier. Unrecognized values are
	// rejected at startup.
	WhisperModel string `mapstructure:"whisper_model" validate:"required,oneof=tiny base small medium large"`
}

// PaymentConfig selects the active payment integration and carries the
// per-provider credentials. Only the credentials of the selected provider
// are required; Load enforces that cross-field rule.
type PaymentConfig struct {
	Method       string             `mapstructure:"method" validate:"required,oneof=paypal 2checkout crypto"`
	PayPal       PayPalConfig       `mapstructure:"paypal"`
	TwoCheckout  TwoCheckoutConfig  `mapstructure:"two_checkout"`
	CoinPayments CoinPaymentsConfig `mapstructure:"coinpayments"`
}

// PayPalConfig contains PayPal REST API credentials.
type PayPalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	WebhookID    string `mapstructure:"webhook_id"`
}

// TwoCheckoutConfig contains 2Checkout merchant credentials.
type TwoCheckoutConfig struct {
	MerchantCode string `mapstructure:"merchant_code"`
	SecretKey    string `mapstructure:"secret_key"`
}

// CoinPaymentsConfig contains CoinPayments merchant credentials.
type CoinPaymentsConfig struct {
	MerchantID string `mapstructure:"merchant_id"`
	IPNSecret  string `mapstructure:"ipn_secret"`
}

// StorageConfig contains the S3-compatible object storage settings used for
// media archival. The section is optional; when Endpoint is empty the worker
// skips archival.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required_with=Endpoint"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=Endpoint"`
	Bucket          string `mapstructure:"bucket"            validate:"required_with=Endpoint"`
}

// Enabled reports whether media archival is configured.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

// AdminConfig contains settings for the token-protected admin API.
// The section is optional; when Secret is empty the admin routes are not
// registered.
type AdminConfig struct {
	Secret               string `mapstructure:"secret"                 validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"omitempty,gt=0"`
}

// Enabled reports whether the admin API is configured.
func (c AdminConfig) Enabled() bool {
	return c.Secret != ""
}
