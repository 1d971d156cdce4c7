package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingPaymentCredentials is returned when the selected payment method
// does not have its full credential set bound.
var ErrMissingPaymentCredentials = errors.New("missing payment provider credentials")

// envBindings maps config keys to the environment variables that populate
// them. The variable names are the deployment contract and are bound
// explicitly so the template and the manifest can be checked against them.
var envBindings = map[string]string{
	"server.port":                      "PORT",
	"server.base_url":                  "BASE_URL",
	"server.environment":               "ENVIRONMENT",
	"server.log_level":                 "LOG_LEVEL",
	"messenger.page_access_token":      "PAGE_ACCESS_TOKEN",
	"messenger.verify_token":           "VERIFY_TOKEN",
	"messenger.app_id":                 "APP_ID",
	"messenger.app_secret":             "APP_SECRET",
	"database.uri":                     "MONGODB_URI",
	"redis.url":                        "REDIS_URL",
	"transcription.openai_api_key":     "OPENAI_API_KEY",
	"transcription.whisper_model":      "WHISPER_MODEL",
	"payment.method":                   "PAYMENT_METHOD",
	"payment.paypal.client_id":         "PAYPAL_CLIENT_ID",
	"payment.paypal.client_secret":     "PAYPAL_CLIENT_SECRET",
	"payment.paypal.webhook_id":        "PAYPAL_WEBHOOK_ID",
	"payment.two_checkout.merchant_code": "2CO_MERCHANT_CODE",
	"payment.two_checkout.secret_key":    "2CO_SECRET_KEY",
	"payment.coinpayments.merchant_id":   "COINPAYMENTS_MERCHANT_ID",
	"payment.coinpayments.ipn_secret":    "COINPAYMENTS_IPN_SECRET",
	"storage.endpoint":                 "R2_ENDPOINT_URL",
	"storage.access_key_id":            "R2_ACCESS_KEY_ID",
	"storage.secret_access_key":        "R2_SECRET_ACCESS_KEY",
	"storage.bucket":                   "R2_BUCKET_NAME",
	"admin.secret":                     "ADMIN_API_SECRET",
}

// EnvVarNames returns the environment variable names recognized by Load,
// in no particular order. Used by the deployment validation tooling.
func EnvVarNames() []string {
	names := make([]string, 0, len(envBindings))
	for _, env := range envBindings {
		names = append(names, env)
	}
	return names
}

// Load reads configuration from environment variables, applies defaults,
// and validates the result. Returns a populated Config or an error
// describing the first validation failure.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("transcription.whisper_model", "base")
	v.SetDefault("payment.method", "paypal")
	v.SetDefault("admin.token_lifetime_minutes", 60)
}

// validate runs struct-tag validation followed by the cross-field rules
// that tags cannot express.
func validate(cfg *Config) error {
	vd := validator.New()
	if err := vd.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid configuration: field %s failed %q validation",
				first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return validatePaymentCredentials(&cfg.Payment)
}

// validatePaymentCredentials enforces that the selected payment method has
// a complete, non-placeholder credential set bound before the process
// starts. Deploys with a partially configured provider are rejected here
// rather than failing on the first payment attempt.
func validatePaymentCredentials(p *PaymentConfig) error {
	var missing []string

	check := func(name, value string) {
		if isPlaceholder(value) {
			missing = append(missing, name)
		}
	}

	switch p.Method {
	case "paypal":
		check("PAYPAL_CLIENT_ID", p.PayPal.ClientID)
		check("PAYPAL_CLIENT_SECRET", p.PayPal.ClientSecret)
		check("PAYPAL_WEBHOOK_ID", p.PayPal.WebhookID)
	case "2checkout":
		check("2CO_MERCHANT_CODE", p.TwoCheckout.MerchantCode)
		check("2CO_SECRET_KEY", p.TwoCheckout.SecretKey)
	case "crypto":
		check("COINPAYMENTS_MERCHANT_ID", p.CoinPayments.MerchantID)
		check("COINPAYMENTS_IPN_SECRET", p.CoinPayments.IPNSecret)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w for method %q: %s",
			ErrMissingPaymentCredentials, p.Method, strings.Join(missing, ", "))
	}
	return nil
}

// isPlaceholder reports whether a credential value is unset or still holds
// a template placeholder copied verbatim from the configuration template.
func isPlaceholder(value string) bool {
	if value == "" {
		return true
	}
	lower := strings.ToLower(value)
	for _, marker := range []string{"your_", "your-", "changeme", "change_me", "placeholder", "xxx"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
