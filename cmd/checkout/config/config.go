package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "CHECKOUT"
	keyPort                = "PORT"
	keyDSN                 = "DSN"
	keyMigrations          = "MIGRATIONS"
	keyRedisAddr           = "REDIS_ADDR"
	keyRedisPassword       = "REDIS_PASSWORD"
	keyStripeKey           = "STRIPE_KEY"
	keyStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	keyMailgunDomain       = "MAILGUN_DOMAIN"
	keyMailgunAPIKey       = "MAILGUN_API_KEY"
	keyEmailFrom           = "EMAIL_FROM"
	keyFirstDealWindow     = "FIRST_DEAL_WINDOW"
	keyFinalDealWindow     = "FINAL_DEAL_WINDOW"
	keyVisitorRetention    = "VISITOR_RETENTION"
	keyCookieDomain        = "COOKIE_DOMAIN"
	keyCookieSecure        = "COOKIE_SECURE"
	keySuccessURL          = "SUCCESS_URL"
	keyCancelURL           = "CANCEL_URL"
	keyStreamGroup         = "STREAM_GROUP"
	keyStreamMaxLen        = "STREAM_MAX_LEN"
	keyStreamMaxDeliveries = "STREAM_MAX_DELIVERIES"

	// keyStripeIgnoreAPIVersionMismatch accepts webhook events of any API
	// version. Unset, the Stripe webhook endpoint must be pinned to the API
	// version of the stripe-go release in go.mod.
	keyStripeIgnoreAPIVersionMismatch = "STRIPE_IGNORE_API_VERSION_MISMATCH"
)

// Load reads the configuration from the environment. Variables defined in a
// .env file of the working directory are loaded first, without overriding
// variables already set.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{v: viper.New()}
	c.v.SetEnvPrefix(envPrefix)
	c.v.AutomaticEnv()
	c.defaults()

	return c
}

type Config struct {
	v *viper.Viper
}

func (c *Config) defaults() {
	c.v.SetDefault(keyPort, 8080)
	c.v.SetDefault(keyDSN, "host=localhost user=postgres password=password dbname=postgres port=5432 sslmode=disable TimeZone=UTC")
	c.v.SetDefault(keyMigrations, "file:///db/migrations")
	c.v.SetDefault(keyRedisAddr, "redis:6379")
	c.v.SetDefault(keyRedisPassword, "")
	c.v.SetDefault(keyStripeKey, "")
	c.v.SetDefault(keyStripeWebhookSecret, "")
	c.v.SetDefault(keyMailgunDomain, "mg.whatsagent.io")
	c.v.SetDefault(keyMailgunAPIKey, "")
	c.v.SetDefault(keyEmailFrom, "WhatsAgent <orders@mg.whatsagent.io>")
	c.v.SetDefault(keyFirstDealWindow, 72*time.Hour)
	c.v.SetDefault(keyFinalDealWindow, 168*time.Hour)
	c.v.SetDefault(keyVisitorRetention, 90*24*time.Hour)
	c.v.SetDefault(keyCookieDomain, "")
	c.v.SetDefault(keyCookieSecure, true)
	c.v.SetDefault(keySuccessURL, "https://whatsagent.io/thank-you")
	c.v.SetDefault(keyCancelURL, "https://whatsagent.io/")
	c.v.SetDefault(keyStreamGroup, "checkout")
	c.v.SetDefault(keyStreamMaxLen, 20000)
	c.v.SetDefault(keyStreamMaxDeliveries, 10)
	c.v.SetDefault(keyStripeIgnoreAPIVersionMismatch, false)
}

func (c Config) Port() int                       { return c.v.GetInt(keyPort) }
func (c Config) DSN() string                     { return c.v.GetString(keyDSN) }
func (c Config) Migrations() string              { return c.v.GetString(keyMigrations) }
func (c Config) RedisAddr() string               { return c.v.GetString(keyRedisAddr) }
func (c Config) RedisPassword() string           { return c.v.GetString(keyRedisPassword) }
func (c Config) StripeKey() string               { return c.v.GetString(keyStripeKey) }
func (c Config) StripeWebhookSecret() string     { return c.v.GetString(keyStripeWebhookSecret) }
func (c Config) MailgunDomain() string           { return c.v.GetString(keyMailgunDomain) }
func (c Config) MailgunAPIKey() string           { return c.v.GetString(keyMailgunAPIKey) }
func (c Config) EmailFrom() string               { return c.v.GetString(keyEmailFrom) }
func (c Config) FirstDealWindow() time.Duration  { return c.v.GetDuration(keyFirstDealWindow) }
func (c Config) FinalDealWindow() time.Duration  { return c.v.GetDuration(keyFinalDealWindow) }
func (c Config) VisitorRetention() time.Duration { return c.v.GetDuration(keyVisitorRetention) }
func (c Config) CookieDomain() string            { return c.v.GetString(keyCookieDomain) }
func (c Config) CookieSecure() bool              { return c.v.GetBool(keyCookieSecure) }
func (c Config) SuccessURL() string              { return c.v.GetString(keySuccessURL) }
func (c Config) CancelURL() string               { return c.v.GetString(keyCancelURL) }
func (c Config) StreamGroup() string             { return c.v.GetString(keyStreamGroup) }
func (c Config) StreamMaxLen() int64              { return c.v.GetInt64(keyStreamMaxLen) }
func (c Config) StreamMaxDeliveries() int64       { return c.v.GetInt64(keyStreamMaxDeliveries) }

func (c Config) StripeIgnoreAPIVersionMismatch() bool {
	return c.v.GetBool(keyStripeIgnoreAPIVersionMismatch)
}
