// Package config loads service settings from defaults, an optional
// config.yaml and ACQ_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Callback   CallbackConfig   `mapstructure:"callback"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GatewayConfig is the acquirer integration surface configured by the merchant.
type GatewayConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	AccountID          string        `mapstructure:"account_id"`
	SecretKey          string        `mapstructure:"secret_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PaymentMethod      string        `mapstructure:"payment_method"`
	CardForm           bool          `mapstructure:"card_form"`
	MerchantSideURL    string        `mapstructure:"merchant_side_url"`
	PriceDecimals      int32         `mapstructure:"price_decimals"`
	RecipientName      string        `mapstructure:"recipient_name"`
	RecipientReference string        `mapstructure:"recipient_reference"`
}

type StorefrontConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	OrderReceivedPath string `mapstructure:"order_received_path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Leeway     time.Duration `mapstructure:"leeway"`
}

type JobsConfig struct {
	PendingReturnSweep string        `mapstructure:"pending_return_sweep"`
	PendingReturnTTL   time.Duration `mapstructure:"pending_return_ttl"`
}

type CallbackConfig struct {
	ReplayTTL time.Duration `mapstructure:"replay_ttl"`
}

// Method returns the configured payment method for new orders.
func (g GatewayConfig) Method() (models.PaymentMethod, error) {
	return models.ParsePaymentMethod(g.PaymentMethod)
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/acquirer-gateway/")

	v.SetEnvPrefix("ACQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// every key needs a default so AutomaticEnv can override it on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8082")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.addr", ":9092")

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "order.payment.changed")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.account_id", "")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("gateway.payment_method", "Sms")
	v.SetDefault("gateway.card_form", false)
	v.SetDefault("gateway.merchant_side_url", "")
	v.SetDefault("gateway.price_decimals", 2)
	v.SetDefault("gateway.recipient_name", "")
	v.SetDefault("gateway.recipient_reference", "")

	v.SetDefault("storefront.base_url", "http://localhost:8080")
	v.SetDefault("storefront.order_received_path", "/checkout/order-received/")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "acquirer-gateway")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("jobs.pending_return_sweep", "@every 5m")
	v.SetDefault("jobs.pending_return_ttl", "1h")

	v.SetDefault("callback.replay_ttl", "10m")
}

// Validate checks the settings serve needs before any connection is opened.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("gateway.base_url is required"))
	}
	if c.Gateway.AccountID == "" || c.Gateway.SecretKey == "" {
		errs = append(errs, errors.New("gateway.account_id and gateway.secret_key are required"))
	}
	method, err := c.Gateway.Method()
	if err != nil {
		errs = append(errs, err)
	}
	if method == models.MethodP2P && c.Gateway.RecipientName == "" {
		errs = append(errs, errors.New("gateway.recipient_name is required for P2P"))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key is required"))
	}
	return errors.Join(errs...)
}
