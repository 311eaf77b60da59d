package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the engine needs at startup. Values come from an
// optional YAML file overridden by environment variables.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	RedisAddr string `mapstructure:"redis_addr"`
	MySQLDSN  string `mapstructure:"mysql_dsn"`

	IdentityURL          string `mapstructure:"identity_url"`
	ClientID             string `mapstructure:"client_id"`
	FallbackRefreshToken string `mapstructure:"fallback_refresh_token"`

	PaymentURL         string `mapstructure:"payment_url"`
	PaymentPartnerCode string `mapstructure:"payment_partner_code"`
	PaymentReturnURL   string `mapstructure:"payment_return_url"`
	OrderBackendURL    string `mapstructure:"order_backend_url"`

	OriginKey string `mapstructure:"origin_key"`
	UIChannel string `mapstructure:"ui_channel"`

	FreeDeliveryThreshold int64 `mapstructure:"free_delivery_threshold"`
	DeliveryFee           int64 `mapstructure:"delivery_fee"`

	TokenExpiryMargin time.Duration `mapstructure:"token_expiry_margin"`
	SuccessDelay      time.Duration `mapstructure:"success_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("mysql_dsn", "root:root@tcp(localhost:3306)/kiosk?parseTime=true")
	v.SetDefault("ui_channel", "kiosk:ui")
	v.SetDefault("free_delivery_threshold", 100000)
	v.SetDefault("delivery_fee", 15000)
	v.SetDefault("token_expiry_margin", 30*time.Second)
	v.SetDefault("success_delay", 800*time.Millisecond)
	v.SetDefault("request_timeout", 10*time.Second)

	v.SetEnvPrefix("kiosk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
