/**
 * @description
 * This package handles the configuration management for the payments service. It
 * uses Viper to read configuration from environment variables (and an optional
 * .env file), applies defaults and validates the keys the service cannot start
 * without.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payments service.
type Config struct {
	ServerPort                        string `mapstructure:"SERVER_PORT"`
	DatabaseURL                       string `mapstructure:"DATABASE_URL"`
	RunMigrations                     bool   `mapstructure:"RUN_MIGRATIONS"`
	JWTSecret                         string `mapstructure:"JWT_SECRET"`
	JWTTTLHours                       int    `mapstructure:"JWT_TTL_HOURS"`
	SSNEncryptionKey                  string `mapstructure:"SSN_ENCRYPTION_KEY"`
	PlaidClientID                     string `mapstructure:"PLAID_CLIENT_ID"`
	PlaidSecret                       string `mapstructure:"PLAID_SECRET"`
	PlaidEnv                          string `mapstructure:"PLAID_ENV"`
	PlaidClientName                   string `mapstructure:"PLAID_CLIENT_NAME"`
	DwollaKey                         string `mapstructure:"DWOLLA_KEY"`
	DwollaSecret                      string `mapstructure:"DWOLLA_SECRET"`
	DwollaEnv                         string `mapstructure:"DWOLLA_ENV"`
	DwollaExchangePartner             string `mapstructure:"DWOLLA_EXCHANGE_PARTNER"`
	PaymentDestinationFundingSourceID string `mapstructure:"PAYMENT_DESTINATION_FUNDING_SOURCE_ID"`
	RabbitMQURL                       string `mapstructure:"RABBITMQ_URL"`
	EventsExchange                    string `mapstructure:"EVENTS_EXCHANGE"`
	CORSAllowedOrigins                string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	DefaultCreditScore                int    `mapstructure:"DEFAULT_CREDIT_SCORE"`
}

// JWTTTL returns the session token lifetime.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into its entries.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and the optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("JWT_TTL_HOURS", 168)
	viper.SetDefault("PLAID_ENV", "sandbox")
	viper.SetDefault("PLAID_CLIENT_NAME", "ZEDX App")
	viper.SetDefault("DWOLLA_ENV", "sandbox")
	viper.SetDefault("DWOLLA_EXCHANGE_PARTNER", "Plaid")
	viper.SetDefault("EVENTS_EXCHANGE", "zedx.events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DEFAULT_CREDIT_SCORE", 720)

	// Bind explicitly so keys without defaults appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_HOURS")
	_ = viper.BindEnv("SSN_ENCRYPTION_KEY")
	_ = viper.BindEnv("PLAID_CLIENT_ID")
	_ = viper.BindEnv("PLAID_SECRET")
	_ = viper.BindEnv("PLAID_ENV")
	_ = viper.BindEnv("PLAID_CLIENT_NAME")
	_ = viper.BindEnv("DWOLLA_KEY")
	_ = viper.BindEnv("DWOLLA_SECRET")
	_ = viper.BindEnv("DWOLLA_ENV")
	_ = viper.BindEnv("DWOLLA_EXCHANGE_PARTNER")
	_ = viper.BindEnv("PAYMENT_DESTINATION_FUNDING_SOURCE_ID")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("DEFAULT_CREDIT_SCORE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.PlaidEnv = strings.ToLower(strings.TrimSpace(config.PlaidEnv))
	config.DwollaEnv = strings.ToLower(strings.TrimSpace(config.DwollaEnv))
	config.PaymentDestinationFundingSourceID = strings.TrimSpace(config.PaymentDestinationFundingSourceID)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	if config.JWTTTLHours <= 0 {
		config.JWTTTLHours = 168
	}

	err = config.validate()
	return
}

func (c Config) validate() error {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
		{"SSN_ENCRYPTION_KEY", c.SSNEncryptionKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.PlaidEnv {
	case "sandbox", "development", "production":
	default:
		return errors.New("PLAID_ENV must be sandbox, development or production")
	}
	switch c.DwollaEnv {
	case "sandbox", "production":
	default:
		return errors.New("DWOLLA_ENV must be sandbox or production")
	}
	return nil
}
