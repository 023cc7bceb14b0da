package utils

import (
	"time"

	"villa-booking/internal/data/entity"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Booking  BookingConfig
	Gateway  GatewayConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type BookingConfig struct {
	HoldMinutes           int
	MaxPaymentAttempts    int
	ReaperIntervalSeconds int
	NightlyRateCents      int64
	CleaningFeeCents      int64
	Currency              string
	SuggestionWindowDays  int
	PollMinIntervalSecs   int
}

type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

func (b BookingConfig) HoldDuration() time.Duration {
	return time.Duration(b.HoldMinutes) * time.Minute
}

func (b BookingConfig) ReaperInterval() time.Duration {
	return time.Duration(b.ReaperIntervalSeconds) * time.Second
}

func (b BookingConfig) PollMinInterval() time.Duration {
	return time.Duration(b.PollMinIntervalSecs) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("HOLD_MINUTES", 30)
	viper.SetDefault("MAX_PAYMENT_ATTEMPTS", entity.MaxPaymentAttempts)
	viper.SetDefault("REAPER_INTERVAL_SECONDS", 60)
	viper.SetDefault("NIGHTLY_RATE_CENTS", 22000)
	viper.SetDefault("CLEANING_FEE_CENTS", 2500)
	viper.SetDefault("CURRENCY", "usd")
	viper.SetDefault("SUGGESTION_WINDOW_DAYS", 14)
	viper.SetDefault("POLL_MIN_INTERVAL_SECONDS", 2)
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 10)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Booking: BookingConfig{
			HoldMinutes:           viper.GetInt("HOLD_MINUTES"),
			MaxPaymentAttempts:    viper.GetInt("MAX_PAYMENT_ATTEMPTS"),
			ReaperIntervalSeconds: viper.GetInt("REAPER_INTERVAL_SECONDS"),
			NightlyRateCents:      viper.GetInt64("NIGHTLY_RATE_CENTS"),
			CleaningFeeCents:      viper.GetInt64("CLEANING_FEE_CENTS"),
			Currency:              viper.GetString("CURRENCY"),
			SuggestionWindowDays:  viper.GetInt("SUGGESTION_WINDOW_DAYS"),
			PollMinIntervalSecs:   viper.GetInt("POLL_MIN_INTERVAL_SECONDS"),
		},
		Gateway: GatewayConfig{
			BaseURL:        viper.GetString("GATEWAY_BASE_URL"),
			APIKey:         viper.GetString("GATEWAY_API_KEY"),
			TimeoutSeconds: viper.GetInt("GATEWAY_TIMEOUT_SECONDS"),
		},
	}

	return config, nil
}
