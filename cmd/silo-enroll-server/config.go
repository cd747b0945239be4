package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/api/http"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Http     http.Config
	Auth     auth.Config
	Core     coreapi.Config
	Delivery DeliveryConfig
	DB       db.Config
}

type DeliveryConfig struct {
	Scheme string `mapstructure:"scheme"`
}

var config Config

const redacted = "****"

func ParseCommaSeparated(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/silo-enroll-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("core.api_token", "CORE_API_TOKEN")
	_ = viper.BindEnv("db.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config.redacted(), "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

func (c Config) redacted() Config {
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = redacted
	}
	if c.Auth.AdminAPIKey != "" {
		c.Auth.AdminAPIKey = redacted
	}
	if c.Core.APIToken != "" {
		c.Core.APIToken = redacted
	}
	if c.DB.Url != "" {
		c.DB.Url = redacted
	}
	return c
}
