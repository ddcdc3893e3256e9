package initialization

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flowbaker/tgbridge/internal/secrettoken"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	RegistryBackendPostgres = "postgres"
	RegistryBackendRedis    = "redis"
)

// Config holds all bridge configuration
type Config struct {
	HTTPAddress string

	// StateKey is the hex encoded AES-192 key used to seal routing tokens.
	StateKey     string
	CodeFlowsURL string
	CallbackPath string

	RegistryBackend string
	DatabaseURL     string
	RedisURL        string
	RedisKeyPrefix  string

	TelegramAPIEndpoint string
	TelegramTimeout     time.Duration

	APISigningPublicKey string // Ed25519 public key for management request signatures
	LogLevel            string
}

// CallbackURL is the address Telegram delivers updates to.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.CodeFlowsURL, "/") + c.CallbackPath
}

var envMappings = map[string]string{
	"HTTPAddress":         "HTTP_ADDRESS",
	"StateKey":            "STATE_KEY",
	"CodeFlowsURL":        "CODE_FLOWS_URL",
	"CallbackPath":        "CALLBACK_PATH",
	"RegistryBackend":     "REGISTRY_BACKEND",
	"DatabaseURL":         "DATABASE_URL",
	"RedisURL":            "REDIS_URL",
	"RedisKeyPrefix":      "REDIS_KEY_PREFIX",
	"TelegramAPIEndpoint": "TELEGRAM_API_ENDPOINT",
	"TelegramTimeout":     "TELEGRAM_TIMEOUT",
	"APISigningPublicKey": "API_SIGNING_PUBLIC_KEY",
	"LogLevel":            "LOG_LEVEL",
}

// LoadConfig loads configuration from the optional tgbridge.yaml and environment variables.
// Environment variables win over the file.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("tgbridge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.tgbridge")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.RegistryBackend = strings.ToLower(strings.TrimSpace(config.RegistryBackend))

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	log.Debug().
		Str("http_address", config.HTTPAddress).
		Str("registry_backend", config.RegistryBackend).
		Str("callback_url", config.CallbackURL()).
		Bool("request_signing", config.APISigningPublicKey != "").
		Msg("Config loaded")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("CallbackPath", "/hook/telegram_on_deploy_handler/message")
	v.SetDefault("RegistryBackend", RegistryBackendPostgres)
	v.SetDefault("RedisKeyPrefix", "telegram")
	v.SetDefault("TelegramAPIEndpoint", tgbotapi.APIEndpoint)
	v.SetDefault("TelegramTimeout", 10*time.Second)
	v.SetDefault("LogLevel", "info")
}

func validateConfig(config *Config) error {
	var missingVars []string

	if config.StateKey == "" {
		missingVars = append(missingVars, "STATE_KEY")
	}

	if config.CodeFlowsURL == "" {
		missingVars = append(missingVars, "CODE_FLOWS_URL")
	}

	switch config.RegistryBackend {
	case RegistryBackendPostgres:
		if config.DatabaseURL == "" {
			missingVars = append(missingVars, "DATABASE_URL")
		}
	case RegistryBackendRedis:
		if config.RedisURL == "" {
			missingVars = append(missingVars, "REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown registry backend %q, expected %s or %s",
			config.RegistryBackend, RegistryBackendPostgres, RegistryBackendRedis)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s\n\nGenerate a state key with: %s generate-key",
			strings.Join(missingVars, ", "),
			os.Args[0])
	}

	key, err := hex.DecodeString(config.StateKey)
	if err != nil || len(key) != secrettoken.KeySize {
		return fmt.Errorf("STATE_KEY must be %d hex characters", secrettoken.KeySize*2)
	}

	if config.TelegramTimeout <= 0 {
		return fmt.Errorf("TELEGRAM_TIMEOUT must be positive, got %s", config.TelegramTimeout)
	}

	return nil
}
