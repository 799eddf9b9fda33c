package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// Config represents the application configuration.
type Config struct {
	Port           string   `json:"port"`
	Env            string   `json:"env"`
	AllowedOrigins []string `json:"allowed_origins"`

	Provider      string `json:"provider"`
	GeminiAPIKey  string `json:"gemini_api_key"`
	GeminiModel   string `json:"gemini_model"`
	LocalLLMURL   string `json:"local_llm_url"`
	LocalLLMModel string `json:"local_llm_model"`

	StoreBackend   string `json:"store_backend"`
	DatabaseURL    string `json:"DATABASE_URL"`
	DynamoDBTable  string `json:"dynamodb_table"`
	AWSRegion      string `json:"aws_region"`
	DynamoEndpoint string `json:"dynamodb_endpoint"`

	SessionBackend string        `json:"session_backend"`
	RedisURL       string        `json:"redis_url"`
	SessionTTL     time.Duration `json:"-"`

	JWTSecret      string        `json:"jwt_secret"`
	TokenTTL       time.Duration `json:"-"`
	GoogleClientID string        `json:"google_client_id"`

	AITimeout     time.Duration `json:"-"`
	MaxPhotoWidth uint          `json:"max_photo_width"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:           ":8080",
		Env:            "local",
		AllowedOrigins: []string{"http://localhost:8081"},
		Provider:       ProviderGemini,
		StoreBackend:   BackendMemory,
		AWSRegion:      "us-east-1",
		DynamoDBTable:  "RecipeSnap",
		SessionBackend: BackendMemory,
		SessionTTL:     24 * time.Hour,
		TokenTTL:       24 * time.Hour,
		AITimeout:      45 * time.Second,
		MaxPhotoWidth:  800,
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the JSON file at path (skipped
// when it does not exist), a .env file in the working directory, and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		configData, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := json.Unmarshal(configData, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			c.Port = envPort
		} else {
			c.Port = ":" + envPort
		}
	}
	setString(&c.Env, "APP_ENV")
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	setString(&c.Provider, "AI_PROVIDER")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.LocalLLMURL, "LOCAL_LLM_URL")
	setString(&c.LocalLLMModel, "LOCAL_LLM_MODEL")

	setString(&c.StoreBackend, "STORE_BACKEND")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.DynamoDBTable, "DYNAMODB_TABLE")
	setString(&c.AWSRegion, "AWS_REGION")
	setString(&c.DynamoEndpoint, "DYNAMODB_ENDPOINT")

	setString(&c.SessionBackend, "SESSION_BACKEND")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.GoogleClientID, "GOOGLE_CLIENT_ID")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.SessionTTL, "SESSION_TTL"},
		{&c.TokenTTL, "TOKEN_TTL"},
		{&c.AITimeout, "AI_TIMEOUT"},
	} {
		raw := strings.TrimSpace(os.Getenv(d.key))
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_PHOTO_WIDTH")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid MAX_PHOTO_WIDTH: %w", err)
		}
		c.MaxPhotoWidth = uint(v)
	}
	return nil
}

// Validate reports every setting the selected backends need but do not have.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown AI_PROVIDER %q", c.Provider))
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE is required for the dynamodb store"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.SessionBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
