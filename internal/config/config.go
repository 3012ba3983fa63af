package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Biometric BiometricConfig
	Admin     AdminConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Legacy    LegacyConfig
	Plans     PlansConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	FaceIndexPath string // Path to persist the face HNSW index (optional, if empty index is rebuilt on startup)
}

type EmbeddingConfig struct {
	URL string // face embedding service, defaults to http://localhost:8000
	Dim int    // embedding dimension, defaults to 128
}

// BiometricConfig carries the distance thresholds for the two matching
// modes. The observed production value is 0.35 for both (roughly a 65%
// minimum similarity), but they are tunable independently.
type BiometricConfig struct {
	DuplicateThreshold float64 // max distance treated as a duplicate at enrollment
	IdentifyThreshold  float64 // max distance treated as a match at the gate
}

type AdminConfig struct {
	Username string
	Password string
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type LegacyConfig struct {
	DatabaseURL string // MariaDB DSN of the legacy member system (for one-shot import)
}

type PlansConfig struct {
	Plans map[string]PlanPricing `yaml:"plans"`
}

type PlanPricing struct {
	MonthlyCents int64  `yaml:"monthly_cents"`
	Currency     string `yaml:"currency"`
	Description  string `yaml:"description"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var plans PlansConfig
	if err := yaml.Unmarshal(plansYAML, &plans); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded plans.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			FaceIndexPath: os.Getenv("FACE_INDEX_PATH"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Biometric: BiometricConfig{
			DuplicateThreshold: envFloat("FACE_DUPLICATE_THRESHOLD", 0.35),
			IdentifyThreshold:  envFloat("FACE_IDENTIFY_THRESHOLD", 0.35),
		},
		Admin: AdminConfig{
			Username: os.Getenv("ADMIN_USERNAME"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Legacy: LegacyConfig{
			DatabaseURL: os.Getenv("LEGACY_DATABASE_URL"),
		},
		Plans: plans,
	}
}

// GetPlanPricing returns pricing for a plan, zero pricing when unknown.
func (c *Config) GetPlanPricing(plan string) PlanPricing {
	if pricing, ok := c.Plans.Plans[plan]; ok {
		return pricing
	}
	return PlanPricing{}
}
