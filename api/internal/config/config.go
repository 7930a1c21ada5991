package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"echo-grade/api/internal/grade/fusion"
)

type Config struct {
	Port string

	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string

	// Sentence embedding server shared by the SBERT and E5 models
	EmbeddingsURL    string
	EmbeddingsAPIKey string
	EmbeddingsFlavor string
	EmbeddingsRPS    float64
	SBERTModel       string
	E5Model          string

	TelegramBotToken string
	WebhookURL       string

	LogFile        string
	PolicyFile     string
	RequestTimeout time.Duration

	Policy Policy
}

// Policy is the grading policy read from POLICY_FILE.
type Policy struct {
	Weights         fusion.Weights `yaml:"weights"`
	SBERTPrefix     string         `yaml:"sbert_prefix"`
	E5Prefix        string         `yaml:"e5_prefix"`
	ExtractParallel int            `yaml:"extract_parallel"`
}

func DefaultPolicy() Policy {
	return Policy{
		Weights:         fusion.DefaultWeights,
		E5Prefix:        "query: ",
		ExtractParallel: 4,
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads .env (when present), the environment and the policy file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "embedding-001"),

		EmbeddingsURL:    getEnv("EMBEDDINGS_URL", ""),
		EmbeddingsAPIKey: getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingsFlavor: getEnv("EMBEDDINGS_FLAVOR", "openai"),
		SBERTModel:       getEnv("SBERT_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
		E5Model:          getEnv("E5_MODEL", "intfloat/e5-large-v2"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogFile:    getEnv("LOG_FILE", ""),
		PolicyFile: getEnv("POLICY_FILE", "policy.yaml"),
	}

	var errs []error
	if cfg.GeminiAPIKey == "" {
		errs = append(errs, errors.New("missing required env GEMINI_API_KEY"))
	}
	if cfg.EmbeddingsURL == "" {
		errs = append(errs, errors.New("missing required env EMBEDDINGS_URL"))
	}

	var err error
	if cfg.RequestTimeout, err = parseDuration(getEnv("REQUEST_TIMEOUT", "180s")); err != nil {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: %w", err))
	}
	if v := getEnv("EMBEDDINGS_RPS", ""); v != "" {
		if cfg.EmbeddingsRPS, err = strconv.ParseFloat(v, 64); err != nil || cfg.EmbeddingsRPS < 0 {
			errs = append(errs, fmt.Errorf("EMBEDDINGS_RPS: bad value %q", v))
		}
	}

	if cfg.Policy, err = LoadPolicy(cfg.PolicyFile); err != nil {
		errs = append(errs, err)
	}
	if v := getEnv("FUSION_WEIGHTS", ""); v != "" {
		if w, err := ParseWeights(v); err != nil {
			errs = append(errs, fmt.Errorf("FUSION_WEIGHTS: %w", err))
		} else {
			cfg.Policy.Weights = w
		}
	}
	if v, ok := os.LookupEnv("E5_PREFIX"); ok {
		cfg.Policy.E5Prefix = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// LoadPolicy reads the YAML policy at path. A missing file gives the
// defaults; fields left out of the file keep their defaults too.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("policy %s: %w", path, err)
	}
	if err := p.Weights.Validate(); err != nil {
		return p, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// ParseWeights reads "eq,sbert,e5".
func ParseWeights(s string) (fusion.Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fusion.Weights{}, fmt.Errorf("want 3 comma separated numbers, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fusion.Weights{}, fmt.Errorf("bad weight %q", p)
		}
		v[i] = f
	}
	w := fusion.Weights{Equation: v[0], SBERT: v[1], E5: v[2]}
	return w, w.Validate()
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
