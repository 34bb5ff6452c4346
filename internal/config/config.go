package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

const (
	defaultMessageCap       = 10
	defaultSessionTTL       = 24 * time.Hour
	defaultGeneratorTimeout = 30 * time.Second
	defaultMorningCron      = "0 9 * * *"
	defaultEveningCron      = "0 17 * * *"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port            string `yaml:"port"`
	LogLevel        string `yaml:"logLevel"`
	DatabaseURL     string `yaml:"databaseURL"`
	GeminiAPIKey    string `yaml:"geminiAPIKey"`
	GenerationModel string `yaml:"generationModel"`

	JWTSecret         string `yaml:"jwtSecret"`
	SessionTTL        string `yaml:"sessionTTL"`
	AdminUsername     string `yaml:"adminUsername"`
	AdminPasswordHash string `yaml:"adminPasswordHash"`

	MessageCap       int    `yaml:"messageCap"`
	GeneratorTimeout string `yaml:"generatorTimeout"`

	MorningCron string `yaml:"morningCron"`
	EveningCron string `yaml:"eveningCron"`

	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	LoginRateLimit  int    `yaml:"loginRateLimit"`
	LoginRateWindow string `yaml:"loginRateWindow"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment-variable overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.AdminPasswordHash = v
	}
	if v := os.Getenv("ARTICLE_CRON_MORNING"); v != "" {
		cfg.MorningCron = v
	}
	if v := os.Getenv("ARTICLE_CRON_EVENING"); v != "" {
		cfg.EveningCron = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.MessageCap <= 0 {
		cfg.MessageCap = defaultMessageCap
	}
	if cfg.MorningCron == "" {
		cfg.MorningCron = defaultMorningCron
	}
	if cfg.EveningCron == "" {
		cfg.EveningCron = defaultEveningCron
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if cfg.AdminUsername == "" {
		return errors.New("config: adminUsername is required (set in config.yaml or ADMIN_USERNAME)")
	}
	if cfg.AdminPasswordHash == "" {
		return errors.New("config: adminPasswordHash is required (set in config.yaml or ADMIN_PASSWORD_HASH)")
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseGeneratorTimeout(cfg.GeneratorTimeout); err != nil {
		return err
	}
	return nil
}

// ParseSessionTTL returns the session lifetime, defaulting to 24h.
func ParseSessionTTL(raw string) (time.Duration, error) {
	return parseDuration(raw, "sessionTTL", defaultSessionTTL)
}

// ParseGeneratorTimeout returns the per-call generator timeout, defaulting
// to 30s.
func ParseGeneratorTimeout(raw string) (time.Duration, error) {
	return parseDuration(raw, "generatorTimeout", defaultGeneratorTimeout)
}

// ParseLoginRateWindow returns the login rate-limit window, defaulting to 1m.
func ParseLoginRateWindow(raw string) (time.Duration, error) {
	return parseDuration(raw, "loginRateWindow", time.Minute)
}

func parseDuration(raw, field string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", field)
	}
	return d, nil
}
