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
)

// Config holds the configuration for the question similarity service
type Config struct {
	Similarity SimilarityConfig `yaml:"similarity"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Export     ExportConfig     `yaml:"export"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// SimilarityConfig controls vectorization and ranking
type SimilarityConfig struct {
	NgramMin         int     `yaml:"ngramMin"`
	NgramMax         int     `yaml:"ngramMax"`
	MaxFeatures      int     `yaml:"maxFeatures"`
	TopN             int     `yaml:"topN"`
	DefaultThreshold float64 `yaml:"defaultThreshold"`
}

// IngestConfig describes how spreadsheets are read
type IngestConfig struct {
	IDColumn       string        `yaml:"idColumn"`
	QuestionColumn string        `yaml:"questionColumn"`
	Sheet          string        `yaml:"sheet"`
	StripHTML      bool          `yaml:"stripHtml"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout"`
	MaxFetchBytes  int64         `yaml:"maxFetchBytes"`
}

type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Similarity: SimilarityConfig{
			NgramMin:         2,
			NgramMax:         4,
			MaxFeatures:      5000,
			TopN:             100,
			DefaultThreshold: 30,
		},
		Ingest: IngestConfig{
			IDColumn:       "id",
			QuestionColumn: "question",
			FetchTimeout:   30 * time.Second,
			MaxFetchBytes:  32 << 20,
		},
		Export: ExportConfig{
			Dir:    "./exports",
			Format: "xlsx",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file,
// an optional YAML file named by QUESTIONSIM_CONFIG and finally the
// process environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(GetStringEnv("QUESTIONSIM_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := Default()
	if path := os.Getenv("QUESTIONSIM_CONFIG"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	s := &cfg.Similarity
	s.NgramMin = GetIntEnv("SIMILARITY_NGRAM_MIN", s.NgramMin)
	s.NgramMax = GetIntEnv("SIMILARITY_NGRAM_MAX", s.NgramMax)
	s.MaxFeatures = GetIntEnv("SIMILARITY_MAX_FEATURES", s.MaxFeatures)
	s.TopN = GetIntEnv("SIMILARITY_TOP_N", s.TopN)
	s.DefaultThreshold = GetFloatEnv("SIMILARITY_THRESHOLD", s.DefaultThreshold)

	in := &cfg.Ingest
	in.IDColumn = GetStringEnv("INGEST_ID_COLUMN", in.IDColumn)
	in.QuestionColumn = GetStringEnv("INGEST_QUESTION_COLUMN", in.QuestionColumn)
	in.Sheet = GetStringEnv("INGEST_SHEET", in.Sheet)
	in.StripHTML = GetBoolEnv("INGEST_STRIP_HTML", in.StripHTML)
	in.FetchTimeout = GetDurationEnv("INGEST_FETCH_TIMEOUT", in.FetchTimeout)
	in.MaxFetchBytes = int64(GetIntEnv("INGEST_MAX_FETCH_BYTES", int(in.MaxFetchBytes)))

	cfg.Export.Dir = GetStringEnv("EXPORT_DIR", cfg.Export.Dir)
	cfg.Export.Format = strings.ToLower(GetStringEnv("EXPORT_FORMAT", cfg.Export.Format))

	cfg.Server.Addr = GetStringEnv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.ReadTimeout = GetDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = GetDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Log.Level = GetStringEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetStringEnv("LOG_FORMAT", cfg.Log.Format)
}

// Validate rejects settings the index cannot work with. An out of range
// default threshold is clamped rather than rejected.
func (c *Config) Validate() error {
	s := &c.Similarity
	if s.NgramMin < 1 {
		return errors.New("similarity.ngramMin must be at least 1")
	}
	if s.NgramMax < s.NgramMin {
		return fmt.Errorf("similarity.ngramMax (%d) must not be below ngramMin (%d)", s.NgramMax, s.NgramMin)
	}
	if s.MaxFeatures < 1 {
		return errors.New("similarity.maxFeatures must be positive")
	}
	if s.TopN < 1 {
		return errors.New("similarity.topN must be positive")
	}
	if s.DefaultThreshold < 0 {
		s.DefaultThreshold = 0
	} else if s.DefaultThreshold > 100 {
		s.DefaultThreshold = 100
	}
	if strings.TrimSpace(c.Ingest.IDColumn) == "" || strings.TrimSpace(c.Ingest.QuestionColumn) == "" {
		return errors.New("ingest column names must not be empty")
	}
	switch c.Export.Format {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("unsupported export format %q", c.Export.Format)
	}
	return nil
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
