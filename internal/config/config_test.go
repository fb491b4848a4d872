package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/questionsim/internal/config"
)

var configEnvKeys = []string{
	"QUESTIONSIM_CONFIG",
	"SIMILARITY_NGRAM_MIN",
	"SIMILARITY_NGRAM_MAX",
	"SIMILARITY_MAX_FEATURES",
	"SIMILARITY_TOP_N",
	"SIMILARITY_THRESHOLD",
	"INGEST_ID_COLUMN",
	"INGEST_QUESTION_COLUMN",
	"INGEST_SHEET",
	"INGEST_STRIP_HTML",
	"INGEST_FETCH_TIMEOUT",
	"INGEST_MAX_FETCH_BYTES",
	"EXPORT_DIR",
	"EXPORT_FORMAT",
	"SERVER_ADDR",
	"SERVER_READ_TIMEOUT",
	"SERVER_WRITE_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
}

// isolate blanks every variable Load reads, which the helpers treat as unset.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("QUESTIONSIM_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Similarity.NgramMin)
	assert.Equal(t, 4, cfg.Similarity.NgramMax)
	assert.Equal(t, 5000, cfg.Similarity.MaxFeatures)
	assert.Equal(t, 100, cfg.Similarity.TopN)
	assert.Equal(t, 30.0, cfg.Similarity.DefaultThreshold)

	assert.Equal(t, "id", cfg.Ingest.IDColumn)
	assert.Equal(t, "question", cfg.Ingest.QuestionColumn)
	assert.False(t, cfg.Ingest.StripHTML)
	assert.Equal(t, 30*time.Second, cfg.Ingest.FetchTimeout)

	assert.Equal(t, "./exports", cfg.Export.Dir)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	isolate(t)

	envVars := map[string]string{
		"SIMILARITY_NGRAM_MIN":    "3",
		"SIMILARITY_NGRAM_MAX":    "5",
		"SIMILARITY_MAX_FEATURES": "200",
		"SIMILARITY_TOP_N":        "25",
		"SIMILARITY_THRESHOLD":    "55.5",
		"INGEST_QUESTION_COLUMN":  "text",
		"INGEST_STRIP_HTML":       "true",
		"INGEST_FETCH_TIMEOUT":    "5s",
		"EXPORT_FORMAT":           "CSV",
		"SERVER_ADDR":             ":9090",
		"LOG_LEVEL":               "debug",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Similarity.NgramMin)
	assert.Equal(t, 5, cfg.Similarity.NgramMax)
	assert.Equal(t, 200, cfg.Similarity.MaxFeatures)
	assert.Equal(t, 25, cfg.Similarity.TopN)
	assert.Equal(t, 55.5, cfg.Similarity.DefaultThreshold)
	assert.Equal(t, "text", cfg.Ingest.QuestionColumn)
	assert.True(t, cfg.Ingest.StripHTML)
	assert.Equal(t, 5*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFromYAML(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
similarity:
  topN: 10
  maxFeatures: 1000
ingest:
  questionColumn: body
  fetchTimeout: 2m
export:
  dir: /tmp/out
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	t.Setenv("QUESTIONSIM_CONFIG", path)
	t.Setenv("SIMILARITY_TOP_N", "12")

	cfg, err := config.Load()
	require.NoError(t, err)

	// environment wins over the file
	assert.Equal(t, 12, cfg.Similarity.TopN)
	assert.Equal(t, 1000, cfg.Similarity.MaxFeatures)
	assert.Equal(t, "body", cfg.Ingest.QuestionColumn)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.FetchTimeout)
	assert.Equal(t, "/tmp/out", cfg.Export.Dir)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Similarity.NgramMin)
}

func TestLoadConfigFromDotEnv(t *testing.T) {
	isolate(t)
	os.Unsetenv("SIMILARITY_TOP_N")
	t.Cleanup(func() { os.Unsetenv("SIMILARITY_TOP_N") })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SIMILARITY_TOP_N=7\n"), 0o644))
	t.Setenv("QUESTIONSIM_ENV_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Similarity.TopN)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"ngram min below one", "SIMILARITY_NGRAM_MIN", "0"},
		{"ngram max below min", "SIMILARITY_NGRAM_MAX", "1"},
		{"no features", "SIMILARITY_MAX_FEATURES", "-1"},
		{"no results", "SIMILARITY_TOP_N", "-3"},
		{"bad export format", "EXPORT_FORMAT", "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("similarity: [unclosed"), 0o644))
	t.Setenv("QUESTIONSIM_CONFIG", path)

	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("QUESTIONSIM_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err = config.Load()
	assert.Error(t, err)
}

func TestValidateClampsThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Similarity.DefaultThreshold = 180
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100.0, cfg.Similarity.DefaultThreshold)

	cfg.Similarity.DefaultThreshold = -4
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.0, cfg.Similarity.DefaultThreshold)
}

func TestGetIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		expected     int
	}{
		{"Valid int", "42", 10, 42},
		{"Invalid int", "not_a_number", 10, 10},
		{"Negative int", "-5", 10, -5},
		{"Zero", "0", 10, 0},
		{"Unset", "", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			assert.Equal(t, tt.expected, config.GetIntEnv("TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetFloatEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue float64
		expected     float64
	}{
		{"Valid float", "12.5", 1, 12.5},
		{"Integer", "40", 1, 40},
		{"Invalid float", "abc", 30, 30},
		{"Unset", "", 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tt.envValue)
			assert.Equal(t, tt.expected, config.GetFloatEnv("TEST_FLOAT", tt.defaultValue))
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"True string", "true", false, true},
		{"False string", "false", true, false},
		{"1 (true)", "1", false, true},
		{"0 (false)", "0", true, false},
		{"Invalid bool", "invalid", true, true},
		{"Unset", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.expected, config.GetBoolEnv("TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{"Valid duration - seconds", "5s", 1 * time.Second, 5 * time.Second},
		{"Valid duration - combined", "1h30m", 1 * time.Second, 90 * time.Minute},
		{"Invalid duration", "invalid", 5 * time.Second, 5 * time.Second},
		{"Unset", "", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			assert.Equal(t, tt.expected, config.GetDurationEnv("TEST_DURATION", tt.defaultValue))
		})
	}
}

func TestGetStringEnv(t *testing.T) {
	t.Setenv("TEST_STRING", "test_value")
	assert.Equal(t, "test_value", config.GetStringEnv("TEST_STRING", "default"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default", config.GetStringEnv("TEST_STRING", "default"))
}
