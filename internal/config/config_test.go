package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8501", cfg.Addr)
	assert.Equal(t, "tfidf_vectorizer.json", cfg.Model.Vectorizer)
	assert.Equal(t, "naive_bayes_model.json", cfg.Model.Classifier)
	assert.Equal(t, "Naive Bayes", cfg.Model.Name)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.False(t, cfg.Fetch.AllowPrivate)
	assert.False(t, cfg.Labels.Strict)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SENTIMEN_ADDR", ":9000")
	t.Setenv("SENTIMEN_MODEL_CLASSIFIER", "/models/nb.json")
	t.Setenv("SENTIMEN_HISTORY_ENABLED", "false")
	t.Setenv("SENTIMEN_FETCH_TIMEOUT", "5s")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/models/nb.json", cfg.Model.Classifier)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentimen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
model:
  accuracy: "91%"
labels:
  strict: true
`), 0644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "91%", cfg.Model.Accuracy)
	assert.True(t, cfg.Labels.Strict)
	assert.Equal(t, "naive_bayes_model.json", cfg.Model.Classifier)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Vectorizer: "v.json"}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{
		Model:   ModelConfig{Vectorizer: "v.json", Classifier: "c.json"},
		History: HistoryConfig{Enabled: true},
	}
	assert.Error(t, cfg.Validate())

	cfg.History.DB = "h.db"
	assert.NoError(t, cfg.Validate())
}

func TestLabelTable(t *testing.T) {
	cfg := &Config{}
	table, err := cfg.LabelTable()
	require.NoError(t, err)
	assert.Equal(t, "Positif", table.Lookup(0).Label)

	cfg.Labels.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.LabelTable()
	assert.Error(t, err)
}
