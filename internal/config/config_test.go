package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "trees-data.json", cfg.Data.TreesPath)
	assert.Equal(t, "property-data.csv", cfg.Data.PropertiesPath)
	assert.Equal(t, ",", cfg.Data.Delimiter)
	assert.Equal(t, "latin1", cfg.Data.Encoding)
	assert.Equal(t, "Price", cfg.Data.PriceColumn)
	assert.Equal(t, "Date of Sale (dd/mm/yyyy)", cfg.Data.DateColumn)
	assert.Equal(t, "Street Name", cfg.Data.StreetColumn)
	assert.Equal(t, "error", cfg.Data.EmptyMedian)
	assert.Equal(t, "property_price_model.json", cfg.Model.Path)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.InDelta(t, 0.2, cfg.Model.TestSize, 0.0001)
	assert.Equal(t, 100, cfg.Model.Estimators)
	assert.Equal(t, 5, cfg.Model.Folds)
	assert.Equal(t, []string{"Tree_Height_Value", "Year", "Month"}, cfg.Model.Features)
	assert.Equal(t, "Price", cfg.Model.Target)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  trees_path: /data/trees.json
  delimiter: ";"
model:
  seed: 7
  estimators: 10
store:
  driver: none
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/trees.json", cfg.Data.TreesPath)
	assert.Equal(t, ';', cfg.Data.DelimiterRune())
	assert.Equal(t, int64(7), cfg.Model.Seed)
	assert.Equal(t, 10, cfg.Model.Estimators)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Model.Folds)
	assert.Equal(t, "property-data.csv", cfg.Data.PropertiesPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
model:
  path: from-file.json
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TREEPRICE_MODEL_PATH", "from-env.json")
	t.Setenv("TREEPRICE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env.json", cfg.Model.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("model: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	return &Config{
		Data: DataConfig{Delimiter: ",", EmptyMedian: "error"},
		Model: ModelConfig{
			TestSize:   0.2,
			Estimators: 100,
			Folds:      5,
			Features:   []string{"Tree_Height_Value", "Year", "Month"},
			Target:     "Price",
		},
		Store: StoreConfig{Driver: "sqlite", DatabaseURL: "treeprice.db"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"multi-char delimiter", func(c *Config) { c.Data.Delimiter = ";;" }, "data.delimiter"},
		{"empty delimiter", func(c *Config) { c.Data.Delimiter = "" }, "data.delimiter"},
		{"tab delimiter", func(c *Config) { c.Data.Delimiter = "\t" }, ""},
		{"bad empty median", func(c *Config) { c.Data.EmptyMedian = "mean" }, "data.empty_median"},
		{"zero test size", func(c *Config) { c.Model.TestSize = 0 }, "model.test_size"},
		{"full test size", func(c *Config) { c.Model.TestSize = 1 }, "model.test_size"},
		{"no estimators", func(c *Config) { c.Model.Estimators = 0 }, "model.estimators"},
		{"one fold", func(c *Config) { c.Model.Folds = 1 }, "model.folds"},
		{"no features", func(c *Config) { c.Model.Features = nil }, "model.features"},
		{"no target", func(c *Config) { c.Model.Target = "" }, "model.target"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"missing dsn", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url"},
		{"none driver needs no dsn", func(c *Config) {
			c.Store.Driver = "none"
			c.Store.DatabaseURL = ""
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
