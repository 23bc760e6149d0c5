package config

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Model  ModelConfig  `yaml:"model" mapstructure:"model"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates and describes the two input datasets.
type DataConfig struct {
	TreesPath      string `yaml:"trees_path" mapstructure:"trees_path"`
	PropertiesPath string `yaml:"properties_path" mapstructure:"properties_path"`
	Delimiter      string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding       string `yaml:"encoding" mapstructure:"encoding"`
	PriceColumn    string `yaml:"price_column" mapstructure:"price_column"`
	DateColumn     string `yaml:"date_column" mapstructure:"date_column"`
	StreetColumn   string `yaml:"street_column" mapstructure:"street_column"`
	SheetName      string `yaml:"sheet_name" mapstructure:"sheet_name"`
	// EmptyMedian is "error" or "zero": what to fill when no row has a known tree height.
	EmptyMedian string `yaml:"empty_median" mapstructure:"empty_median"`
}

// ModelConfig configures training, evaluation and the persisted artifact.
type ModelConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	Seed       int64    `yaml:"seed" mapstructure:"seed"`
	TestSize   float64  `yaml:"test_size" mapstructure:"test_size"`
	Estimators int      `yaml:"estimators" mapstructure:"estimators"`
	Folds      int      `yaml:"folds" mapstructure:"folds"`
	Workers    int      `yaml:"workers" mapstructure:"workers"`
	Features   []string `yaml:"features" mapstructure:"features"`
	Target     string   `yaml:"target" mapstructure:"target"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or none
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the prediction server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TREEPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.trees_path", "trees-data.json")
	v.SetDefault("data.properties_path", "property-data.csv")
	v.SetDefault("data.delimiter", ",")
	v.SetDefault("data.encoding", "latin1")
	v.SetDefault("data.price_column", "Price")
	v.SetDefault("data.date_column", "Date of Sale (dd/mm/yyyy)")
	v.SetDefault("data.street_column", "Street Name")
	v.SetDefault("data.sheet_name", "")
	v.SetDefault("data.empty_median", "error")
	v.SetDefault("model.path", "property_price_model.json")
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.test_size", 0.2)
	v.SetDefault("model.estimators", 100)
	v.SetDefault("model.folds", 5)
	v.SetDefault("model.workers", 0)
	v.SetDefault("model.features", []string{"Tree_Height_Value", "Year", "Month"})
	v.SetDefault("model.target", "Price")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "treeprice.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges that would otherwise surface deep inside a run.
func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Data.Delimiter) != 1 {
		return eris.Errorf("config: data.delimiter must be a single character, got %q", c.Data.Delimiter)
	}
	switch c.Data.EmptyMedian {
	case "error", "zero":
	default:
		return eris.Errorf("config: data.empty_median must be \"error\" or \"zero\", got %q", c.Data.EmptyMedian)
	}
	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return eris.Errorf("config: model.test_size must be in (0, 1), got %v", c.Model.TestSize)
	}
	if c.Model.Estimators < 1 {
		return eris.Errorf("config: model.estimators must be at least 1, got %d", c.Model.Estimators)
	}
	if c.Model.Folds < 2 {
		return eris.Errorf("config: model.folds must be at least 2, got %d", c.Model.Folds)
	}
	if len(c.Model.Features) == 0 {
		return eris.New("config: model.features must not be empty")
	}
	if c.Model.Target == "" {
		return eris.New("config: model.target is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune.
func (d DataConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(d.Delimiter)
	return r
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
