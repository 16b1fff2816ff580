package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"SwingSentinel/internal/aggregator"
	"SwingSentinel/internal/swing"
)

// DedupKeepLast is the only supported duplicate-timestamp policy.
const DedupKeepLast = "keep_last"

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Symbol  string `yaml:"symbol" envconfig:"SYMBOL" validate:"required"`
		CSVPath string `yaml:"csv_path" envconfig:"CSV_PATH"`
		BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
		APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
		Proxy   string `yaml:"proxy" envconfig:"PROXY"`
		// LookbackDays is how much history watch seeds the state with.
		LookbackDays int `yaml:"lookback_days" envconfig:"LOOKBACK_DAYS" validate:"gte=1"`
	} `yaml:"data_source" envconfig:"DATA_SOURCE"`
	Aggregation struct {
		Resolution string `yaml:"resolution" envconfig:"RESOLUTION" validate:"required,resolution"`
		// Source is the resolution bars arrive in; bars are folded up to
		// Resolution when it is coarser.
		Source string `yaml:"source" envconfig:"SOURCE" validate:"omitempty,resolution"`
	} `yaml:"aggregation" envconfig:"AGGREGATION"`
	Swing struct {
		Windows     []int  `yaml:"windows" envconfig:"WINDOWS" validate:"required,min=1,dive,gt=0"`
		Cap         int    `yaml:"cap" envconfig:"CAP" validate:"gte=0"`
		TieBreak    string `yaml:"tie_break" envconfig:"TIE_BREAK" validate:"omitempty,oneof=leftmost rightmost all strict"`
		DedupPolicy string `yaml:"dedup_policy" envconfig:"DEDUP_POLICY" validate:"eq=keep_last"`
	} `yaml:"swing" envconfig:"SWING"`
	Schedule struct {
		IngestCron   string `yaml:"ingest_cron" envconfig:"INGEST_CRON" validate:"required"`
		SnapshotCron string `yaml:"snapshot_cron" envconfig:"SNAPSHOT_CRON" validate:"required"`
	} `yaml:"schedule" envconfig:"SCHEDULE"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	} `yaml:"database" envconfig:"DATABASE"`
	HTTP struct {
		Addr string `yaml:"addr" envconfig:"ADDR"`
	} `yaml:"http" envconfig:"HTTP"`
	Log struct {
		Verbose bool `yaml:"verbose" envconfig:"VERBOSE"`
	} `yaml:"log" envconfig:"LOG"`
}

// Load reads config from a YAML file, then applies SENTINEL_* environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Fields without a matching variable are left as the file set them.
	if err := envconfig.Process("SENTINEL", cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Symbol == "" {
		c.DataSource.Symbol = "SPX500"
	}
	if c.DataSource.LookbackDays == 0 {
		c.DataSource.LookbackDays = 365
	}
	if c.Aggregation.Resolution == "" {
		c.Aggregation.Resolution = string(aggregator.Res1d)
	}
	if len(c.Swing.Windows) == 0 {
		c.Swing.Windows = []int{2, 5, 10}
	}
	if c.Swing.TieBreak == "" {
		c.Swing.TieBreak = swing.Leftmost.String()
	}
	if c.Swing.DedupPolicy == "" {
		c.Swing.DedupPolicy = DedupKeepLast
	}
	if c.Schedule.IngestCron == "" {
		c.Schedule.IngestCron = "0 */5 * * * *"
	}
	if c.Schedule.SnapshotCron == "" {
		c.Schedule.SnapshotCron = "30 * * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/swing_sentinel.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8088"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("resolution", validResolution); err != nil {
		panic(fmt.Sprintf("register resolution validator: %v", err))
	}
	return v
}

func validResolution(fl validator.FieldLevel) bool {
	_, err := aggregator.ParseResolution(fl.Field().String())
	return err == nil
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Aggregation.Source != "" {
		src, _ := aggregator.ParseResolution(c.Aggregation.Source)
		dst, _ := aggregator.ParseResolution(c.Aggregation.Resolution)
		if src.Seconds() > dst.Seconds() {
			return fmt.Errorf("aggregation.source %s is coarser than aggregation.resolution %s", src, dst)
		}
	}
	return nil
}

// Resolution returns the parsed target resolution.
func (c *Config) Resolution() aggregator.Resolution {
	r, _ := aggregator.ParseResolution(c.Aggregation.Resolution)
	return r
}

// SourceResolution returns the parsed source resolution, defaulting to the
// target resolution.
func (c *Config) SourceResolution() aggregator.Resolution {
	if c.Aggregation.Source == "" {
		return c.Resolution()
	}
	r, _ := aggregator.ParseResolution(c.Aggregation.Source)
	return r
}

// TieBreak returns the parsed tie-break policy.
func (c *Config) TieBreak() swing.TieBreak {
	t, _ := swing.ParseTieBreak(c.Swing.TieBreak)
	return t
}
