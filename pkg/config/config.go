// Package config loads pipeline settings from defaults, an optional YAML file
// and the environment (including a .env file when present).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the harvest/fetch/process/cross-reference pipeline.
type Config struct {
	// IndexURL is the first page of the paginated document index.
	IndexURL string `yaml:"index_url"`
	// ContinuationText is the anchor text of the "next page" link on an index page.
	ContinuationText string `yaml:"continuation_text"`
	// ContinuationParam is the query parameter carrying the continuation token.
	ContinuationParam string `yaml:"continuation_param"`

	DataDir      string `yaml:"data_dir"`
	LinksFile    string `yaml:"links_file"`
	DocumentsDir string `yaml:"documents_dir"`
	SourcesDir   string `yaml:"sources_dir"`
	OutputDir    string `yaml:"output_dir"`

	// RequestDelay is waited after every remote request.
	RequestDelay time.Duration `yaml:"request_delay"`
	// TransientCooldown is waited after a connection-level failure.
	TransientCooldown time.Duration `yaml:"transient_cooldown"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	// RateLimit is a requests-per-second ceiling on top of RequestDelay. 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
	UserAgent string  `yaml:"user_agent"`

	// Workers is the number of goroutines parsing already-staged documents.
	Workers    int `yaml:"workers"`
	IndexWidth int `yaml:"index_width"`

	// DatabaseURL enables the SQL mirror when non-empty (sqlite path or postgres:// DSN).
	DatabaseURL string `yaml:"database_url"`
	// Extractor selects the content extractor: "wikisource" or "readability".
	Extractor string `yaml:"extractor"`
	// CacheLexicon downloads a remote lexicon export into DataDir before reducing it.
	CacheLexicon bool `yaml:"cache_lexicon"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		IndexURL:          "https://sl.wikisource.org/w/index.php?title=Posebno:VseStrani",
		ContinuationText:  "Naslednja stran",
		ContinuationParam: "from",
		DataDir:           "podatki",
		RequestDelay:      1 * time.Second,
		TransientCooldown: 3 * time.Second,
		RequestTimeout:    30 * time.Second,
		UserAgent:         "wikivir/1.0",
		Workers:           1,
		IndexWidth:        5,
		Extractor:         ExtractorWikisource,
	}
}

const (
	ExtractorWikisource  = "wikisource"
	ExtractorReadability = "readability"
)

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillPaths()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.IndexURL = getEnv("WIKIVIR_INDEX_URL", c.IndexURL)
	c.DataDir = getEnv("WIKIVIR_DATA_DIR", c.DataDir)
	c.UserAgent = getEnv("WIKIVIR_USER_AGENT", c.UserAgent)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Extractor = getEnv("WIKIVIR_EXTRACTOR", c.Extractor)

	var err error
	if c.RequestDelay, err = getEnvDuration("WIKIVIR_REQUEST_DELAY", c.RequestDelay); err != nil {
		return err
	}
	if c.TransientCooldown, err = getEnvDuration("WIKIVIR_TRANSIENT_COOLDOWN", c.TransientCooldown); err != nil {
		return err
	}
	if c.RequestTimeout, err = getEnvDuration("WIKIVIR_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("WIKIVIR_WORKERS", c.Workers); err != nil {
		return err
	}
	return nil
}

// fillPaths derives unset file locations from DataDir.
func (c *Config) fillPaths() {
	if c.LinksFile == "" {
		c.LinksFile = filepath.Join(c.DataDir, "literarne_strani")
	}
	if c.DocumentsDir == "" {
		c.DocumentsDir = filepath.Join(c.DataDir, "dela")
	}
	if c.SourcesDir == "" {
		c.SourcesDir = filepath.Join(c.DataDir, "viri")
	}
	if c.OutputDir == "" {
		c.OutputDir = c.DataDir
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.IndexURL == "" {
		return fmt.Errorf("index_url is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.RequestDelay < 0 || c.TransientCooldown < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.IndexWidth < 1 {
		return fmt.Errorf("index_width must be >= 1, got %d", c.IndexWidth)
	}
	switch c.Extractor {
	case ExtractorWikisource, ExtractorReadability:
	default:
		return fmt.Errorf("unsupported extractor %q (use %s or %s)", c.Extractor, ExtractorWikisource, ExtractorReadability)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
