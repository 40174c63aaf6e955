package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// The run history falls back to an in-memory store when Host is empty.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               string `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	// MemoryMaxRuns caps the in-memory run history used when Host is empty.
	MemoryMaxRuns      int    `mapstructure:"memory_max_runs"`
}

// Enabled reports whether a database has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// StorageConfig holds object storage settings.
// Driver "minio" talks to any S3-compatible endpoint; driver "s3" uses the AWS SDK.
type StorageConfig struct {
	Driver    string        `mapstructure:"driver"`
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Validate checks the settings the selected driver cannot work without.
func (c StorageConfig) Validate() error {
	if c.Bucket == "" {
		return errors.New("storage bucket is required")
	}
	switch c.Driver {
	case DriverMinIO:
		if c.Endpoint == "" {
			return errors.New("storage endpoint is required for the minio driver")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return errors.New("storage credentials are required for the minio driver")
		}
	case DriverS3:
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Driver)
	}
	return nil
}

const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
)

// FunctionsConfig holds the endpoints of the three remote functions.
type FunctionsConfig struct {
	PDFParserURL     string        `mapstructure:"pdf_parser_url"`
	WebScraperURL    string        `mapstructure:"web_scraper_url"`
	AnalysisURL      string        `mapstructure:"analysis_url"`
	ExtractTimeout   time.Duration `mapstructure:"extract_timeout"`
	ScrapeTimeout    time.Duration `mapstructure:"scrape_timeout"`
	AnalyzeTimeout   time.Duration `mapstructure:"analyze_timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
}

// Validate checks that every endpoint is set.
func (c FunctionsConfig) Validate() error {
	var missing []string
	if c.PDFParserURL == "" {
		missing = append(missing, "pdf_parser_url")
	}
	if c.WebScraperURL == "" {
		missing = append(missing, "web_scraper_url")
	}
	if c.AnalysisURL == "" {
		missing = append(missing, "analysis_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("function endpoints are required: %s", strings.Join(missing, ", "))
	}
	return nil
}

// OrchestratorConfig tunes the fan-out pool.
type OrchestratorConfig struct {
	PoolSize       int   `mapstructure:"pool_size"`
	MaxResumeBytes int64 `mapstructure:"max_resume_bytes"`
	MaxResumeText  int64 `mapstructure:"max_resume_text_bytes"`
}

// ScraperConfig is the fetch policy of the bundled web scraper function.
type ScraperConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// AppConfig is the centralized configuration struct for the application.
// It is built once at startup and handed to constructors; nothing reads it globally.
type AppConfig struct {
	AppHost      string             `mapstructure:"app_host"`
	Port         string             `mapstructure:"port"`
	Log          LogConfig          `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Functions    FunctionsConfig    `mapstructure:"functions"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Scraper      ScraperConfig      `mapstructure:"scraper"`
	Database     DatabaseConfig     `mapstructure:"database"`
}

var defaults = map[string]any{
	"config_file":                        "",
	"app_host":                           "localhost:8080",
	"port":                               "8080",
	"log.json":                           false,
	"log.debug":                          false,
	"storage.driver":                     DriverMinIO,
	"storage.endpoint":                   "",
	"storage.access_key":                 "",
	"storage.secret_key":                 "",
	"storage.region":                     "",
	"storage.bucket":                     "",
	"storage.use_ssl":                    false,
	"storage.timeout":                    "15s",
	"functions.pdf_parser_url":           "",
	"functions.web_scraper_url":          "",
	"functions.analysis_url":             "",
	"functions.extract_timeout":          "30s",
	"functions.scrape_timeout":           "30s",
	"functions.analyze_timeout":          "60s",
	"functions.max_response_bytes":       8 << 20,
	"orchestrator.pool_size":             4,
	"orchestrator.max_resume_bytes":      10 << 20,
	"orchestrator.max_resume_text_bytes": 5 << 20,
	"scraper.fetch_timeout":              "10s",
	"scraper.max_body_bytes":             2 << 20,
	"scraper.max_redirects":              5,
	"scraper.user_agent":                 "resumeboost-scraper/1.0",
	"database.host":                      "",
	"database.port":                      "5432",
	"database.user":                      "",
	"database.password":                  "",
	"database.name":                      "",
	"database.sslmode":                   "disable",
	"database.max_open_conns":            10,
	"database.max_idle_conns":            5,
	"database.conn_max_lifetime_sec":     300,
	"database.memory_max_runs":           1000,
}

// envBindings maps config keys to environment variable names, first match wins.
var envBindings = map[string][]string{
	"config_file":                        {ConfigFileEnv},
	"app_host":                           {"APP_HOST"},
	"port":                               {"PORT"},
	"log.json":                           {"LOG_JSON"},
	"log.debug":                          {"LOG_DEBUG"},
	"storage.driver":                     {"STORAGE_DRIVER"},
	"storage.endpoint":                   {"S3_ENDPOINT", "MINIO_ENDPOINT"},
	"storage.access_key":                 {"S3_ACCESS_KEY", "MINIO_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
	"storage.secret_key":                 {"S3_SECRET_KEY", "MINIO_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
	"storage.region":                     {"S3_REGION", "AWS_REGION"},
	"storage.bucket":                     {"S3_BUCKET", "MINIO_BUCKET"},
	"storage.use_ssl":                    {"S3_USE_SSL", "MINIO_USE_SSL"},
	"storage.timeout":                    {"STORAGE_TIMEOUT"},
	"functions.pdf_parser_url":           {"PDF_PARSER_URL"},
	"functions.web_scraper_url":          {"WEB_SCRAPER_URL"},
	"functions.analysis_url":             {"RESUME_ANALYSIS_URL"},
	"functions.extract_timeout":          {"EXTRACT_TIMEOUT"},
	"functions.scrape_timeout":           {"SCRAPE_TIMEOUT"},
	"functions.analyze_timeout":          {"ANALYZE_TIMEOUT"},
	"functions.max_response_bytes":       {"FUNCTION_MAX_RESPONSE_BYTES"},
	"orchestrator.pool_size":             {"ORCHESTRATOR_POOL_SIZE"},
	"orchestrator.max_resume_bytes":      {"MAX_RESUME_BYTES"},
	"orchestrator.max_resume_text_bytes": {"MAX_RESUME_TEXT_BYTES"},
	"scraper.fetch_timeout":              {"SCRAPER_FETCH_TIMEOUT"},
	"scraper.max_body_bytes":             {"SCRAPER_MAX_BODY_BYTES"},
	"scraper.max_redirects":              {"SCRAPER_MAX_REDIRECTS"},
	"scraper.user_agent":                 {"SCRAPER_USER_AGENT"},
	"database.host":                      {"DB_HOST"},
	"database.port":                      {"DB_PORT"},
	"database.user":                      {"DB_USER"},
	"database.password":                  {"DB_PASSWORD"},
	"database.name":                      {"DB_NAME"},
	"database.sslmode":                   {"DB_SSLMODE"},
	"database.max_open_conns":            {"DB_MAX_OPEN_CONNS"},
	"database.max_idle_conns":            {"DB_MAX_IDLE_CONNS"},
	"database.conn_max_lifetime_sec":     {"DB_CONN_MAX_LIFETIME_SEC"},
	"database.memory_max_runs":           {"RUN_HISTORY_MAX_RUNS"},
}

// ConfigFileEnv names the environment variable that points at a config file
// when no explicit path is given.
const ConfigFileEnv = "RESUMEBOOST_CONFIG"

// Load builds the configuration from defaults, an optional config file and the environment.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Environment variables take precedence over the file.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return &cfg, nil
}
