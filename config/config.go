package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"

	defaultSourcePath = "config/necc.yaml"
)

type Config struct {
	Supabase  SupabaseConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Source    SourceConfig
	HTTP      HTTPConfig
	S3        S3Config
	NATS      NATSConfig
	Backend   string
	DBPath    string
	LogLevel  string
	LogFile   string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	DBURL      string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	// Enabled is false only when NECC_SCRAPER_ENABLED is literally "false"
	Enabled  bool
	Location *time.Location
}

// SourceConfig describes the upstream NECC price page
type SourceConfig struct {
	URL        string        `yaml:"url"`
	TableID    string        `yaml:"table_id"`
	UserAgent  string        `yaml:"user_agent"`
	TimeoutSec int           `yaml:"timeout_sec"`
	Timeout    time.Duration `yaml:"-"`
}

type HTTPConfig struct {
	Addr string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for R2 / Spaces / MinIO
	AccessKeyID     string
	SecretAccessKey string
}

type NATSConfig struct {
	URL     string
	Subject string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			Enabled:  os.Getenv("NECC_SCRAPER_ENABLED") != "false",
			Location: loadLocation(getEnv("SCRAPE_TIMEZONE", "Asia/Kolkata")),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		NATS: NATSConfig{
			URL:     os.Getenv("NATS_URL"),
			Subject: getEnv("NATS_SUBJECT", "necc.prices.scraped"),
		},
		DBPath:   getEnv("DB_PATH", "scraper.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "daemon.log"),
	}

	cfg.Backend = os.Getenv("STORE_BACKEND")
	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
		if cfg.Supabase.DBURL != "" {
			cfg.Backend = BackendPostgres
		}
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	source, err := LoadSource(getEnv("NECC_SOURCE_CONFIG", defaultSourcePath))
	if err != nil {
		return nil, err
	}
	cfg.Source = *source
	cfg.Source.TimeoutSec = getEnvInt("SCRAPE_TIMEOUT_SEC", cfg.Source.TimeoutSec)
	cfg.Source.Timeout = time.Duration(cfg.Source.TimeoutSec) * time.Second

	return cfg, nil
}

// DefaultSource returns the built-in upstream settings
func DefaultSource() SourceConfig {
	return SourceConfig{
		URL:        "https://www.e2necc.com/home/eggprice",
		TableID:    "tblEggPrice",
		UserAgent:  "Mozilla/5.0 (compatible; NECC-Price-Scraper/1.0; +https://poultrybazaar.net)",
		TimeoutSec: 30,
		Timeout:    30 * time.Second,
	}
}

// LoadSource reads the upstream source YAML at path, filling gaps from
// DefaultSource. A missing file yields the defaults.
func LoadSource(path string) (*SourceConfig, error) {
	src := DefaultSource()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &src, nil
		}
		return nil, err
	}

	var fromFile SourceConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, err
	}

	if fromFile.URL != "" {
		src.URL = fromFile.URL
	}
	if fromFile.TableID != "" {
		src.TableID = fromFile.TableID
	}
	if fromFile.UserAgent != "" {
		src.UserAgent = fromFile.UserAgent
	}
	if fromFile.TimeoutSec > 0 {
		src.TimeoutSec = fromFile.TimeoutSec
	}
	src.Timeout = time.Duration(src.TimeoutSec) * time.Second

	return &src, nil
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

type zoneSeed struct {
	Zones []string `yaml:"zones"`
}

// LoadZoneNames reads the zone seed list used by the local SQLite backend
func LoadZoneNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed zoneSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	return seed.Zones, nil
}
