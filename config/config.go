// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port       string `yaml:"port" validate:"required,numeric"`
	AdminToken string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=mysql sqlite"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=badger consul"`
	BadgerPath string `yaml:"badger_path"`
	InMemory   bool   `yaml:"in_memory"`
	ConsulAddr string `yaml:"consul_addr"`
	KeyPrefix  string `yaml:"key_prefix"`
}

type BudgetConfig struct {
	MonthlyCap   int64 `yaml:"monthly_cap" validate:"gt=0"`
	DaysPerMonth int64 `yaml:"days_per_month" validate:"gt=0"`
}

type CacheConfig struct {
	TTLStr string        `yaml:"ttl"`
	TTL    time.Duration `yaml:"-"`
}

type ProviderConfig struct {
	Kind              string        `yaml:"kind" validate:"oneof=api html"`
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	APIKey            string        `yaml:"api_key"`
	TimeoutStr        string        `yaml:"timeout"`
	Timeout           time.Duration `yaml:"-"`
	MaxAttempts       int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
	BaseBackoffStr    string        `yaml:"base_backoff"`
	BaseBackoff       time.Duration `yaml:"-"`
	MaxBackoffStr     string        `yaml:"max_backoff"`
	MaxBackoff        time.Duration `yaml:"-"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	ResultLimit       int           `yaml:"result_limit" validate:"gte=0"`
}

type CatalogConfig struct {
	CSVPath string `yaml:"csv_path"`
	URL     string `yaml:"url"`
}

type CalendarOverrideConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Weekday           string  `yaml:"weekday"`
	StartHour         int     `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour           int     `yaml:"end_hour" validate:"gte=0,lte=24"`
	MaxFrequencyHours float64 `yaml:"max_frequency_hours" validate:"gte=0"`
}

type SeasonalConfig struct {
	HighSeasonMonths  []int   `yaml:"high_season_months" validate:"dive,gte=1,lte=12"`
	FrequencyFactor   float64 `yaml:"frequency_factor" validate:"gt=0,lte=1"`
	MinFrequencyHours float64 `yaml:"min_frequency_hours" validate:"gte=0"`
}

type ScannerConfig struct {
	Exclusion          string                 `yaml:"exclusion" validate:"oneof=tier global"`
	InterRouteDelayStr string                 `yaml:"inter_route_delay"`
	InterRouteDelay    time.Duration          `yaml:"-"`
	ReportHourUTC      int                    `yaml:"report_hour_utc" validate:"gte=0,lte=23"`
	LookaheadDays      int                    `yaml:"lookahead_days" validate:"gte=0"`
	TripLengthDays     int                    `yaml:"trip_length_days" validate:"gte=0"`
	Adults             int                    `yaml:"adults" validate:"gte=1"`
	Cabin              string                 `yaml:"cabin"`
	Currency           string                 `yaml:"currency" validate:"len=3"`
	DealValidityStr    string                 `yaml:"deal_validity"`
	DealValidity       time.Duration          `yaml:"-"`
	HistoryWindowDays  int                    `yaml:"history_window_days" validate:"gte=0"`
	CalendarOverride   CalendarOverrideConfig `yaml:"calendar_override"`
	Seasonal           SeasonalConfig         `yaml:"seasonal"`
}

type DetectionConfig struct {
	TierThresholds   map[int]float64 `yaml:"tier_thresholds"`
	MaxDeals         int             `yaml:"max_deals" validate:"gte=1"`
	ZScoreEnabled    bool            `yaml:"zscore_enabled"`
	ZScoreCutoff     float64         `yaml:"zscore_cutoff" validate:"lt=0"`
	MinHistoryPoints int             `yaml:"min_history_points" validate:"gte=0"`
}

type MatcherConfig struct {
	MaxUsersPerDeal int                `yaml:"max_users_per_deal" validate:"gte=1"`
	SegmentFloors   map[string]float64 `yaml:"segment_floors"`
}

type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	TimeoutStr string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Budget    BudgetConfig    `yaml:"budget"`
	Cache     CacheConfig     `yaml:"cache"`
	Provider  ProviderConfig  `yaml:"provider"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Detection DetectionConfig `yaml:"detection"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Notify    NotifyConfig    `yaml:"notify"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: "3306", DBName: "flightdeals"},
		Store:    StoreConfig{Backend: "badger", BadgerPath: "./data/badger", KeyPrefix: "flightdeals/"},
		Budget:   BudgetConfig{MonthlyCap: 30000, DaysPerMonth: 30},
		Cache:    CacheConfig{TTLStr: "30m"},
		Provider: ProviderConfig{
			Kind:              "api",
			BaseURL:           "https://api.tequila.kiwi.com",
			TimeoutStr:        "15s",
			MaxAttempts:       3,
			BaseBackoffStr:    "1s",
			MaxBackoffStr:     "10s",
			RequestsPerSecond: 2,
			ResultLimit:       50,
		},
		Catalog: CatalogConfig{CSVPath: "config/strategic_routes.csv"},
		Scanner: ScannerConfig{
			Exclusion:          "tier",
			InterRouteDelayStr: "300ms",
			ReportHourUTC:      8,
			LookaheadDays:      30,
			TripLengthDays:     7,
			Adults:             1,
			Cabin:              "economy",
			Currency:           "EUR",
			DealValidityStr:    "24h",
			HistoryWindowDays:  30,
			CalendarOverride: CalendarOverrideConfig{
				Enabled:           true,
				Weekday:           "Tuesday",
				StartHour:         0,
				EndHour:           6,
				MaxFrequencyHours: 1,
			},
			Seasonal: SeasonalConfig{
				HighSeasonMonths:  []int{6, 7, 8, 12},
				FrequencyFactor:   0.5,
				MinFrequencyHours: 1,
			},
		},
		Detection: DetectionConfig{
			TierThresholds:   map[int]float64{1: 25, 2: 20, 3: 15},
			MaxDeals:         10,
			ZScoreCutoff:     -2,
			MinHistoryPoints: 5,
		},
		Matcher: MatcherConfig{
			MaxUsersPerDeal: 120,
			SegmentFloors:   map[string]float64{"free": 30, "premium": 20, "enterprise": 15},
		},
		Notify:  NotifyConfig{TimeoutStr: "10s"},
		Tracing: TracingConfig{Endpoint: "localhost:4317"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads configuration from the YAML file at configPath, then applies
// environment overrides (a .env file in the working directory is loaded first).
// An empty configPath yields the defaults plus environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.AdminToken = getEnv("ADMIN_TOKEN", cfg.Server.AdminToken)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Store.ConsulAddr = getEnv("CONSUL_ADDR", cfg.Store.ConsulAddr)
	cfg.Provider.APIKey = getEnv("PROVIDER_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.BaseURL = getEnv("PROVIDER_BASE_URL", cfg.Provider.BaseURL)
	cfg.Budget.MonthlyCap = getEnvInt64("BUDGET_MONTHLY_CAP", cfg.Budget.MonthlyCap)
	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Tracing.Enabled = getEnv("TRACING_ENABLED", strconv.FormatBool(cfg.Tracing.Enabled)) == "true"
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"cache.ttl", c.Cache.TTLStr, &c.Cache.TTL},
		{"provider.timeout", c.Provider.TimeoutStr, &c.Provider.Timeout},
		{"provider.base_backoff", c.Provider.BaseBackoffStr, &c.Provider.BaseBackoff},
		{"provider.max_backoff", c.Provider.MaxBackoffStr, &c.Provider.MaxBackoff},
		{"scanner.inter_route_delay", c.Scanner.InterRouteDelayStr, &c.Scanner.InterRouteDelay},
		{"scanner.deal_validity", c.Scanner.DealValidityStr, &c.Scanner.DealValidity},
		{"notify.timeout", c.Notify.TimeoutStr, &c.Notify.Timeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}

// DailyCap is floor(monthly cap / days per month).
func (b BudgetConfig) DailyCap() int64 {
	if b.DaysPerMonth <= 0 {
		return b.MonthlyCap / 30
	}
	return b.MonthlyCap / b.DaysPerMonth
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
