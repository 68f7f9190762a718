package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"PivotScreener/internal/model"
	"PivotScreener/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Universe   UniverseConfig   `yaml:"universe"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Output     OutputConfig     `yaml:"output"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

type StrategyConfig struct {
	TightCPRThresholdPct float64 `yaml:"tight_cpr_threshold_pct" default:"0.5" validate:"gt=0"`
	CenterProximityPct   float64 `yaml:"center_proximity_pct" default:"0.3" validate:"gt=0"`
	EMAProximityPct      float64 `yaml:"ema_proximity_pct" default:"1.5" validate:"gt=0"`
	MinHistoryBars       int     `yaml:"min_history_bars" default:"50" validate:"gte=3"`
	PivotTolerancePct    float64 `yaml:"pivot_tolerance_pct" default:"0.1" validate:"gte=0,lt=100"`
	SmallCandleBodyRatio float64 `yaml:"small_candle_body_ratio" default:"0.30" validate:"gt=0,lte=1"`
	EMAPeriods           []int   `yaml:"ema_periods" default:"[8,20]" validate:"len=2,dive,gt=0"`
	CamarillaCenter      string  `yaml:"camarilla_center" default:"pivot" validate:"oneof=pivot close"`
	InsideGranularity    string  `yaml:"inside_granularity" default:"monthly" validate:"oneof=monthly daily"`
}

type UniverseConfig struct {
	URL                 string `yaml:"url" default:"https://nsearchives.nseindia.com/content/indices/ind_niftytotalmarket_list.csv" validate:"omitempty,url"`
	CachePath           string `yaml:"cache_path" default:"data/tickers_cache.csv"`
	CacheTTLSeconds     int    `yaml:"cache_ttl_seconds" default:"86400" validate:"gte=0"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds" default:"10" validate:"gt=0"`
	ExchangeSuffix      string `yaml:"exchange_suffix" default:".NS"`
	UserAgent           string `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	MarkerColumn        string `yaml:"marker_column" default:"Symbol" validate:"required"`
}

type DataSourceConfig struct {
	// BaseURL selects the self-hosted bar service; empty means Yahoo Finance.
	BaseURL             string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey              string  `yaml:"api_key"`
	YahooBaseURL        string  `yaml:"yahoo_base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
	Period              string  `yaml:"period" default:"6mo" validate:"oneof=3mo 6mo 1y 2y"`
	Interval            string  `yaml:"interval" default:"1d" validate:"eq=1d"`
	Timezone            string  `yaml:"timezone" default:"Asia/Kolkata"`
	FetchTimeoutSeconds int     `yaml:"fetch_timeout_seconds" default:"30" validate:"gt=0"`
	BulkTimeoutSeconds  int     `yaml:"bulk_timeout_seconds" default:"900" validate:"gt=0"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" default:"5" validate:"gte=0"`
	Workers             int     `yaml:"workers" default:"8" validate:"gt=0,lte=64"`
	Proxy               string  `yaml:"proxy" validate:"omitempty,url"`
}

type OutputConfig struct {
	ReportPath string `yaml:"report_path" default:"public/data.json" validate:"required"`
	// SQLitePath enables scan history when set.
	SQLitePath string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0"`
	Prefix     string `yaml:"prefix" default:"screener"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"gte=0"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
}

type ScheduleConfig struct {
	ScanCron          string `yaml:"scan_cron" default:"0 45 15 * * 1-5"`
	RunTimeoutSeconds int    `yaml:"run_timeout_seconds" default:"1800" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies environment variable
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"DATA_SOURCE_BASE_URL": &c.DataSource.BaseURL,
		"DATA_SOURCE_API_KEY":  &c.DataSource.APIKey,
		"HTTPS_PROXY":          &c.DataSource.Proxy,
		"UNIVERSE_URL":         &c.Universe.URL,
		"REPORT_PATH":          &c.Output.ReportPath,
		"SQLITE_PATH":          &c.Output.SQLitePath,
		"REDIS_ADDR":           &c.Redis.Addr,
		"REDIS_PASSWORD":       &c.Redis.Password,
		"SCAN_CRON":            &c.Schedule.ScanCron,
		"HTTP_ADDR":            &c.HTTP.Addr,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Universe.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv("MIN_HISTORY_BARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Strategy.MinHistoryBars = n
		}
	}
}

var validate = validator.New()

// Validate checks field constraints plus the cross-field rules struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.DataSource.Timezone); err != nil {
		return fmt.Errorf("data_source.timezone: %w", err)
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.ScanCron); err != nil {
		return fmt.Errorf("schedule.scan_cron: %w", err)
	}
	if err := c.ToStrategyConfig().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}

// ToStrategyConfig maps the YAML strategy section onto the evaluator's thresholds.
func (c *Config) ToStrategyConfig() strategy.Config {
	s := c.Strategy
	out := strategy.Config{
		TightCPRThresholdPct: s.TightCPRThresholdPct,
		CenterProximityPct:   s.CenterProximityPct,
		EMAProximityPct:      s.EMAProximityPct,
		PivotTolerancePct:    s.PivotTolerancePct,
		SmallCandleBodyRatio: s.SmallCandleBodyRatio,
		MinHistoryBars:       s.MinHistoryBars,
		CamarillaCenter:      model.CenterPolicy(s.CamarillaCenter),
		InsideGranularity:    model.Granularity(s.InsideGranularity),
	}
	if len(s.EMAPeriods) == 2 {
		out.EMAFastPeriod, out.EMASlowPeriod = s.EMAPeriods[0], s.EMAPeriods[1]
	}
	return out
}

// Location returns the exchange timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DataSource.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) CacheTTL() time.Duration             { return seconds(c.Universe.CacheTTLSeconds) }
func (c *Config) UniverseFetchTimeout() time.Duration { return seconds(c.Universe.FetchTimeoutSeconds) }
func (c *Config) FetchTimeout() time.Duration         { return seconds(c.DataSource.FetchTimeoutSeconds) }
func (c *Config) BulkTimeout() time.Duration          { return seconds(c.DataSource.BulkTimeoutSeconds) }
func (c *Config) RunTimeout() time.Duration           { return seconds(c.Schedule.RunTimeoutSeconds) }
func (c *Config) RedisTTL() time.Duration             { return seconds(c.Redis.TTLSeconds) }
