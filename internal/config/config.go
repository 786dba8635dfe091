package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"worldmonitor/internal/alert"
	"worldmonitor/internal/alphavantage"
	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/logger"
	"worldmonitor/internal/market"
	"worldmonitor/internal/monitor"
	"worldmonitor/internal/quote"
	"worldmonitor/internal/ratelimit"
	"worldmonitor/internal/yahoo"
)

// Feed is one named news feed.
type Feed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// SourceConfig holds the cache TTL and refresh interval for one source.
type SourceConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"`
	Backend    string        `mapstructure:"backend"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// HTTPConfig tunes the shared upstream clients.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	HazardsTimeout time.Duration `mapstructure:"hazards_timeout"`
	MarketTimeout  time.Duration `mapstructure:"market_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// NewsConfig lists the feeds to aggregate.
type NewsConfig struct {
	Workers int    `mapstructure:"workers"`
	Feeds   []Feed `mapstructure:"feeds"`
}

// AlertsConfig lists the alert keywords.
type AlertsConfig struct {
	Keywords []string `mapstructure:"keywords"`
}

// StrategyOrders lists strategy names per quote mode, highest priority first.
type StrategyOrders struct {
	Fast     []string `mapstructure:"fast"`
	Thorough []string `mapstructure:"thorough"`
}

// MarketConfig selects the quoted symbols and strategy orders.
type MarketConfig struct {
	FXSymbols    []string       `mapstructure:"fx_symbols"`
	StockSymbols []string       `mapstructure:"stock_symbols"`
	Workers      int            `mapstructure:"workers"`
	Strategies   StrategyOrders `mapstructure:"strategies"`
}

// ProvidersConfig holds endpoints and credentials per upstream.
type ProvidersConfig struct {
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	AlphavantageAPIKey  string `mapstructure:"alphavantage_api_key"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	USGSURL             string `mapstructure:"usgs_url"`
	EONETURL            string `mapstructure:"eonet_url"`
	GDACSURL            string `mapstructure:"gdacs_url"`
	GDELTURL            string `mapstructure:"gdelt_url"`
	GDELTEventsQuery    string `mapstructure:"gdelt_events_query"`
	GDELTGeoQuery       string `mapstructure:"gdelt_geo_query"`
	ACLEDURL            string `mapstructure:"acled_url"`
	ACLEDAPIKey         string `mapstructure:"acled_api_key"`
	ACLEDEmail          string `mapstructure:"acled_email"`
	UCDPURL             string `mapstructure:"ucdp_url"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config holds all configuration for the monitor process.
type Config struct {
	Log        LogConfig               `mapstructure:"log"`
	Cache      CacheConfig             `mapstructure:"cache"`
	HTTP       HTTPConfig              `mapstructure:"http"`
	News       NewsConfig              `mapstructure:"news"`
	Alerts     AlertsConfig            `mapstructure:"alerts"`
	Market     MarketConfig            `mapstructure:"market"`
	Sources    map[string]SourceConfig `mapstructure:"sources"`
	Providers  ProvidersConfig         `mapstructure:"providers"`
	RateLimits map[string]float64      `mapstructure:"rate_limits"`
	Metrics    MetricsConfig           `mapstructure:"metrics"`
}

// DefaultFeeds is the built-in feed list, in display order.
func DefaultFeeds() []Feed {
	return []Feed{
		{Name: "Reuters", URL: "https://news.google.com/rss/search?q=site:reuters.com+world&hl=en"},
		{Name: "AP News", URL: "https://news.google.com/rss/search?q=site:apnews.com+world&hl=en"},
		{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
		{Name: "France 24", URL: "https://www.france24.com/en/rss"},
		{Name: "Al Jazeera", URL: "https://www.aljazeera.com/xml/rss/all.xml"},
		{Name: "The Guardian", URL: "https://www.theguardian.com/world/rss"},
		{Name: "NPR", URL: "https://feeds.npr.org/1004/rss.xml"},
		{Name: "DW News", URL: "https://rss.dw.com/rdf/rss-en-world"},
		{Name: "NHK World", URL: "https://www3.nhk.or.jp/rss/news/cat0.xml"},
		{Name: "EuroNews", URL: "https://www.euronews.com/rss?level=theme&name=news"},
		{Name: "CSIS", URL: "https://www.csis.org/analysis/feed"},
		{Name: "War on the Rocks", URL: "https://warontherocks.com/feed/"},
		{Name: "The Diplomat", URL: "https://thediplomat.com/feed/"},
		{Name: "Defense One", URL: "https://www.defenseone.com/rss/"},
		{Name: "Brookings", URL: "https://www.brookings.edu/feed/"},
		{Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
	}
}

// Load reads configuration from an optional .env file, an optional YAML
// config file and environment variables. Environment variables take
// precedence over config file values.
//
// The config file is WM_CONFIG when set, else config.yaml in the working
// directory or $HOME/.worldmonitor. Every key can be overridden with a WM_
// variable, e.g. WM_LOG_LEVEL or WM_MARKET_FX_SYMBOLS="USDJPY=X,EURJPY=X".
//
// Credentials are also read from:
//   - ALPHAVANTAGE_API_KEY
//   - ALPHAVANTAGE_BASE_URL
//   - ACLED_API_KEY
//   - ACLED_EMAIL
//
// Missing credentials are not an error; the provider that needs them is skipped.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()
	return load(os.Getenv("WM_CONFIG"))
}

func load(file string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("WM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.worldmonitor")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Provider credentials keep their conventional unprefixed names
	_ = v.BindEnv("providers.alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	_ = v.BindEnv("providers.alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	_ = v.BindEnv("providers.acled_api_key", "ACLED_API_KEY")
	_ = v.BindEnv("providers.acled_email", "ACLED_EMAIL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.default_ttl", 300*time.Second)

	v.SetDefault("http.timeout", fetcher.DefaultTimeout)
	v.SetDefault("http.hazards_timeout", 20*time.Second)
	v.SetDefault("http.market_timeout", yahoo.DefaultTimeout)
	v.SetDefault("http.retry_count", 2)
	v.SetDefault("http.user_agent", fetcher.DefaultUserAgent)

	v.SetDefault("news.workers", 8)
	v.SetDefault("alerts.keywords", alert.DefaultKeywords)

	orders := market.DefaultOrders()
	v.SetDefault("market.fx_symbols", market.DefaultFX)
	v.SetDefault("market.stock_symbols", market.DefaultStocks)
	v.SetDefault("market.workers", yahoo.DefaultWorkers)
	v.SetDefault("market.strategies.fast", orders[quote.Fast])
	v.SetDefault("market.strategies.thorough", orders[quote.Thorough])

	for name, s := range monitor.DefaultSchedules() {
		v.SetDefault("sources."+name+".ttl", s.TTL)
		v.SetDefault("sources."+name+".interval", s.Interval)
	}

	for api, rps := range ratelimit.DefaultLimits() {
		v.SetDefault("rate_limits."+string(api), rps)
	}

	v.SetDefault("providers.yahoo_base_url", yahoo.DefaultBaseURL)
	v.SetDefault("providers.alphavantage_base_url", alphavantage.DefaultBaseURL)
	v.SetDefault("providers.usgs_url", "")
	v.SetDefault("providers.eonet_url", "")
	v.SetDefault("providers.gdacs_url", "")
	v.SetDefault("providers.gdelt_url", "")
	v.SetDefault("providers.gdelt_events_query", "")
	v.SetDefault("providers.gdelt_geo_query", "")
	v.SetDefault("providers.acled_url", "")
	v.SetDefault("providers.ucdp_url", "")

	v.SetDefault("metrics.addr", "")
}

// applyDefaults fills what viper defaults cannot express.
func (c *Config) applyDefaults() {
	if len(c.News.Feeds) == 0 {
		c.News.Feeds = DefaultFeeds()
	}
	for name, s := range c.Sources {
		if s.TTL == 0 {
			s.TTL = c.Cache.DefaultTTL
			c.Sources[name] = s
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format: unknown format %q (valid: text, json)", c.Log.Format)
	}

	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			return errors.New("cache.dir: required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q (valid: file, memory)", c.Cache.Backend)
	}

	for i, f := range c.News.Feeds {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("news.feeds[%d]: name is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("news.feeds[%d] %s: invalid url %q", i, f.Name, f.URL)
		}
	}

	known := monitor.DefaultSchedules()
	for name, s := range c.Sources {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("sources.%s: unknown source", name)
		}
		if s.TTL <= 0 {
			return fmt.Errorf("sources.%s.ttl: must be positive", name)
		}
		if s.Interval <= 0 {
			return fmt.Errorf("sources.%s.interval: must be positive", name)
		}
	}

	strategies := []string{yahoo.ChartName, yahoo.HistoryName, yahoo.SparkName, alphavantage.StrategyName}
	for mode, order := range c.StrategyOrders() {
		if len(order) == 0 {
			return fmt.Errorf("market.strategies.%s: at least one strategy is required", mode)
		}
		for _, name := range order {
			if !slices.Contains(strategies, name) {
				return fmt.Errorf("market.strategies.%s: unknown strategy %q", mode, name)
			}
		}
	}
	return nil
}

// StrategyOrders returns the configured orders keyed by quote mode.
func (c *Config) StrategyOrders() map[quote.Mode][]string {
	return map[quote.Mode][]string{
		quote.Fast:     c.Market.Strategies.Fast,
		quote.Thorough: c.Market.Strategies.Thorough,
	}
}

// Schedules converts per-source settings for the monitor.
func (c *Config) Schedules() map[string]monitor.Schedule {
	out := make(map[string]monitor.Schedule, len(c.Sources))
	for name, s := range c.Sources {
		out[name] = monitor.Schedule{TTL: s.TTL, Interval: s.Interval}
	}
	return out
}

// Limits converts per-provider rates for the rate limiter.
func (c *Config) Limits() map[ratelimit.API]float64 {
	out := make(map[ratelimit.API]float64, len(c.RateLimits))
	for api, rps := range c.RateLimits {
		out[ratelimit.API(api)] = rps
	}
	return out
}
