package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "NEWSRELAY_CONFIG"
	dotenvPathEnv     = "NEWSRELAY_DOTENV"
	telegramTokenEnv  = "TG_BOT_TOKEN"
	telegramChanEnv   = "TG_CHANNEL"
	telegramAPIEnv    = "TG_API_ENDPOINT"
	indexURLEnv       = "NEWS_INDEX_URL"
	pathPrefixEnv     = "NEWS_PATH_PREFIX"
	databasePathEnv   = "DB_PATH"
	maxPostsEnv       = "MAX_POSTS_PER_RUN"
	windowHoursEnv    = "WINDOW_HOURS"
	pagesToScanEnv    = "PAGES_TO_SCAN"
	perPageHintEnv    = "ARTICLES_PER_PAGE_HINT"
	postDelayEnv      = "SLEEP_BETWEEN_POSTS"
	httpTimeoutEnv    = "HTTP_TIMEOUT"
	logLevelEnv       = "LOG_LEVEL"
	displayTimezone   = "Europe/Berlin"
	defaultIndexURL   = "https://worldoftanks.eu/ru/news/"
	defaultPathPrefix = "/ru/news/"
)

// ErrMissingCredentials is returned by Validate when the bot token or the
// target channel is not configured.
var ErrMissingCredentials = errors.New("TG_BOT_TOKEN and TG_CHANNEL must be set")

// Config holds every setting of a single run.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Posting  PostingConfig  `yaml:"posting"`
	Caption  CaptionConfig  `yaml:"caption"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig wires the bot credential and the target channel.
type TelegramConfig struct {
	BotToken    string `yaml:"botToken"`
	Channel     string `yaml:"channel"`
	APIEndpoint string `yaml:"apiEndpoint"`
}

// IndexConfig describes the paginated news listing.
type IndexConfig struct {
	URL         string `yaml:"url"`
	PathPrefix  string `yaml:"pathPrefix"`
	Pages       int    `yaml:"pages"`
	PerPageHint int    `yaml:"perPageHint"`
}

// DatabaseConfig points at the SQLite file with posted URLs.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PostingConfig bounds how much a single run may publish.
type PostingConfig struct {
	MaxPerRun   int           `yaml:"maxPerRun"`
	WindowHours int           `yaml:"windowHours"`
	Delay       time.Duration `yaml:"delay"`
}

// Window returns the admission window as a duration.
func (p PostingConfig) Window() time.Duration {
	return time.Duration(p.WindowHours) * time.Hour
}

// CaptionConfig controls message presentation.
type CaptionConfig struct {
	Header   string         `yaml:"header"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the display timezone.
func (c CaptionConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.UTC
}

// HTTPConfig applies to every outbound request.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the optional .env and YAML files and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	dotenv := os.Getenv(dotenvPathEnv)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", dotenv, err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks the settings a run cannot start without.
func (c Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.Channel == "" {
		return ErrMissingCredentials
	}
	if c.Index.URL == "" {
		return fmt.Errorf("index url is empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is empty")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Telegram.Channel, telegramChanEnv)
	setString(&c.Telegram.APIEndpoint, telegramAPIEnv)
	setString(&c.Index.URL, indexURLEnv)
	setString(&c.Index.PathPrefix, pathPrefixEnv)
	setString(&c.Database.Path, databasePathEnv)
	setString(&c.Logging.Level, logLevelEnv)

	setInt(&c.Posting.MaxPerRun, maxPostsEnv)
	setInt(&c.Posting.WindowHours, windowHoursEnv)
	setInt(&c.Index.Pages, pagesToScanEnv)
	setInt(&c.Index.PerPageHint, perPageHintEnv)

	setDuration(&c.Posting.Delay, postDelayEnv)
	setDuration(&c.HTTP.Timeout, httpTimeoutEnv)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("config: ignoring %s=%q: not a non-negative integer", key, v)
		return
	}
	*dst = n
}

// setDuration accepts Go durations ("2s") and bare seconds ("2").
func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("config: ignoring %s=%q: not a duration", key, v)
		return
	}
	*dst = d
}

func (c *Config) bindTimezone() {
	tz := c.Caption.Timezone
	if tz == "" {
		tz = displayTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Caption.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.Channel != "" {
		base.Telegram.Channel = override.Telegram.Channel
	}
	if override.Telegram.APIEndpoint != "" {
		base.Telegram.APIEndpoint = override.Telegram.APIEndpoint
	}

	if override.Index.URL != "" {
		base.Index.URL = override.Index.URL
	}
	if override.Index.PathPrefix != "" {
		base.Index.PathPrefix = override.Index.PathPrefix
	}
	if override.Index.Pages > 0 {
		base.Index.Pages = override.Index.Pages
	}
	if override.Index.PerPageHint > 0 {
		base.Index.PerPageHint = override.Index.PerPageHint
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Posting.MaxPerRun > 0 {
		base.Posting.MaxPerRun = override.Posting.MaxPerRun
	}
	if override.Posting.WindowHours > 0 {
		base.Posting.WindowHours = override.Posting.WindowHours
	}
	if override.Posting.Delay > 0 {
		base.Posting.Delay = override.Posting.Delay
	}

	if override.Caption.Header != "" {
		base.Caption.Header = override.Caption.Header
	}
	if override.Caption.Timezone != "" {
		base.Caption.Timezone = override.Caption.Timezone
	}

	if override.HTTP.Timeout > 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Index: IndexConfig{
			URL:         defaultIndexURL,
			PathPrefix:  defaultPathPrefix,
			Pages:       6,
			PerPageHint: 48,
		},
		Database: DatabaseConfig{Path: "posted.sqlite3"},
		Posting: PostingConfig{
			MaxPerRun:   2,
			WindowHours: 48,
			Delay:       2 * time.Second,
		},
		Caption: CaptionConfig{
			Header:   "WoT EU • НОВОСТИ",
			Timezone: displayTimezone,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (NewsRelay/2.0)",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
