// File: internal/config/config.go
package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/pagekit/internal/retry"
)

//go:embed env/*.yaml
var envFiles embed.FS

// Environments lists the embedded environment profiles.
var Environments = []string{"dev", "qa", "prod"}

// EnvVarPrefix is the prefix for environment variable overrides (PAGEKIT_BASE_URL, ...).
const EnvVarPrefix = "PAGEKIT"

// Interface defines the contract for accessing framework configuration.
// Components depend on this rather than *Config so tests can hand in fixtures.
type Interface interface {
	Env() string
	BaseURL() string
	Logger() LoggerConfig
	Browser() BrowserConfig
	Timeouts() TimeoutsConfig
	Retry() RetryConfig
	Poll() PollConfig
	TestData() TestDataConfig
	Screenshots() ScreenshotsConfig
	Database() DatabaseConfig
	Server() ServerConfig

	SetBaseURL(string)
	SetBrowserEngine(string)
	SetBrowserHeadless(bool)
}

// Config holds the full framework configuration. Sections are exported so
// viper can unmarshal them; callers should go through the Interface getters.
type Config struct {
	EnvName        string            `mapstructure:"env" yaml:"env"`
	BaseURLValue   string            `mapstructure:"base_url" yaml:"base_url"`
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	TimeoutsCfg    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	RetryCfg       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	PollCfg        PollConfig        `mapstructure:"poll" yaml:"poll"`
	TestDataCfg    TestDataConfig    `mapstructure:"test_data" yaml:"test_data"`
	ScreenshotsCfg ScreenshotsConfig `mapstructure:"screenshots" yaml:"screenshots"`
	DatabaseCfg    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	ServerCfg      ServerConfig      `mapstructure:"server" yaml:"server"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Env() string                    { return c.EnvName }
func (c *Config) BaseURL() string                { return c.BaseURLValue }
func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Timeouts() TimeoutsConfig       { return c.TimeoutsCfg }
func (c *Config) Retry() RetryConfig             { return c.RetryCfg }
func (c *Config) Poll() PollConfig               { return c.PollCfg }
func (c *Config) TestData() TestDataConfig       { return c.TestDataCfg }
func (c *Config) Screenshots() ScreenshotsConfig { return c.ScreenshotsCfg }
func (c *Config) Database() DatabaseConfig       { return c.DatabaseCfg }
func (c *Config) Server() ServerConfig           { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBaseURL(u string)          { c.BaseURLValue = u }
func (c *Config) SetBrowserEngine(e string)    { c.BrowserCfg.Engine = e }
func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }

func (c *Config) String() string {
	return fmt.Sprintf("Config(env=%q, base_url=%q)", c.EnvName, c.BaseURLValue)
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the browser driver.
type BrowserConfig struct {
	// Engine is the driver backend: "chromedp" or "playwright".
	Engine   string         `mapstructure:"engine" yaml:"engine"`
	// Name is the browser family for engines that support several (chromium, firefox, webkit).
	Name     string         `mapstructure:"name" yaml:"name"`
	Headless bool           `mapstructure:"headless" yaml:"headless"`
	SlowMo   int            `mapstructure:"slow_mo" yaml:"slow_mo"`
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportConfig is the page viewport size in CSS pixels.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// TimeoutsConfig values are whole seconds, matching the YAML profiles.
type TimeoutsConfig struct {
	ElementWait int `mapstructure:"element_wait" yaml:"element_wait"`
	PageLoad    int `mapstructure:"page_load" yaml:"page_load"`
	Network     int `mapstructure:"network" yaml:"network"`
}

func (t TimeoutsConfig) ElementWaitDuration() time.Duration {
	return time.Duration(t.ElementWait) * time.Second
}

func (t TimeoutsConfig) PageLoadDuration() time.Duration {
	return time.Duration(t.PageLoad) * time.Second
}

func (t TimeoutsConfig) NetworkDuration() time.Duration {
	return time.Duration(t.Network) * time.Second
}

// RetryConfig is the default policy for retried operations.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
	Backoff     float64       `mapstructure:"backoff" yaml:"backoff"`
	// ClickDelay is the fixed pause between click attempts.
	ClickDelay time.Duration `mapstructure:"click_delay" yaml:"click_delay"`
}

// Policy is the configured retry policy. Click attempts reuse MaxAttempts but
// keep ClickDelay as their fixed pause.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       r.MaxAttempts,
		Delay:             r.Delay,
		BackoffMultiplier: r.Backoff,
	}
}

// PollConfig controls condition polling.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// TestDataConfig carries credentials used by the smoke flows and the credential pool.
type TestDataConfig struct {
	ValidUser       string `mapstructure:"valid_user" yaml:"valid_user"`
	ValidPassword   string `mapstructure:"valid_password" yaml:"valid_password"`
	InvalidUser     string `mapstructure:"invalid_user" yaml:"invalid_user"`
	InvalidPassword string `mapstructure:"invalid_password" yaml:"invalid_password"`
}

// ScreenshotsConfig controls where screenshots land and when they are taken.
type ScreenshotsConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	OnFailure bool   `mapstructure:"on_failure" yaml:"on_failure"`
}

// DatabaseConfig selects the fixture database backend.
type DatabaseConfig struct {
	// Backend is "memory" (embedded redis), "redis" or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`
	URL     string `mapstructure:"url" yaml:"url"`
	Name    string `mapstructure:"name" yaml:"name"`
}

// ServerConfig is the listen address of the mock application server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("base_url", "http://localhost:8000")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagekit")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.engine", "chromedp")
	v.SetDefault("browser.name", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", 0)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)

	// -- Timeouts (seconds) --
	v.SetDefault("timeouts.element_wait", 10)
	v.SetDefault("timeouts.page_load", 30)
	v.SetDefault("timeouts.network", 20)

	// -- Retry --
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", "2s")
	v.SetDefault("retry.backoff", 1.0)
	v.SetDefault("retry.click_delay", "1s")

	// -- Poll --
	v.SetDefault("poll.interval", "100ms")

	// -- Screenshots --
	v.SetDefault("screenshots.dir", "screenshots")
	v.SetDefault("screenshots.on_failure", true)

	// -- Database --
	v.SetDefault("database.backend", "memory")
	v.SetDefault("database.name", "test_automation_db")

	// -- Server --
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
}

// LoadOptions selects which profile and override file Load reads.
type LoadOptions struct {
	// Env is the profile name. Empty falls back to PAGEKIT_ENV, then "dev".
	Env string
	// File is an optional YAML file merged over the profile.
	File string
}

// Load builds a Config from defaults, the embedded environment profile, an
// optional override file and PAGEKIT_* environment variables, in that order.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	env := opts.Env
	if env == "" {
		env = os.Getenv(EnvVarPrefix + "_ENV")
	}
	if env == "" {
		env = "dev"
	}

	profile, err := envFiles.ReadFile("env/" + env + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("config profile not found for environment %q (available: %s)",
			env, strings.Join(Environments, ", "))
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(profile)); err != nil {
		return nil, fmt.Errorf("error reading %s profile: %w", env, err)
	}

	if opts.File != "" {
		path, err := homedir.Expand(opts.File)
		if err != nil {
			return nil, fmt.Errorf("error expanding config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.Set("env", env)

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets never live in the profiles.
	_ = v.BindEnv("test_data.valid_password", EnvVarPrefix+"_VALID_PASSWORD")
	_ = v.BindEnv("database.url", EnvVarPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.ScreenshotsCfg.Dir, err = homedir.Expand(c.ScreenshotsCfg.Dir); err != nil {
		return fmt.Errorf("error expanding screenshots.dir: %w", err)
	}
	if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
		return fmt.Errorf("error expanding logger.log_file: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BaseURLValue == "" {
		return fmt.Errorf("base_url is a required configuration field")
	}
	switch c.BrowserCfg.Engine {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("browser.engine must be one of chromedp, playwright (got %q)", c.BrowserCfg.Engine)
	}
	if c.TimeoutsCfg.ElementWait < 0 || c.TimeoutsCfg.PageLoad < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if err := c.RetryCfg.Validate(); err != nil {
		return fmt.Errorf("retry configuration invalid: %w", err)
	}
	if c.PollCfg.Interval <= 0 {
		return fmt.Errorf("poll.interval must be a positive duration")
	}
	switch c.DatabaseCfg.Backend {
	case "memory":
	case "redis", "postgres":
		if c.DatabaseCfg.URL == "" {
			return fmt.Errorf("database.url is required for the %s backend", c.DatabaseCfg.Backend)
		}
	default:
		return fmt.Errorf("database.backend must be one of memory, redis, postgres (got %q)", c.DatabaseCfg.Backend)
	}
	return nil
}

// Validate checks the retry settings.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if r.Delay < 0 || r.ClickDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if r.Backoff < 1.0 {
		return fmt.Errorf("backoff must be >= 1.0")
	}
	return nil
}
