// Package config loads the coursewalk configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/coursewalk/internal/browser"
	"github.com/abhisek/coursewalk/internal/playback"
	"github.com/abhisek/coursewalk/internal/traversal"
)

// DefaultSemester tags records when neither the file nor the flags set one.
const DefaultSemester = 3

// Config is the full coursewalk configuration.
type Config struct {
	Remote    RemoteConfig      `yaml:"remote"`
	Auth      AuthConfig        `yaml:"auth"`
	DB        DBConfig          `yaml:"db"`
	Semester  int               `yaml:"semester"`
	Retry     RetryConfig       `yaml:"retry"`
	Browser   BrowserConfig     `yaml:"browser"`
	Playback  PlaybackConfig    `yaml:"playback"`
	Selectors browser.Selectors `yaml:"selectors"`
	Log       LogConfig         `yaml:"log"`
}

type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
}

type AuthConfig struct {
	AccessToken string `yaml:"access_token"`
}

type DBConfig struct {
	// Path is the SQLite file; empty means the default data directory.
	Path string `yaml:"db_path"`
}

type RetryConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type BrowserConfig struct {
	Headless      bool          `yaml:"headless"`
	ChromePath    string        `yaml:"chrome_path"`
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

type PlaybackConfig struct {
	StartTimeout  time.Duration `yaml:"start_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	TimeoutFactor float64       `yaml:"timeout_factor"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns a Config with every optional value filled in.
func Default() Config {
	pb := playback.DefaultConfig()
	return Config{
		Semester: DefaultSemester,
		Retry:    RetryConfig{MaxRetries: traversal.DefaultMaxRetries},
		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: 30 * time.Second,
		},
		Playback: PlaybackConfig{
			StartTimeout:  pb.StartTimeout,
			PollInterval:  pb.PollInterval,
			TimeoutFactor: pb.TimeoutFactor,
		},
		Selectors: browser.DefaultSelectors(),
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is reported with an error wrapping fs.ErrNotExist.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse validates data against the config schema and decodes it into cfg.
// Keys absent from data keep their current values.
func Parse(data []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	// Older files spell the remote section "romte".
	var raw struct {
		Config `yaml:",inline"`
		Legacy RemoteConfig `yaml:"romte"`
	}
	raw.Config = *cfg
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	*cfg = raw.Config
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = raw.Legacy.BaseURL
	}
	return nil
}

// ApplyEnv overrides cfg from COURSEWALK_* environment variables.
func ApplyEnv(cfg *Config) error {
	if u := os.Getenv("COURSEWALK_BASE_URL"); u != "" {
		cfg.Remote.BaseURL = u
	}
	if t := os.Getenv("COURSEWALK_ACCESS_TOKEN"); t != "" {
		cfg.Auth.AccessToken = t
	}
	if p := os.Getenv("COURSEWALK_DB"); p != "" {
		cfg.DB.Path = p
	}
	if s := os.Getenv("COURSEWALK_SEMESTER"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("COURSEWALK_SEMESTER: %w", err)
		}
		cfg.Semester = n
	}
	return nil
}

// Validate reports the first value that makes a run impossible.
func (c Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.base_url %q is not an http(s) URL", c.Remote.BaseURL)
	}
	if c.Auth.AccessToken == "" {
		return errors.New("auth.access_token is required")
	}
	if c.Semester < 1 {
		return fmt.Errorf("semester must be positive, got %d", c.Semester)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	return nil
}

// MonitorConfig returns the playback monitor settings with file overrides applied.
func (c Config) MonitorConfig() playback.Config {
	pb := playback.DefaultConfig()
	if c.Playback.StartTimeout > 0 {
		pb.StartTimeout = c.Playback.StartTimeout
	}
	if c.Playback.PollInterval > 0 {
		pb.PollInterval = c.Playback.PollInterval
	}
	if c.Playback.TimeoutFactor > 0 {
		pb.TimeoutFactor = c.Playback.TimeoutFactor
	}
	return pb
}
