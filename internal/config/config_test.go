package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_LegacyJSON(t *testing.T) {
	path := writeConfig(t, `{"romte": {"base_url": "https://learn.example.edu/portal"}, "auth": {"access_token": "tok"}, "db": {"db_path": "/tmp/learn.db"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://learn.example.edu/portal", cfg.Remote.BaseURL)
	assert.Equal(t, "tok", cfg.Auth.AccessToken)
	assert.Equal(t, "/tmp/learn.db", cfg.DB.Path)
	assert.Equal(t, DefaultSemester, cfg.Semester)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: http://localhost:8080
auth:
  access_token: abc
semester: 5
retry:
  max_retries: 1
browser:
  headless: false
  action_timeout: 45s
playback:
  poll_interval: 2s
  timeout_factor: 2
selectors:
  video: "video.main"
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Semester)
	assert.Equal(t, 1, cfg.Retry.MaxRetries)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Browser.ActionTimeout)
	assert.Equal(t, "video.main", cfg.Selectors.Video)
	assert.Equal(t, "div.course-name", cfg.Selectors.SubjectName, "unset selectors keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)

	mc := cfg.MonitorConfig()
	assert.Equal(t, 2*time.Second, mc.PollInterval)
	assert.Equal(t, 2.0, mc.TimeoutFactor)
	assert.Equal(t, 30*time.Second, mc.StartTimeout)
}

func TestLoad_RemoteWinsOverLegacy(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte(`
romte: {base_url: "https://old.example"}
remote: {base_url: "https://new.example"}
`), &cfg))
	assert.Equal(t, "https://new.example", cfg.Remote.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestParse_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"semester zero", `semester: 0`},
		{"semester string", `semester: "two"`},
		{"negative retries", `retry: {max_retries: -1}`},
		{"bad duration", `playback: {poll_interval: "soon"}`},
		{"factor below one", `playback: {timeout_factor: 0.5}`},
		{"non http url", `remote: {base_url: "ftp://x"}`},
		{"unknown level", `log: {level: loud}`},
		{"empty selector", `selectors: {video: ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Parse([]byte(tt.doc), &cfg)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
}

func TestParse_LevelSpellings(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "Warn", "warning", "ERROR"} {
		t.Run(level, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, Parse([]byte("log: {level: "+level+"}"), &cfg))
			assert.Equal(t, level, cfg.Log.Level)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("remote: [unclosed"), &cfg)
	require.Error(t, err)
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COURSEWALK_BASE_URL", "https://env.example")
	t.Setenv("COURSEWALK_ACCESS_TOKEN", "env-token")
	t.Setenv("COURSEWALK_DB", "/data/env.db")
	t.Setenv("COURSEWALK_SEMESTER", "7")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "https://env.example", cfg.Remote.BaseURL)
	assert.Equal(t, "env-token", cfg.Auth.AccessToken)
	assert.Equal(t, "/data/env.db", cfg.DB.Path)
	assert.Equal(t, 7, cfg.Semester)
}

func TestApplyEnv_BadSemester(t *testing.T) {
	t.Setenv("COURSEWALK_SEMESTER", "spring")
	cfg := Default()
	assert.Error(t, ApplyEnv(&cfg))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Remote.BaseURL = "https://learn.example.edu"
		c.Auth.AccessToken = "tok"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no url", func(c *Config) { c.Remote.BaseURL = "" }, "remote.base_url is required"},
		{"relative url", func(c *Config) { c.Remote.BaseURL = "/portal" }, "not an http(s) URL"},
		{"no token", func(c *Config) { c.Auth.AccessToken = "" }, "auth.access_token is required"},
		{"semester", func(c *Config) { c.Semester = 0 }, "semester must be positive"},
		{"retries", func(c *Config) { c.Retry.MaxRetries = -2 }, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
