package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewalk/internal/config"
	"github.com/abhisek/coursewalk/internal/logging"
	"github.com/abhisek/coursewalk/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "coursewalk",
	Short: "Resumable course video runner",
	Long: "coursewalk plays every course video of an online course portal, subject by subject, " +
		"and records each completion so an interrupted run picks up at the next unwatched course.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries a process exit code through cobra.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "config.json", "Path to the JSON or YAML config file")
	pf.String("db", "", "Path to SQLite database file (overrides db.db_path and COURSEWALK_DB)")
	pf.Int("semester", 0, "Semester tag for progress records (overrides the config file)")
	pf.String("log-file", "", "Also write logs to this file")
	pf.BoolP("verbose", "v", false, "Log state transitions")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies command-line overrides. The
// default config path may be absent; an explicit one must exist.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return cfg, err
		}
		cfg = config.Default()
		if err := config.ApplyEnv(&cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.Flags().Changed("semester") {
		cfg.Semester, _ = cmd.Flags().GetInt("semester")
	}
	if f, _ := cmd.Flags().GetString("log-file"); f != "" {
		cfg.Log.File = f
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then COURSEWALK_DB, then db.db_path from the config, then the default XDG
// path. The env var reaches cfg.DB.Path through config.ApplyEnv.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DB.Path != "" {
		return cfg.DB.Path, store.EnsureDir(cfg.DB.Path)
	}
	return store.DefaultDBPath()
}

// openStore resolves the database path and opens it.
func openStore(cmd *cobra.Command, cfg config.Config) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(os.Stderr, cfg.Log.File, level)
}
