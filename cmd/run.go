package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewalk/internal/browser"
	"github.com/abhisek/coursewalk/internal/playback"
	"github.com/abhisek/coursewalk/internal/traversal"
)

// exitInterrupted follows the shell convention for SIGINT.
const exitInterrupted = 130

var runCmd = &cobra.Command{
	Use:   "run [start-subject]",
	Short: "Play every unfinished course, resuming from the last run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWalk,
}

func init() {
	f := runCmd.Flags()
	f.String("start-subject", "", "Subject to start from (same as the positional argument)")
	f.Int("max-retries", traversal.DefaultMaxRetries, "Page recoveries allowed per course")
	f.Bool("headless", true, "Run Chrome without a window")
	f.String("chrome-path", "", "Chrome executable to launch")
}

// runWalk wires the store, browser and monitor into a traversal run.
func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("max-retries") {
		cfg.Retry.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if p, _ := flags.GetString("chrome-path"); p != "" {
		cfg.Browser.ChromePath = p
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	start, _ := flags.GetString("start-subject")
	if len(args) == 1 {
		start = args[0]
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	br, err := browser.New(ctx, browser.Options{
		BaseURL:       cfg.Remote.BaseURL,
		AccessToken:   cfg.Auth.AccessToken,
		Headless:      cfg.Browser.Headless,
		ChromePath:    cfg.Browser.ChromePath,
		ActionTimeout: cfg.Browser.ActionTimeout,
		Selectors:     cfg.Selectors,
		Logger:        logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: exitInterrupted, Err: err}
		}
		return err
	}

	monitor := playback.New(br, cfg.MonitorConfig(), playback.WithLogger(logger))
	ctrl := traversal.New(br, st, monitor, traversal.Options{
		Semester:   cfg.Semester,
		MaxRetries: cfg.Retry.MaxRetries,
		Logger:     logger,
	})

	report, err := ctrl.Run(ctx, start)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d courses completed in %d subjects (%d recoveries, run %s)\n",
		report.Outcome, report.Completed, report.Subjects, report.Recoveries, report.RunID)
	switch report.Outcome {
	case traversal.OutcomeDone:
		return nil
	case traversal.OutcomeInterrupted:
		return &ExitError{Code: exitInterrupted, Err: err}
	default:
		return &ExitError{Code: 1, Err: err}
	}
}
