package cmd

import (
	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/coursewalk/internal/ui/components"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-subject progress for a semester",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		progress, err := st.Summary(cmd.Context(), cfg.Semester)
		if err != nil {
			return err
		}

		width, _ := cmd.Flags().GetInt("width")
		summary := components.Summary{Semester: cfg.Semester, Width: width}
		for _, p := range progress {
			summary.Rows = append(summary.Rows, components.SubjectRow{
				Subject:   p.Subject,
				Total:     p.Total,
				Processed: p.Processed,
			})
		}
		_, err = lipgloss.Fprint(cmd.OutOrStdout(), summary.View())
		return err
	},
}

func init() {
	statsCmd.Flags().Int("width", 60, "Width of each progress line")
}
