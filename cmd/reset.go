package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete recorded progress",
	Long:  "Delete the progress records of one subject (every semester) or of the whole database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		all, _ := cmd.Flags().GetBool("all")
		if (subject == "") == !all {
			return errors.New("pass exactly one of --subject or --all")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var n int64
		if all {
			n, err = st.ClearAll(cmd.Context())
		} else {
			n, err = st.ClearSubject(cmd.Context(), subject)
		}
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records.\n", n)
		return nil
	},
}

func init() {
	resetCmd.Flags().String("subject", "", "Subject whose records are deleted")
	resetCmd.Flags().Bool("all", false, "Delete every record")
}
