package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// errNoSessions is reported by runSessions on an empty database.
var errNoSessions = errors.New("no recorded sessions")

func newSessionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded video sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runSessions(cmd, app)
			if errors.Is(err, errNoSessions) {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
				return nil
			}
			return err
		},
	}
}

func runSessions(cmd *cobra.Command, app *App) error {
	st, err := app.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions().List()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return errNoSessions
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tPART\tSOURCE\tFRAMES\tSTARTED")
	fmt.Fprintln(w, "--\t----\t------\t------\t-------")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Part, s.Source, s.Frames, s.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
