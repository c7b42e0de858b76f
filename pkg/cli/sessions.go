package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/inspectd/pkg/cli/internal/output"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/session"
)

var sessionsDir string

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Inspect saved session dumps",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session dumps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveSessionsDir(cmd)
		if err != nil {
			return err
		}
		infos, err := session.List(dir)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(w, infos)
		}
		if len(infos) == 0 {
			fmt.Fprintf(w, "No sessions in %s\n", dir)
			return nil
		}
		tw := output.Table(w)
		fmt.Fprintln(tw, "NAME\tFORMAT\tSIZE\tMODIFIED")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Format, output.Size(info.Size), info.ModTime.Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the exchanges in a session dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveSessionsDir(cmd)
		if err != nil {
			return err
		}
		resolver := session.NewDirResolver(dir, nil)
		exchanges, err := resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		summaries := make([]exchange.Summary, 0, len(exchanges))
		for _, e := range exchanges {
			if e != nil {
				summaries = append(summaries, e.Summary())
			}
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(w, summaries)
		}
		tw := output.Table(w)
		fmt.Fprintln(tw, "ID\tCAPTURED\tMETHOD\tHOST\tPATH\tSTATUS\tSIGNATURE")
		for _, s := range summaries {
			sig := "-"
			if s.HasSignature {
				sig = "yes"
			}
			status := "-"
			if s.HasResponse {
				status = fmt.Sprint(s.StatusCode)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.CapturedAt.Format(time.DateTime), s.Method, s.Host, s.Path, status, sig)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if skipped := len(exchanges) - len(summaries); skipped > 0 {
			output.Warn(cmd.ErrOrStderr(), "%d malformed entries skipped", skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.PersistentFlags().StringVar(&sessionsDir, "sessions-dir", "", "Directory holding session dumps")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func resolveSessionsDir(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("sessions-dir") {
		return sessionsDir, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Sessions.Dir, nil
}
