package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/inspectd/pkg/capture"
	"github.com/getmockd/inspectd/pkg/cli/internal/output"
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the root certificate used for HTTPS interception",
}

var caGenerateForce bool

var caGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new root CA",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ca, err := configuredCA(cmd)
		if err != nil {
			return err
		}
		if ca.Exists() && !caGenerateForce {
			return fmt.Errorf("CA already exists at %s (use --force to replace it)", ca.CertPath())
		}
		if err := ca.Generate(); err != nil {
			return fmt.Errorf("failed to generate CA: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "CA certificate generated:\n")
		fmt.Fprintf(w, "  Certificate: %s\n", ca.CertPath())
		fmt.Fprintf(w, "  Private key: %s\n", ca.KeyPath())
		fmt.Fprintln(w, "\nTo trust this CA on macOS:")
		fmt.Fprintf(w, "  sudo security add-trusted-cert -d -r trustRoot -k /Library/Keychains/System.keychain %s\n", ca.CertPath())
		fmt.Fprintln(w, "\nTo trust this CA on Linux (Ubuntu/Debian):")
		fmt.Fprintf(w, "  sudo cp %s /usr/local/share/ca-certificates/inspectd-ca.crt\n", ca.CertPath())
		fmt.Fprintln(w, "  sudo update-ca-certificates")
		return nil
	},
}

var caShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the root CA location and fingerprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ca, err := configuredCA(cmd)
		if err != nil {
			return err
		}
		if !ca.Exists() {
			return errors.New("no CA found; run 'inspectd ca generate'")
		}
		if err := ca.Load(); err != nil {
			return err
		}
		info, err := ca.CertInfo()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(w, struct {
				*capture.CertInfo
				CertPath string `json:"certPath"`
				KeyPath  string `json:"keyPath"`
			}{info, ca.CertPath(), ca.KeyPath()})
		}
		fmt.Fprintf(w, "Certificate:  %s\n", ca.CertPath())
		fmt.Fprintf(w, "Private key:  %s\n", ca.KeyPath())
		fmt.Fprintf(w, "Organization: %s\n", info.Organization)
		fmt.Fprintf(w, "Expires:      %s\n", info.NotAfter.Format("2006-01-02"))
		fmt.Fprintf(w, "SHA-256:      %s\n", info.Fingerprint)
		return nil
	},
}

var caExportOutput string

var caExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the root CA certificate in PEM format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ca, err := configuredCA(cmd)
		if err != nil {
			return err
		}
		if err := ca.Load(); err != nil {
			return err
		}
		certPEM, err := ca.CACertPEM()
		if err != nil {
			return err
		}
		if caExportOutput == "" {
			_, err := cmd.OutOrStdout().Write(certPEM)
			return err
		}
		if err := os.WriteFile(caExportOutput, certPEM, 0o644); err != nil {
			return fmt.Errorf("failed to write certificate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "CA certificate exported to: %s\n", caExportOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(caCmd)
	caCmd.AddCommand(caGenerateCmd, caShowCmd, caExportCmd)
	caGenerateCmd.Flags().BoolVarP(&caGenerateForce, "force", "f", false, "Replace an existing CA")
	caExportCmd.Flags().StringVarP(&caExportOutput, "output", "o", "", "Output file path (default: stdout)")
}

func configuredCA(cmd *cobra.Command) (*capture.CAManager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return capture.NewCAManager(cfg.Proxy.CACert, cfg.Proxy.CAKey), nil
}
