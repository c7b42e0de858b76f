package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/inspectd/pkg/config"
)

// serveFlags holds flag values for the serve command.
type serveFlags struct {
	listen        string
	proxyListen   string
	noProxy       bool
	sessionsDir   string
	dumpOnExit    bool
	decoder       string
	protocPath    string
	decodeTimeout time.Duration
	signaturePath string
	protoFile     string
	message       string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inspection server and capture proxy",
	Long: `Run the inspection server. Unless --no-proxy is given the capture proxy
runs alongside it and records every exchange it forwards.

Point a client at the proxy, trust the root certificate served at
/download/cert, then browse /session/live to see what was captured.`,
	Example: `  # Start with defaults
  inspectd serve

  # Replay-only server on a custom port
  inspectd serve --no-proxy --listen 127.0.0.1:5000 --sessions-dir ./sessions

  # Decode with protoc and keep the capture when exiting
  inspectd serve --decoder protoc --dump-on-exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg, &serveFlagVals)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	flags := serveCmd.Flags()
	flags.StringVarP(&f.listen, "listen", "l", config.DefaultListen, "Inspection server address")
	flags.StringVar(&f.proxyListen, "proxy-listen", config.DefaultProxyListen, "Capture proxy address")
	flags.BoolVar(&f.noProxy, "no-proxy", false, "Do not start the capture proxy")
	flags.StringVar(&f.sessionsDir, "sessions-dir", "", "Directory holding session dumps")
	flags.BoolVar(&f.dumpOnExit, "dump-on-exit", false, "Write live exchanges to the sessions directory on exit")
	flags.StringVar(&f.decoder, "decoder", "", "Body decoder: builtin or protoc")
	flags.StringVar(&f.protocPath, "protoc", "", "Path to the protoc binary")
	flags.DurationVar(&f.decodeTimeout, "decode-timeout", 0, "Timeout for a single decode")
	flags.StringVar(&f.signaturePath, "signature-path", "", "Field path of the encrypted signature in request bodies, e.g. 6.2")
	flags.StringVar(&f.protoFile, "signature-proto", "", "Custom .proto file describing the signature")
	flags.StringVar(&f.message, "signature-message", "", "Fully qualified signature message name")
}

// applyServeFlags overlays explicitly set flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f *serveFlags) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = f.listen
	}
	if flags.Changed("proxy-listen") {
		cfg.Proxy.Listen = f.proxyListen
	}
	if f.noProxy {
		cfg.Proxy.Enabled = false
	}
	if flags.Changed("sessions-dir") {
		cfg.Sessions.Dir = f.sessionsDir
	}
	if flags.Changed("dump-on-exit") {
		cfg.Sessions.DumpOnExit = f.dumpOnExit
	}
	if flags.Changed("decoder") {
		cfg.Decode.Backend = f.decoder
	}
	if flags.Changed("protoc") {
		cfg.Decode.ProtocPath = f.protocPath
	}
	if flags.Changed("decode-timeout") {
		cfg.Decode.Timeout = f.decodeTimeout
	}
	if flags.Changed("signature-path") {
		cfg.Proxy.SignaturePath = f.signaturePath
	}
	if flags.Changed("signature-proto") {
		cfg.Signature.ProtoFile = f.protoFile
	}
	if flags.Changed("signature-message") {
		cfg.Signature.Message = f.message
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := a.start(); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Inspector: http://%s/\n", a.inspectAddr())
	if addr := a.proxyAddr(); addr != "" {
		fmt.Fprintf(w, "Proxy:     %s\n", addr)
		if a.ca != nil {
			fmt.Fprintf(w, "Root CA:   %s\n", a.ca.CertPath())
		}
	}
	if _, err := os.Stat(cfg.Sessions.Dir); err != nil {
		log.Debug("sessions directory not present", "dir", cfg.Sessions.Dir)
	}

	return a.serve(ctx)
}
