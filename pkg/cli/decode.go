package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/inspectd/pkg/decode"
)

var (
	decodeBackend string
	decodeProtoc  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a raw protobuf payload to text",
	Long: `Decode a raw protobuf payload without a schema and print the result.
Use "-" to read from standard input.`,
	Example: `  inspectd decode body.bin
  curl -s http://127.0.0.1:4300/download/request/<guid> | inspectd decode -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("decoder") {
			cfg.Decode.Backend = decodeBackend
		}
		if cmd.Flags().Changed("protoc") {
			cfg.Decode.ProtocPath = decodeProtoc
		}

		raw, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		dec, err := decode.New(cfg.Decode.Backend, cfg.Decode.ProtocPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Decode.Timeout)
		defer cancel()
		text, err := dec.Decode(ctx, raw)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeBackend, "decoder", "", "Body decoder: builtin or protoc")
	decodeCmd.Flags().StringVar(&decodeProtoc, "protoc", "", "Path to the protoc binary")
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
