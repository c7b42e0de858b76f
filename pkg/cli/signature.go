package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/getmockd/inspectd/pkg/signature"
)

var (
	signatureProto   string
	signatureMessage string
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Work with the decrypted signature schema",
}

var signatureSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the signature schema in .proto form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := signatureParser(cmd)
		if err != nil {
			return err
		}
		out, err := signature.FormatSchema(parser.Descriptor())
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

var signatureParseCmd = &cobra.Command{
	Use:   "parse <byte-list>",
	Short: "Parse a decrypted signature byte list and print it as JSON",
	Example: `  inspectd signature parse "[16, 7]"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := signatureParser(cmd)
		if err != nil {
			return err
		}
		raw, err := signature.ParseByteList(args[0])
		if err != nil {
			return err
		}
		msg, err := parser.Parse(raw)
		if err != nil {
			return err
		}
		out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	rootCmd.AddCommand(signatureCmd)
	signatureCmd.AddCommand(signatureSchemaCmd, signatureParseCmd)
	signatureCmd.PersistentFlags().StringVar(&signatureProto, "proto", "", "Custom .proto file describing the signature")
	signatureCmd.PersistentFlags().StringVar(&signatureMessage, "message", "", "Fully qualified signature message name")
}

func signatureParser(cmd *cobra.Command) (*signature.DynamicParser, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("proto") {
		cfg.Signature.ProtoFile = signatureProto
	}
	if cmd.Flags().Changed("message") {
		cfg.Signature.Message = signatureMessage
	}
	return signature.NewParser(cmd.Context(), cfg.Signature.ProtoFile, cfg.Signature.Message)
}
