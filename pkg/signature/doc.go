// Package signature parses user-submitted decrypted signatures and attaches
// them to captured exchanges.
//
// A submission is a bracketed, comma-separated list of byte values such as
// "[12,255,0,7]". Ingestor validates the text in explicit steps (delimiters,
// then each token as a 0-255 integer), hands the bytes to a structural Parser
// and, only if every step succeeds, stores both on the exchange. Each failing
// step is reported as a *ParseError naming the stage.
//
// The default Parser decodes the bytes against a protobuf message compiled at
// runtime, either the built-in Signature layout or a user-supplied .proto.
// Resubmitting replaces the stored signature.
package signature
