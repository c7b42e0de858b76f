// Package decode turns raw captured payloads into text and caches the result
// on the exchange.
//
// A Decoder is the opaque binary-to-text capability. Two are provided: Raw,
// which renders protobuf wire data in the same layout as `protoc
// --decode_raw`, and Protoc, which shells out to the protoc binary.
//
// LazyDecoder wraps a Decoder with the exchange's write-once slots. The
// decoder runs at most once per field per exchange at a time, successful
// results are kept for the life of the exchange, and failures (including
// timeouts and panics inside the decoder) are returned without being cached.
package decode
