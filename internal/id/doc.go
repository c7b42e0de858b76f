// Package id provides exchange identifier generation and parsing.
//
// Exchanges are keyed by 128-bit GUIDs. Identifiers are assigned when the
// capture path completes an interception or when a session dump entry is
// read, and never change afterwards.
//
// Parse distinguishes a malformed key (ErrInvalidKey) from a key that is
// well formed but unknown, which is the caller's concern.
package id
