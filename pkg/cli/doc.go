// Package cli implements the inspectd command-line interface.
//
// The serve command runs the inspection server and, unless disabled, the
// capture proxy. The remaining commands work offline against session dumps
// and the local CA.
package cli
