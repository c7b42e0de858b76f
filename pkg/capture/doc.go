// Package capture is the live capture feed: an HTTP/HTTPS MITM proxy that
// turns every intercepted request/response pair into a live exchange.
//
// HTTPS traffic is intercepted with per-host certificates signed by a local
// CA (see CAManager). Without a CA, CONNECT requests are tunneled untouched
// and nothing is captured for them.
package capture
