// Package inspect serves the inspection front-end: exchange details,
// body and signature downloads, session loading, and signature submission.
//
// Routes:
//
//	GET  /                                    index (live count, sessions)
//	GET  /health                              liveness
//	GET  /metrics                             Prometheus metrics
//	GET  /sessions                            session dumps on disk
//	GET  /session/{session}                   live list or load a dump
//	GET  /live/feed                           websocket stream of new live exchanges
//	GET  /details/{guid}                      exchange document
//	POST /details/signature/{guid}            submit a decrypted signature
//	GET  /download/cert                       root CA certificate
//	GET  /download/request/raw/{guid}         request body
//	GET  /download/request/decoded/{guid}     decoded request body
//	GET  /download/response/raw/{guid}        response body
//	GET  /download/response/decoded/{guid}    decoded response body
//	GET  /download/rawsignature/{guid}        encrypted signature
//	GET  /download/decryptedrawsignature/{guid}  decrypted signature bytes
//	GET  /download/json/{guid}                exchange document as a file
package inspect
