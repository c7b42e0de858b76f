// Package session replays persisted capture sessions into an exchange store.
//
// A session dump is a JSON or YAML file holding an ordered array of exchange
// documents. Null or malformed entries are tolerated and skipped. Loading
// merges into the store without replacing exchanges that are already present,
// so the same session can be loaded repeatedly and live captures are never
// shadowed by replayed ones.
package session
