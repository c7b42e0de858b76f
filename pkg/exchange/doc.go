// Package exchange holds captured request/response exchanges and the
// process-wide store they live in.
//
// An Exchange is created either by the live capture path or by a session
// dump load and is never deleted. Its identity fields (ID, liveness, capture
// time) and raw bytes are fixed once it is inserted into a Store. The only
// state that changes afterwards lives in two slot types:
//
//   - TextSlot holds a lazily computed decoded body. It moves from Unset to
//     Computing to Set exactly once; failed computations return it to Unset.
//   - SignatureSlot holds the user-supplied decrypted signature. Every
//     submission replaces the previous value.
//
// Each slot carries its own locks, so concurrent work on one exchange never
// blocks lookups or work on another.
package exchange
