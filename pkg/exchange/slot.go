package exchange

import (
	"bytes"
	"sync"

	"google.golang.org/protobuf/proto"
)

// SlotState is the lifecycle state of a TextSlot.
type SlotState int

const (
	SlotUnset SlotState = iota
	SlotComputing
	SlotSet
)

// String returns the state name.
func (s SlotState) String() string {
	switch s {
	case SlotUnset:
		return "unset"
	case SlotComputing:
		return "computing"
	case SlotSet:
		return "set"
	default:
		return "unknown"
	}
}

// TextSlot caches a derived text value that is computed at most once.
//
// fill serializes computations so the compute function never runs twice
// concurrently for the same slot; mu guards state and value so readers are
// never blocked behind a running computation.
type TextSlot struct {
	fill sync.Mutex

	mu    sync.RWMutex
	state SlotState
	value string
}

// Get returns the cached value and whether it is set.
func (s *TextSlot) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.state == SlotSet
}

// State returns the current slot state.
func (s *TextSlot) State() SlotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Fill returns the cached value, calling compute to produce it if the slot is
// unset. Callers racing on an unset slot are serialized: the first runs
// compute, the rest observe its result. A compute error leaves the slot unset
// so a later call retries. computed reports whether this call ran compute.
func (s *TextSlot) Fill(compute func() (string, error)) (value string, computed bool, err error) {
	if v, ok := s.Get(); ok {
		return v, false, nil
	}

	s.fill.Lock()
	defer s.fill.Unlock()

	if v, ok := s.Get(); ok {
		return v, false, nil
	}

	s.setState(SlotComputing)
	v, err := compute()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = SlotUnset
		return "", true, err
	}
	s.state = SlotSet
	s.value = v
	return v, true, nil
}

// preset stores a value on a slot that is not yet shared. Used when
// rebuilding an exchange from a dump document.
func (s *TextSlot) preset(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SlotSet
	s.value = v
}

func (s *TextSlot) setState(st SlotState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SignatureSlot holds the decrypted signature bytes and their parsed form.
// Unlike TextSlot it is overwritten on every Set.
type SignatureSlot struct {
	mu     sync.RWMutex
	raw    []byte
	parsed proto.Message
}

// Set replaces the stored signature.
func (s *SignatureSlot) Set(raw []byte, parsed proto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = bytes.Clone(raw)
	if s.raw == nil {
		s.raw = []byte{}
	}
	s.parsed = parsed
}

// Get returns a copy of the raw bytes and the parsed structure. Both are nil
// when nothing has been stored.
func (s *SignatureSlot) Get() ([]byte, proto.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.raw), s.parsed
}

// Raw returns a copy of the raw decrypted bytes, or nil if unset.
func (s *SignatureSlot) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.raw)
}

// Parsed returns the parsed signature, or nil if unset.
func (s *SignatureSlot) Parsed() proto.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parsed
}
