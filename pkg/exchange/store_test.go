package exchange

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/inspectd/internal/id"
)

func newTestExchange(live bool, at time.Time, body []byte) *Exchange {
	var e *Exchange
	if live {
		e = NewLive(at)
	} else {
		e = NewReplay(id.New(), at)
	}
	e.Request.Method = "POST"
	e.Request.Host = "example.com"
	e.Request.Path = "/rpc"
	e.Request.Body = body
	return e
}

func TestStore_InsertAndGet(t *testing.T) {
	s := NewStore()
	e := newTestExchange(true, time.Now(), []byte{1, 2, 3})

	require.True(t, s.Insert(e))

	got, err := s.Get(e.ID())
	require.NoError(t, err)
	assert.Same(t, e, got)
	assert.Equal(t, 1, s.Len())
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	s := NewStore()
	e := newTestExchange(true, time.Now(), []byte{1})

	assert.True(t, s.Insert(e))
	assert.False(t, s.Insert(e))
	assert.Equal(t, 1, s.Len())
}

func TestStore_InsertDoesNotOverwrite(t *testing.T) {
	s := NewStore()
	first := newTestExchange(true, time.Now(), []byte{1})
	require.True(t, s.Insert(first))

	impostor := NewReplay(first.ID(), time.Now().Add(time.Hour))
	impostor.Request.Body = []byte{9, 9, 9}
	assert.False(t, s.Insert(impostor))

	got, err := s.Get(first.ID())
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.True(t, got.IsLive())
	assert.Equal(t, []byte{1}, got.Request.Body)
}

func TestStore_InsertNil(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Insert(nil))
	assert.False(t, s.Insert(&Exchange{}))
	assert.Equal(t, 0, s.Len())
}

func TestStore_Lookup(t *testing.T) {
	s := NewStore()
	e := newTestExchange(false, time.Now(), nil)
	s.Insert(e)

	t.Run("found", func(t *testing.T) {
		got, err := s.Lookup(e.ID().String())
		require.NoError(t, err)
		assert.Same(t, e, got)
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		_, err := s.Lookup(id.New().String())
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, errors.Is(err, ErrInvalidKey))
	})

	t.Run("malformed key is invalid", func(t *testing.T) {
		_, err := s.Lookup("definitely-not-a-guid")
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_LiveOrdering(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	late := newTestExchange(true, base.Add(2*time.Second), nil)
	early := newTestExchange(true, base, nil)
	middle := newTestExchange(true, base.Add(time.Second), nil)
	replayed := newTestExchange(false, base.Add(-time.Hour), nil)

	for _, e := range []*Exchange{late, replayed, early, middle} {
		s.Insert(e)
	}

	got := slices.Collect(s.Live())
	require.Len(t, got, 3)
	assert.Same(t, early, got[0])
	assert.Same(t, middle, got[1])
	assert.Same(t, late, got[2])
	assert.Equal(t, 3, s.LiveCount())
}

func TestStore_LiveIsSnapshot(t *testing.T) {
	s := NewStore()
	s.Insert(newTestExchange(true, time.Now(), nil))

	seq := s.Live()
	s.Insert(newTestExchange(true, time.Now(), nil))

	assert.Len(t, slices.Collect(seq), 1)
	assert.Len(t, slices.Collect(s.Live()), 2)
}

func TestStore_LiveStopsEarly(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Insert(newTestExchange(true, time.Now(), nil))
	}

	n := 0
	for range s.Live() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestStore_Observer(t *testing.T) {
	var inserted, duplicates int
	s := NewStore(WithInsertObserver(func(_ *Exchange, ok bool) {
		if ok {
			inserted++
		} else {
			duplicates++
		}
	}))

	e := newTestExchange(true, time.Now(), nil)
	s.Insert(e)
	s.Insert(e)

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, duplicates)
}

func TestStore_ConcurrentInsertSameID(t *testing.T) {
	s := NewStore()
	guid := id.New()

	const workers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := NewReplay(guid, time.Now())
			if s.Insert(e) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentInsertAndRead(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e := newTestExchange(true, time.Now(), []byte{byte(j)})
				s.Insert(e)
				_, err := s.Get(e.ID())
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				for e := range s.Live() {
					_ = e.Summary()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.Len())
}
