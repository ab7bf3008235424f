// Package session holds per-caller state: the uploaded target image, the
// tile pool, and the generated mosaic with its deep-zoom pyramid.
//
// Sessions live in memory only and are evicted by idle time: a session
// whose last access is older than the store's TTL is removed on the next
// sweep. There is no persistence; a restarted process starts empty.
package session

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pixelfield/mosaic/internal/dzi"
	"github.com/pixelfield/mosaic/internal/pool"
)

// Session is one caller's working state.
//
// The tile pool and the pyramid are the only mutable shared structures;
// both are internally synchronized. Target/mosaic accessors take the
// session lock so an upload never swaps the target under a running
// generation's feet.
type Session struct {
	ID string

	mu         sync.RWMutex
	target     image.Image
	targetData []byte
	outWidth   int
	outHeight  int
	mosaic     []byte
	pyramid    *dzi.Pyramid
	tiles      *pool.Pool
	lastAccess time.Time
	generating bool
}

// Pool returns the session's tile pool.
func (s *Session) Pool() *pool.Pool { return s.tiles }

// SetTarget decodes and stores the target image.
func (s *Session) SetTarget(data []byte) (width, height int, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode target: %w", err)
	}
	s.mu.Lock()
	s.target = img
	s.targetData = data
	s.mu.Unlock()
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// SetDimensions stores the caller's desired output dimensions. They
// become the default for a generate call that names no size of its own.
func (s *Session) SetDimensions(width, height int) {
	s.mu.Lock()
	s.outWidth = width
	s.outHeight = height
	s.mu.Unlock()
}

// Dimensions returns the stored output dimensions, zero if never set.
func (s *Session) Dimensions() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outWidth, s.outHeight
}

// Target returns the decoded target image, or nil if none was uploaded.
func (s *Session) Target() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// BeginGeneration marks the session as having a generation in flight.
// It fails if one is already running; the external session layer is the
// designated serializer for generate calls.
func (s *Session) BeginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return fmt.Errorf("generation already in progress")
	}
	s.generating = true
	return nil
}

// EndGeneration clears the in-flight marker.
func (s *Session) EndGeneration() {
	s.mu.Lock()
	s.generating = false
	s.mu.Unlock()
}

// SetResult stores a finished mosaic and its pyramid, replacing any
// previous pair atomically.
func (s *Session) SetResult(mosaic []byte, pyramid *dzi.Pyramid) {
	s.mu.Lock()
	s.mosaic = mosaic
	s.pyramid = pyramid
	s.mu.Unlock()
}

// Mosaic returns the encoded mosaic bytes, or nil before generation.
func (s *Session) Mosaic() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mosaic
}

// Pyramid returns the current deep-zoom pyramid, or nil.
func (s *Session) Pyramid() *dzi.Pyramid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pyramid
}

// Store is an in-memory, TTL-swept session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates a store whose sessions expire after ttl of
// inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session with a random ID.
func (st *Store) Create() *Session {
	s := &Session{
		ID:         newSessionID(),
		tiles:      pool.New(),
		lastAccess: time.Now(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given ID and refreshes its access
// time, or false when the ID is unknown or already evicted.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
	return s, true
}

// Delete removes a session. A generation running against the deleted
// session still holds its own references; its result is discarded when
// the engine re-checks liveness before publishing.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Live reports whether the session ID is still registered.
func (st *Store) Live(id string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.sessions[id]
	return ok
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts every session idle longer than the TTL and returns how
// many were removed.
func (st *Store) Sweep() int {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		s.mu.RLock()
		idle := s.lastAccess.Before(cutoff)
		s.mu.RUnlock()
		if idle {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until stop is closed.
func (st *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

func newSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a time-derived ID rather than crashing.
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
