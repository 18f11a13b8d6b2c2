package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tti-balder/internal/cart"
	"tti-balder/internal/design"
	"tti-balder/internal/gallery"
	"tti-balder/internal/generation"
	"tti-balder/internal/mockup"
)

const DefaultColor = "White"

var ErrNotFound = errors.New("session not found")

// Selection is what the shopper has picked so far.
type Selection struct {
	Color          string            `json:"color"`
	Size           string            `json:"size"`
	Placement      design.Placement  `json:"placement"`
	Blend          design.BlendStyle `json:"blend"`
	ActiveDesignID string            `json:"activeDesignId,omitempty"`
	// PushedImageURL is a design the host pushed over the bridge.
	PushedImageURL string `json:"pushedImageUrl,omitempty"`
}

type Session struct {
	ID           string
	Selection    Selection
	Mockup       mockup.Placement
	Gallery      gallery.Gallery
	Catalog      cart.Catalog
	Tracker      *generation.Tracker
	CreatedAt    time.Time
	LastActivity time.Time
}

// ActiveDesign returns the selected gallery design.
func (s *Session) ActiveDesign() (design.Design, bool) {
	if s.Selection.ActiveDesignID == "" {
		return design.Design{}, false
	}
	return s.Gallery.Get(s.Selection.ActiveDesignID)
}

func (s *Session) clone() Session {
	out := *s
	out.Gallery = s.Gallery.Clone()
	out.Catalog = append(cart.Catalog(nil), s.Catalog...)
	return out
}

type Options struct {
	TTL time.Duration
	// Catalog seeds every new session until the host sends its own.
	Catalog cart.Catalog
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	catalog  cart.Catalog
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}

	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		catalog:  append(cart.Catalog(nil), opts.Catalog...),
	}
}

// Create starts a session with a random id and default selection.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.newLocked(uuid.NewString())
	return sess.clone()
}

// Ensure returns the session with id, creating it when missing. Surfaces
// with their own stable ids (chat ids) use it instead of Create.
func (s *Store) Ensure(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = s.newLocked(id)
	}
	sess.LastActivity = time.Now()
	return sess.clone()
}

func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.LastActivity = time.Now()
	return sess.clone(), nil
}

// Update runs fn on the live session under the store lock. fn must not block.
func (s *Store) Update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.LastActivity = time.Now()
	if err := fn(sess); err != nil {
		return sess.clone(), err
	}
	return sess.clone(), nil
}

// Reset clears the session back to a fresh state, keeping its id. A session
// with a generation in flight is left alone.
func (s *Store) Reset(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if cur.Tracker.Busy() {
		return Session{}, generation.ErrInFlight
	}
	sess := s.newLocked(id)
	return sess.clone(), nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Prune drops sessions idle longer than the TTL and returns how many.
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.ttl && !sess.Tracker.Busy() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) newLocked(id string) *Session {
	now := time.Now()
	sess := &Session{
		ID: id,
		Selection: Selection{
			Color:     DefaultColor,
			Placement: design.PlacementCenter,
			Blend:     design.BlendFade,
		},
		Mockup:       mockup.NewPlacement(design.PlacementCenter),
		Catalog:      append(cart.Catalog(nil), s.catalog...),
		Tracker:      generation.NewTracker(),
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[id] = sess
	return sess
}
