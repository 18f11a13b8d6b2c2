package handlers

import (
	"sync"
	"time"

	"tti-balder/internal/prompt"
)

const (
	menuMain      = "main"
	menuColor     = "color"
	menuSize      = "size"
	menuPlacement = "placement"
	menuBlend     = "blend"
	menuStyle     = "style"
	menuMood      = "mood"
)

const (
	awaitNothing = ""
	awaitSubject = "subject"
	awaitTags    = "tags"
)

// wizardState is the chat-side form; garment choices live in the widget
// session.
type wizardState struct {
	Input     prompt.Input
	Menu      string
	MessageID int
	Awaiting  string
	UpdatedAt time.Time
}

type stateKey struct {
	ChatID int64
	UserID int64
}

type wizardStore struct {
	mu sync.Mutex
	m  map[stateKey]*wizardState
}

func newWizardStore() *wizardStore {
	return &wizardStore{m: make(map[stateKey]*wizardState)}
}

func (s *wizardStore) Get(chatID, userID int64) wizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID, userID)
	out := *st
	out.Input.Tags = append([]string(nil), st.Input.Tags...)
	return out
}

func (s *wizardStore) Update(chatID, userID int64, fn func(*wizardState)) wizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(st)
	}
	st.UpdatedAt = time.Now()
	out := *st
	out.Input.Tags = append([]string(nil), st.Input.Tags...)
	return out
}

func (s *wizardStore) Reset(chatID, userID int64) wizardState {
	return s.Update(chatID, userID, func(st *wizardState) {
		msgID := st.MessageID
		*st = defaultState()
		st.MessageID = msgID
	})
}

// Prune forgets forms untouched for longer than ttl.
func (s *wizardStore) Prune(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, st := range s.m {
		if now.Sub(st.UpdatedAt) > ttl {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

func (s *wizardStore) getOrCreateLocked(chatID, userID int64) *wizardState {
	key := stateKey{ChatID: chatID, UserID: userID}
	if st, ok := s.m[key]; ok {
		return st
	}
	st := defaultState()
	s.m[key] = &st
	return s.m[key]
}

func defaultState() wizardState {
	return wizardState{
		Input:     prompt.Input{Style: "cartoon", Mood: "happy"},
		Menu:      menuMain,
		UpdatedAt: time.Now(),
	}
}
