package dialogue

import "sync"

// ConversationStore holds per-conversation state. Each conversation has its
// own lock so one conversation is processed strictly in order while others
// proceed independently.
type ConversationStore struct {
	mu    sync.Mutex
	convs map[int64]*conversation
}

type conversation struct {
	mu    sync.Mutex
	state *State
}

// NewConversationStore returns an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[int64]*conversation)}
}

// acquire returns the locked conversation for id, creating the slot if
// needed. The caller must unlock it.
func (s *ConversationStore) acquire(id int64) *conversation {
	s.mu.Lock()
	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	s.mu.Unlock()

	c.mu.Lock()
	return c
}

// Get returns a copy of the state of conversation id.
func (s *ConversationStore) Get(id int64) (State, bool) {
	c := s.acquire(id)
	defer c.mu.Unlock()
	if c.state == nil {
		return State{}, false
	}
	return *c.state, true
}

// Len returns the number of conversations with live state.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	convs := make([]*conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, c)
	}
	s.mu.Unlock()

	n := 0
	for _, c := range convs {
		c.mu.Lock()
		if c.state != nil {
			n++
		}
		c.mu.Unlock()
	}
	return n
}
