package dialogue

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// maxOwnPerChat bounds remembered own message ids when echoes never arrive.
const maxOwnPerChat = 256

// sentTracker remembers what the engine sent so the echoes of its own
// messages are never handled as input. A send is registered by text before
// the platform call and by id once the call returns; an echo that arrives in
// between is matched by text.
type sentTracker struct {
	mu    sync.Mutex
	chats map[int64]*sentChat
}

type sentChat struct {
	// ids are confirmed message ids, oldest first.
	ids []int64
	// inFlight counts sends per text whose id is not known yet.
	inFlight map[string]int
	// echoed counts in-flight sends whose echo was already dropped.
	echoed map[string]int
}

func newSentTracker() *sentTracker {
	return &sentTracker{chats: make(map[int64]*sentChat)}
}

func (s *sentTracker) chat(chatID int64) *sentChat {
	c, ok := s.chats[chatID]
	if !ok {
		c = &sentChat{inFlight: make(map[string]int), echoed: make(map[string]int)}
		s.chats[chatID] = c
	}
	return c
}

// begin registers a send that is about to happen.
func (s *sentTracker) begin(chatID int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat(chatID).inFlight[strings.TrimSpace(text)]++
}

// finish completes a send started with begin. id is 0 when the send failed.
func (s *sentTracker) finish(chatID int64, text string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(text)
	c := s.chat(chatID)
	decrement(c.inFlight, key)

	if c.echoed[key] > 0 {
		decrement(c.echoed, key)
		s.prune(chatID, c)
		return
	}
	if id > 0 {
		c.ids = append(c.ids, id)
		if len(c.ids) > maxOwnPerChat {
			c.ids = c.ids[len(c.ids)-maxOwnPerChat:]
		}
	}
	s.prune(chatID, c)
}

// isOwn reports whether a message is the echo of one the engine sent, and
// forgets it if so.
func (s *sentTracker) isOwn(chatID, msgID int64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return false
	}
	if i := lo.IndexOf(c.ids, msgID); i >= 0 {
		c.ids = slices.Delete(c.ids, i, i+1)
		s.prune(chatID, c)
		return true
	}
	key := strings.TrimSpace(text)
	if c.inFlight[key] > c.echoed[key] {
		c.echoed[key]++
		return true
	}
	return false
}

func (s *sentTracker) prune(chatID int64, c *sentChat) {
	if len(c.ids) == 0 && len(c.inFlight) == 0 && len(c.echoed) == 0 {
		delete(s.chats, chatID)
	}
}

func decrement(m map[string]int, key string) {
	if m[key] <= 1 {
		delete(m, key)
		return
	}
	m[key]--
}
