package reconcile

// SeenSet holds the user ids already handled in one run. It is owned by a
// single run goroutine and is not safe for concurrent use.
type SeenSet struct {
	ids map[int64]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[int64]struct{})}
}

// Add marks id as handled.
func (s *SeenSet) Add(id int64) {
	s.ids[id] = struct{}{}
}

// Has reports whether id was handled.
func (s *SeenSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of handled ids.
func (s *SeenSet) Len() int {
	return len(s.ids)
}
