package placed

// Set is an ordered sequence of objects it exclusively owns. At borrows;
// Take and TakeAll move ownership out to the caller.
type Set struct {
	items []*Object
}

func (s *Set) Len() int { return len(s.items) }

// Add transfers ownership of o into the set.
func (s *Set) Add(o *Object) {
	if o != nil {
		s.items = append(s.items, o)
	}
}

// Insert places o at position i, clamped to the valid range.
func (s *Set) Insert(i int, o *Object) {
	if o == nil {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(s.items) {
		s.items = append(s.items, o)
		return
	}
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = o
}

// At borrows the i-th object; the set keeps ownership.
func (s *Set) At(i int) *Object {
	if i < 0 || i >= len(s.items) {
		return nil
	}
	return s.items[i]
}

// Take removes the i-th object and hands it to the caller.
func (s *Set) Take(i int) *Object {
	if i < 0 || i >= len(s.items) {
		return nil
	}
	o := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return o
}

// TakeFront is Take(0).
func (s *Set) TakeFront() *Object { return s.Take(0) }

// TakeAll empties the set and hands every object to the caller.
func (s *Set) TakeAll() []*Object {
	out := s.items
	s.items = nil
	return out
}

// Remove drops the i-th object.
func (s *Set) Remove(i int) bool { return s.Take(i) != nil }

// RemoveIf drops every object for which fn is true and returns the count.
func (s *Set) RemoveIf(fn func(*Object) bool) int {
	kept := s.items[:0]
	n := 0
	for _, o := range s.items {
		if fn(o) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}
	s.items = kept
	return n
}

func (s *Set) Index(o *Object) int {
	for i, x := range s.items {
		if x == o {
			return i
		}
	}
	return -1
}

// Items returns a borrowed view in order. The slice itself is a copy.
func (s *Set) Items() []*Object { return append([]*Object(nil), s.items...) }

// Clone deep-copies every object into a new set.
func (s *Set) Clone() Set {
	out := Set{items: make([]*Object, 0, len(s.items))}
	for _, o := range s.items {
		out.items = append(out.items, o.Clone())
	}
	return out
}

func (s *Set) Clear() { s.items = nil }
