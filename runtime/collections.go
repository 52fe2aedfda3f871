package runtime

// List is an ordered sequence of objects with amortised growth. Slots hold
// *Object so indexing hands out the shared element, not a copy.
type List struct {
	Elements []*Object
}

func NewListOf(elements ...*Object) *List {
	return &List{Elements: elements}
}

func (list *List) Length() int {
	return len(list.Elements)
}

// Get returns the element at index, or false when the index is out of
// bounds.
func (list *List) Get(index int) (*Object, bool) {
	if index < 0 || index >= len(list.Elements) {
		return nil, false
	}
	return list.Elements[index], true
}

func (list *List) Append(obj *Object) {
	list.Elements = append(list.Elements, obj)
}

// PopLast removes and returns the last element, or false on an empty list.
func (list *List) PopLast() (*Object, bool) {
	if len(list.Elements) == 0 {
		return nil, false
	}
	last := list.Elements[len(list.Elements)-1]
	list.Elements = list.Elements[:len(list.Elements)-1]
	return last, true
}

// PopFirst removes and returns the first element, or false on an empty list.
func (list *List) PopFirst() (*Object, bool) {
	if len(list.Elements) == 0 {
		return nil, false
	}
	first := list.Elements[0]
	list.Elements = list.Elements[1:]
	return first, true
}

// Contains reports whether any element equals obj.
func (list *List) Contains(obj *Object) bool {
	for _, e := range list.Elements {
		if e.Equals(obj) {
			return true
		}
	}
	return false
}

func (list *List) Clear() {
	list.Elements = nil
}

// MapEntry is one key-value pair in a Map.
type MapEntry struct {
	Key   *Object
	Value *Object
}

const initialBucketCount = 8

// Map is an unordered object-to-object mapping using chained buckets. Keys
// must be hashable (primitives, strings, functions, exceptions); Insert
// rejects an unhashable key and reports false.
// Iteration order is undefined.
type Map struct {
	buckets [][]*MapEntry
	size    int
}

func NewMapEmpty() *Map {
	return &Map{buckets: make([][]*MapEntry, initialBucketCount)}
}

func (m *Map) Size() int {
	return m.size
}

func (m *Map) bucketFor(hash uint64) int {
	return int(hash % uint64(len(m.buckets)))
}

// Insert adds or overwrites the value for key. It returns false when the
// key is unhashable.
func (m *Map) Insert(key, value *Object) bool {
	hash, ok := key.Hash()
	if !ok {
		return false
	}
	idx := m.bucketFor(hash)
	for _, entry := range m.buckets[idx] {
		if entry.Key.Equals(key) {
			entry.Value = value
			return true
		}
	}
	m.buckets[idx] = append(m.buckets[idx], &MapEntry{Key: key, Value: value})
	m.size++
	if m.size > len(m.buckets)*2 {
		m.grow()
	}
	return true
}

// Get returns the value stored under key, or false when the key is absent
// or unhashable.
func (m *Map) Get(key *Object) (*Object, bool) {
	hash, ok := key.Hash()
	if !ok {
		return nil, false
	}
	for _, entry := range m.buckets[m.bucketFor(hash)] {
		if entry.Key.Equals(key) {
			return entry.Value, true
		}
	}
	return nil, false
}

// Remove deletes the entry for key, returning its value, or false when the
// key is absent or unhashable.
func (m *Map) Remove(key *Object) (*Object, bool) {
	hash, ok := key.Hash()
	if !ok {
		return nil, false
	}
	idx := m.bucketFor(hash)
	for i, entry := range m.buckets[idx] {
		if entry.Key.Equals(key) {
			m.buckets[idx] = append(m.buckets[idx][:i], m.buckets[idx][i+1:]...)
			m.size--
			return entry.Value, true
		}
	}
	return nil, false
}

// ContainsKey reports whether the key is present.
func (m *Map) ContainsKey(key *Object) bool {
	_, ok := m.Get(key)
	return ok
}

// Entries returns every key-value pair in bucket order.
func (m *Map) Entries() []*MapEntry {
	entries := make([]*MapEntry, 0, m.size)
	for _, bucket := range m.buckets {
		entries = append(entries, bucket...)
	}
	return entries
}

func (m *Map) Clear() {
	m.buckets = make([][]*MapEntry, initialBucketCount)
	m.size = 0
}

func (m *Map) grow() {
	old := m.buckets
	m.buckets = make([][]*MapEntry, len(old)*2)
	for _, bucket := range old {
		for _, entry := range bucket {
			hash, _ := entry.Key.Hash()
			idx := m.bucketFor(hash)
			m.buckets[idx] = append(m.buckets[idx], entry)
		}
	}
}

// Set is an unordered collection of hashable objects using chained buckets.
// Iteration order is undefined.
type Set struct {
	buckets [][]*Object
	size    int
}

func NewSetEmpty() *Set {
	return &Set{buckets: make([][]*Object, initialBucketCount)}
}

func (s *Set) Size() int {
	return s.size
}

func (s *Set) bucketFor(hash uint64) int {
	return int(hash % uint64(len(s.buckets)))
}

// Add inserts obj, returning false when it is unhashable. Adding an element
// already present is a no-op.
func (s *Set) Add(obj *Object) bool {
	hash, ok := obj.Hash()
	if !ok {
		return false
	}
	idx := s.bucketFor(hash)
	for _, e := range s.buckets[idx] {
		if e.Equals(obj) {
			return true
		}
	}
	s.buckets[idx] = append(s.buckets[idx], obj)
	s.size++
	if s.size > len(s.buckets)*2 {
		s.grow()
	}
	return true
}

// Get returns the stored element equal to obj, or false when absent or
// unhashable. Sets answer LOAD_INDEX through this membership lookup.
func (s *Set) Get(obj *Object) (*Object, bool) {
	hash, ok := obj.Hash()
	if !ok {
		return nil, false
	}
	for _, e := range s.buckets[s.bucketFor(hash)] {
		if e.Equals(obj) {
			return e, true
		}
	}
	return nil, false
}

// Remove deletes obj from the set, reporting whether it was present.
func (s *Set) Remove(obj *Object) bool {
	hash, ok := obj.Hash()
	if !ok {
		return false
	}
	idx := s.bucketFor(hash)
	for i, e := range s.buckets[idx] {
		if e.Equals(obj) {
			s.buckets[idx] = append(s.buckets[idx][:i], s.buckets[idx][i+1:]...)
			s.size--
			return true
		}
	}
	return false
}

// Contains reports whether obj is in the set.
func (s *Set) Contains(obj *Object) bool {
	_, ok := s.Get(obj)
	return ok
}

// Elements returns every element in bucket order.
func (s *Set) Elements() []*Object {
	elements := make([]*Object, 0, s.size)
	for _, bucket := range s.buckets {
		elements = append(elements, bucket...)
	}
	return elements
}

func (s *Set) Clear() {
	s.buckets = make([][]*Object, initialBucketCount)
	s.size = 0
}

func (s *Set) grow() {
	old := s.buckets
	s.buckets = make([][]*Object, len(old)*2)
	for _, bucket := range old {
		for _, e := range bucket {
			hash, _ := e.Hash()
			idx := s.bucketFor(hash)
			s.buckets[idx] = append(s.buckets[idx], e)
		}
	}
}
