package topology

// repository is a keyed collection that preserves insertion order.
// A duplicate add keeps the element that is already stored.
type repository[K comparable, V any] struct {
	keys  []K
	items map[K]V
}

func newRepository[K comparable, V any]() *repository[K, V] {
	return &repository[K, V]{
		items: make(map[K]V),
	}
}

// add inserts value under key and returns the stored value. When the
// key is already present the existing value is returned unchanged.
func (r *repository[K, V]) add(key K, value V) V {
	if existing, ok := r.items[key]; ok {
		return existing
	}
	r.items[key] = value
	r.keys = append(r.keys, key)
	return value
}

func (r *repository[K, V]) get(key K) (V, bool) {
	value, ok := r.items[key]
	return value, ok
}

func (r *repository[K, V]) contains(key K) bool {
	_, ok := r.items[key]
	return ok
}

// remove deletes key and returns the removed value, if any.
func (r *repository[K, V]) remove(key K) (V, bool) {
	value, ok := r.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(r.items, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return value, true
}

// values returns the stored elements in insertion order.
func (r *repository[K, V]) values() []V {
	out := make([]V, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.items[key])
	}
	return out
}

func (r *repository[K, V]) size() int {
	return len(r.keys)
}
