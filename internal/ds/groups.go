package ds

// Groups collects values under keys and remembers the order in which keys
// were first seen.
type Groups[K comparable, V any] struct {
	keys   []K
	values map[K][]V
}

func NewGroups[K comparable, V any]() *Groups[K, V] {
	return &Groups[K, V]{values: make(map[K][]V)}
}

func (g *Groups[K, V]) Append(k K, v V) {
	vs, ok := g.values[k]
	if !ok {
		g.keys = append(g.keys, k)
	}
	g.values[k] = append(vs, v)
}

// Keys returns the keys in first-seen order.
func (g *Groups[K, V]) Keys() []K { return append([]K(nil), g.keys...) }

func (g *Groups[K, V]) Get(k K) []V { return g.values[k] }

func (g *Groups[K, V]) Len() int { return len(g.keys) }
