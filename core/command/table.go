package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrInvalidSpec = errors.New("invalid command spec")

// Class is the routing class of a command.
type Class int

const (
	// SingleKey commands operate on exactly one key.
	SingleKey Class = iota + 1
	// MultiKeyAtomic commands need all keys in one slot and are never split.
	MultiKeyAtomic
	// MultiKeySplittable commands may be split into one sub-command per node.
	MultiKeySplittable
	// ClusterWide commands are sent to every primary.
	ClusterWide
	// NodeLocal commands are sent to one explicitly named node.
	NodeLocal
)

func (c Class) String() string {
	switch c {
	case SingleKey:
		return "single-key"
	case MultiKeyAtomic:
		return "multi-key-atomic"
	case MultiKeySplittable:
		return "multi-key-splittable"
	case ClusterWide:
		return "cluster-wide"
	case NodeLocal:
		return "node-local"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Merge selects how per-node replies are combined.
type Merge int

const (
	// MergeNone passes the single reply through.
	MergeNone Merge = iota
	// MergeOrdered reinserts per-node array replies at the original key positions.
	MergeOrdered
	// MergeUnion concatenates per-node array replies.
	MergeUnion
	// MergeSum adds per-node integer replies.
	MergeSum
	// MergeAllEqual requires every node to return the same status reply.
	MergeAllEqual
	// MergeHardFail marks commands that must never be split.
	MergeHardFail
)

func (m Merge) String() string {
	switch m {
	case MergeNone:
		return "none"
	case MergeOrdered:
		return "ordered"
	case MergeUnion:
		return "union"
	case MergeSum:
		return "sum"
	case MergeAllEqual:
		return "all-equal"
	case MergeHardFail:
		return "hard-fail"
	default:
		return fmt.Sprintf("merge(%d)", int(m))
	}
}

// Spec describes one command.
type Spec struct {
	Name  string
	Class Class
	Merge Merge
	// ValuesPerKey is the number of arguments that travel with each key of a
	// splittable command, e.g. 1 for MSET (key value key value ...).
	ValuesPerKey int
	// ReadOnly commands may be served by replicas when the caller allows it.
	ReadOnly bool
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSpec)
	}
	if s.ValuesPerKey < 0 {
		return fmt.Errorf("%w: %s: negative values per key", ErrInvalidSpec, s.Name)
	}

	ok := false
	switch s.Class {
	case SingleKey, NodeLocal:
		ok = s.Merge == MergeNone
	case MultiKeyAtomic:
		ok = s.Merge == MergeHardFail
	case MultiKeySplittable:
		ok = s.Merge == MergeOrdered || s.Merge == MergeSum || s.Merge == MergeAllEqual || s.Merge == MergeUnion
	case ClusterWide:
		ok = s.Merge == MergeUnion || s.Merge == MergeSum || s.Merge == MergeAllEqual
	default:
		return fmt.Errorf("%w: %s: unknown class %s", ErrInvalidSpec, s.Name, s.Class)
	}
	if !ok {
		return fmt.Errorf("%w: %s: merge %s not allowed for %s", ErrInvalidSpec, s.Name, s.Merge, s.Class)
	}
	if s.ValuesPerKey > 0 && s.Class != MultiKeySplittable && s.Class != MultiKeyAtomic {
		return fmt.Errorf("%w: %s: values per key only apply to multi-key commands", ErrInvalidSpec, s.Name)
	}
	return nil
}

// Table maps command names to specs. Lookups are case-insensitive and safe
// for concurrent use with Register.
type Table struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewTable returns a table holding specs.
func NewTable(specs ...Spec) (*Table, error) {
	t := &Table{specs: make(map[string]Spec, len(specs))}
	if err := t.Register(specs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Register adds or replaces specs. Nothing is registered if any spec is
// invalid.
func (t *Table) Register(specs ...Spec) error {
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range specs {
		s.Name = normalize(s.Name)
		t.specs[s.Name] = s
	}
	return nil
}

// Lookup returns the spec registered under name.
func (t *Table) Lookup(name string) (Spec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.specs[normalize(name)]
	return s, ok
}

// Specs returns all specs sorted by name.
func (t *Table) Specs() []Spec {
	t.mu.RLock()
	out := make([]Spec, 0, len(t.specs))
	for _, s := range t.specs {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Table{specs: make(map[string]Spec, len(t.specs))}
	for k, v := range t.specs {
		c.specs[k] = v
	}
	return c
}

func normalize(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }
