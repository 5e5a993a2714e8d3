package topology

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Source fetches the authoritative topology.
type Source interface {
	Fetch(ctx context.Context) (*Topology, error)
}

type SourceFunc func(ctx context.Context) (*Topology, error)

func (f SourceFunc) Fetch(ctx context.Context) (*Topology, error) { return f(ctx) }

// Static always returns t.
func Static(t *Topology) Source {
	return SourceFunc(func(context.Context) (*Topology, error) { return t, nil })
}

// FirstOf tries sources in order and returns the first snapshot fetched.
func FirstOf(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context) (*Topology, error) {
		var errs []error
		for _, s := range sources {
			t, err := s.Fetch(ctx)
			if err == nil {
				return t, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrTopologyUnavailable, errors.Join(errs...))
	})
}

// LoadFile reads a YAML description:
//
//	epoch: 1
//	nodes:
//	  - id: a
//	    host: 10.0.0.1
//	    port: 7000
//	    role: primary
//	    slots: [{start: 0, end: 5460}]
//	  - id: a1
//	    host: 10.0.0.4
//	    port: 7000
//	    role: replica
//	    replica_of: a
func LoadFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse topology file %s: %w", path, err)
	}
	return d.Build()
}

// File is a source re-reading a YAML description on every fetch.
func File(path string) Source {
	return SourceFunc(func(context.Context) (*Topology, error) { return LoadFile(path) })
}
