// Package zookeeper keeps the cluster topology in a ZooKeeper znode.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/codewandler/slotr/core/topology"
)

type Config struct {
	Servers        []string // Servers, e.g. ["zk1:2181", "zk2:2181"]
	Path           string   // Path of the znode holding the topology, defaults to /slotr/topology
	SessionTimeout time.Duration
	Log            *slog.Logger
}

// Source reads the topology description stored as JSON in a znode.
type Source struct {
	conn *zk.Conn
	path string
	log  *slog.Logger
}

func Connect(cfg Config) (*Source, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("zookeeper: no servers")
	}
	path := cfg.Path
	if path == "" {
		path = "/slotr/topology"
	}
	timeout := cfg.SessionTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	conn, _, err := zk.Connect(cfg.Servers, timeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return &Source{
		conn: conn,
		path: path,
		log:  log.With(slog.String("znode", path)),
	}, nil
}

func (s *Source) Close() error {
	s.conn.Close()
	return nil
}

func (s *Source) Fetch(ctx context.Context) (*topology.Topology, error) {
	if err := s.waitConnected(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", topology.ErrTopologyUnavailable, err)
	}
	data, _, err := s.conn.Get(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: zk get %s: %w", topology.ErrTopologyUnavailable, s.path, err)
	}
	return topology.Decode(data)
}

// Publish writes t to the znode, creating parents as needed.
func (s *Source) Publish(ctx context.Context, t *topology.Topology) error {
	if err := s.waitConnected(ctx); err != nil {
		return err
	}
	data, err := t.MarshalJSON()
	if err != nil {
		return err
	}
	if err := s.ensurePath(parent(s.path)); err != nil {
		return fmt.Errorf("ensure %s: %w", parent(s.path), err)
	}

	_, err = s.conn.Create(s.path, data, 0, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = s.conn.Set(s.path, data, -1)
	}
	if err != nil {
		return fmt.Errorf("zk publish %s: %w", s.path, err)
	}
	s.log.Info("topology published", slog.Uint64("epoch", t.Epoch()))
	return nil
}

// Watch installs the znode content into h whenever it changes, until ctx is
// done.
func (s *Source) Watch(ctx context.Context, h *topology.Holder) error {
	for {
		if err := s.waitConnected(ctx); err != nil {
			return nil
		}
		data, _, ch, err := s.conn.GetW(s.path)
		if errors.Is(err, zk.ErrNoNode) {
			_, _, ch, err = s.conn.ExistsW(s.path)
		} else if err == nil {
			if t, err := topology.Decode(data); err != nil {
				s.log.Warn("ignoring invalid topology", slog.Any("error", err))
			} else {
				h.Set(t)
			}
		}
		if err != nil {
			s.log.Warn("zk watch", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
				continue
			}
		}

		select {
		case ev := <-ch:
			s.log.Debug("zk event", slog.String("type", ev.Type.String()))
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Source) ensurePath(path string) error {
	cur := ""
	for _, p := range strings.Split(path, "/") {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := s.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = s.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && !errors.Is(err, zk.ErrNodeExists) {
				return err
			}
		}
	}
	return nil
}

func (s *Source) waitConnected(ctx context.Context) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		st := s.conn.State()
		if st == zk.StateHasSession {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("zk: not connected (%v): %w", st, ctx.Err())
		case <-t.C:
		}
	}
}

func parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

var _ topology.Source = &Source{}
