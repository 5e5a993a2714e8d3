package cluster

import (
	"fmt"

	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/internal/ds"
)

// merge combines per-node replies according to the command's strategy. n is
// the number of caller keys for positional strategies.
func merge(spec command.Spec, n int, subs []subOperation, replies []Reply) (Reply, error) {
	switch spec.Merge {
	case command.MergeOrdered:
		return mergeOrdered(n, subs, replies)
	case command.MergeUnion:
		return mergeUnion(replies)
	case command.MergeSum:
		return mergeSum(replies)
	case command.MergeAllEqual:
		return mergeAllEqual(replies)
	case command.MergeNone:
		if len(replies) == 1 {
			return replies[0], nil
		}
	}
	return Reply{}, fmt.Errorf("%s: cannot merge %d replies with strategy %s", spec.Name, len(replies), spec.Merge)
}

// mergeOrdered puts each node's array reply back at the caller's key
// positions. The result has exactly n elements.
func mergeOrdered(n int, subs []subOperation, replies []Reply) (Reply, error) {
	out := make([]Reply, n)
	filled := 0
	for i, r := range replies {
		idx := subs[i].indices
		if r.Kind != KindArray || len(r.Array) != len(idx) {
			return Reply{}, fmt.Errorf("%w: node %s returned %s for %d keys", ErrUnexpectedReply, subs[i].node.ID, r.Kind, len(idx))
		}
		for j, pos := range idx {
			out[pos] = r.Array[j]
		}
		filled += len(idx)
	}
	if filled != n {
		return Reply{}, fmt.Errorf("%w: %d of %d positions filled", ErrUnexpectedReply, filled, n)
	}
	return ArrayReply(out...), nil
}

// mergeUnion concatenates array replies, dropping repeated bulk values.
func mergeUnion(replies []Reply) (Reply, error) {
	seen := ds.NewSet[string]()
	out := make([]Reply, 0)
	for _, r := range replies {
		if r.Kind != KindArray {
			return Reply{}, fmt.Errorf("%w: expected array, got %s", ErrUnexpectedReply, r.Kind)
		}
		for _, item := range r.Array {
			if item.Kind == KindBulk && !seen.Add(string(item.Bulk)) {
				continue
			}
			out = append(out, item)
		}
	}
	return ArrayReply(out...), nil
}

func mergeSum(replies []Reply) (Reply, error) {
	var total int64
	for _, r := range replies {
		if r.Kind != KindInt {
			return Reply{}, fmt.Errorf("%w: expected int, got %s", ErrUnexpectedReply, r.Kind)
		}
		total += r.Int
	}
	return IntReply(total), nil
}

// mergeAllEqual requires every node to answer the same and returns that answer.
func mergeAllEqual(replies []Reply) (Reply, error) {
	if len(replies) == 0 {
		return Reply{}, fmt.Errorf("%w: no replies", ErrUnexpectedReply)
	}
	first := replies[0]
	for _, r := range replies[1:] {
		if !r.Equal(first) {
			return Reply{}, fmt.Errorf("%w: %s != %s", ErrReplyMismatch, r, first)
		}
	}
	return first, nil
}
