package cluster

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ReplyKind tells which field of a Reply carries the value.
type ReplyKind uint8

const (
	KindNil ReplyKind = iota
	KindStatus
	KindInt
	KindBulk
	KindArray
)

var kindNames = [...]string{"nil", "status", "int", "bulk", "array"}

func (k ReplyKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k ReplyKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ReplyKind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = ReplyKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown reply kind %q", b)
}

// Reply is a decoded node reply.
type Reply struct {
	Kind   ReplyKind `json:"kind"`
	Status string    `json:"status,omitempty"`
	Int    int64     `json:"int,omitempty"`
	Bulk   []byte    `json:"bulk,omitempty"`
	Array  []Reply   `json:"array,omitempty"`
}

func NilReply() Reply                 { return Reply{Kind: KindNil} }
func StatusReply(s string) Reply      { return Reply{Kind: KindStatus, Status: s} }
func OKReply() Reply                  { return StatusReply("OK") }
func IntReply(n int64) Reply          { return Reply{Kind: KindInt, Int: n} }
func BulkReply(b []byte) Reply        { return Reply{Kind: KindBulk, Bulk: b} }
func BulkString(s string) Reply       { return BulkReply([]byte(s)) }
func ArrayReply(items ...Reply) Reply { return Reply{Kind: KindArray, Array: items} }

func (r Reply) IsNil() bool { return r.Kind == KindNil }

// Equal reports whether r and o carry the same value. Nil and empty byte
// slices compare equal.
func (r Reply) Equal(o Reply) bool {
	if r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case KindNil:
		return true
	case KindStatus:
		return r.Status == o.Status
	case KindInt:
		return r.Int == o.Int
	case KindBulk:
		return bytes.Equal(r.Bulk, o.Bulk)
	case KindArray:
		if len(r.Array) != len(o.Array) {
			return false
		}
		for i := range r.Array {
			if !r.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (r Reply) String() string {
	switch r.Kind {
	case KindNil:
		return "(nil)"
	case KindStatus:
		return r.Status
	case KindInt:
		return "(integer) " + strconv.FormatInt(r.Int, 10)
	case KindBulk:
		return strconv.Quote(string(r.Bulk))
	case KindArray:
		parts := make([]string, len(r.Array))
		for i, a := range r.Array {
			parts[i] = a.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return r.Kind.String()
}
