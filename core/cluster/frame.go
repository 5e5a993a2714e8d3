package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RequestFrame is the wire form of one command.
type RequestFrame struct {
	Cmd  string   `json:"cmd"`
	Args [][]byte `json:"args,omitempty"`
}

// ResponseFrame is the wire form of a reply. Exactly one of Reply and Err is set.
type ResponseFrame struct {
	Reply *Reply `json:"reply,omitempty"`
	Err   string `json:"err,omitempty"`
}

func EncodeRequest(cmd string, args [][]byte) ([]byte, error) {
	return json.Marshal(RequestFrame{Cmd: cmd, Args: args})
}

func DecodeRequest(b []byte) (RequestFrame, error) {
	var f RequestFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("decode request: %w", err)
	}
	if f.Cmd == "" {
		return f, fmt.Errorf("decode request: %w: empty command", ErrInvalidArgs)
	}
	return f, nil
}

func EncodeResponse(r Reply, err error) []byte {
	var f ResponseFrame
	if err != nil {
		f.Err = err.Error()
	} else {
		f.Reply = &r
	}
	b, _ := json.Marshal(f)
	return b
}

// DecodeResponse returns the reply or the remote error. MOVED errors are
// restored as *MovedError.
func DecodeResponse(b []byte) (Reply, error) {
	var f ResponseFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	if f.Err != "" {
		if m, ok := parseMoved(f.Err); ok {
			return Reply{}, m
		}
		return Reply{}, errors.New(f.Err)
	}
	if f.Reply == nil {
		return NilReply(), nil
	}
	return *f.Reply, nil
}
