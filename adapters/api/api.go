// Package api exposes a cluster client over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/topology"
)

const contentTypeJSON = "application/json"

// CommandRequest is the body of POST /commands. Node selects a node for
// node-local commands.
type CommandRequest struct {
	Command string   `json:"command"`
	Keys    []string `json:"keys,omitempty"`
	Args    []string `json:"args,omitempty"`
	Node    string   `json:"node,omitempty"`
}

type SlotResponse struct {
	Key  string         `json:"key"`
	Slot uint16         `json:"slot"`
	Node *topology.Node `json:"node"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	c   *cluster.Client
	log *slog.Logger
}

// NewRouter returns the HTTP routes for c.
func NewRouter(c *cluster.Client, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{c: c, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/topology", h.handleTopology)
	r.Post("/topology/refresh", h.handleRefresh)
	r.Get("/nodes/{id}", h.handleNode)
	r.Get("/slots/{key}", h.handleSlot)
	r.Get("/commands", h.handleCommands)
	r.Post("/commands", h.handleCommand)
	return r
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("error encoding response", slog.Any("error", err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cluster.ErrUnknownCommand),
		errors.Is(err, cluster.ErrWrongClass),
		errors.Is(err, cluster.ErrInvalidArgs),
		errors.Is(err, cluster.ErrNoKeys),
		errors.Is(err, cluster.ErrCrossSlot):
		return http.StatusBadRequest
	case errors.Is(err, topology.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, topology.ErrSlotNotCovered),
		errors.Is(err, topology.ErrTopologyUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, cluster.ErrPartialFailure),
		errors.Is(err, cluster.ErrNodeUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleTopology(w http.ResponseWriter, _ *http.Request) {
	t := h.c.Topology()
	if t == nil {
		h.writeError(w, topology.ErrTopologyUnavailable)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	t, err := h.c.Refresh(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *handler) handleNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.c.Node(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, n)
}

func (h *handler) handleSlot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	n, err := h.c.Route(r.Context(), []byte(key))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SlotResponse{Key: key, Slot: h.c.KeySlot([]byte(key)), Node: n})
}

func (h *handler) handleCommands(w http.ResponseWriter, _ *http.Request) {
	type spec struct {
		Name     string `json:"name"`
		Class    string `json:"class"`
		Merge    string `json:"merge,omitempty"`
		ReadOnly bool   `json:"read_only,omitempty"`
	}
	var out []spec
	for _, s := range h.c.Commands().Specs() {
		item := spec{Name: s.Name, Class: s.Class.String(), ReadOnly: s.ReadOnly}
		if s.Merge != command.MergeNone {
			item.Merge = s.Merge.String()
		}
		out = append(out, item)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Command == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing command"})
		return
	}

	var (
		reply cluster.Reply
		err   error
	)
	if req.Node != "" {
		reply, err = h.c.ExecuteOnNode(r.Context(), req.Node, req.Command, toBytes(append(req.Keys, req.Args...))...)
	} else {
		reply, err = h.c.Do(r.Context(), req.Command, toBytes(req.Keys), toBytes(req.Args)...)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

func toBytes(ss []string) [][]byte {
	if len(ss) == 0 {
		return nil
	}
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}
