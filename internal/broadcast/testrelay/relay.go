// Package testrelay is a test-only in-memory implementation of the HTTP
// broadcast relay protocol. The relay itself is an external collaborator
// out of scope for this module; this package exists solely so
// internal/broadcast's bridge can be exercised against something that
// speaks its wire protocol, a real client against an httptest.Server-backed
// fake rather than a mock.
package testrelay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/untoldecay/gram/internal/graph"
)

type broadcastRecord struct {
	token    graph.Id
	episodes map[int64][]byte
}

// Relay is a minimal, non-persistent relay: no TTL eviction, no auth beyond
// the bearer-token check §6.2 specifies.
type Relay struct {
	mu         sync.Mutex
	broadcasts map[graph.Id]*broadcastRecord
	server     *httptest.Server
}

// New starts a Relay on a local httptest.Server. Call Close when done.
func New() *Relay {
	r := &Relay{broadcasts: make(map[graph.Id]*broadcastRecord)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /broadcast", r.handleCreate)
	mux.HandleFunc("GET /broadcast/{bid}", r.handleListEpisodes)
	mux.HandleFunc("GET /broadcast/{bid}/{episode}", r.handleGetEpisode)
	mux.HandleFunc("PUT /broadcast/{bid}/{episode}", r.handlePutEpisode)
	mux.HandleFunc("DELETE /broadcast/{bid}", r.handleDelete)
	r.server = httptest.NewServer(withCORS(mux))
	return r
}

// URL is the relay's base endpoint, suitable for broadcast.NewClient.
func (r *Relay) URL() string { return r.server.URL }

// Close shuts the relay down.
func (r *Relay) Close() { r.server.Close() }

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,PUT,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "3000")
		}
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, req)
	})
}

func (r *Relay) handleCreate(w http.ResponseWriter, req *http.Request) {
	body, err := readAll(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	episode, err := strconv.ParseInt(req.URL.Query().Get("episode"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid episode", http.StatusBadRequest)
		return
	}

	bid, err := graph.NewId()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	token, err := graph.NewId()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	r.mu.Lock()
	r.broadcasts[bid] = &broadcastRecord{token: token, episodes: map[int64][]byte{episode: body}}
	r.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"broadcast_id": bid.String(),
		"token":        token.String(),
		"expiration":   0,
	})
}

func (r *Relay) handleListEpisodes(w http.ResponseWriter, req *http.Request) {
	rec, ok := r.lookup(req)
	if !ok {
		http.NotFound(w, req)
		return
	}
	r.mu.Lock()
	ts := make([]int64, 0, len(rec.episodes))
	for t := range rec.episodes {
		ts = append(ts, t)
	}
	r.mu.Unlock()
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = strconv.FormatInt(t, 10)
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Relay) handleGetEpisode(w http.ResponseWriter, req *http.Request) {
	rec, ok := r.lookup(req)
	if !ok {
		http.NotFound(w, req)
		return
	}
	episode, err := strconv.ParseInt(req.PathValue("episode"), 10, 64)
	if err != nil {
		http.Error(w, "invalid episode", http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	body, ok := rec.episodes[episode]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (r *Relay) handlePutEpisode(w http.ResponseWriter, req *http.Request) {
	rec, ok := r.lookup(req)
	if !ok {
		http.NotFound(w, req)
		return
	}
	if !r.authorized(req, rec) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	episode, err := strconv.ParseInt(req.PathValue("episode"), 10, 64)
	if err != nil {
		http.Error(w, "invalid episode", http.StatusBadRequest)
		return
	}
	body, err := readAll(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	_, existed := rec.episodes[episode]
	rec.episodes[episode] = body
	r.mu.Unlock()

	if existed {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
}

func (r *Relay) handleDelete(w http.ResponseWriter, req *http.Request) {
	rec, ok := r.lookup(req)
	if !ok {
		http.NotFound(w, req)
		return
	}
	if !r.authorized(req, rec) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	bid, _ := graph.ParseId(req.PathValue("bid"))
	r.mu.Lock()
	delete(r.broadcasts, bid)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *Relay) lookup(req *http.Request) (*broadcastRecord, bool) {
	bid, err := graph.ParseId(req.PathValue("bid"))
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	rec, ok := r.broadcasts[bid]
	r.mu.Unlock()
	return rec, ok
}

func (r *Relay) authorized(req *http.Request, rec *broadcastRecord) bool {
	auth := req.Header.Get("Authorization")
	want := "Bearer " + rec.token.String()
	return auth != "" && auth == want
}

func readAll(req *http.Request) ([]byte, error) {
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
