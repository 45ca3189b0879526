// Package httpapi exposes the orchestration graph over HTTP: a synchronous
// chat endpoint returning the final answer, and a streaming variant relaying
// every graph event as server-sent events while the run progresses.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zelfhosted/server/core"
	"github.com/zelfhosted/server/graph"
	"github.com/zelfhosted/server/logging"
	"github.com/zelfhosted/server/stream"
)

// eventBuffer sizes the channel between a run goroutine and the SSE relay.
const eventBuffer = 64

// Server handles the HTTP surface over one Graph.
type Server struct {
	graph  *graph.Graph
	logger logging.Logger
	router chi.Router
}

// New builds the server and its routes.
func New(g *graph.Graph, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Server{graph: g, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/chat/stream", s.handleChatStream)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// chatMessage is one history entry supplied by the client.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the body of /chat and /chat/stream.
type chatRequest struct {
	Messages []chatMessage  `json:"messages"`
	Location *core.Location `json:"location"`
}

// toGraphRequest validates the payload and converts it. Only user and
// assistant roles are accepted from the wire; the system directive is owned
// by the server.
func (r chatRequest) toGraphRequest() (graph.Request, error) {
	msgs := make([]core.Content, 0, len(r.Messages))
	for _, m := range r.Messages {
		switch m.Role {
		case core.RoleUser, core.RoleAssistant:
			msgs = append(msgs, core.NewTextContent(m.Role, m.Content))
		default:
			return graph.Request{}, fmt.Errorf("invalid role %q", m.Role)
		}
	}
	return graph.Request{Messages: msgs, Location: r.Location}, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from Zelfhosted API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat runs the graph to completion and returns only the final answer.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := s.graph.Run(r.Context(), stream.Discard, req)
	if err != nil {
		s.logger.Error("chat run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "chat run failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

// handleChatStream runs the graph in a goroutine and relays its events as
// SSE data lines. The done event is always the last line, whether the run
// succeeded or failed.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cw := stream.NewChannelWriter(ctx, eventBuffer)
	go func() {
		defer cw.Close()
		req.Stream = true
		if _, err := s.graph.Run(ctx, cw, req); err != nil {
			s.logger.Error("stream run failed", "error", err)
			cw.Write(stream.Error("chat run failed"))
		}
	}()

	for ev := range cw.Events() {
		if !writeSSE(w, ev) {
			cancel()
			// Drain so the run goroutine can finish.
			for range cw.Events() {
			}
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	writeSSE(w, stream.Done())
	if canFlush {
		flusher.Flush()
	}
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (graph.Request, bool) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return graph.Request{}, false
	}
	req, err := body.toGraphRequest()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return graph.Request{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSSE(w http.ResponseWriter, ev stream.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return true // skip the event, keep the stream alive
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err == nil
}
