// Package server is the thin transport wrapper around the
// conversation service: one websocket chat endpoint plus a health
// check. It does request framing only; validation, persona
// resolution, and memory all live behind pipeline.Service.
package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/pipeline"
)

// Server serves the companion chat surface.
type Server struct {
	svc      *pipeline.Service
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a server over the given service.
func New(svc *pipeline.Service) *Server {
	s := &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	log.Printf("[SERVER] Listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// Handler exposes the routes for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// request is one inbound websocket frame.
type request struct {
	Type        string `json:"type"` // send | history | clear | stats | search
	CompanionID string `json:"companion_id"`
	UserID      string `json:"user_id"`
	Model       string `json:"model,omitempty"`
	Content     string `json:"content,omitempty"`
	Query       string `json:"query,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
	K           int    `json:"k,omitempty"`
}

// response is one outbound websocket frame.
type response struct {
	Type      string        `json:"type"`
	Text      string        `json:"text,omitempty"`
	ElapsedMs int64         `json:"elapsed_ms,omitempty"`
	Turns     []core.Turn   `json:"turns,omitempty"`
	Total     int           `json:"total,omitempty"`
	Results   []string      `json:"results,omitempty"`
	Stats     *memory.Stats `json:"stats,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] Read failed: %v", err)
			}
			return
		}

		resp := s.dispatch(r, &req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[SERVER] Write failed: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(r *http.Request, req *request) *response {
	ctx := r.Context()
	key := memory.NewKeyWithModel(req.CompanionID, req.UserID, req.Model)

	switch req.Type {
	case "send":
		result, err := s.svc.SendMessage(ctx, key, req.Content)
		if result == nil && err != nil {
			return errorResponse(req.Type, err)
		}
		resp := &response{Type: req.Type, Text: result.Text, ElapsedMs: result.ElapsedMs}
		if err != nil {
			// Response exists; persistence failed. Surface both.
			resp.Error = err.Error()
		}
		return resp

	case "history":
		turns, total, err := s.svc.GetHistory(ctx, key, req.Limit, req.Offset)
		if err != nil {
			return errorResponse(req.Type, err)
		}
		return &response{Type: req.Type, Turns: turns, Total: total}

	case "clear":
		if err := s.svc.ClearHistory(ctx, key); err != nil {
			return errorResponse(req.Type, err)
		}
		return &response{Type: req.Type}

	case "stats":
		stats, err := s.svc.GetStatistics(ctx, key)
		if err != nil {
			return errorResponse(req.Type, err)
		}
		return &response{Type: req.Type, Stats: &stats}

	case "search":
		results, err := s.svc.Search(ctx, key, req.Query, req.K)
		if err != nil {
			return errorResponse(req.Type, err)
		}
		return &response{Type: req.Type, Results: results}

	default:
		return &response{Type: req.Type, Error: "unknown request type"}
	}
}

func errorResponse(reqType string, err error) *response {
	var nferr *core.NotFoundError
	var verr *core.ValidationError
	switch {
	case errors.As(err, &nferr), errors.As(err, &verr):
		// Caller mistakes carry their message through.
		return &response{Type: reqType, Error: err.Error()}
	default:
		log.Printf("[SERVER] %s failed: %v", reqType, err)
		return &response{Type: reqType, Error: "internal error"}
	}
}
