package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/blixt/calendar-assistant/dispatch"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// frame is sent to websocket clients. Type is one of tool_start, tool_done,
// text, reply or error.
type frame struct {
	Type            string                `json:"type"`
	Tool            string                `json:"tool,omitempty"`
	Label           string                `json:"label,omitempty"`
	Args            json.RawMessage       `json:"args,omitempty"`
	Result          json.RawMessage       `json:"result,omitempty"`
	Text            string                `json:"text,omitempty"`
	Response        string                `json:"response,omitempty"`
	FunctionResults []dispatch.ToolResult `json:"function_results,omitempty"`
	Error           string                `json:"error,omitempty"`
}

type wsSession struct {
	conn *websocket.Conn
	log  zerolog.Logger
	mu   sync.Mutex
}

func (s *wsSession) send(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(f); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write frame")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := &wsSession{conn: conn, log: *hlog.FromRequest(r)}
	// Messages on one connection are handled in the order they arrive.
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req chatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sess.send(frame{Type: string(dispatch.UpdateTypeError), Error: "Invalid JSON body"})
			continue
		}
		if req.Message == "" {
			sess.send(frame{Type: string(dispatch.UpdateTypeError), Error: "Message is required"})
			continue
		}

		reply, err := s.dispatcher.Run(r.Context(), s.backends.Backend(), req.Message, sess.observe)
		if err != nil {
			sess.log.Error().Err(err).Msg("Error in chat websocket")
			sess.send(frame{Type: string(dispatch.UpdateTypeError), Error: err.Error()})
			continue
		}
		sess.send(frame{Type: "reply", Response: reply.Response, FunctionResults: reply.FunctionResults})
	}
}

func (s *wsSession) observe(update dispatch.Update) {
	switch update := update.(type) {
	case dispatch.ToolStartUpdate:
		s.send(frame{Type: string(update.Type()), Tool: update.Call.Name, Label: update.Label, Args: update.Args})
	case dispatch.ToolDoneUpdate:
		f := frame{Type: string(update.Type()), Tool: update.Result.Name, Label: update.Label, Result: update.Result.Result}
		if update.Error != nil {
			f.Error = update.Error.Error()
		}
		s.send(f)
	case dispatch.TextUpdate:
		s.send(frame{Type: string(update.Type()), Text: update.Text})
	case dispatch.ErrorUpdate:
		// Reported once Run returns.
	}
}
