package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/citekit/citekit/core/driver"
	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/internal/logging"
)

// maxMessageSize bounds a single request frame. Styles and reference batches
// fit comfortably; anything larger is a client bug.
const maxMessageSize = 4 << 20

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.origins.Check,
	}
}

// request is one client operation.
type request struct {
	ID     int             `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// response answers one request.
type response struct {
	ID     int         `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  *wireError  `json:"error,omitempty"`
}

// wireError is the serialized form of the error taxonomy.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCode maps an error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrNotReady):
		return "not_ready"
	case errors.Is(err, errors.ErrLocaleNotLoaded):
		return "locale_not_loaded"
	case errors.Is(err, errors.ErrOrderMismatch):
		return "order_mismatch"
	case errors.Is(err, errors.ErrFetchFailure):
		return "fetch_failure"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errors.ErrUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}

// session is one connection's driver state.
type session struct {
	server *Server
	driver *driver.Driver
}

// handleSession upgrades the connection and serves requests until the client
// disconnects. Requests are processed strictly in order.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	logging.WebSocketEvent("session_opened", 1)
	defer logging.WebSocketEvent("session_closed", 0)

	sess := &session{server: s}
	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}

		resp := sess.handle(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			logging.Error("websocket write failed", "error", err)
			return
		}
	}
}
