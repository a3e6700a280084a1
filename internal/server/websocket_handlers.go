package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketRequest is a client message. Only "extract" is understood.
type WebSocketRequest struct {
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WebSocketMessage is a server message: "state" for every run event,
// then "result", or "error" when the run could not complete.
type WebSocketMessage struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Event     *pipeline.Event  `json:"event,omitempty"`
	Response  *ExtractResponse `json:"response,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// upgrader returns an upgrader that honours the configured CORS origin.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// extractWebSocketHandler streams extraction progress over a WebSocket.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		}
	}
}

// handleWebSocketMessage runs one extraction request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", ErrCodeInvalidRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if req.Type != "extract" {
		s.sendWebSocketError(conn, req.RequestID, ErrCodeInvalidRequest, "Unsupported request type: "+req.Type)
		return
	}

	title := firstNonEmpty(req.Title, s.base.WindowTitle)
	if title == "" {
		s.sendWebSocketError(conn, req.RequestID, ErrCodeInvalidRequest, "No window title configured or provided")
		return
	}
	if s.live == nil {
		s.sendWebSocketError(conn, req.RequestID, ErrCodeInternal, "Extraction pipeline not initialized")
		return
	}

	obs := pipeline.FuncObserver(func(ev pipeline.Event) {
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "state", RequestID: req.RequestID, Event: &ev})
	})

	res, err := s.run(ctx, "websocket", s.live, title, obs)
	if err != nil {
		code, msg := ErrCodeInternal, err.Error()
		switch {
		case errors.Is(err, window.ErrNotFound):
			code = ErrCodeWindowNotFound
		case errors.Is(err, context.DeadlineExceeded):
			code = ErrCodeTimeout
		case errors.Is(err, pipeline.ErrInvalidRequest):
			code = ErrCodeInvalidRequest
		}
		s.sendWebSocketError(conn, req.RequestID, code, msg)
		return
	}

	var text bytes.Buffer
	opts := pipeline.ReportOptions{Format: pipeline.FormatText, Separator: s.separator}
	if err := pipeline.Report(&text, res, opts, obs); err != nil {
		s.sendWebSocketError(conn, req.RequestID, ErrCodeInternal, err.Error())
		return
	}

	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      "result",
		RequestID: req.RequestID,
		Response: &ExtractResponse{
			Success: res.OK(),
			Text:    string(bytes.TrimRight(text.Bytes(), "\n")),
			Result:  res,
		},
	})
}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, code, message string) {
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      "error",
		RequestID: requestID,
		Response:  &ExtractResponse{Success: false, Error: code, Message: message},
	})
}
