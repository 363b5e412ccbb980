package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the envelope for every frame in both directions
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type loginMessage struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

type dayMessage struct {
	Date string `json:"date"`
}

// wsClient is one connection. Messages are handled one at a time, so the
// session needs no locking.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	sess   *session.Session
	logger zerolog.Logger
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		loggerFrom(c).Warn().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	defer conn.Close()

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
	}
	client.logger = loggerFrom(c).With().Str("client_id", client.id).Logger()
	s.clients.Store(client.id, conn)
	defer s.clients.Delete(client.id)
	client.logger.Info().Msg("WebSocket client connected")

	ctx := c.Request().Context()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Warn().Err(err).Msg("Error reading message")
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(client, &models.ValidationError{Field: "message", Reason: "invalid message format"})
			continue
		}
		s.handleWebSocketMessage(ctx, client, msg)
	}
	client.logger.Info().Msg("WebSocket client disconnected")
	return nil
}

func (s *Server) handleWebSocketMessage(ctx context.Context, client *wsClient, msg wsMessage) {
	switch msg.Type {
	case "login":
		s.handleWSLogin(client, msg.Data)
	case "record_meal":
		s.handleWSRecordMeal(ctx, client, msg.Data)
	case "get_day":
		s.handleWSGetDay(ctx, client, msg.Data)
	case "evaluate_day":
		s.handleWSEvaluateDay(ctx, client, msg.Data)
	default:
		s.sendError(client, &models.ValidationError{Field: "type", Reason: "unknown message type " + msg.Type})
	}
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &models.ValidationError{Field: "data", Reason: "invalid message data"}
	}
	return nil
}

// handleWSLogin accepts either the password or a token from an earlier REST login
func (s *Server) handleWSLogin(client *wsClient, data json.RawMessage) {
	var req loginMessage
	if err := decodeData(data, &req); err != nil {
		s.sendError(client, err)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if req.Token != "" {
		sess, err = s.sessions.Verify(req.Token)
	} else {
		sess, err = s.sessions.Login(req.Password)
	}
	if err != nil {
		s.sendError(client, err)
		return
	}
	client.sess = sess
	s.sendMessage(client, "session", sess)
}

func (s *Server) handleWSRecordMeal(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req mealRequest
	if err := decodeData(data, &req); err != nil {
		s.sendError(client, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.sendError(client, err)
		return
	}

	res, err := s.journal.RecordMeal(ctx, client.sess, in)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendMessage(client, "meal_recorded", newMealResponse(res))
}

func (s *Server) wsDate(data json.RawMessage) (string, error) {
	var req dayMessage
	if err := decodeData(data, &req); err != nil {
		return "", err
	}
	if req.Date == "" || req.Date == "today" {
		return s.journal.Today(), nil
	}
	return req.Date, nil
}

func (s *Server) handleWSGetDay(ctx context.Context, client *wsClient, data json.RawMessage) {
	date, err := s.wsDate(data)
	if err != nil {
		s.sendError(client, err)
		return
	}
	view, err := s.journal.GetDay(ctx, client.sess, date)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendMessage(client, "day", view)
}

func (s *Server) handleWSEvaluateDay(ctx context.Context, client *wsClient, data json.RawMessage) {
	date, err := s.wsDate(data)
	if err != nil {
		s.sendError(client, err)
		return
	}
	eval, err := s.journal.EvaluateDay(ctx, client.sess, date)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendMessage(client, "evaluation", eval)
}

func (s *Server) sendMessage(client *wsClient, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if s.debug {
		client.logger.Debug().Str("type", messageType).Msg("Sending message to client")
	}
	if err := client.conn.WriteJSON(msg); err != nil {
		client.logger.Warn().Err(err).Msg("Error sending message")
	}
}

func (s *Server) sendError(client *wsClient, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		client.logger.Error().Err(err).Str("code", code).Msg("Request failed")
		message = http.StatusText(status)
	}

	msg := map[string]any{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if err := client.conn.WriteJSON(msg); err != nil {
		client.logger.Warn().Err(err).Msg("Error sending error message")
	}
}
