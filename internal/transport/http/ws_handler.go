package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/realtime"
)

// Client to server events.
const (
	eventJoinSession        = "join-session"
	eventStartQuiz          = "start-quiz"
	eventNextQuestion       = "next-question"
	eventEndQuiz            = "end-quiz"
	eventAnswerSubmitted    = "answer-submitted"
	eventGetCurrentQuestion = "get-current-question"
	eventRequestLeaderboard = "request-leaderboard"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8 << 10
	// handlerTimeout bounds the store work of a single inbound event.
	handlerTimeout = 10 * time.Second
)

type WSHandler struct {
	sessions *app.SessionService
	hub      *realtime.Hub
	fanout   *fanout
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(sessions *app.SessionService, hub *realtime.Hub, checkOrigin func(*http.Request) bool, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		sessions: sessions,
		hub:      hub,
		fanout:   newFanout(hub, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	SessionCode string `json:"sessionCode"`
}

type joinPayload struct {
	SessionCode     string        `json:"sessionCode"`
	Role            realtime.Role `json:"role"`
	ParticipantID   string        `json:"participantId"`
	ParticipantName string        `json:"participantName"`
}

type answerNotice struct {
	SessionCode     string `json:"sessionCode"`
	ParticipantName string `json:"participantName"`
	IsCorrect       bool   `json:"isCorrect"`
	Score           int    `json:"score"`
}

// ServeWS upgrades the request and runs the connection until the peer goes away.
func (h *WSHandler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := h.hub.NewClient()
	writerDone := make(chan struct{})
	go h.writeLoop(conn, client, writerDone)

	h.readLoop(c.Request.Context(), conn, client)

	code, left := h.hub.Leave(client)
	h.hub.Close(client)
	<-writerDone
	if code != "" {
		h.announceCount(code, left)
	}
}

// writeLoop is the only goroutine writing to conn. It exits when the hub closes the client
// or a write fails, closing conn so the reader unblocks too.
func (h *WSHandler) writeLoop(conn *websocket.Conn, client *realtime.Client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case frame, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("ws write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *realtime.Client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if isDecodeError(err) {
				h.sendError(client, domain.ErrMalformedRequest.WithMessagef("invalid message"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read failed", "error", err)
			}
			return
		}
		evCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		if err := h.dispatch(evCtx, client, inbound); err != nil {
			h.sendError(client, err)
		}
		cancel()
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *realtime.Client, msg inboundMessage) error {
	switch msg.Type {
	case eventJoinSession:
		var p joinPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return h.join(ctx, client, p)
	case eventStartQuiz:
		code, err := sessionCodeOf(msg.Payload)
		if err != nil {
			return err
		}
		_, err = h.sessions.Start(ctx, code)
		return err
	case eventNextQuestion:
		code, err := sessionCodeOf(msg.Payload)
		if err != nil {
			return err
		}
		_, err = h.sessions.Advance(ctx, code)
		return err
	case eventEndQuiz:
		code, err := sessionCodeOf(msg.Payload)
		if err != nil {
			return err
		}
		return h.sessions.End(ctx, code)
	case eventAnswerSubmitted:
		var p answerNotice
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		if p.SessionCode == "" || p.ParticipantName == "" {
			return domain.ErrMalformedRequest
		}
		if _, err := h.sessions.Leaderboard(ctx, p.SessionCode); err != nil {
			return err
		}
		h.fanout.answerRelayed(p.SessionCode, client, p.ParticipantName, p.IsCorrect)
		return h.sessions.PublishLeaderboard(ctx, p.SessionCode)
	case eventGetCurrentQuestion:
		code, err := sessionCodeOf(msg.Payload)
		if err != nil {
			return err
		}
		q, ok, err := h.sessions.CurrentQuestion(ctx, code)
		if err != nil || !ok {
			return err
		}
		return h.hub.Send(client, realtime.EventNewQuestion, realtime.QuestionPayload(q))
	case eventRequestLeaderboard:
		code, err := sessionCodeOf(msg.Payload)
		if err != nil {
			return err
		}
		lb, err := h.sessions.Leaderboard(ctx, code)
		if err != nil {
			return err
		}
		return h.hub.Send(client, realtime.EventLeaderboardUpdate, realtime.LeaderboardPayload(lb))
	default:
		return domain.ErrMalformedRequest.WithMessagef("unsupported message type %q", msg.Type)
	}
}

// join puts the connection in the room before reading the session, so nothing broadcast after
// the snapshot is missed. A failed lookup takes the connection back to where it was.
func (h *WSHandler) join(ctx context.Context, client *realtime.Client, p joinPayload) error {
	p.SessionCode = strings.TrimSpace(p.SessionCode)
	if p.SessionCode == "" {
		return domain.ErrMalformedRequest.WithMessagef("sessionCode is required")
	}
	if p.Role == "" {
		p.Role = realtime.RoleParticipant
	}
	if p.Role != realtime.RoleParticipant && p.Role != realtime.RoleEducator {
		return domain.ErrMalformedRequest.WithMessagef("unknown role %q", p.Role)
	}

	previous := h.hub.Room(client)
	h.hub.Join(client, p.SessionCode)

	snapshot, joined, err := h.enter(ctx, p)
	if err != nil {
		switch {
		case previous == "":
			h.hub.Leave(client)
		case previous != p.SessionCode:
			h.hub.Join(client, previous)
		}
		return err
	}

	if joined != nil {
		client.SetIdentity(p.Role, joined.ID, joined.Name)
		_ = h.hub.Send(client, realtime.EventParticipantJoined, realtime.ParticipantJoined{
			ParticipantID:   joined.ID,
			ParticipantName: joined.Name,
		})
	} else {
		client.SetIdentity(p.Role, p.ParticipantID, p.ParticipantName)
	}
	if err := h.hub.Send(client, realtime.EventSessionState, sessionStatePayload(snapshot)); err != nil {
		return err
	}

	h.fanout.participantCount(p.SessionCode, snapshot.ParticipantCount)
	if joined != nil {
		h.fanout.participantJoined(p.SessionCode, client, joined.Name, snapshot.ParticipantCount)
	}
	h.log.Debug("connection joined room", "session_code", p.SessionCode, "role", p.Role)
	return nil
}

// enter enrolls participants (rejoining by name) and reads the session for everyone else.
func (h *WSHandler) enter(ctx context.Context, p joinPayload) (app.Snapshot, *domain.Participant, error) {
	if p.Role == realtime.RoleParticipant && strings.TrimSpace(p.ParticipantName) != "" {
		res, err := h.sessions.Enroll(ctx, p.SessionCode, p.ParticipantID, p.ParticipantName)
		if err != nil {
			return app.Snapshot{}, nil, err
		}
		return res.Snapshot, &res.Participant, nil
	}
	snapshot, err := h.sessions.Snapshot(ctx, p.SessionCode)
	return snapshot, nil, err
}

// announceCount refreshes the room after a disconnect. Participants stay on the roster,
// so the roster size is reported when the session can still be read.
func (h *WSHandler) announceCount(code string, left int) {
	if left == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	count := left
	if s, err := h.sessions.Snapshot(ctx, code); err == nil {
		count = s.ParticipantCount
	}
	h.fanout.participantCount(code, count)
}

func (h *WSHandler) sendError(client *realtime.Client, err error) {
	e := domain.AsError(err)
	if e.Kind == domain.KindInternal {
		h.log.Error("ws event failed", "error", err)
	}
	_ = h.hub.Send(client, realtime.EventError, realtime.Error{Message: e.Message, Code: e.Code})
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return domain.ErrMalformedRequest
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrMalformedRequest.WithMessagef("invalid payload").WithCause(err)
	}
	return nil
}

func sessionCodeOf(raw json.RawMessage) (string, error) {
	var p sessionPayload
	if err := decodePayload(raw, &p); err != nil {
		return "", err
	}
	code := strings.TrimSpace(p.SessionCode)
	if code == "" {
		return "", domain.ErrMalformedRequest.WithMessagef("sessionCode is required")
	}
	return code, nil
}

// isDecodeError reports a frame that arrived intact but was not a valid message.
func isDecodeError(err error) bool {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
