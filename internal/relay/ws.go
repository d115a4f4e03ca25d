package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"livewire/backend/internal/models"
	"livewire/backend/internal/service"
	"livewire/backend/pkg/errors"
	"livewire/backend/pkg/logger"
	"livewire/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Framing slack between the gate's payload bound and the transport read
	// limit. An oversized payload must still be readable so the gate can
	// answer it with PAYLOAD_TOO_LARGE; only payloads past the slack kill
	// the connection at the transport level.
	readLimitSlack = 4 << 10
)

// transportReadLimit is the websocket read limit for a given gate payload
// bound. Strictly larger than the bound, so the oversized-payload rejection
// path is reachable from the wire.
func transportReadLimit(maxPayload int64) int64 {
	return maxPayload + readLimitSlack
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin enforcement belongs to the edge proxy
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// WSHandler bridges websocket connections to relay sessions
type WSHandler struct {
	runtime *Runtime
	chat    *service.ChatService
	log     *logger.Logger
}

// NewWSHandler creates the websocket relay endpoint handler
func NewWSHandler(runtime *Runtime, chat *service.ChatService, log *logger.Logger) *WSHandler {
	return &WSHandler{runtime: runtime, chat: chat, log: log}
}

// Serve handles GET /ws/chat/:conversationID. Authentication has already run
// (JWT middleware accepts the token query parameter for handshakes); the
// conversation must exist and the user must currently participate in it
// before the connection is upgraded.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	target := c.Param("conversationID")
	conversationID, err := strconv.ParseUint(target, 10, 32)
	if err != nil || conversationID == 0 {
		c.Error(errors.NewBadRequestError("MALFORMED_TARGET", "conversation id must be a positive integer"))
		return
	}

	exists, err := h.chat.Exists(uint(conversationID))
	if err != nil {
		c.Error(errors.NewInternalServerError("CONVERSATION_LOOKUP_FAILED", "could not resolve conversation"))
		return
	}
	if !exists {
		c.Error(errors.NewNotFoundError("CONVERSATION_NOT_FOUND", "conversation does not exist"))
		return
	}

	member, err := h.chat.IsParticipant(uint(conversationID), userID)
	if err != nil {
		c.Error(errors.NewInternalServerError("MEMBERSHIP_CHECK_FAILED", "could not verify conversation membership"))
		return
	}
	if !member {
		c.Error(errors.NewForbiddenError(CodeNotParticipant, "you are not a member of this conversation"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed", "conversation_id", conversationID)
		return
	}

	session := h.runtime.NewSession(userID).WithPersist(h.persistEnvelopeBody)

	if err := session.Open(c.Request.Context(), target); err != nil {
		h.log.LogError(err, "relay session failed to open", "target", target)
		conn.WriteMessage(websocket.TextMessage, EncodeErrorFrame("SESSION_OPEN_FAILED", "could not join conversation"))
		conn.Close()
		return
	}

	log := h.log.WithUserID(strconv.FormatUint(uint64(userID), 10)).
		WithConversation(strconv.FormatUint(conversationID, 10))
	log.Info("relay session opened", "session_id", session.ID)

	go h.writePump(conn, session)
	h.readPump(conn, session, log)
}

// persistEnvelopeBody stores admitted payloads that carry a message body as
// durable history rows, before publication. Payloads without a body (client
// side signals and the like) relay without touching storage.
func (h *WSHandler) persistEnvelopeBody(ctx context.Context, conversationID, userID uint, payload []byte) error {
	var probe struct {
		Body          string `json:"body"`
		AttachmentURL string `json:"attachment_url"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return err
	}
	if probe.Body == "" && probe.AttachmentURL == "" {
		return nil
	}

	_, err := h.chat.CreateMessage(conversationID, userID, &models.CreateMessageRequest{
		Body:          probe.Body,
		AttachmentURL: probe.AttachmentURL,
	})
	return err
}

// readPump drives the session from the wire until the connection dies. It
// runs on the handler goroutine; session teardown happens here exactly once
// no matter how the loop exits.
func (h *WSHandler) readPump(conn *websocket.Conn, session *Session, log *logger.Logger) {
	defer func() {
		session.Close()
		conn.Close()
		if err := h.chat.TouchLastSeen(session.ConversationID, session.UserID); err != nil {
			log.Debug("failed to record last seen", "error", err.Error())
		}
		log.Info("relay session closed", "session_id", session.ID)
	}()

	conn.SetReadLimit(transportReadLimit(h.runtime.cfg.Relay.MaxPayload))
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", "error", err.Error())
			}
			return
		}
		session.HandleInbound(context.Background(), payload)
	}
}

// writePump drains the session's outbound queue to the connection and keeps
// the transport alive with pings.
func (h *WSHandler) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload := <-session.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-session.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
