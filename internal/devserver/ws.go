package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/catrixlabs/catrix-client/internal/proctor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dev server trusts any origin; CORS discipline is a production concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsAck struct {
	Event string `json:"event"`
}

// ProctorStream godoc
// GET /ws/proctor
// Receives activity events from exam windows and logs them. Pings are
// answered with pongs; everything else is acknowledged silently.
func (h *Handler) ProctorStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	userID := UserID(c)
	log := h.log.With().Str("user_id", userID).Logger()
	log.Debug().Msg("proctor channel open")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("proctor channel closed")
			return
		}

		var env struct {
			Action proctor.Action `json:"action"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Action {
		case proctor.ActionPing:
			_ = conn.WriteJSON(wsAck{Event: "pong"})
		case proctor.ActionActivity:
			var msg proctor.ActivityMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			log.Info().
				Str("event", msg.Event).
				Str("attempt_id", msg.Attempt).
				Int64("at", msg.At).
				Msg("proctor activity")
		}
	}
}
