package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as CORS
	},
}

const attachWriteWait = 5 * time.Second

// Attach proxies a websocket to an interactive session on the host.
// The session is opened before the upgrade so lookup and backend errors
// still reach the client as plain HTTP errors.
func (h *TopologyHandler) Attach(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := h.engine.Session(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "Failed to attach", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		sess.Close()
		h.logger.Debug().Err(err).Str("host", id).Msg("Attach upgrade failed")
		return
	}

	h.logger.Info().Str("host", id).Msg("Attach session opened")
	defer h.logger.Info().Str("host", id).Msg("Attach session closed")

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			sess.Close()
			conn.Close()
		})
	}
	defer closeBoth()

	// session -> client
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer closeBoth()
		buf := make([]byte, 32*1024)
		for {
			n, err := sess.Read(buf)
			if n > 0 {
				conn.SetWriteDeadline(time.Now().Add(attachWriteWait))
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(attachWriteWait))
				return
			}
		}
	}()

	// client -> session
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if _, err := sess.Write(msg); err != nil {
			break
		}
	}
	closeBoth()
	<-done
}
