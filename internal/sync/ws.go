package sync

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"moviedex/internal/logging"
)

// WSHandler upgrades the request and keeps the subscriber until it hangs up.
// ?topics=saved,trend narrows the feed. allowed lists permitted Origin values;
// empty allows any origin.
func WSHandler(hub *Hub, allowed []string, log *slog.Logger) gin.HandlerFunc {
	log = logging.Component(log, "ws")
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}

	return func(c *gin.Context) {
		topics := ParseTopics(c.QueryArray("topics"))

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, statusLine("welcome", transportWS, topics)); err != nil {
			_ = ws.Close()
			return
		}

		sub := hub.SubscribeWS(ws, topics)
		log.Debug("client connected", "topics", topicList(topics))

		// reads only detect the hang-up
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Unsubscribe(sub)
		log.Debug("client disconnected")
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// native mobile clients send no Origin
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
