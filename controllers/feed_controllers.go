package controllers

import (
	"net/http"
	"time"

	"github.com/douxbatter/storefront/feed"
	"github.com/douxbatter/storefront/middlewares"
	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const pongWait = 60 * time.Second

// FeedController upgrades admin dashboards to the live order feed.
type FeedController struct {
	Hub      *feed.Hub
	upgrader websocket.Upgrader
}

func NewFeedController(hub *feed.Hub, allowedOrigin string) *FeedController {
	return &FeedController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// Connect -> GET /admin/ws. The connection only receives; anything the client
// sends is read and discarded to keep pongs flowing.
func (fc *FeedController) Connect(c *gin.Context) {
	sessionID := ""
	if s, ok := c.Get(middlewares.SessionKey); ok {
		sessionID = s.(*services.Session).ID
	}

	ws, err := fc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("Admin feed upgrade failed")
		return
	}

	fc.Hub.Register(ws, sessionID)
	defer fc.Hub.Unregister(ws)

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}
