package handlers

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ReportFeed upgrades the connection and subscribes the client to the live
// report feed. The feed is public; a viewer ID query param is accepted for
// log correlation only.
func (h *Handlers) ReportFeed(c *gin.Context) {
	viewerID := c.Query("viewer")
	if viewerID == "" {
		viewerID = c.ClientIP()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade feed connection: %v", err)
		return
	}

	h.hub.RegisterClient(conn, viewerID)
}
