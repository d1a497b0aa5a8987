package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"spotmatch/app/internal/feed"
	"spotmatch/app/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten before production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeFeed upgrades the connection and attaches it to the change feed.
// The token travels as a query parameter because browser WebSocket clients
// cannot set headers.
func (h *Handler) ServeFeed(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenString = authHeader[7:]
		}
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	userID, err := h.validateJWT(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	// Opening the feed warms the session so the reactive loops are already
	// running when the first event arrives.
	h.sessions.get(userID)

	client := &feed.WebSocketClient{
		ID:   userID,
		Conn: conn,
		Hub:  h.Hub,
		Send: make(chan models.ChangeEvent, 256),
	}
	// The hub starts the client's pumps once registration lands.
	h.Hub.RegisterCh <- client
}
