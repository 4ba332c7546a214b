package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/finwise-app/banklink-api/middleware"
	"github.com/finwise-app/banklink-api/models"
)

// WSHandler pushes sync lifecycle events to connected dashboard clients.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 1024 * 1024

	// Keep-alive for cloud hosts that kill idle connections.
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		log.Printf("✅ Sync feed connected for user: %v", userID)
	})

	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		log.Printf("🔌 Sync feed disconnected for user: %v", userID)
	})

	m.HandleError(func(s *melody.Session, err error) {
		log.Printf("❌ WebSocket error: %v", err)
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades the request and tags the session with the caller's
// identity so broadcasts stay per-user. The identity rides in as a session
// key; the connect handler is registered once on the shared melody instance,
// so concurrent upgrades cannot cross-tag each other's sessions.
func (h *WSHandler) HandleWS(c *gin.Context) {
	userID := middleware.GetUserID(c)

	err := h.M.HandleRequestWithKeys(c.Writer, c.Request, map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		log.Printf("❌ Failed to upgrade websocket: %v", err)
	}
}

// NotifySync implements services.SyncNotifier.
func (h *WSHandler) NotifySync(userID, event string, result *models.SyncResult) {
	msg, err := json.Marshal(gin.H{
		"type":   event,
		"result": result,
	})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(q *melody.Session) bool {
		id, exists := q.Get("user_id")
		return exists && id == userID
	})
	if err != nil {
		log.Printf("⚠️ Error broadcasting sync event to user %s: %v", userID, err)
	}
}
