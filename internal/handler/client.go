package handler

import (
	"net/http"
	"visiondemo/internal/logger"
	"visiondemo/internal/middleware"
	"visiondemo/internal/service"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsWebsocketHandler streams the caller's session events over WebSocket.
// The stream opens with a snapshot so late joiners render the current state.
func EventsWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.SessionID(r)
		c := manager.Session(id)

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if err := connection.WriteJSON(map[string]interface{}{"type": "snapshot", "session": c.Snapshot()}); err != nil {
			logger.Error("Error sending snapshot to viewer: %v", err)
			connection.Close()
			return
		}

		hub := manager.GetWebsocketService()
		hub.Register(connection, id)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer of session %s disconnected normally", c.LogID())
				} else {
					logger.Warning("Viewer of session %s disconnected: %v", c.LogID(), err)
				}
				break
			}
		}
	}
}
