package api

import (
	"net/http"

	"clinicdocs/internal/auth"
	"clinicdocs/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	// the auth middleware has already read a bearer token, ?token= or the dev header
	doctorID := auth.GetDoctorID(r.Context())
	if doctorID == "" {
		doctorID = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	d.Log.Info("WebSocket connection opened",
		zap.String("remote", r.RemoteAddr),
		zap.String("doctor_id", doctorID),
	)

	wsConn := ws.NewConn(conn, d.Hub, doctorID)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
