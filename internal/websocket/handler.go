package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the hub as a watcher of one job key.
func ServeWs(hub *Hub, c *websocket.Conn, jobKey string) {
	client := &Client{Hub: hub, Conn: c, JobKey: jobKey, Send: make(chan []byte, 256)}
	hub.Register(client)

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
