package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to topics.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Topic  string `json:"topic"`  // event topic, "*" for everything
}

// wsEvent is the frame pushed to clients.
type wsEvent struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// WebSocketHandler upgrades to WebSocket and relays capture events to
// connected clients, so a map view in another tab (or another screen)
// follows the session live.
// Clients send JSON: {"action":"subscribe","topic":"route.computed"}.
// New connections start subscribed to every topic.
//
// Bus delivery is synchronous on the coordinator's goroutine, so
// events are queued per connection and dropped when the client cannot
// keep up. A slow dashboard must never stall point collection.
func WebSocketHandler(bus ports.EventBus) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		outbox := make(chan wsEvent, 64)

		var mu sync.Mutex
		unsubs := make(map[string]func()) // topic -> unsubscribe

		enqueue := func(topic string, payload any) {
			select {
			case outbox <- wsEvent{Topic: topic, Payload: payload}:
			default:
				slog.Warn("ws outbox full, dropping event", "remote", remoteAddr, "topic", topic)
			}
		}

		subscribe := func(topic string) bool {
			mu.Lock()
			defer mu.Unlock()
			if _, exists := unsubs[topic]; exists {
				return false
			}
			unsubs[topic] = bus.Subscribe(topic, enqueue)
			return true
		}

		unsubscribe := func(topic string) bool {
			mu.Lock()
			defer mu.Unlock()
			unsub, exists := unsubs[topic]
			if !exists {
				return false
			}
			unsub()
			delete(unsubs, topic)
			return true
		}

		// Everything by default; clients narrow down if they care.
		subscribe("*")

		// Writer: outbox events plus keep-alive pings.
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case ev := <-outbox:
					data, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				case <-ticker.C:
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe.
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				enqueue("error", "invalid JSON")
				continue
			}
			if m.Topic == "" {
				m.Topic = "*"
			}

			switch m.Action {
			case "subscribe":
				if subscribe(m.Topic) {
					enqueue("status", "subscribed to "+m.Topic)
				} else {
					enqueue("status", "already subscribed to "+m.Topic)
				}
			case "unsubscribe":
				if unsubscribe(m.Topic) {
					enqueue("status", "unsubscribed from "+m.Topic)
				} else {
					enqueue("error", "not subscribed to "+m.Topic)
				}
			default:
				enqueue("error", "unknown action: "+m.Action)
			}
		}

		// Cleanup
		close(done)
		mu.Lock()
		for _, unsub := range unsubs {
			unsub()
		}
		mu.Unlock()
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
